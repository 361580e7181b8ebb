// Command classify runs the service classifier on a description and prints
// the analysis as JSON. It is a development aid for tuning prompts and models.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/garnizeh/fixit/internal/classifier"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/ollama"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config YAML file")
		provider   = flag.String("provider", "", "Override engine.provider (ollama, gemini, none)")
		model      = flag.String("model", "", "Override engine.model")
		timeout    = flag.Duration("timeout", 0, "Override engine.timeout")
		verbose    = flag.Bool("v", false, "Log classifier activity to stderr")
		health     = flag.Bool("health", false, "Check the classifier backend and exit")
	)
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal(err)
	}
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *provider != "" {
		cfg.EngineConfig.Provider = *provider
	}
	if *model != "" {
		cfg.EngineConfig.Model = *model
	}
	if *timeout > 0 {
		cfg.EngineConfig.Timeout = *timeout
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	ollama.SetLogger(logger)

	ctx := context.Background()
	engine, err := classifier.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	if *health {
		if err := engine.Health(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "provider=%s: %v\n", engine.Provider(), err)
			os.Exit(1)
		}
		fmt.Printf("provider=%s ok\n", engine.Provider())
		return
	}

	description, err := readDescription(flag.Args(), os.Stdin)
	if err != nil {
		log.Fatal(err)
	}

	start := time.Now()
	analysis, err := engine.Classify(ctx, description)
	if errors.Is(err, models.ErrClassifierUnavailable) {
		fmt.Fprintf(os.Stderr, "classifier unavailable (%v); showing the fallback analysis\n", err)
		analysis = classifier.DefaultAnalysis()
	} else if err != nil {
		log.Fatal(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(analysis); err != nil {
		log.Fatal(err)
	}
	fmt.Fprintf(os.Stderr, "provider=%s elapsed=%s\n", engine.Provider(), time.Since(start).Round(time.Millisecond))
}

// readDescription joins the arguments, or reads stdin when there are none.
func readDescription(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	var b strings.Builder
	sc := bufio.NewScanner(stdin)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	d := strings.TrimSpace(b.String())
	if d == "" {
		return "", errors.New("usage: classify [flags] <description> (or pipe it on stdin)")
	}
	return d, nil
}
