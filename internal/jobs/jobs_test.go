package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	dbfs "github.com/garnizeh/fixit/db"
	dbpkg "github.com/garnizeh/fixit/internal/db"
	"github.com/garnizeh/fixit/internal/jobs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))
}

var dbSeq atomic.Int64

func setupRepo(t *testing.T) *jobs.Repository {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, fmt.Sprintf("file:jobs-%d?mode=memory&cache=shared", dbSeq.Add(1)))
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if _, err := dbpkg.Migrate(ctx, d, dbfs.Migrations); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return jobs.NewRepository(d)
}

func TestBackoffDuration(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{9, 5 * time.Minute},
		{64, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := jobs.BackoffDuration(tt.attempt); got != tt.want {
			t.Fatalf("BackoffDuration(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRepository_ClaimOrderAndExclusivity(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	low, err := repo.Enqueue(ctx, &jobs.Job{Type: "t", Payload: []byte(`{}`), Priority: 50})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	high, err := repo.Enqueue(ctx, &jobs.Job{Type: "t", Payload: []byte(`{}`), Priority: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "t", Payload: []byte(`{}`), ScheduledAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("enqueue future: %v", err)
	}

	first, err := repo.Claim(ctx)
	if err != nil || first == nil {
		t.Fatalf("claim: %v %v", first, err)
	}
	if first.ID != high || first.Status != jobs.StatusRunning {
		t.Fatalf("expected high priority job %d running, got %+v", high, first)
	}
	second, err := repo.Claim(ctx)
	if err != nil || second == nil || second.ID != low {
		t.Fatalf("expected job %d, got %+v (%v)", low, second, err)
	}
	none, err := repo.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if none != nil {
		t.Fatalf("future job must not be claimed yet, got %+v", none)
	}
}

func TestRepository_ConcurrentClaimsNeverShareAJob(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	const n = 20
	for i := 0; i < n; i++ {
		if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "t", Payload: []byte(`{}`)}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[int64]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				j, err := repo.Claim(ctx)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if j == nil {
					return
				}
				mu.Lock()
				seen[j.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d distinct jobs, got %d", n, len(seen))
	}
	for id, c := range seen {
		if c != 1 {
			t.Fatalf("job %d claimed %d times", id, c)
		}
	}
}

func TestRepository_RequeueAndStats(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if _, err := repo.Enqueue(ctx, &jobs.Job{Type: "t", Payload: []byte(`{}`)}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := repo.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[jobs.StatusRunning] != 1 {
		t.Fatalf("expected one running job, got %v", stats)
	}

	n, err := repo.Requeue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("requeue: n=%d err=%v", n, err)
	}
	stats, _ = repo.Stats(ctx)
	if stats[jobs.StatusQueued] != 1 || stats["dead_letter"] != 0 {
		t.Fatalf("unexpected stats after requeue: %v", stats)
	}
}

func TestWorkerPool_ProcessesJob(t *testing.T) {
	repo := setupRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 1)
	handlers := map[string]jobs.Handler{
		"test": func(ctx context.Context, j *jobs.Job) error {
			handled <- string(j.Payload)
			return nil
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, 1)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	id, err := pool.Enqueue(ctx, "test", map[string]string{"foo": "bar"}, 10, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case got := <-handled:
		if got != `{"foo":"bar"}` {
			t.Fatalf("unexpected payload %s", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("handler was not called")
	}

	waitFor(t, func() bool {
		j, _ := repo.Get(context.Background(), id)
		return j != nil && j.Status == jobs.StatusDone
	})
}

func TestWorkerPool_RetryThenDeadLetter(t *testing.T) {
	repo := setupRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	handlers := map[string]jobs.Handler{
		"flaky": func(ctx context.Context, j *jobs.Job) error {
			calls.Add(1)
			return errors.New("downstream unavailable")
		},
		"panicky": func(ctx context.Context, j *jobs.Job) error {
			panic("boom")
		},
	}
	pool := jobs.NewWorkerPool(repo, handlers, nil, 2)
	pool.SetPollInterval(10 * time.Millisecond)
	pool.Start(ctx)
	defer pool.Stop()

	retryID, err := pool.Enqueue(ctx, "flaky", struct{}{}, 1, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "panicky", struct{}{}, 1, 1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := pool.Enqueue(ctx, "unknown", struct{}{}, 1, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	waitFor(t, func() bool {
		j, _ := repo.Get(context.Background(), retryID)
		return j != nil && j.Status == jobs.StatusRetry
	})
	j, _ := repo.Get(context.Background(), retryID)
	if j.Attempts != 1 || j.NextTryAt == nil || j.LastError == "" {
		t.Fatalf("unexpected retry state: %+v", j)
	}

	waitFor(t, func() bool {
		stats, err := repo.Stats(context.Background())
		return err == nil && stats["dead_letter"] == 2
	})
}

func TestWorkerPool_RunStopsOnCancel(t *testing.T) {
	repo := setupRepo(t)
	pool := jobs.NewWorkerPool(repo, nil, nil, 3)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
	pool.Stop()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
