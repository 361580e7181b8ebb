package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/fixit/api"
	dbfs "github.com/garnizeh/fixit/db"
	"github.com/garnizeh/fixit/internal/booking"
	"github.com/garnizeh/fixit/internal/catalog"
	"github.com/garnizeh/fixit/internal/chat"
	"github.com/garnizeh/fixit/internal/classifier"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/internal/directory"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/internal/matching"
	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository/mock"
)

const testSecret = "testsecret"

func init() {
	api.SetLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }

const plumbingAnswer = `{"jobType":"Plumbing","urgency":"High","severity":"Major","estimatedDuration":"1-2 hours","priceEstimate":"Moderate"}`

type testEnv struct {
	mocks   *mock.Mocks
	hub     *realtime.Hub
	handler http.Handler
}

// newTestEnv wires the full router over in-memory mocks. A nil gen leaves the
// classifier disabled.
func newTestEnv(t *testing.T, gen classifier.Generator) *testEnv {
	t.Helper()
	m := mock.NewMocks()
	cfg := &config.Config{
		JWTSecret:      testSecret,
		TokenDuration:  time.Hour,
		AllowedOrigins: []string{"*"},
		RateLimit:      config.RateLimitConfig{RPS: 1000, Burst: 1000},
	}

	engine, err := classifier.NewEngine(gen, config.EngineConfig{Provider: classifier.ProviderOllama, Model: "m", Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	cat, err := catalog.Load(dbfs.SeedFiles, catalog.DefaultFile)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	hub := realtime.NewHub(nil, cfg.AllowedOrigins)
	t.Cleanup(hub.Close)

	jobs := jobrequest.NewService(m, nil, jobrequest.WithWorkers(m))
	svc := api.Services{
		Users:     m,
		Directory: directory.NewService(m, m, nil),
		Jobs:      jobs,
		Booking:   booking.NewService(engine, jobs, matching.NewEngine(m, 3), m, m, nil),
		Chat:      chat.NewService(m, nil, chat.WithNotifier(hub), chat.WithPreferences(m)),
		Catalog:   cat,
		Hub:       hub,
	}
	router := api.SetupRoutes(cfg, "1.0.0", "now", svc)
	return &testEnv{mocks: m, hub: hub, handler: api.CORS(router, cfg.AllowedOrigins)}
}

func (e *testEnv) addUser(t *testing.T, id string, typ models.UserType) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{ID: id, Name: "User " + id, Email: id + "@example.com", Type: typ, PasswordHash: string(hash)}
	if err := e.mocks.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (e *testEnv) addWorker(t *testing.T, id string, skills ...models.JobCategory) *models.User {
	t.Helper()
	u := e.addUser(t, id, models.UserWorker)
	w := &models.Worker{
		ID: id, Name: u.Name, Skills: skills, IsOnline: true, ActivationStatus: models.ActivationActive,
		WorkingHours:            models.DefaultWorkingHours(),
		NotificationPreferences: models.NotificationPreferences{NewJobAlerts: true, MessageAlerts: true},
	}
	if err := e.mocks.CreateWorker(context.Background(), w); err != nil {
		t.Fatalf("create worker: %v", err)
	}
	return u
}

func tokenFor(t *testing.T, u *models.User) string {
	t.Helper()
	tok, err := api.IssueToken(testSecret, u, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d got %d body=%s", want, w.Code, w.Body.String())
	}
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return v
}

func mustUnmarshal(t *testing.T, b []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("unmarshal %q: %v", b, err)
	}
}
