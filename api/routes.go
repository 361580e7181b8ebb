package api

import (
	"github.com/gorilla/mux"

	"github.com/garnizeh/fixit/internal/booking"
	"github.com/garnizeh/fixit/internal/catalog"
	"github.com/garnizeh/fixit/internal/chat"
	"github.com/garnizeh/fixit/internal/config"
	"github.com/garnizeh/fixit/internal/directory"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/internal/metrics"
	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/pkg/repository"
)

// Services are the domain components the handlers call into.
type Services struct {
	Users     repository.UserRepo
	Directory *directory.Service
	Jobs      *jobrequest.Service
	Booking   *booking.Service
	Chat      *chat.Service
	Catalog   *catalog.Catalog
	Hub       *realtime.Hub
}

func SetupRoutes(cfg *config.Config, version, buildTime string, svc Services) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(metrics.Middleware)

	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(svc.Users, svc.Directory, cfg.JWTSecret, cfg.TokenDuration)
	usersHandler := NewUsersHandler(svc.Users)
	workersHandler := NewWorkersHandler(svc.Directory, svc.Jobs)
	jobsHandler := NewJobRequestsHandler(svc.Jobs, svc.Booking)
	chatHandler := NewChatHandler(svc.Chat, svc.Hub)
	catalogHandler := NewCatalogHandler(svc.Catalog)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	limiter := NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	authV1 := r.PathPrefix("/v1/auth").Subrouter()
	authV1.Use(limiter.Middleware)
	authV1.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	authV1.HandleFunc("/login", authHandler.Login).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	apiV1.HandleFunc("/users/me", usersHandler.Me).Methods("GET")
	apiV1.HandleFunc("/users/{id}", usersHandler.GetUser).Methods("GET")

	apiV1.HandleFunc("/workers", workersHandler.ListWorkers).Methods("GET")
	apiV1.HandleFunc("/workers/{id}", workersHandler.GetWorker).Methods("GET")
	apiV1.HandleFunc("/workers/{id}", workersHandler.UpdateWorker).Methods("PUT")
	apiV1.HandleFunc("/workers/{id}/feed", workersHandler.Feed).Methods("GET")
	apiV1.HandleFunc("/workers/{id}/earnings", workersHandler.Earnings).Methods("GET")

	apiV1.HandleFunc("/job-requests", jobsHandler.ListJobRequests).Methods("GET")
	apiV1.HandleFunc("/job-requests", jobsHandler.CreateJobRequest).Methods("POST")
	apiV1.HandleFunc("/job-requests/{id}", jobsHandler.GetJobRequest).Methods("GET")
	apiV1.HandleFunc("/job-requests/{id}", jobsHandler.UpdateJobRequest).Methods("PUT")
	apiV1.HandleFunc("/job-requests/{id}/book", jobsHandler.Book).Methods("POST")
	apiV1.HandleFunc("/service-requests", jobsHandler.SubmitServiceRequest).Methods("POST")

	apiV1.HandleFunc("/chat/threads", chatHandler.ResolveThread).Methods("POST")
	apiV1.HandleFunc("/chat/threads/{userId}", chatHandler.ListThreads).Methods("GET")
	apiV1.HandleFunc("/chat/messages", chatHandler.SendMessage).Methods("POST")
	apiV1.HandleFunc("/chat/messages/{threadId}", chatHandler.ListMessages).Methods("GET")
	apiV1.HandleFunc("/chat/mark-read", chatHandler.MarkRead).Methods("POST")
	apiV1.HandleFunc("/chat/unread/{userId}", chatHandler.UnreadCount).Methods("GET")
	apiV1.HandleFunc("/chat/stream", chatHandler.Stream).Methods("GET")

	apiV1.HandleFunc("/catalog/service-packages", catalogHandler.ServicePackages).Methods("GET")
	apiV1.HandleFunc("/catalog/subscription-plans", catalogHandler.SubscriptionPlans).Methods("GET")

	return r
}
