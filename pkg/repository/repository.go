package repository

import (
	"context"

	"github.com/garnizeh/fixit/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Getters return (nil, nil) when the entity does not exist.

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUserProfile changes name and profile image only; the credential is never touched.
	UpdateUserProfile(ctx context.Context, id, name, profileImageURL string) error
}

type WorkerRepo interface {
	CreateWorker(ctx context.Context, w *models.Worker) error
	// CreateWorkerAccount stores a new user together with their worker
	// profile. Either both are stored or neither is.
	CreateWorkerAccount(ctx context.Context, u *models.User, w *models.Worker) error
	GetWorker(ctx context.Context, id string) (*models.Worker, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	// SaveWorker replaces the stored worker and returns ErrNotFound when it does not exist.
	SaveWorker(ctx context.Context, w *models.Worker) error
}

type JobRequestRepo interface {
	CreateJobRequest(ctx context.Context, j *models.JobRequest) error
	GetJobRequest(ctx context.Context, id string) (*models.JobRequest, error)
	ListJobRequests(ctx context.Context, f models.JobRequestFilter) ([]models.JobRequest, error)
	// UpdateJobRequestIf stores j only if the stored status still equals expected.
	// It reports false when the status moved underneath the caller.
	UpdateJobRequestIf(ctx context.Context, j *models.JobRequest, expected models.JobStatus) (bool, error)
}

type ChatRepo interface {
	// CreateThreadIfAbsent inserts t unless a thread with the same participant pair
	// and job request id exists, and returns the stored thread either way.
	CreateThreadIfAbsent(ctx context.Context, t *models.ChatThread) (*models.ChatThread, error)
	GetThread(ctx context.Context, id string) (*models.ChatThread, error)
	// FindThread returns the thread keyed by the unordered pair and job request id.
	FindThread(ctx context.Context, a, b, jobRequestID string) (*models.ChatThread, error)
	// LatestThreadForPair returns the most recently active thread of the pair, any job.
	LatestThreadForPair(ctx context.Context, a, b string) (*models.ChatThread, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]models.ChatThread, error)
	// AppendMessage stores m and advances the thread's last message atomically.
	// m.Timestamp is moved forward when needed so that timestamps strictly
	// increase within a thread.
	AppendMessage(ctx context.Context, m *models.ChatMessage) error
	ListMessages(ctx context.Context, threadID string) ([]models.ChatMessage, error)
	MarkRead(ctx context.Context, threadID, readerID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}

// Store bundles every repository a running service needs.
type Store interface {
	UserRepo
	WorkerRepo
	JobRequestRepo
	ChatRepo
}
