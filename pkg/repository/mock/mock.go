package mock

import (
	"context"

	"github.com/garnizeh/fixit/internal/repository/memory"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

var _ repository.Store = (*Mocks)(nil)

// Mocks is an in-memory store whose calls can be forced to fail.
// A nil error field means the call goes through to the embedded store.
type Mocks struct {
	*memory.Store

	CreateUserErr       error
	GetUserErr          error
	CreateWorkerErr     error
	GetWorkerErr        error
	ListWorkersErr      error
	SaveWorkerErr       error
	CreateJobRequestErr error
	GetJobRequestErr    error
	ListJobRequestsErr  error
	UpdateJobRequestErr error
	ListThreadsErr      error
	AppendMessageErr    error
	CountUnreadErr      error
}

func NewMocks() *Mocks {
	return &Mocks{Store: memory.New()}
}

func (m *Mocks) CreateUser(ctx context.Context, u *models.User) error {
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	return m.Store.CreateUser(ctx, u)
}

func (m *Mocks) GetUser(ctx context.Context, id string) (*models.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	return m.Store.GetUser(ctx, id)
}

func (m *Mocks) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	return m.Store.GetUserByEmail(ctx, email)
}

func (m *Mocks) CreateWorker(ctx context.Context, w *models.Worker) error {
	if m.CreateWorkerErr != nil {
		return m.CreateWorkerErr
	}
	return m.Store.CreateWorker(ctx, w)
}

// CreateWorkerAccount fails with CreateUserErr or CreateWorkerErr and then
// stores nothing.
func (m *Mocks) CreateWorkerAccount(ctx context.Context, u *models.User, w *models.Worker) error {
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	if m.CreateWorkerErr != nil {
		return m.CreateWorkerErr
	}
	return m.Store.CreateWorkerAccount(ctx, u, w)
}

func (m *Mocks) GetWorker(ctx context.Context, id string) (*models.Worker, error) {
	if m.GetWorkerErr != nil {
		return nil, m.GetWorkerErr
	}
	return m.Store.GetWorker(ctx, id)
}

func (m *Mocks) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	if m.ListWorkersErr != nil {
		return nil, m.ListWorkersErr
	}
	return m.Store.ListWorkers(ctx)
}

func (m *Mocks) SaveWorker(ctx context.Context, w *models.Worker) error {
	if m.SaveWorkerErr != nil {
		return m.SaveWorkerErr
	}
	return m.Store.SaveWorker(ctx, w)
}

func (m *Mocks) CreateJobRequest(ctx context.Context, j *models.JobRequest) error {
	if m.CreateJobRequestErr != nil {
		return m.CreateJobRequestErr
	}
	return m.Store.CreateJobRequest(ctx, j)
}

func (m *Mocks) GetJobRequest(ctx context.Context, id string) (*models.JobRequest, error) {
	if m.GetJobRequestErr != nil {
		return nil, m.GetJobRequestErr
	}
	return m.Store.GetJobRequest(ctx, id)
}

func (m *Mocks) ListJobRequests(ctx context.Context, f models.JobRequestFilter) ([]models.JobRequest, error) {
	if m.ListJobRequestsErr != nil {
		return nil, m.ListJobRequestsErr
	}
	return m.Store.ListJobRequests(ctx, f)
}

func (m *Mocks) UpdateJobRequestIf(ctx context.Context, j *models.JobRequest, expected models.JobStatus) (bool, error) {
	if m.UpdateJobRequestErr != nil {
		return false, m.UpdateJobRequestErr
	}
	return m.Store.UpdateJobRequestIf(ctx, j, expected)
}

func (m *Mocks) ListThreadsForUser(ctx context.Context, userID string) ([]models.ChatThread, error) {
	if m.ListThreadsErr != nil {
		return nil, m.ListThreadsErr
	}
	return m.Store.ListThreadsForUser(ctx, userID)
}

func (m *Mocks) AppendMessage(ctx context.Context, msg *models.ChatMessage) error {
	if m.AppendMessageErr != nil {
		return m.AppendMessageErr
	}
	return m.Store.AppendMessage(ctx, msg)
}

func (m *Mocks) CountUnread(ctx context.Context, userID string) (int64, error) {
	if m.CountUnreadErr != nil {
		return 0, m.CountUnreadErr
	}
	return m.Store.CountUnread(ctx, userID)
}
