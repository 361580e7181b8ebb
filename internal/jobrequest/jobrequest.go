// Package jobrequest implements the job request lifecycle. Every status
// change is a compare-and-set on the stored status so concurrent actors
// cannot both win the same transition.
package jobrequest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// Actor is the authenticated caller driving a change.
type Actor struct {
	ID   string
	Type models.UserType
}

// NewJobRequest carries the fields accepted when a request is first stored.
type NewJobRequest struct {
	CustomerID      string                  `json:"customerId"`
	CustomerName    string                  `json:"customerName"`
	Description     string                  `json:"description"`
	Location        string                  `json:"location"`
	RequestedDate   string                  `json:"requestedDate,omitempty"`
	ServiceAnalysis *models.ServiceAnalysis `json:"serviceAnalysis"`
}

type Service struct {
	repo    repository.JobRequestRepo
	workers repository.WorkerRepo
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

// WithWorkers makes Book reject workers that have no profile.
func WithWorkers(w repository.WorkerRepo) Option {
	return func(s *Service) { s.workers = w }
}

func NewService(repo repository.JobRequestRepo, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create stores a new request in Matches Found.
func (s *Service) Create(ctx context.Context, in NewJobRequest) (*models.JobRequest, error) {
	switch {
	case strings.TrimSpace(in.CustomerID) == "":
		return nil, fmt.Errorf("%w: customerId is required", models.ErrValidation)
	case strings.TrimSpace(in.CustomerName) == "":
		return nil, fmt.Errorf("%w: customerName is required", models.ErrValidation)
	case strings.TrimSpace(in.Description) == "":
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	case strings.TrimSpace(in.Location) == "":
		return nil, fmt.Errorf("%w: location is required", models.ErrValidation)
	case in.ServiceAnalysis == nil:
		return nil, fmt.Errorf("%w: serviceAnalysis is required", models.ErrValidation)
	}
	if err := ValidateAnalysis(in.ServiceAnalysis); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	a := *in.ServiceAnalysis
	j := &models.JobRequest{
		ID:              uuid.NewString(),
		CustomerID:      in.CustomerID,
		CustomerName:    in.CustomerName,
		Description:     strings.TrimSpace(in.Description),
		ServiceAnalysis: &a,
		Status:          models.StatusMatchesFound,
		Location:        strings.TrimSpace(in.Location),
		RequestedDate:   in.RequestedDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateJobRequest(ctx, j); err != nil {
		return nil, fmt.Errorf("create job request: %w", err)
	}
	s.logger.Info("job request created", "job_request_id", j.ID, "job_type", a.JobType, "urgency", a.Urgency)
	return j, nil
}

// ValidateAnalysis checks the enum fields a stored analysis must carry.
func ValidateAnalysis(a *models.ServiceAnalysis) error {
	if !a.JobType.Valid() {
		return fmt.Errorf("%w: unknown jobType %q", models.ErrValidation, a.JobType)
	}
	if !a.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", models.ErrValidation, a.Urgency)
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", models.ErrValidation, a.Severity)
	}
	if a.PriceEstimate != "" && !a.PriceEstimate.Valid() {
		return fmt.Errorf("%w: unknown priceEstimate %q", models.ErrValidation, a.PriceEstimate)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.JobRequest, error) {
	j, err := s.repo.GetJobRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job request: %w", err)
	}
	if j == nil {
		return nil, fmt.Errorf("%w: job request %s", models.ErrNotFound, id)
	}
	return j, nil
}

// List returns requests matching f, newest first.
func (s *Service) List(ctx context.Context, f models.JobRequestFilter) ([]models.JobRequest, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, f.Status)
	}
	jobs, err := s.repo.ListJobRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list job requests: %w", err)
	}
	return jobs, nil
}
