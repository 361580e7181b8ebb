// Package booking runs the customer request pipeline: classify the free-text
// description, store the job request, shortlist workers and confirm a booking.
package booking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/garnizeh/fixit/internal/classifier"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/internal/jobs"
	"github.com/garnizeh/fixit/internal/metrics"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

const notifyPriority = 10

// Matcher shortlists workers for an analysis.
type Matcher interface {
	Match(ctx context.Context, analysis models.ServiceAnalysis) ([]models.Worker, error)
}

// Enqueuer schedules a background job.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int, maxAttempts int) (int64, error)
}

// Result is what a customer gets back after submitting a request.
// Matches are computed on the fly and never stored.
type Result struct {
	JobRequest *models.JobRequest `json:"jobRequest"`
	Matches    []models.Worker    `json:"matches"`
}

type Service struct {
	classifier  classifier.Classifier
	jobs        *jobrequest.Service
	matcher     Matcher
	users       repository.UserRepo
	workers     repository.WorkerRepo
	queue       Enqueuer
	maxAttempts int
	logger      *slog.Logger
}

type Option func(*Service)

// WithQueue enables background notifications. Without a queue they are skipped.
func WithQueue(q Enqueuer, maxAttempts int) Option {
	return func(s *Service) {
		s.queue = q
		s.maxAttempts = maxAttempts
	}
}

func NewService(c classifier.Classifier, jr *jobrequest.Service, m Matcher, users repository.UserRepo, workers repository.WorkerRepo, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{classifier: c, jobs: jr, matcher: m, users: users, workers: workers, maxAttempts: 3, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SubmitServiceRequest classifies description, stores the job request and
// returns it together with the current shortlist. Classification problems
// never fail the request: the default analysis is stored instead.
func (s *Service) SubmitServiceRequest(ctx context.Context, customerID, description, location, requestedDate string) (*Result, error) {
	description = strings.TrimSpace(description)
	location = strings.TrimSpace(location)
	switch {
	case strings.TrimSpace(customerID) == "":
		return nil, fmt.Errorf("%w: customerId is required", models.ErrValidation)
	case description == "":
		return nil, fmt.Errorf("%w: description is required", models.ErrValidation)
	case location == "":
		return nil, fmt.Errorf("%w: location is required", models.ErrValidation)
	}

	customer, err := s.users.GetUser(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if customer == nil {
		return nil, fmt.Errorf("%w: customer %s", models.ErrNotFound, customerID)
	}

	analysis := s.classify(ctx, customerID, description)

	jr, err := s.jobs.Create(ctx, jobrequest.NewJobRequest{
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		Description:     description,
		Location:        location,
		RequestedDate:   requestedDate,
		ServiceAnalysis: &analysis,
	})
	if err != nil {
		return nil, err
	}

	matches, err := s.matcher.Match(ctx, analysis)
	if err != nil {
		s.logger.Error("matching failed", "job_request_id", jr.ID, "error", err)
		matches = nil
	}
	if matches == nil {
		matches = []models.Worker{}
	}

	s.notify(ctx, jobs.TypeJobCreated, jobs.JobCreatedPayload{JobRequestID: jr.ID})
	s.logger.Info("service request submitted", "job_request_id", jr.ID, "matches", len(matches))
	return &Result{JobRequest: jr, Matches: matches}, nil
}

// classify never fails: any classifier error or an analysis that cannot be
// stored is replaced by the default analysis.
func (s *Service) classify(ctx context.Context, customerID, description string) models.ServiceAnalysis {
	analysis, err := s.classifier.Classify(ctx, description)
	switch {
	case errors.Is(err, models.ErrClassifierUnavailable):
		s.logger.Warn("classifier unavailable, using default analysis", "customer_id", customerID, "error", err)
	case err != nil:
		s.logger.Error("classifier failed, using default analysis", "customer_id", customerID, "error", err)
	default:
		verr := jobrequest.ValidateAnalysis(&analysis)
		if verr == nil {
			return analysis
		}
		s.logger.Error("classifier returned an invalid analysis, using default analysis", "customer_id", customerID, "error", verr)
	}
	metrics.ClassifierFallbacks.Inc()
	return classifier.DefaultAnalysis()
}

// ConfirmBooking assigns workerID to a job still in Matches Found.
func (s *Service) ConfirmBooking(ctx context.Context, jobRequestID, workerID string) (*models.JobRequest, error) {
	jr, err := s.jobs.Get(ctx, jobRequestID)
	if err != nil {
		return nil, err
	}
	w, err := s.workers.GetWorker(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: worker %s", models.ErrNotFound, workerID)
	}
	if jr.Status != models.StatusMatchesFound {
		return nil, fmt.Errorf("%w: job request %s is %s", models.ErrConflict, jr.ID, jr.Status)
	}

	booked, err := s.jobs.Book(ctx, jr.ID, w.ID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, jobs.TypeJobStatus, jobs.JobStatusPayload{JobRequestID: booked.ID, Status: booked.Status})
	return booked, nil
}

// NotifyStatus schedules a status alert for a change made outside the
// booking flow.
func (s *Service) NotifyStatus(ctx context.Context, jr *models.JobRequest) {
	s.notify(ctx, jobs.TypeJobStatus, jobs.JobStatusPayload{JobRequestID: jr.ID, Status: jr.Status})
}

func (s *Service) notify(ctx context.Context, typ string, payload any) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.Enqueue(ctx, typ, payload, notifyPriority, s.maxAttempts); err != nil {
		s.logger.Warn("enqueue notification failed", "type", typ, "error", err)
	}
}
