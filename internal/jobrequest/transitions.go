package jobrequest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/garnizeh/fixit/internal/metrics"
	"github.com/garnizeh/fixit/pkg/models"
)

type action struct {
	name string
	from []models.JobStatus
	to   models.JobStatus
}

var (
	actAccept   = action{"accept", []models.JobStatus{models.StatusMatchesFound, models.StatusAwaitingWorker}, models.StatusAccepted}
	actDecline  = action{"decline", []models.JobStatus{models.StatusMatchesFound, models.StatusAwaitingWorker}, models.StatusMatchesFound}
	actStart    = action{"start", []models.JobStatus{models.StatusAccepted}, models.StatusInProgress}
	actComplete = action{"complete", []models.JobStatus{models.StatusInProgress}, models.StatusCompleted}
	actBook     = action{"book", []models.JobStatus{models.StatusMatchesFound}, models.StatusAwaitingWorker}
	actCancel   = action{"cancel", []models.JobStatus{
		models.StatusPending, models.StatusAIAnalyzing, models.StatusMatchesFound, models.StatusAwaitingWorker,
	}, models.StatusCancelled}
	actEdit = action{"edit", []models.JobStatus{
		models.StatusPending, models.StatusAIAnalyzing, models.StatusMatchesFound, models.StatusAwaitingWorker,
		models.StatusAccepted, models.StatusInProgress,
	}, ""}
)

// run loads the job, checks the source status, lets mutate adjust it and
// stores the result only if the status is still the one that was read.
func (s *Service) run(ctx context.Context, id string, act action, mutate func(j *models.JobRequest) error) (*models.JobRequest, error) {
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(act.from, j.Status) {
		metrics.JobRequestTransitions.WithLabelValues(act.name, "rejected").Inc()
		return nil, fmt.Errorf("%w: cannot %s a job request in status %q", models.ErrConflict, act.name, j.Status)
	}

	expected := j.Status
	if mutate != nil {
		if err := mutate(j); err != nil {
			return nil, err
		}
	}
	if act.to != "" {
		j.Status = act.to
	}

	ok, err := s.repo.UpdateJobRequestIf(ctx, j, expected)
	if err != nil {
		return nil, fmt.Errorf("%s job request: %w", act.name, err)
	}
	if !ok {
		metrics.JobRequestTransitions.WithLabelValues(act.name, "conflict").Inc()
		return nil, fmt.Errorf("%w: job request %s changed concurrently", models.ErrConflict, id)
	}
	metrics.JobRequestTransitions.WithLabelValues(act.name, "ok").Inc()
	s.logger.Info("job request transition", "job_request_id", id, "action", act.name, "from", expected, "to", j.Status)
	return j, nil
}

// Accept assigns workerID and moves the request to Accepted. A request booked
// for a specific worker can only be accepted by that worker.
func (s *Service) Accept(ctx context.Context, id, workerID string) (*models.JobRequest, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", models.ErrValidation)
	}
	return s.run(ctx, id, actAccept, func(j *models.JobRequest) error {
		if err := bookedForOther(j, workerID); err != nil {
			return err
		}
		j.AssignedWorkerID = workerID
		return nil
	})
}

// Decline releases the request back to Matches Found.
func (s *Service) Decline(ctx context.Context, id, workerID string) (*models.JobRequest, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", models.ErrValidation)
	}
	return s.run(ctx, id, actDecline, func(j *models.JobRequest) error {
		if err := bookedForOther(j, workerID); err != nil {
			return err
		}
		j.AssignedWorkerID = ""
		return nil
	})
}

func (s *Service) Start(ctx context.Context, id, workerID string) (*models.JobRequest, error) {
	return s.run(ctx, id, actStart, func(j *models.JobRequest) error {
		if j.AssignedWorkerID != workerID {
			return fmt.Errorf("%w: only the assigned worker can start job request %s", models.ErrForbidden, j.ID)
		}
		return nil
	})
}

// Complete closes the request and records the payment. A zero paid date is
// set to the current time.
func (s *Service) Complete(ctx context.Context, id, workerID string, payment *models.PaymentDetails) (*models.JobRequest, error) {
	if payment == nil {
		return nil, fmt.Errorf("%w: paymentDetails is required to complete a job", models.ErrValidation)
	}
	if payment.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", models.ErrValidation)
	}
	p := *payment
	if p.PaidDate.IsZero() {
		p.PaidDate = s.now().UTC()
	}
	return s.run(ctx, id, actComplete, func(j *models.JobRequest) error {
		if j.AssignedWorkerID != workerID {
			return fmt.Errorf("%w: only the assigned worker can complete job request %s", models.ErrForbidden, j.ID)
		}
		j.PaymentDetails = &p
		return nil
	})
}

// Book records the customer's chosen worker and waits for their answer.
func (s *Service) Book(ctx context.Context, id, workerID string) (*models.JobRequest, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", models.ErrValidation)
	}
	if s.workers != nil {
		w, err := s.workers.GetWorker(ctx, workerID)
		if err != nil {
			return nil, fmt.Errorf("get worker: %w", err)
		}
		if w == nil {
			return nil, fmt.Errorf("%w: worker %s", models.ErrNotFound, workerID)
		}
	}
	return s.run(ctx, id, actBook, func(j *models.JobRequest) error {
		j.AssignedWorkerID = workerID
		return nil
	})
}

func (s *Service) Cancel(ctx context.Context, id, customerID string) (*models.JobRequest, error) {
	return s.run(ctx, id, actCancel, func(j *models.JobRequest) error {
		if j.CustomerID != customerID {
			return fmt.Errorf("%w: only the customer can cancel job request %s", models.ErrForbidden, j.ID)
		}
		return nil
	})
}

func bookedForOther(j *models.JobRequest, workerID string) error {
	if j.Status == models.StatusAwaitingWorker && j.AssignedWorkerID != "" && j.AssignedWorkerID != workerID {
		return fmt.Errorf("%w: job request %s is booked for another worker", models.ErrForbidden, j.ID)
	}
	return nil
}

// Update applies a partial update. A requested status selects the matching
// lifecycle action for the actor; the remaining fields are edits that are
// only accepted from the customer while the request is not terminal.
func (s *Service) Update(ctx context.Context, id string, upd models.JobRequestUpdate, actor Actor) (*models.JobRequest, error) {
	hasEdits := upd.Description != nil || upd.Location != nil || upd.RequestedDate != nil
	if upd.Status == nil {
		if !hasEdits {
			return nil, fmt.Errorf("%w: nothing to update", models.ErrValidation)
		}
		return s.edit(ctx, id, upd, actor)
	}
	if hasEdits {
		return nil, fmt.Errorf("%w: status and field edits must be sent separately", models.ErrValidation)
	}

	target := *upd.Status
	switch target {
	case models.StatusAccepted, models.StatusDeclined, models.StatusInProgress, models.StatusCompleted:
		if actor.Type != models.UserWorker {
			return nil, fmt.Errorf("%w: only workers can move a job request to %q", models.ErrForbidden, target)
		}
	case models.StatusAwaitingWorker, models.StatusCancelled:
		if err := s.requireCustomer(ctx, id, actor); err != nil {
			return nil, err
		}
	case models.StatusMatchesFound:
		if actor.Type != models.UserWorker {
			return nil, fmt.Errorf("%w: only workers can release a job request", models.ErrForbidden)
		}
	}

	switch target {
	case models.StatusAccepted:
		return s.Accept(ctx, id, actor.ID)
	case models.StatusDeclined, models.StatusMatchesFound:
		return s.Decline(ctx, id, actor.ID)
	case models.StatusInProgress:
		return s.Start(ctx, id, actor.ID)
	case models.StatusCompleted:
		return s.Complete(ctx, id, actor.ID, upd.PaymentDetails)
	case models.StatusAwaitingWorker:
		if upd.AssignedWorkerID == nil {
			return nil, fmt.Errorf("%w: assignedWorkerId is required to book", models.ErrValidation)
		}
		return s.Book(ctx, id, *upd.AssignedWorkerID)
	case models.StatusCancelled:
		return s.Cancel(ctx, id, actor.ID)
	}
	return nil, fmt.Errorf("%w: status %q cannot be requested", models.ErrValidation, target)
}

func (s *Service) requireCustomer(ctx context.Context, id string, actor Actor) error {
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.CustomerID != actor.ID {
		return fmt.Errorf("%w: job request %s belongs to another customer", models.ErrForbidden, id)
	}
	return nil
}

func (s *Service) edit(ctx context.Context, id string, upd models.JobRequestUpdate, actor Actor) (*models.JobRequest, error) {
	if upd.Description != nil && strings.TrimSpace(*upd.Description) == "" {
		return nil, fmt.Errorf("%w: description must not be blank", models.ErrValidation)
	}
	if upd.Location != nil && strings.TrimSpace(*upd.Location) == "" {
		return nil, fmt.Errorf("%w: location must not be blank", models.ErrValidation)
	}
	return s.run(ctx, id, actEdit, func(j *models.JobRequest) error {
		if j.CustomerID != actor.ID {
			return fmt.Errorf("%w: job request %s belongs to another customer", models.ErrForbidden, id)
		}
		if upd.Description != nil {
			j.Description = strings.TrimSpace(*upd.Description)
		}
		if upd.Location != nil {
			j.Location = strings.TrimSpace(*upd.Location)
		}
		if upd.RequestedDate != nil {
			j.RequestedDate = *upd.RequestedDate
		}
		return nil
	})
}
