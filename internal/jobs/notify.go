package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// Background job types.
const (
	TypeJobCreated = "notify.job_created"
	TypeJobStatus  = "notify.job_status"
)

type JobCreatedPayload struct {
	JobRequestID string `json:"jobRequestId"`
}

type JobStatusPayload struct {
	JobRequestID string           `json:"jobRequestId"`
	Status       models.JobStatus `json:"status"`
}

// Publisher pushes an event to one user.
type Publisher interface {
	Publish(userID string, ev realtime.Event)
}

// Notifications fans job request events out to the users who care.
type Notifications struct {
	jobs    repository.JobRequestRepo
	workers repository.WorkerRepo
	pub     Publisher
	logger  *slog.Logger
}

func NewNotifications(jobs repository.JobRequestRepo, workers repository.WorkerRepo, pub Publisher, logger *slog.Logger) *Notifications {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifications{jobs: jobs, workers: workers, pub: pub, logger: logger}
}

// Handlers returns the handler table for NewWorkerPool.
func (n *Notifications) Handlers() map[string]Handler {
	return map[string]Handler{
		TypeJobCreated: n.JobCreated,
		TypeJobStatus:  n.JobStatus,
	}
}

func (n *Notifications) load(ctx context.Context, id string) (*models.JobRequest, error) {
	jr, err := n.jobs.GetJobRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job request %s: %w", id, err)
	}
	return jr, nil
}

// JobCreated alerts online, active workers with the matching skill who
// opted into new job alerts.
func (n *Notifications) JobCreated(ctx context.Context, j *Job) error {
	var p JobCreatedPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	jr, err := n.load(ctx, p.JobRequestID)
	if err != nil {
		return err
	}
	if jr == nil || jr.ServiceAnalysis == nil {
		n.logger.Info("job created alert skipped", "job_request_id", p.JobRequestID)
		return nil
	}

	workers, err := n.workers.ListWorkers(ctx)
	if err != nil {
		return fmt.Errorf("list workers: %w", err)
	}
	sent := 0
	for i := range workers {
		w := &workers[i]
		if !w.Eligible() || !w.HasSkill(jr.ServiceAnalysis.JobType) || !w.NotificationPreferences.NewJobAlerts {
			continue
		}
		n.pub.Publish(w.ID, realtime.Event{Type: realtime.EventJobCreated, Payload: jr})
		sent++
	}
	n.logger.Info("job created alerts sent", "job_request_id", jr.ID, "recipients", sent)
	return nil
}

// JobStatus tells the customer and the assigned worker about a status change.
func (n *Notifications) JobStatus(ctx context.Context, j *Job) error {
	var p JobStatusPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	jr, err := n.load(ctx, p.JobRequestID)
	if err != nil {
		return err
	}
	if jr == nil {
		return nil
	}

	ev := realtime.Event{Type: realtime.EventJobStatus, Payload: jr}
	n.pub.Publish(jr.CustomerID, ev)
	if jr.AssignedWorkerID != "" {
		n.pub.Publish(jr.AssignedWorkerID, ev)
	}
	return nil
}
