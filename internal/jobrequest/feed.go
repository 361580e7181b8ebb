package jobrequest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/garnizeh/fixit/pkg/models"
)

// FeedForWorker lists the requests w may act on, most urgent first and
// newest first within the same urgency. Workers that are neither active nor
// under review only see the jobs they already accepted.
func (s *Service) FeedForWorker(ctx context.Context, w *models.Worker) ([]models.JobRequest, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: worker is required", models.ErrValidation)
	}
	all, err := s.repo.ListJobRequests(ctx, models.JobRequestFilter{})
	if err != nil {
		return nil, fmt.Errorf("list job requests: %w", err)
	}

	active := w.ActivationStatus == models.ActivationActive || w.ActivationStatus == models.ActivationPendingReview
	feed := make([]models.JobRequest, 0, len(all))
	for _, j := range all {
		if !active {
			if j.AssignedWorkerID == w.ID && j.Status == models.StatusAccepted {
				feed = append(feed, j)
			}
			continue
		}
		switch {
		case j.Status == models.StatusAwaitingWorker:
		case j.AssignedWorkerID == w.ID && (j.Status == models.StatusAccepted || j.Status == models.StatusInProgress):
		case j.Status == models.StatusMatchesFound && j.AssignedWorkerID == "" &&
			j.ServiceAnalysis != nil && w.HasSkill(j.ServiceAnalysis.JobType):
		default:
			continue
		}
		feed = append(feed, j)
	}

	sort.SliceStable(feed, func(a, b int) bool {
		ra, rb := urgencyRank(&feed[a]), urgencyRank(&feed[b])
		if ra != rb {
			return ra < rb
		}
		return feed[a].CreatedAt.After(feed[b].CreatedAt)
	})
	return feed, nil
}

func urgencyRank(j *models.JobRequest) int {
	if j.ServiceAnalysis == nil {
		return models.Urgency("").Rank()
	}
	return j.ServiceAnalysis.Urgency.Rank()
}

// Period bounds an earnings report.
type Period string

const (
	PeriodAllTime   Period = "ALL_TIME"
	PeriodThisYear  Period = "THIS_YEAR"
	PeriodThisMonth Period = "THIS_MONTH"
	PeriodThisWeek  Period = "THIS_WEEK"
)

// ParsePeriod accepts the period names case-insensitively; blank means all time.
func ParsePeriod(v string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(v)))
	switch p {
	case "":
		return PeriodAllTime, nil
	case PeriodAllTime, PeriodThisYear, PeriodThisMonth, PeriodThisWeek:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown period %q", models.ErrValidation, v)
}

// Since returns the earliest paid date included in p, relative to now.
// The zero time means no lower bound.
func (p Period) Since(now time.Time) time.Time {
	y, m, d := now.Date()
	switch p {
	case PeriodThisWeek:
		return time.Date(y, m, d-7, 0, 0, 0, 0, now.Location())
	case PeriodThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	case PeriodThisYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Time{}
}

type Earnings struct {
	Period Period              `json:"period"`
	Total  float64             `json:"total"`
	Jobs   []models.JobRequest `json:"jobs"`
}

// Earnings sums the paid, completed requests of workerID within p, newest
// payment first.
func (s *Service) Earnings(ctx context.Context, workerID string, p Period) (*Earnings, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id is required", models.ErrValidation)
	}
	jobs, err := s.repo.ListJobRequests(ctx, models.JobRequestFilter{WorkerID: workerID, Status: models.StatusCompleted})
	if err != nil {
		return nil, fmt.Errorf("list completed jobs: %w", err)
	}

	since := p.Since(s.now())
	out := &Earnings{Period: p, Jobs: make([]models.JobRequest, 0, len(jobs))}
	for _, j := range jobs {
		if j.PaymentDetails == nil || j.PaymentDetails.PaidDate.Before(since) {
			continue
		}
		out.Jobs = append(out.Jobs, j)
		out.Total += j.PaymentDetails.Amount
	}
	sort.SliceStable(out.Jobs, func(a, b int) bool {
		return out.Jobs[a].PaymentDetails.PaidDate.After(out.Jobs[b].PaymentDetails.PaidDate)
	})
	return out, nil
}
