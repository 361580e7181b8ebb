package jobrequest

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository/mock"
)

func putJob(t *testing.T, m *mock.Mocks, j models.JobRequest) {
	t.Helper()
	require.NoError(t, m.CreateJobRequest(context.Background(), &j))
}

func ids(jobs []models.JobRequest) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestFeedForWorker(t *testing.T) {
	s, m := newTestService(t)
	base := fixedNow.Add(-48 * time.Hour)
	at := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	putJob(t, m, models.JobRequest{ID: "awaiting", Status: models.StatusAwaitingWorker, AssignedWorkerID: "w9",
		ServiceAnalysis: analysis(models.CategorySalon, models.UrgencyLow), CreatedAt: at(1)})
	putJob(t, m, models.JobRequest{ID: "mine-accepted", Status: models.StatusAccepted, AssignedWorkerID: "w1",
		ServiceAnalysis: analysis(models.CategoryPlumbing, models.UrgencyMedium), CreatedAt: at(2)})
	putJob(t, m, models.JobRequest{ID: "mine-progress", Status: models.StatusInProgress, AssignedWorkerID: "w1",
		ServiceAnalysis: analysis(models.CategoryPlumbing, models.UrgencyMedium), CreatedAt: at(3)})
	putJob(t, m, models.JobRequest{ID: "open-skill", Status: models.StatusMatchesFound,
		ServiceAnalysis: analysis(models.CategoryPlumbing, models.UrgencyEmergency), CreatedAt: at(4)})
	putJob(t, m, models.JobRequest{ID: "open-other-skill", Status: models.StatusMatchesFound,
		ServiceAnalysis: analysis(models.CategoryElectrical, models.UrgencyEmergency), CreatedAt: at(5)})
	putJob(t, m, models.JobRequest{ID: "others-accepted", Status: models.StatusAccepted, AssignedWorkerID: "w2",
		ServiceAnalysis: analysis(models.CategoryPlumbing, models.UrgencyHigh), CreatedAt: at(6)})
	putJob(t, m, models.JobRequest{ID: "done", Status: models.StatusCompleted, AssignedWorkerID: "w1",
		ServiceAnalysis: analysis(models.CategoryPlumbing, models.UrgencyHigh), CreatedAt: at(7)})

	tests := []struct {
		name   string
		status models.ActivationStatus
		want   []string
	}{
		{"active", models.ActivationActive, []string{"open-skill", "mine-progress", "mine-accepted", "awaiting"}},
		{"pending review", models.ActivationPendingReview, []string{"open-skill", "mine-progress", "mine-accepted", "awaiting"}},
		{"suspended", models.ActivationSuspended, []string{"mine-accepted"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &models.Worker{ID: "w1", Skills: []models.JobCategory{models.CategoryPlumbing}, ActivationStatus: tt.status}
			got, err := s.FeedForWorker(context.Background(), w)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, ids(got)); diff != "" {
				t.Fatalf("feed mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPeriod(t *testing.T) {
	for _, in := range []string{"", "all_time", "THIS_YEAR", "this_month", "This_Week"} {
		_, err := ParsePeriod(in)
		assert.NoError(t, err, in)
	}
	_, err := ParsePeriod("FOREVER")
	assert.ErrorIs(t, err, models.ErrValidation)

	assert.True(t, PeriodAllTime.Since(fixedNow).IsZero())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), PeriodThisYear.Since(fixedNow))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), PeriodThisMonth.Since(fixedNow))
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), PeriodThisWeek.Since(fixedNow))
}

func TestEarnings(t *testing.T) {
	s, m := newTestService(t)
	paid := func(amount float64, d time.Time) *models.PaymentDetails {
		return &models.PaymentDetails{Amount: amount, PaidDate: d}
	}
	putJob(t, m, models.JobRequest{ID: "old", Status: models.StatusCompleted, AssignedWorkerID: "w1",
		PaymentDetails: paid(100, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))})
	putJob(t, m, models.JobRequest{ID: "spring", Status: models.StatusCompleted, AssignedWorkerID: "w1",
		PaymentDetails: paid(50, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC))})
	putJob(t, m, models.JobRequest{ID: "recent", Status: models.StatusCompleted, AssignedWorkerID: "w1",
		PaymentDetails: paid(25, fixedNow.Add(-24*time.Hour))})
	putJob(t, m, models.JobRequest{ID: "unpaid", Status: models.StatusCompleted, AssignedWorkerID: "w1"})
	putJob(t, m, models.JobRequest{ID: "other", Status: models.StatusCompleted, AssignedWorkerID: "w2",
		PaymentDetails: paid(999, fixedNow)})
	putJob(t, m, models.JobRequest{ID: "running", Status: models.StatusInProgress, AssignedWorkerID: "w1"})

	tests := []struct {
		period Period
		total  float64
		want   []string
	}{
		{PeriodAllTime, 175, []string{"recent", "spring", "old"}},
		{PeriodThisYear, 75, []string{"recent", "spring"}},
		{PeriodThisMonth, 25, []string{"recent"}},
		{PeriodThisWeek, 25, []string{"recent"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			got, err := s.Earnings(context.Background(), "w1", tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.total, got.Total)
			if diff := cmp.Diff(tt.want, ids(got.Jobs)); diff != "" {
				t.Fatalf("earnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
