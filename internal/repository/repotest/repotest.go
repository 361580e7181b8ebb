// Package repotest holds behaviour tests shared by every repository.Store
// implementation.
package repotest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// Run exercises newStore against the repository contracts. newStore must
// return an empty, independent store for every call.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Workers", func(t *testing.T) { testWorkers(t, newStore(t)) })
	t.Run("WorkerAccounts", func(t *testing.T) { testWorkerAccounts(t, newStore(t)) })
	t.Run("JobRequests", func(t *testing.T) { testJobRequests(t, newStore(t)) })
	t.Run("JobRequestCAS", func(t *testing.T) { testJobRequestCAS(t, newStore(t)) })
	t.Run("Threads", func(t *testing.T) { testThreads(t, newStore(t)) })
	t.Run("Messages", func(t *testing.T) { testMessages(t, newStore(t)) })
}

func testUsers(t *testing.T, s repository.Store) {
	ctx := context.Background()

	got, err := s.GetUser(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	u := &models.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Type: models.UserCustomer, PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	dup := &models.User{ID: "u2", Name: "Other", Email: "ALICE@example.com", Type: models.UserWorker, PasswordHash: "x"}
	err = s.CreateUser(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConflict), "got %v", err)

	byEmail, err := s.GetUserByEmail(ctx, "Alice@Example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u1", byEmail.ID)

	require.NoError(t, s.UpdateUserProfile(ctx, "u1", "Alice B", "https://img/a.png"))
	got, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice B", got.Name)
	assert.Equal(t, "https://img/a.png", got.ProfileImageURL)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, models.UserCustomer, got.Type)
}

func testWorkers(t *testing.T, s repository.Store) {
	ctx := context.Background()
	dist := 4.5

	w1 := &models.Worker{ID: "w1", Name: "One", Skills: []models.JobCategory{models.CategoryPlumbing}, Distance: &dist,
		IsOnline: true, ActivationStatus: models.ActivationActive, WorkingHours: models.DefaultWorkingHours()}
	w2 := &models.Worker{ID: "w2", Name: "Two", Skills: []models.JobCategory{models.CategoryPainting},
		ActivationStatus: models.ActivationPendingReview}
	require.NoError(t, s.CreateWorker(ctx, w1))
	require.NoError(t, s.CreateWorker(ctx, w2))

	err := s.CreateWorker(ctx, w1)
	assert.True(t, errors.Is(err, models.ErrConflict), "got %v", err)

	got, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *w1, *got)

	list, err := s.ListWorkers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "w1", list[0].ID)
	assert.Equal(t, "w2", list[1].ID)

	got.Rating = 4.2
	got.IsOnline = false
	require.NoError(t, s.SaveWorker(ctx, got))
	again, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, 4.2, again.Rating)
	assert.False(t, again.IsOnline)

	err = s.SaveWorker(ctx, &models.Worker{ID: "nope"})
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)

	missing, err := s.GetWorker(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testWorkerAccounts(t *testing.T, s repository.Store) {
	ctx := context.Background()

	u := &models.User{ID: "w1", Name: "Mike", Email: "mike@example.com", Type: models.UserWorker, PasswordHash: "hash"}
	w := &models.Worker{ID: "w1", Name: "Mike", Skills: []models.JobCategory{models.CategoryPlumbing},
		ActivationStatus: models.ActivationPendingReview}
	require.NoError(t, s.CreateWorkerAccount(ctx, u, w))
	assert.False(t, u.CreatedAt.IsZero())

	gotUser, err := s.GetUser(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, gotUser)
	gotWorker, err := s.GetWorker(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, gotWorker)
	assert.Equal(t, "Mike", gotWorker.Name)

	// the email is taken: nothing of the second account is stored
	u2 := &models.User{ID: "w2", Name: "Copy", Email: "MIKE@example.com", Type: models.UserWorker, PasswordHash: "x"}
	err = s.CreateWorkerAccount(ctx, u2, &models.Worker{ID: "w2", Name: "Copy"})
	assert.True(t, errors.Is(err, models.ErrConflict), "got %v", err)
	missing, err := s.GetWorker(ctx, "w2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// the profile clashes: the user is rolled back
	require.NoError(t, s.CreateWorker(ctx, &models.Worker{ID: "w3", Name: "Orphan"}))
	u3 := &models.User{ID: "w3", Name: "Orphan", Email: "orphan@example.com", Type: models.UserWorker, PasswordHash: "x"}
	err = s.CreateWorkerAccount(ctx, u3, &models.Worker{ID: "w3", Name: "Orphan"})
	assert.True(t, errors.Is(err, models.ErrConflict), "got %v", err)
	noUser, err := s.GetUser(ctx, "w3")
	require.NoError(t, err)
	assert.Nil(t, noUser)
	byEmail, err := s.GetUserByEmail(ctx, "orphan@example.com")
	require.NoError(t, err)
	assert.Nil(t, byEmail)
}

func newJob(id, customer string, created time.Time) *models.JobRequest {
	return &models.JobRequest{
		ID:           id,
		CustomerID:   customer,
		CustomerName: "Customer " + customer,
		Description:  "leaking faucet",
		ServiceAnalysis: &models.ServiceAnalysis{
			JobType: models.CategoryPlumbing, Urgency: models.UrgencyHigh, Severity: models.SeverityMajor,
			EstimatedDuration: "1-2 hours", PriceEstimate: models.PriceModerate,
		},
		Status:    models.StatusMatchesFound,
		Location:  "New York, NY",
		CreatedAt: created,
	}
}

func testJobRequests(t *testing.T, s repository.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	j1 := newJob("jr1", "c1", base)
	j2 := newJob("jr2", "c2", base.Add(time.Hour))
	j2.ServiceAnalysis = nil
	require.NoError(t, s.CreateJobRequest(ctx, j1))
	require.NoError(t, s.CreateJobRequest(ctx, j2))

	got, err := s.GetJobRequest(ctx, "jr1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(base))
	require.NotNil(t, got.ServiceAnalysis)
	assert.Equal(t, *j1.ServiceAnalysis, *got.ServiceAnalysis)

	got2, err := s.GetJobRequest(ctx, "jr2")
	require.NoError(t, err)
	assert.Nil(t, got2.ServiceAnalysis)

	all, err := s.ListJobRequests(ctx, models.JobRequestFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "jr2", all[0].ID, "newest first")

	byCustomer, err := s.ListJobRequests(ctx, models.JobRequestFilter{CustomerID: "c1"})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, "jr1", byCustomer[0].ID)

	got.Status = models.StatusAccepted
	got.AssignedWorkerID = "w1"
	got.CreatedAt = base.Add(99 * time.Hour)
	ok, err := s.UpdateJobRequestIf(ctx, got, models.StatusMatchesFound)
	require.NoError(t, err)
	assert.True(t, ok)

	byWorker, err := s.ListJobRequests(ctx, models.JobRequestFilter{WorkerID: "w1", Status: models.StatusAccepted})
	require.NoError(t, err)
	require.Len(t, byWorker, 1)
	assert.True(t, byWorker[0].CreatedAt.Equal(base), "createdAt must not change")

	got.Status = models.StatusInProgress
	ok, err = s.UpdateJobRequestIf(ctx, got, models.StatusMatchesFound)
	require.NoError(t, err)
	assert.False(t, ok, "stale expected status must not apply")

	paid := base.Add(48 * time.Hour)
	got.Status = models.StatusCompleted
	got.PaymentDetails = &models.PaymentDetails{Amount: 150, PaidDate: paid}
	ok, err = s.UpdateJobRequestIf(ctx, got, models.StatusAccepted)
	require.NoError(t, err)
	require.True(t, ok)
	done, err := s.GetJobRequest(ctx, "jr1")
	require.NoError(t, err)
	require.NotNil(t, done.PaymentDetails)
	assert.Equal(t, 150.0, done.PaymentDetails.Amount)
	assert.True(t, done.PaymentDetails.PaidDate.Equal(paid))

	missing, err := s.GetJobRequest(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testJobRequestCAS(t *testing.T, s repository.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateJobRequest(ctx, newJob("jr-race", "c1", time.Now())))

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins []string
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(worker string) {
			defer wg.Done()
			j, err := s.GetJobRequest(ctx, "jr-race")
			if err != nil || j == nil {
				t.Errorf("get: %v", err)
				return
			}
			j.Status = models.StatusAccepted
			j.AssignedWorkerID = worker
			ok, err := s.UpdateJobRequestIf(ctx, j, models.StatusMatchesFound)
			if err != nil {
				t.Errorf("update: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins = append(wins, worker)
				mu.Unlock()
			}
		}(string(rune('a' + i)))
	}
	wg.Wait()

	require.Len(t, wins, 1)
	final, err := s.GetJobRequest(ctx, "jr-race")
	require.NoError(t, err)
	assert.Equal(t, wins[0], final.AssignedWorkerID)
}

func testThreads(t *testing.T, s repository.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	t1, err := s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t1", ParticipantIDs: [2]string{"cust1", "w1"}, LastMessageTimestamp: base, CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, "t1", t1.ID)

	// same unordered pair, no job: the existing thread wins
	again, err := s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t1-dup", ParticipantIDs: [2]string{"w1", "cust1"}, LastMessageTimestamp: base, CreatedAt: base})
	require.NoError(t, err)
	assert.Equal(t, "t1", again.ID)

	t2, err := s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t2", ParticipantIDs: [2]string{"w1", "cust1"}, JobRequestID: "jr1",
		LastMessageTimestamp: base.Add(time.Minute), CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, "t2", t2.ID)

	_, err = s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t3", ParticipantIDs: [2]string{"cust2", "w1"}, LastMessageTimestamp: base.Add(2 * time.Minute), CreatedAt: base})
	require.NoError(t, err)

	found, err := s.FindThread(ctx, "w1", "cust1", "jr1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "t2", found.ID)

	none, err := s.FindThread(ctx, "w1", "cust1", "jr-other")
	require.NoError(t, err)
	assert.Nil(t, none)

	latest, err := s.LatestThreadForPair(ctx, "cust1", "w1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "t2", latest.ID)

	list, err := s.ListThreadsForUser(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"t3", "t2", "t1"}, []string{list[0].ID, list[1].ID, list[2].ID})

	got, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, [2]string{"cust1", "w1"}, got.ParticipantIDs)

	missing, err := s.GetThread(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testMessages(t *testing.T, s repository.Store) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t1", ParticipantIDs: [2]string{"cust1", "w1"}, LastMessageTimestamp: base, CreatedAt: base})
	require.NoError(t, err)
	_, err = s.CreateThreadIfAbsent(ctx, &models.ChatThread{ID: "t2", ParticipantIDs: [2]string{"cust1", "w2"}, LastMessageTimestamp: base.Add(time.Hour), CreatedAt: base})
	require.NoError(t, err)

	m1 := &models.ChatMessage{ID: "m1", ThreadID: "t1", SenderID: "w1", ReceiverID: "cust1", Text: "hi", Timestamp: base.Add(time.Minute)}
	m2 := &models.ChatMessage{ID: "m2", ThreadID: "t1", SenderID: "w1", ReceiverID: "cust1", Text: "same instant", Timestamp: base.Add(time.Minute)}
	m3 := &models.ChatMessage{ID: "m3", ThreadID: "t1", SenderID: "cust1", ReceiverID: "w1", Text: "hello", Timestamp: base.Add(2 * time.Minute), IsRead: true}
	for _, m := range []*models.ChatMessage{m1, m2, m3} {
		require.NoError(t, s.AppendMessage(ctx, m))
	}
	assert.True(t, m2.Timestamp.After(m1.Timestamp), "timestamps strictly increase within a thread")

	msgs, err := s.ListMessages(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[2].ID)

	// t2 was more recent until t1 received a message later than base+1h
	late := &models.ChatMessage{ID: "m4", ThreadID: "t1", SenderID: "w1", ReceiverID: "cust1", Text: "late", Timestamp: base.Add(2 * time.Hour)}
	require.NoError(t, s.AppendMessage(ctx, late))
	th, err := s.GetThread(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "m4", th.LastMessageID)
	assert.True(t, th.LastMessageTimestamp.Equal(late.Timestamp))
	list, err := s.ListThreadsForUser(ctx, "cust1")
	require.NoError(t, err)
	assert.Equal(t, "t1", list[0].ID)

	unread, err := s.CountUnread(ctx, "cust1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	n, err := s.MarkRead(ctx, "t1", "cust1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = s.MarkRead(ctx, "t1", "cust1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	unread, err = s.CountUnread(ctx, "cust1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)

	err = s.AppendMessage(ctx, &models.ChatMessage{ID: "m9", ThreadID: "ghost", SenderID: "a", ReceiverID: "b", Text: "x"})
	assert.True(t, errors.Is(err, models.ErrNotFound), "got %v", err)
}
