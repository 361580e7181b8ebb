// Package memory is an in-process implementation of the repository
// interfaces. It backs unit tests and the "memory" database driver and keeps
// the same conflict and ordering semantics as the SQLite store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

var _ repository.Store = (*Store)(nil)

type threadKey struct {
	lo, hi, job string
}

type Store struct {
	mu sync.RWMutex

	users       map[string]models.User
	emails      map[string]string
	workers     map[string]models.Worker
	workerOrder []string
	jobs        map[string]models.JobRequest
	threads     map[string]models.ChatThread
	threadKeys  map[threadKey]string
	messages    map[string][]models.ChatMessage
}

func New() *Store {
	return &Store{
		users:      make(map[string]models.User),
		emails:     make(map[string]string),
		workers:    make(map[string]models.Worker),
		jobs:       make(map[string]models.JobRequest),
		threads:    make(map[string]models.ChatThread),
		threadKeys: make(map[threadKey]string),
		messages:   make(map[string][]models.ChatMessage),
	}
}

// stamps are kept at millisecond precision to match the SQLite store
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return time.UnixMilli(t.UTC().UnixMilli()).UTC()
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.emails[email]; ok {
		return fmt.Errorf("%w: email already registered", models.ErrConflict)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s already exists", models.ErrConflict, u.ID)
	}
	u.CreatedAt = stamp(u.CreatedAt)
	s.users[u.ID] = *u
	s.emails[email] = u.ID
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) UpdateUserProfile(_ context.Context, id, name, profileImageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil
	}
	u.Name = name
	u.ProfileImageURL = profileImageURL
	s.users[id] = u
	return nil
}

func cloneWorker(w models.Worker) models.Worker {
	w.Skills = append([]models.JobCategory(nil), w.Skills...)
	w.Equipment = append([]string(nil), w.Equipment...)
	if w.Distance != nil {
		d := *w.Distance
		w.Distance = &d
	}
	if w.MinimumCallOutFee != nil {
		f := *w.MinimumCallOutFee
		w.MinimumCallOutFee = &f
	}
	return w
}

func (s *Store) CreateWorker(_ context.Context, w *models.Worker) error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[w.ID]; ok {
		return fmt.Errorf("%w: worker %s already exists", models.ErrConflict, w.ID)
	}
	s.workers[w.ID] = cloneWorker(*w)
	s.workerOrder = append(s.workerOrder, w.ID)
	return nil
}

func (s *Store) CreateWorkerAccount(_ context.Context, u *models.User, w *models.Worker) error {
	if u == nil || w == nil {
		return fmt.Errorf("user and worker are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := s.emails[email]; ok {
		return fmt.Errorf("%w: email already registered", models.ErrConflict)
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user %s already exists", models.ErrConflict, u.ID)
	}
	if _, ok := s.workers[w.ID]; ok {
		return fmt.Errorf("%w: worker %s already exists", models.ErrConflict, w.ID)
	}
	u.CreatedAt = stamp(u.CreatedAt)
	s.users[u.ID] = *u
	s.emails[email] = u.ID
	s.workers[w.ID] = cloneWorker(*w)
	s.workerOrder = append(s.workerOrder, w.ID)
	return nil
}

func (s *Store) GetWorker(_ context.Context, id string) (*models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workers[id]
	if !ok {
		return nil, nil
	}
	w = cloneWorker(w)
	return &w, nil
}

func (s *Store) ListWorkers(_ context.Context) ([]models.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Worker, 0, len(s.workerOrder))
	for _, id := range s.workerOrder {
		out = append(out, cloneWorker(s.workers[id]))
	}
	return out, nil
}

func (s *Store) SaveWorker(_ context.Context, w *models.Worker) error {
	if w == nil {
		return fmt.Errorf("worker is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.workers[w.ID]; !ok {
		return fmt.Errorf("%w: worker %s", models.ErrNotFound, w.ID)
	}
	s.workers[w.ID] = cloneWorker(*w)
	return nil
}

func cloneJob(j models.JobRequest) models.JobRequest {
	if j.ServiceAnalysis != nil {
		a := *j.ServiceAnalysis
		j.ServiceAnalysis = &a
	}
	if j.PaymentDetails != nil {
		p := *j.PaymentDetails
		p.PaidDate = stamp(p.PaidDate)
		j.PaymentDetails = &p
	}
	return j
}

func (s *Store) CreateJobRequest(_ context.Context, j *models.JobRequest) error {
	if j == nil {
		return fmt.Errorf("job request is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("%w: job request %s already exists", models.ErrConflict, j.ID)
	}
	j.CreatedAt = stamp(j.CreatedAt)
	j.UpdatedAt = stamp(j.UpdatedAt)
	s.jobs[j.ID] = cloneJob(*j)
	return nil
}

func (s *Store) GetJobRequest(_ context.Context, id string) (*models.JobRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	j = cloneJob(j)
	return &j, nil
}

func (s *Store) ListJobRequests(_ context.Context, f models.JobRequestFilter) ([]models.JobRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.JobRequest
	for _, j := range s.jobs {
		if f.CustomerID != "" && j.CustomerID != f.CustomerID {
			continue
		}
		if f.WorkerID != "" && j.AssignedWorkerID != f.WorkerID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.After(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) UpdateJobRequestIf(_ context.Context, j *models.JobRequest, expected models.JobStatus) (bool, error) {
	if j == nil {
		return false, fmt.Errorf("job request is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.jobs[j.ID]
	if !ok || cur.Status != expected {
		return false, nil
	}

	next := cloneJob(*j)
	next.CustomerID = cur.CustomerID
	next.CustomerName = cur.CustomerName
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = stamp(time.Now())
	s.jobs[j.ID] = next
	j.UpdatedAt = next.UpdatedAt
	return true, nil
}

func keyFor(a, b, job string) threadKey {
	lo, hi := models.PairKey(a, b)
	return threadKey{lo: lo, hi: hi, job: job}
}

func (s *Store) CreateThreadIfAbsent(_ context.Context, t *models.ChatThread) (*models.ChatThread, error) {
	if t == nil {
		return nil, fmt.Errorf("thread is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyFor(t.ParticipantIDs[0], t.ParticipantIDs[1], t.JobRequestID)
	if id, ok := s.threadKeys[k]; ok {
		existing := s.threads[id]
		return &existing, nil
	}
	stored := *t
	stored.CreatedAt = stamp(stored.CreatedAt)
	stored.LastMessageTimestamp = stamp(stored.LastMessageTimestamp)
	s.threads[stored.ID] = stored
	s.threadKeys[k] = stored.ID
	return &stored, nil
}

func (s *Store) GetThread(_ context.Context, id string) (*models.ChatThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) FindThread(_ context.Context, a, b, jobRequestID string) (*models.ChatThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.threadKeys[keyFor(a, b, jobRequestID)]
	if !ok {
		return nil, nil
	}
	t := s.threads[id]
	return &t, nil
}

func (s *Store) LatestThreadForPair(_ context.Context, a, b string) (*models.ChatThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := models.PairKey(a, b)
	var best *models.ChatThread
	for k, id := range s.threadKeys {
		if k.lo != lo || k.hi != hi {
			continue
		}
		t := s.threads[id]
		if best == nil || t.LastMessageTimestamp.After(best.LastMessageTimestamp) ||
			(t.LastMessageTimestamp.Equal(best.LastMessageTimestamp) && t.CreatedAt.After(best.CreatedAt)) {
			best = &t
		}
	}
	return best, nil
}

func (s *Store) ListThreadsForUser(_ context.Context, userID string) ([]models.ChatThread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.ChatThread
	for _, t := range s.threads {
		if t.HasParticipant(userID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].LastMessageTimestamp.Equal(out[b].LastMessageTimestamp) {
			return out[a].LastMessageTimestamp.After(out[b].LastMessageTimestamp)
		}
		return out[a].ID < out[b].ID
	})
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, m *models.ChatMessage) error {
	if m == nil {
		return fmt.Errorf("message is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.threads[m.ThreadID]
	if !ok {
		return fmt.Errorf("%w: thread %s", models.ErrNotFound, m.ThreadID)
	}

	ts := stamp(m.Timestamp)
	if !ts.After(t.LastMessageTimestamp) {
		ts = t.LastMessageTimestamp.Add(time.Millisecond)
	}
	m.Timestamp = ts

	s.messages[m.ThreadID] = append(s.messages[m.ThreadID], *m)
	t.LastMessageID = m.ID
	t.LastMessageTimestamp = ts
	s.threads[t.ID] = t
	return nil
}

func (s *Store) ListMessages(_ context.Context, threadID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.ChatMessage(nil), s.messages[threadID]...), nil
}

func (s *Store) MarkRead(_ context.Context, threadID, readerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	msgs := s.messages[threadID]
	for i := range msgs {
		if msgs[i].ReceiverID == readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *Store) CountUnread(_ context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ReceiverID == userID && !m.IsRead {
				n++
			}
		}
	}
	return n, nil
}
