// Package seed loads the demo marketplace into a store.
package seed

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// DefaultFile is the demo document inside the seed filesystem.
const DefaultFile = "seed/demo.yaml"

type Fixtures struct {
	Password    string          `yaml:"password"`
	Users       []UserFixture   `yaml:"users"`
	Workers     []models.Worker `yaml:"workers"`
	JobRequests []JobFixture    `yaml:"jobRequests"`
	Threads     []ThreadFixture `yaml:"threads"`
}

type UserFixture struct {
	ID              string          `yaml:"id"`
	Name            string          `yaml:"name"`
	Email           string          `yaml:"email"`
	Type            models.UserType `yaml:"type"`
	ProfileImageURL string          `yaml:"profileImageUrl"`
}

type JobFixture struct {
	ID               string                 `yaml:"id"`
	CustomerID       string                 `yaml:"customerId"`
	Description      string                 `yaml:"description"`
	ServiceAnalysis  models.ServiceAnalysis `yaml:"serviceAnalysis"`
	Status           models.JobStatus       `yaml:"status"`
	Location         string                 `yaml:"location"`
	RequestedDate    string                 `yaml:"requestedDate"`
	CreatedAgo       time.Duration          `yaml:"createdAgo"`
	AssignedWorkerID string                 `yaml:"assignedWorkerId"`
	Payment          *struct {
		Amount  float64       `yaml:"amount"`
		PaidAgo time.Duration `yaml:"paidAgo"`
	} `yaml:"payment"`
}

type ThreadFixture struct {
	ID           string           `yaml:"id"`
	Participants [2]string        `yaml:"participants"`
	JobRequestID string           `yaml:"jobRequestId"`
	Messages     []MessageFixture `yaml:"messages"`
}

type MessageFixture struct {
	ID   string        `yaml:"id"`
	From string        `yaml:"from"`
	Ago  time.Duration `yaml:"ago"`
	Read bool          `yaml:"read"`
	Text string        `yaml:"text"`
}

// Load decodes the fixtures document at name in fsys.
func Load(fsys fs.FS, name string) (*Fixtures, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	if f.Password == "" {
		return nil, fmt.Errorf("decode fixtures: password is required")
	}
	return &f, nil
}

// Report counts the records a run inserted. Records already present are skipped.
type Report struct {
	Users       int `json:"users"`
	Workers     int `json:"workers"`
	JobRequests int `json:"jobRequests"`
	Threads     int `json:"threads"`
	Messages    int `json:"messages"`
}

type Seeder struct {
	store  repository.Store
	logger *slog.Logger
	now    func() time.Time
	cost   int
}

type Option func(*Seeder)

// WithCost sets the bcrypt cost used for the demo password.
func WithCost(cost int) Option { return func(s *Seeder) { s.cost = cost } }

// WithClock pins the reference time that fixture offsets count back from.
func WithClock(now func() time.Time) Option { return func(s *Seeder) { s.now = now } }

func New(store repository.Store, logger *slog.Logger, opts ...Option) *Seeder {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Seeder{store: store, logger: logger, now: time.Now, cost: bcrypt.DefaultCost}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run inserts f. It can be repeated: existing records are left untouched.
func (s *Seeder) Run(ctx context.Context, f *Fixtures) (*Report, error) {
	now := s.now().UTC()
	rep := &Report{}

	names := make(map[string]string, len(f.Users))
	for _, u := range f.Users {
		names[u.ID] = u.Name
		created, err := s.user(ctx, u, f.Password, now)
		if err != nil {
			return rep, err
		}
		if created {
			rep.Users++
		}
	}

	for _, w := range f.Workers {
		existing, err := s.store.GetWorker(ctx, w.ID)
		if err != nil {
			return rep, fmt.Errorf("get worker %s: %w", w.ID, err)
		}
		if existing != nil {
			continue
		}
		fillWorkerDefaults(&w)
		if err := s.store.CreateWorker(ctx, &w); err != nil {
			return rep, fmt.Errorf("create worker %s: %w", w.ID, err)
		}
		rep.Workers++
	}

	for _, jf := range f.JobRequests {
		existing, err := s.store.GetJobRequest(ctx, jf.ID)
		if err != nil {
			return rep, fmt.Errorf("get job request %s: %w", jf.ID, err)
		}
		if existing != nil {
			continue
		}
		name, ok := names[jf.CustomerID]
		if !ok {
			return rep, fmt.Errorf("job request %s: unknown customer %s", jf.ID, jf.CustomerID)
		}
		if err := s.store.CreateJobRequest(ctx, jobFromFixture(jf, name, now)); err != nil {
			return rep, fmt.Errorf("create job request %s: %w", jf.ID, err)
		}
		rep.JobRequests++
	}

	for _, tf := range f.Threads {
		n, err := s.thread(ctx, tf, now)
		if err != nil {
			return rep, err
		}
		if n >= 0 {
			rep.Threads++
			rep.Messages += n
		}
	}

	s.logger.Info("demo fixtures loaded", "users", rep.Users, "workers", rep.Workers,
		"job_requests", rep.JobRequests, "threads", rep.Threads, "messages", rep.Messages)
	return rep, nil
}

func (s *Seeder) user(ctx context.Context, u UserFixture, password string, now time.Time) (bool, error) {
	existing, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		return false, fmt.Errorf("get user %s: %w", u.ID, err)
	}
	if existing != nil {
		return false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, fmt.Errorf("hash password for %s: %w", u.ID, err)
	}
	user := &models.User{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Type:            u.Type,
		PasswordHash:    string(hash),
		ProfileImageURL: u.ProfileImageURL,
		CreatedAt:       now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return false, fmt.Errorf("create user %s: %w", u.ID, err)
	}
	return true, nil
}

func fillWorkerDefaults(w *models.Worker) {
	if w.WorkingHours == (models.WorkingHours{}) {
		w.WorkingHours = models.DefaultWorkingHours()
	}
	if w.Equipment == nil {
		w.Equipment = []string{}
	}
	if w.Availability == "" {
		w.Availability = "Not set"
	}
}

func jobFromFixture(jf JobFixture, customerName string, now time.Time) *models.JobRequest {
	a := jf.ServiceAnalysis
	created := now.Add(-jf.CreatedAgo)
	j := &models.JobRequest{
		ID:               jf.ID,
		CustomerID:       jf.CustomerID,
		CustomerName:     customerName,
		Description:      jf.Description,
		ServiceAnalysis:  &a,
		Status:           jf.Status,
		Location:         jf.Location,
		RequestedDate:    jf.RequestedDate,
		AssignedWorkerID: jf.AssignedWorkerID,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	if jf.Payment != nil {
		paid := now.Add(-jf.Payment.PaidAgo)
		j.PaymentDetails = &models.PaymentDetails{Amount: jf.Payment.Amount, PaidDate: paid}
		j.UpdatedAt = paid
	}
	return j
}

// thread stores tf and its messages, oldest first. It returns -1 when the
// thread was already present.
func (s *Seeder) thread(ctx context.Context, tf ThreadFixture, now time.Time) (int, error) {
	existing, err := s.store.GetThread(ctx, tf.ID)
	if err != nil {
		return 0, fmt.Errorf("get thread %s: %w", tf.ID, err)
	}
	if existing != nil {
		return -1, nil
	}

	msgs := append([]MessageFixture(nil), tf.Messages...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Ago > msgs[j].Ago })

	opened := now
	if len(msgs) > 0 {
		opened = now.Add(-msgs[0].Ago - time.Minute)
	}
	t, err := s.store.CreateThreadIfAbsent(ctx, &models.ChatThread{
		ID:                   tf.ID,
		ParticipantIDs:       tf.Participants,
		JobRequestID:         tf.JobRequestID,
		LastMessageTimestamp: opened,
		CreatedAt:            opened,
	})
	if err != nil {
		return 0, fmt.Errorf("create thread %s: %w", tf.ID, err)
	}
	if t.ID != tf.ID {
		return -1, nil
	}

	for _, mf := range msgs {
		if !t.HasParticipant(mf.From) {
			return 0, fmt.Errorf("thread %s: message %s from non-participant %s", tf.ID, mf.ID, mf.From)
		}
		m := &models.ChatMessage{
			ID:         mf.ID,
			ThreadID:   t.ID,
			SenderID:   mf.From,
			ReceiverID: t.Other(mf.From),
			Text:       mf.Text,
			Timestamp:  now.Add(-mf.Ago),
			IsRead:     mf.Read,
		}
		if err := s.store.AppendMessage(ctx, m); err != nil {
			return 0, fmt.Errorf("append message %s: %w", mf.ID, err)
		}
	}
	return len(msgs), nil
}
