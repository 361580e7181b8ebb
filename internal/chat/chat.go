// Package chat manages two-party threads and their messages.
package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/fixit/internal/realtime"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// Notifier delivers events to connected users.
type Notifier interface {
	Publish(userID string, ev realtime.Event)
}

// PreferenceLookup reports whether a user wants message alerts pushed.
// Users without a worker profile always get them.
type PreferenceLookup interface {
	GetWorker(ctx context.Context, id string) (*models.Worker, error)
}

type Service struct {
	repo     repository.ChatRepo
	prefs    PreferenceLookup
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithPreferences(p PreferenceLookup) Option { return func(s *Service) { s.prefs = p } }

func NewService(repo repository.ChatRepo, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Service{repo: repo, logger: logger, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ResolveOrCreateThread returns the thread between a and b for jobRequestID.
// Without a job id the pair's most recently active thread is reused. A new
// thread is created when none matches; concurrent callers get the same one.
func (s *Service) ResolveOrCreateThread(ctx context.Context, a, b, jobRequestID string) (*models.ChatThread, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return nil, fmt.Errorf("%w: both participants are required", models.ErrValidation)
	}
	if a == b {
		return nil, fmt.Errorf("%w: a thread needs two distinct participants", models.ErrValidation)
	}

	var (
		t   *models.ChatThread
		err error
	)
	if jobRequestID != "" {
		t, err = s.repo.FindThread(ctx, a, b, jobRequestID)
	} else {
		t, err = s.repo.LatestThreadForPair(ctx, a, b)
	}
	if err != nil {
		return nil, fmt.Errorf("find thread: %w", err)
	}
	if t != nil {
		return t, nil
	}

	now := s.now().UTC()
	t, err = s.repo.CreateThreadIfAbsent(ctx, &models.ChatThread{
		ID:                   uuid.NewString(),
		ParticipantIDs:       [2]string{a, b},
		JobRequestID:         jobRequestID,
		LastMessageTimestamp: now,
		CreatedAt:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	s.logger.Info("chat thread resolved", "thread_id", t.ID, "job_request_id", jobRequestID)
	return t, nil
}

// SendMessage appends text from senderID to the thread and notifies the
// other participant.
func (s *Service) SendMessage(ctx context.Context, threadID, senderID, text string) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text must not be blank", models.ErrValidation)
	}
	t, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: unknown thread %s", models.ErrValidation, threadID)
	}
	if !t.HasParticipant(senderID) {
		return nil, fmt.Errorf("%w: sender is not a participant of thread %s", models.ErrForbidden, threadID)
	}

	msg := &models.ChatMessage{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		SenderID:   senderID,
		ReceiverID: t.Other(senderID),
		Text:       text,
		Timestamp:  s.now().UTC(),
	}
	if err := s.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if s.notifier != nil && s.wantsMessageAlerts(ctx, msg.ReceiverID) {
		s.notifier.Publish(msg.ReceiverID, realtime.Event{Type: realtime.EventMessageNew, Payload: msg})
	}
	return msg, nil
}

func (s *Service) wantsMessageAlerts(ctx context.Context, userID string) bool {
	if s.prefs == nil {
		return true
	}
	w, err := s.prefs.GetWorker(ctx, userID)
	if err != nil {
		s.logger.Warn("message alert preference lookup failed", "user_id", userID, "error", err)
		return true
	}
	return w == nil || w.NotificationPreferences.MessageAlerts
}

// MarkThreadRead marks every message addressed to readerID as read. It
// reports whether anything changed.
func (s *Service) MarkThreadRead(ctx context.Context, threadID, readerID string) (bool, error) {
	t, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return false, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return false, fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}
	if !t.HasParticipant(readerID) {
		return false, fmt.Errorf("%w: reader is not a participant of thread %s", models.ErrForbidden, threadID)
	}

	n, err := s.repo.MarkRead(ctx, threadID, readerID)
	if err != nil {
		return false, fmt.Errorf("mark read: %w", err)
	}
	if n > 0 && s.notifier != nil {
		s.notifier.Publish(t.Other(readerID), realtime.Event{
			Type:    realtime.EventThreadRead,
			Payload: map[string]string{"threadId": threadID, "readerId": readerID},
		})
	}
	return n > 0, nil
}

// ListThreadsForUser returns userID's threads, most recently active first.
func (s *Service) ListThreadsForUser(ctx context.Context, userID string) ([]models.ChatThread, error) {
	threads, err := s.repo.ListThreadsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	return threads, nil
}

// ListMessages returns the thread's messages oldest first. Only the two
// participants may read them.
func (s *Service) ListMessages(ctx context.Context, threadID, viewerID string) ([]models.ChatMessage, error) {
	t, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}
	if viewerID != "" && !t.HasParticipant(viewerID) {
		return nil, fmt.Errorf("%w: not a participant of thread %s", models.ErrForbidden, threadID)
	}
	msgs, err := s.repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *Service) UnreadCountForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
