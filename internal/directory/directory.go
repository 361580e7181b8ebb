// Package directory owns worker profiles: lookups, partial updates and the
// profile created when a worker signs up.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

const DefaultWorkerImage = "https://picsum.photos/seed/newworker/200"

type Service struct {
	workers  repository.WorkerRepo
	users    repository.UserRepo
	validate *validator.Validate
	logger   *slog.Logger
}

func NewService(workers repository.WorkerRepo, users repository.UserRepo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Service{workers: workers, users: users, validate: validator.New(), logger: logger}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Worker, error) {
	w, err := s.workers.GetWorker(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get worker: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: worker %s", models.ErrNotFound, id)
	}
	return w, nil
}

// List returns every worker matching f, in directory order.
func (s *Service) List(ctx context.Context, f models.WorkerFilter) ([]models.Worker, error) {
	all, err := s.workers.ListWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}
	if f.Skill == "" && !f.OnlineOnly {
		return all, nil
	}

	out := make([]models.Worker, 0, len(all))
	for _, w := range all {
		if f.Skill != "" && !w.HasSkill(f.Skill) {
			continue
		}
		if f.OnlineOnly && !w.IsOnline {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// UpdateOwnProfile is the update a worker makes to their own profile. Fields
// managed by the platform are refused with ErrForbidden.
func (s *Service) UpdateOwnProfile(ctx context.Context, id string, upd models.WorkerUpdate) (*models.Worker, error) {
	if fields := upd.ManagedFields(); len(fields) > 0 {
		return nil, fmt.Errorf("%w: %s cannot be changed by the worker", models.ErrForbidden, strings.Join(fields, ", "))
	}
	return s.Update(ctx, id, upd)
}

// Update applies the non-nil fields of upd to the worker. A changed name or
// profile image is copied to the matching user record; the user's credential
// is left as is.
func (s *Service) Update(ctx context.Context, id string, upd models.WorkerUpdate) (*models.Worker, error) {
	if err := s.Validate(upd); err != nil {
		return nil, err
	}

	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prevName, prevImage := w.Name, w.ProfileImageURL

	apply(w, upd)
	if w.ActivationStatus == models.ActivationActive && len(w.Skills) == 0 {
		return nil, fmt.Errorf("%w: an active worker needs at least one skill", models.ErrValidation)
	}
	if err := s.workers.SaveWorker(ctx, w); err != nil {
		return nil, fmt.Errorf("save worker: %w", err)
	}

	// The worker row is already stored; a stale user name is logged, not returned.
	if w.Name != prevName || w.ProfileImageURL != prevImage {
		if err := s.cascadeToUser(ctx, w); err != nil {
			s.logger.Error("cascade worker profile failed", "worker_id", w.ID, "error", err)
		}
	}
	return w, nil
}

func (s *Service) cascadeToUser(ctx context.Context, w *models.Worker) error {
	u, err := s.users.GetUser(ctx, w.ID)
	if err != nil {
		return fmt.Errorf("get user for cascade: %w", err)
	}
	if u == nil {
		return nil
	}
	if err := s.users.UpdateUserProfile(ctx, u.ID, w.Name, w.ProfileImageURL); err != nil {
		return fmt.Errorf("cascade worker profile to user: %w", err)
	}
	s.logger.Info("worker profile cascaded to user", "worker_id", w.ID)
	return nil
}

// CreateForUser stores a freshly signed-up worker account: the user and its
// default profile are written together.
func (s *Service) CreateForUser(ctx context.Context, u *models.User, skills []models.JobCategory) (*models.Worker, error) {
	if u == nil || u.Type != models.UserWorker {
		return nil, fmt.Errorf("%w: worker profiles belong to worker accounts", models.ErrValidation)
	}
	for _, sk := range skills {
		if !sk.Valid() {
			return nil, fmt.Errorf("%w: unknown skill %q", models.ErrValidation, sk)
		}
	}
	if len(skills) == 0 {
		skills = []models.JobCategory{models.CategoryGeneralHandyman}
	}

	img := u.ProfileImageURL
	if img == "" {
		img = DefaultWorkerImage
	}
	w := &models.Worker{
		ID:                      u.ID,
		Name:                    u.Name,
		ProfileImageURL:         img,
		Skills:                  skills,
		Availability:            "Not set",
		Equipment:               []string{},
		WorkingHours:            models.DefaultWorkingHours(),
		ServiceRadius:           10,
		NotificationPreferences: models.NotificationPreferences{NewJobAlerts: true, MessageAlerts: true},
		ActivationStatus:        models.ActivationPendingReview,
		VerificationDetails: models.VerificationDetails{
			IDVerifiedStatus:      models.VerificationNone,
			BackgroundCheckStatus: models.VerificationNone,
			ReferencesStatus:      models.VerificationNone,
		},
	}
	if err := s.workers.CreateWorkerAccount(ctx, u, w); err != nil {
		return nil, fmt.Errorf("create worker account: %w", err)
	}
	return w, nil
}

// Validate checks upd field by field without touching storage.
func (s *Service) Validate(upd models.WorkerUpdate) error {
	if err := s.validate.Struct(upd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %s", models.ErrValidation, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", models.ErrValidation)
	}
	if upd.Skills != nil {
		for _, sk := range *upd.Skills {
			if !sk.Valid() {
				return fmt.Errorf("%w: unknown skill %q", models.ErrValidation, sk)
			}
		}
	}
	if upd.ActivationStatus != nil && !upd.ActivationStatus.Valid() {
		return fmt.Errorf("%w: unknown activation status %q", models.ErrValidation, *upd.ActivationStatus)
	}
	if v := upd.VerificationDetails; v != nil {
		for _, st := range []models.VerificationStatus{v.IDVerifiedStatus, v.BackgroundCheckStatus, v.ReferencesStatus} {
			if !st.Valid() {
				return fmt.Errorf("%w: unknown verification status %q", models.ErrValidation, st)
			}
		}
	}
	if upd.WorkingHours != nil {
		for i, d := range upd.WorkingHours.Days() {
			if err := validateDay(d); err != nil {
				return fmt.Errorf("%w: %s: %v", models.ErrValidation, time.Weekday((i+1)%7), err)
			}
		}
	}
	if p := upd.PerformanceMetrics; p != nil {
		if p.CompletionRate < 0 || p.CompletionRate > 100 || p.RehirePercentage < 0 || p.RehirePercentage > 100 {
			return fmt.Errorf("%w: performance percentages must be within 0..100", models.ErrValidation)
		}
	}
	if p := upd.Portfolio; p != nil && (p.PhotoCount < 0 || p.VideoCount < 0 || p.TestimonialCount < 0) {
		return fmt.Errorf("%w: portfolio counters must not be negative", models.ErrValidation)
	}
	return nil
}

func validateDay(d *models.DaySchedule) error {
	start, err := time.Parse("15:04", d.StartTime)
	if err != nil {
		return fmt.Errorf("invalid start time %q", d.StartTime)
	}
	end, err := time.Parse("15:04", d.EndTime)
	if err != nil {
		return fmt.Errorf("invalid end time %q", d.EndTime)
	}
	if d.IsActive && !end.After(start) {
		return fmt.Errorf("end time %s must be after start time %s", d.EndTime, d.StartTime)
	}
	return nil
}

func apply(w *models.Worker, u models.WorkerUpdate) {
	if u.Name != nil {
		w.Name = strings.TrimSpace(*u.Name)
	}
	if u.ProfileImageURL != nil {
		w.ProfileImageURL = *u.ProfileImageURL
	}
	if u.Skills != nil {
		w.Skills = append([]models.JobCategory(nil), (*u.Skills)...)
	}
	if u.Rating != nil {
		w.Rating = *u.Rating
	}
	if u.HomeAddress != nil {
		w.HomeAddress = *u.HomeAddress
	}
	if u.WorkAddress != nil {
		w.WorkAddress = *u.WorkAddress
	}
	if u.Availability != nil {
		w.Availability = *u.Availability
	}
	if u.HourlyRateRange != nil {
		w.HourlyRateRange = *u.HourlyRateRange
	}
	if u.IsVerified != nil {
		w.IsVerified = *u.IsVerified
	}
	if u.IsLicenseVerified != nil {
		w.IsLicenseVerified = *u.IsLicenseVerified
	}
	if u.HasInsurance != nil {
		w.HasInsurance = *u.HasInsurance
	}
	if u.Bio != nil {
		w.Bio = *u.Bio
	}
	if u.ExperienceYears != nil {
		w.ExperienceYears = *u.ExperienceYears
	}
	if u.LicenseDetails != nil {
		w.LicenseDetails = *u.LicenseDetails
	}
	if u.Distance != nil {
		d := *u.Distance
		w.Distance = &d
	}
	if u.Equipment != nil {
		w.Equipment = append([]string(nil), (*u.Equipment)...)
	}
	if u.Portfolio != nil {
		w.Portfolio = *u.Portfolio
	}
	if u.PerformanceMetrics != nil {
		w.PerformanceMetrics = *u.PerformanceMetrics
	}
	if u.IsOnline != nil {
		w.IsOnline = *u.IsOnline
	}
	if u.WorkingHours != nil {
		w.WorkingHours = *u.WorkingHours
	}
	if u.ServiceRadius != nil {
		w.ServiceRadius = *u.ServiceRadius
	}
	if u.NotificationPreferences != nil {
		w.NotificationPreferences = *u.NotificationPreferences
	}
	if u.MinimumCallOutFee != nil {
		f := *u.MinimumCallOutFee
		w.MinimumCallOutFee = &f
	}
	if u.ActivationStatus != nil {
		w.ActivationStatus = *u.ActivationStatus
	}
	if u.VerificationDetails != nil {
		w.VerificationDetails = *u.VerificationDetails
	}
}
