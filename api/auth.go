package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/garnizeh/fixit/internal/directory"
	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

const defaultCustomerImage = "https://picsum.photos/seed/newcustomer/100"

type AuthHandler struct {
	users         repository.UserRepo
	directory     *directory.Service
	jwtSecret     string
	tokenDuration time.Duration
	bcryptCost    int
}

// NewAuthHandler creates a new AuthHandler with required dependencies.
func NewAuthHandler(users repository.UserRepo, dir *directory.Service, jwtSecret string, tokenDuration time.Duration) *AuthHandler {
	return &AuthHandler{users: users, directory: dir, jwtSecret: jwtSecret, tokenDuration: tokenDuration, bcryptCost: bcrypt.DefaultCost}
}

type signupRequest struct {
	Name     string               `json:"name" validate:"required,max=200"`
	Email    string               `json:"email" validate:"required,email"`
	Password string               `json:"password" validate:"required,min=8,max=72"`
	Type     models.UserType      `json:"type" validate:"required,oneof=customer worker"`
	Skills   []models.JobCategory `json:"skills,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" {
		writeError(w, r, fmt.Errorf("%w: name is required", models.ErrValidation))
		return
	}
	if req.Type == models.UserCustomer && len(req.Skills) > 0 {
		writeError(w, r, fmt.Errorf("%w: customers have no skills", models.ErrValidation))
		return
	}
	for _, s := range req.Skills {
		if !s.Valid() {
			writeError(w, r, fmt.Errorf("%w: unknown skill %q", models.ErrValidation, s))
			return
		}
	}

	ctx := r.Context()
	existing, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		writeError(w, r, fmt.Errorf("lookup email: %w", err))
		return
	}
	if existing != nil {
		writeError(w, r, fmt.Errorf("%w: email already registered", models.ErrConflict))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		writeError(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	img := defaultCustomerImage
	if req.Type == models.UserWorker {
		img = directory.DefaultWorkerImage
	}
	u := &models.User{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Email:           req.Email,
		Type:            req.Type,
		PasswordHash:    string(hash),
		ProfileImageURL: img,
		CreatedAt:       time.Now().UTC(),
	}
	if u.Type == models.UserWorker {
		_, err = h.directory.CreateForUser(ctx, u, req.Skills)
	} else {
		err = h.users.CreateUser(ctx, u)
	}
	if err != nil {
		writeError(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	token, err := IssueToken(h.jwtSecret, u, h.tokenDuration)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}
	logger.Info("user signed up", slog.String("user_id", u.ID), slog.String("type", string(u.Type)))
	writeJSON(w, http.StatusCreated, authResponse{User: u, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	u, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, r, fmt.Errorf("lookup email: %w", err))
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, r, fmt.Errorf("%w: invalid email or password", models.ErrUnauthorized))
		return
	}

	token, err := IssueToken(h.jwtSecret, u, h.tokenDuration)
	if err != nil {
		writeError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: u, Token: token})
}
