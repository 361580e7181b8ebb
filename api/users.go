package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fixit/pkg/models"
	"github.com/garnizeh/fixit/pkg/repository"
)

// requireCaller writes 401 and reports false when the request carries no caller.
func requireCaller(w http.ResponseWriter, r *http.Request) (Caller, bool) {
	c, ok := CallerFrom(r.Context())
	if !ok || c.ID == "" {
		writeError(w, r, fmt.Errorf("%w: authentication required", models.ErrUnauthorized))
		return Caller{}, false
	}
	return c, true
}

// requireSelf writes 403 unless the caller is the user named by id.
func requireSelf(w http.ResponseWriter, r *http.Request, id string) (Caller, bool) {
	c, ok := requireCaller(w, r)
	if !ok {
		return Caller{}, false
	}
	if c.ID != id {
		writeError(w, r, fmt.Errorf("%w: not allowed to act for user %s", models.ErrForbidden, id))
		return Caller{}, false
	}
	return c, true
}

type UsersHandler struct {
	users repository.UserRepo
}

func NewUsersHandler(users repository.UserRepo) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireCaller(w, r); !ok {
		return
	}
	id := mux.Vars(r)["id"]
	u, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, r, fmt.Errorf("get user: %w", err))
		return
	}
	if u == nil {
		writeError(w, r, fmt.Errorf("%w: user %s", models.ErrNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Me returns the caller's own account.
func (h *UsersHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	r = mux.SetURLVars(r, map[string]string{"id": c.ID})
	h.GetUser(w, r)
}
