package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fixit/internal/directory"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/pkg/models"
)

type WorkersHandler struct {
	directory *directory.Service
	jobs      *jobrequest.Service
}

func NewWorkersHandler(dir *directory.Service, jobs *jobrequest.Service) *WorkersHandler {
	return &WorkersHandler{directory: dir, jobs: jobs}
}

// ListWorkers accepts the optional skill and online query filters.
func (h *WorkersHandler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.WorkerFilter{Skill: models.JobCategory(q.Get("skill"))}
	if f.Skill != "" && !f.Skill.Valid() {
		writeError(w, r, fmt.Errorf("%w: unknown skill %q", models.ErrValidation, f.Skill))
		return
	}
	if v := q.Get("online"); v != "" {
		online, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: online must be a boolean", models.ErrValidation))
			return
		}
		f.OnlineOnly = online
	}

	workers, err := h.directory.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(workers))
}

func (h *WorkersHandler) GetWorker(w http.ResponseWriter, r *http.Request) {
	wk, err := h.directory.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

// UpdateWorker applies a partial profile update. Workers may only edit their
// own profile, and never its activation, verification or reputation fields.
func (h *WorkersHandler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}
	var upd models.WorkerUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, err)
		return
	}
	wk, err := h.directory.UpdateOwnProfile(r.Context(), id, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

// Feed lists the job requests the worker can act on.
func (h *WorkersHandler) Feed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}
	wk, err := h.directory.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	jobs, err := h.jobs.FeedForWorker(r.Context(), wk)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(jobs))
}

func (h *WorkersHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := requireSelf(w, r, id); !ok {
		return
	}
	p, err := jobrequest.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.jobs.Earnings(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
