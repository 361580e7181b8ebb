package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/garnizeh/fixit/internal/booking"
	"github.com/garnizeh/fixit/internal/jobrequest"
	"github.com/garnizeh/fixit/pkg/models"
)

type JobRequestsHandler struct {
	jobs    *jobrequest.Service
	booking *booking.Service
}

func NewJobRequestsHandler(jobs *jobrequest.Service, b *booking.Service) *JobRequestsHandler {
	return &JobRequestsHandler{jobs: jobs, booking: b}
}

// ListJobRequests filters by customerId, workerId and status. Customers only
// ever see their own requests.
func (h *JobRequestsHandler) ListJobRequests(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := models.JobRequestFilter{
		CustomerID: q.Get("customerId"),
		WorkerID:   q.Get("workerId"),
		Status:     models.JobStatus(q.Get("status")),
	}
	if c.Type == models.UserCustomer {
		if f.CustomerID != "" && f.CustomerID != c.ID {
			writeError(w, r, fmt.Errorf("%w: customers can only list their own requests", models.ErrForbidden))
			return
		}
		f.CustomerID = c.ID
	}

	jobs, err := h.jobs.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(jobs))
}

func (h *JobRequestsHandler) GetJobRequest(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

type createJobRequest struct {
	CustomerID      string                  `json:"customerId"`
	CustomerName    string                  `json:"customerName" validate:"required"`
	Description     string                  `json:"description" validate:"required"`
	Location        string                  `json:"location" validate:"required"`
	RequestedDate   string                  `json:"requestedDate,omitempty"`
	ServiceAnalysis *models.ServiceAnalysis `json:"serviceAnalysis" validate:"required"`
}

// CreateJobRequest stores a request whose analysis the client already holds.
func (h *JobRequestsHandler) CreateJobRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if c.Type != models.UserCustomer {
		writeError(w, r, fmt.Errorf("%w: only customers create job requests", models.ErrForbidden))
		return
	}
	var req createJobRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CustomerID != "" && req.CustomerID != c.ID {
		writeError(w, r, fmt.Errorf("%w: customerId must be the caller", models.ErrForbidden))
		return
	}

	j, err := h.jobs.Create(r.Context(), jobrequest.NewJobRequest{
		CustomerID:      c.ID,
		CustomerName:    req.CustomerName,
		Description:     req.Description,
		Location:        req.Location,
		RequestedDate:   req.RequestedDate,
		ServiceAnalysis: req.ServiceAnalysis,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// UpdateJobRequest applies a status action or a field edit on behalf of the caller.
func (h *JobRequestsHandler) UpdateJobRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var upd models.JobRequestUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, r, err)
		return
	}

	j, err := h.jobs.Update(r.Context(), mux.Vars(r)["id"], upd, jobrequest.Actor{ID: c.ID, Type: c.Type})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if upd.Status != nil {
		h.booking.NotifyStatus(r.Context(), j)
	}
	writeJSON(w, http.StatusOK, j)
}

type bookRequest struct {
	WorkerID string `json:"workerId" validate:"required"`
}

// Book confirms the customer's chosen worker.
func (h *JobRequestsHandler) Book(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	j, err := h.jobs.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if j.CustomerID != c.ID {
		writeError(w, r, fmt.Errorf("%w: only the customer can book job request %s", models.ErrForbidden, id))
		return
	}

	booked, err := h.booking.ConfirmBooking(r.Context(), id, req.WorkerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booked)
}

type serviceRequest struct {
	Description   string `json:"description" validate:"required"`
	Location      string `json:"location" validate:"required"`
	RequestedDate string `json:"requestedDate,omitempty"`
}

// SubmitServiceRequest classifies a free-text request, stores it and returns
// the shortlist of matching workers.
func (h *JobRequestsHandler) SubmitServiceRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if c.Type != models.UserCustomer {
		writeError(w, r, fmt.Errorf("%w: only customers submit service requests", models.ErrForbidden))
		return
	}
	var req serviceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.booking.SubmitServiceRequest(r.Context(), c.ID, req.Description, req.Location, req.RequestedDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
