package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/types"
)

// SubmissionHandler serves idea submissions and their reviews.
type SubmissionHandler struct {
	admission   *services.AdmissionService
	submissions *services.SubmissionService
}

func NewSubmissionHandler(admission *services.AdmissionService, submissions *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{admission: admission, submissions: submissions}
}

// SubmissionRouter registers submission routes on the given router. Every
// route requires authentication; reviews require an administrator.
func SubmissionRouter(
	r chi.Router,
	admission *services.AdmissionService,
	submissions *services.SubmissionService,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
) {
	handler := NewSubmissionHandler(admission, submissions)

	r.Use(authMiddleware)
	r.Post("/", handler.Submit)
	r.Get("/", handler.List)
	r.Route("/{submissionID}", func(r chi.Router) {
		r.Get("/", handler.Get)
		r.With(requireAdmin(userService)).Post("/review", handler.Review)
	})
}

// Submit runs admission for the caller. Accepted submissions return 201,
// policy rejections 422 with the findings.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var input types.SubmissionInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.admission.Submit(r.Context(), userID, input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSubmission) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to process submission")
		return
	}

	if !result.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, result)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *SubmissionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter types.SubmissionFilter
	if filter.UserID, err = parseOptionalUserID(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		if filter.Status, err = types.ParseSubmissionStatus(raw); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	items, total, err := h.submissions.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list submissions")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Submission]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *SubmissionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "submissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	submission, err := h.submissions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "submission not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch submission")
		return
	}

	writeJSON(w, http.StatusOK, submission)
}

func (h *SubmissionHandler) Review(w http.ResponseWriter, r *http.Request) {
	reviewerID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	id, err := parseIDParam(r, "submissionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var decision services.ReviewDecision
	if err := decodeJSON(w, r, &decision); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	submission, err := h.submissions.Review(r.Context(), id, reviewerID, decision)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "submission not found")
		case errors.Is(err, services.ErrInvalidReview):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to review submission")
		}
		return
	}

	writeJSON(w, http.StatusOK, submission)
}
