package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/storage"
	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/types"
)

const reportKeyPrefix = "reports/"

// ReportObjects opens exported report artifacts.
type ReportObjects interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// AdminServices groups the services behind the admin routes.
type AdminServices struct {
	Users      *services.UserService
	Rules      *services.RulesService
	Alerts     *services.AlertService
	Statistics *services.StatisticsService
	Reports    *services.ReportService
	// Objects is nil when object storage is disabled.
	Objects ReportObjects
}

// AdminHandler serves administrator endpoints.
type AdminHandler struct {
	svc AdminServices
}

func NewAdminHandler(svc AdminServices) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// AdminRouter registers admin routes. Every route requires an administrator.
func AdminRouter(r chi.Router, svc AdminServices, authMiddleware func(http.Handler) http.Handler) {
	handler := NewAdminHandler(svc)

	r.Use(authMiddleware, requireAdmin(svc.Users))
	r.Get("/rules", handler.GetRules)
	r.Put("/rules", handler.UpdateRules)
	r.Get("/alerts", handler.ListAlerts)
	r.Post("/alerts/{alertID}/acknowledge", handler.AcknowledgeAlert)
	r.Post("/users/{userID}/alerts/acknowledge", handler.AcknowledgeUserAlerts)
	r.Get("/statistics", handler.Statistics)
	r.Post("/reports", handler.GenerateReport)
	r.Get("/reports/object", handler.ReportObject)
}

func (h *AdminHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.Rules.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load rules")
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (h *AdminHandler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var rules types.DetectionRules
	if err := decodeJSON(w, r, &rules); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.svc.Rules.Update(r.Context(), rules)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRules) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update rules")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter types.AlertFilter
	if filter.UserID, err = parseOptionalUserID(r); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("acknowledged")); raw != "" {
		acknowledged, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid acknowledged flag")
			return
		}
		filter.Acknowledged = &acknowledged
	}

	items, total, err := h.svc.Alerts.List(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	writeJSON(w, http.StatusOK, ListResponse[types.GamingAlert]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *AdminHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "alertID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.svc.Alerts.Acknowledge(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alert")
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

// AcknowledgeResponse reports how many alerts changed state.
type AcknowledgeResponse struct {
	Acknowledged int `json:"acknowledged"`
}

func (h *AdminHandler) AcknowledgeUserAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.svc.Alerts.AcknowledgeUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to acknowledge alerts")
		return
	}
	writeJSON(w, http.StatusOK, AcknowledgeResponse{Acknowledged: n})
}

func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Statistics.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reports.Generate(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ReportObject streams an exported artifact named by ?key=.
func (h *AdminHandler) ReportObject(w http.ResponseWriter, r *http.Request) {
	if h.svc.Objects == nil {
		writeError(w, http.StatusNotFound, "report storage is not configured")
		return
	}

	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if !strings.HasPrefix(key, reportKeyPrefix) || path.Clean(key) != key {
		writeError(w, http.StatusBadRequest, "invalid report key")
		return
	}

	reader, err := h.svc.Objects.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to open report")
		return
	}
	defer reader.Close()

	contentType := "application/octet-stream"
	switch path.Ext(key) {
	case ".json":
		contentType = "application/json"
	case ".xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}
