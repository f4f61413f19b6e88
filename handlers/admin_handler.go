package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/smk-league/repositories"
	"github.com/Dosada05/smk-league/services"
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// AdminHandler serves moderation surfaces: stuck reports and the audit
// trail.
type AdminHandler struct {
	reportService services.ReportService
	auditRepo     repositories.AuditRepository
}

func NewAdminHandler(reportService services.ReportService, auditRepo repositories.AuditRepository) *AdminHandler {
	return &AdminHandler{
		reportService: reportService,
		auditRepo:     auditRepo,
	}
}

// ListStaleReports returns pending reports older than the escalation TTL,
// oldest first, so admins can chase unconfirmed matches.
func (h *AdminHandler) ListStaleReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reportService.ListStale(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"stale_reports": reports}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *AdminHandler) ListAuditEntries(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed <= 0 {
			badRequestResponse(w, r, errInvalidLimit)
			return
		}
		limit = parsed
	}

	entries, err := h.auditRepo.ListRecent(r.Context(), limit)
	if err != nil {
		serverErrorResponse(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"audit_entries": entries}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
