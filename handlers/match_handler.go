package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dosada05/smk-league/middleware"
	"github.com/Dosada05/smk-league/models"
	"github.com/Dosada05/smk-league/services"
)

type MatchHandler struct {
	matchService  services.MatchService
	reportService services.ReportService
}

func NewMatchHandler(matchService services.MatchService, reportService services.ReportService) *MatchHandler {
	return &MatchHandler{
		matchService:  matchService,
		reportService: reportService,
	}
}

func (h *MatchHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetByID(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *MatchHandler) GetReportStatus(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	status, err := h.reportService.GetStatus(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report_status": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitReportRequest struct {
	ReportingSlot int             `json:"reporting_slot"`
	Score1        int             `json:"score1"`
	Score2        int             `json:"score2"`
	Details       json.RawMessage `json:"details,omitempty"`
}

func (h *MatchHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req submitReportRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	role, err := middleware.GetUserRoleFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	competitorID, err := middleware.GetCompetitorIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	status, err := h.reportService.Submit(r.Context(), services.SubmitReportInput{
		MatchID:           matchID,
		Slot:              req.ReportingSlot,
		Score1:            req.Score1,
		Score2:            req.Score2,
		Details:           req.Details,
		ActorUserID:       userID,
		ActorRole:         role,
		ActorCompetitorID: competitorID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"report_status": status}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type submitResultRequest struct {
	Score1  int             `json:"score1"`
	Score2  int             `json:"score2"`
	Details json.RawMessage `json:"details,omitempty"`
	Version int             `json:"version"`
}

// SubmitResult is the admin direct edit through the concurrency controller.
func (h *MatchHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	h.adminWrite(w, r, h.matchService.SubmitResult)
}

// ResolveMismatch adjudicates a match whose two reports disagree.
func (h *MatchHandler) ResolveMismatch(w http.ResponseWriter, r *http.Request) {
	h.adminWrite(w, r, h.matchService.ResolveMismatch)
}

func (h *MatchHandler) adminWrite(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, input services.SubmitResultInput) (*models.Match, error)) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var req submitResultRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	match, err := op(r.Context(), services.SubmitResultInput{
		MatchID:     matchID,
		Score1:      req.Score1,
		Score2:      req.Score2,
		Details:     req.Details,
		Version:     req.Version,
		ActorUserID: userID,
	})
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
