package handlers

import (
	"net/http"

	"github.com/Dosada05/smk-league/middleware"
	"github.com/Dosada05/smk-league/services"
)

type CompetitorHandler struct {
	competitorService services.CompetitorService
}

func NewCompetitorHandler(competitorService services.CompetitorService) *CompetitorHandler {
	return &CompetitorHandler{competitorService: competitorService}
}

func (h *CompetitorHandler) List(w http.ResponseWriter, r *http.Request) {
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	competitors, err := h.competitorService.List(r.Context(), includeDeleted)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitors": competitors}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitorHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	competitorID, err := getIDFromURL(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	competitor, err := h.competitorService.GetByID(r.Context(), competitorID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input services.CompetitorUpsertInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	competitor, err := h.competitorService.Create(r.Context(), input, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"competitor": competitor}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitorHandler) Update(w http.ResponseWriter, r *http.Request) {
	competitorID, err := getIDFromURL(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.CompetitorUpsertInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	competitor, err := h.competitorService.Update(r.Context(), competitorID, input, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *CompetitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	competitorID, err := getIDFromURL(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	if err := h.competitorService.Delete(r.Context(), competitorID, userID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadAvatar takes the raw image body; content type selects the stored
// key's extension.
func (h *CompetitorHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	competitorID, err := getIDFromURL(r, "competitorID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}

	const maxAvatarBytes = 5 << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	defer r.Body.Close()

	competitor, err := h.competitorService.UploadAvatar(r.Context(), competitorID, r.Header.Get("Content-Type"), r.Body, userID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"competitor": competitor}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
