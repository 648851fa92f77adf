package handler

import (
	"net/http"

	"github.com/Syddevv/SpenSyd-Server/internal/application/activity"
	"github.com/Syddevv/SpenSyd-Server/internal/domain"
)

// ActivityHandler handles the activity feed.
type ActivityHandler struct {
	svc activity.Service
}

func NewActivityHandler(svc activity.Service) *ActivityHandler { return &ActivityHandler{svc: svc} }

type addActivityBody struct {
	Activity domain.CreateActivityRequest `json:"activity"`
}

func (h *ActivityHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	var body addActivityBody
	if !decode(w, r, &body) {
		return
	}
	a, err := h.svc.Add(r.Context(), userID, body.Activity)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ActivityEnvelope{Activity: a})
}

func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFrom(w, r)
	if !ok {
		return
	}
	list, err := h.svc.Recent(r.Context(), userID)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivitiesEnvelope{Activities: list})
}
