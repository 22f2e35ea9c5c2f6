package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technosupport/fusion-pipeline/internal/data"
)

// ZoneService is the area repository slice the arming endpoints need.
type ZoneService interface {
	GetByID(ctx context.Context, id uuid.UUID) (*data.Area, error)
	UpdateArmedState(ctx context.Context, id uuid.UUID, state data.ArmedState) error
}

// ArmingHandler exposes the operator arm/disarm action. This is the
// external transition the evaluator never performs itself: the only
// way out of triggered is through here.
type ArmingHandler struct {
	Areas ZoneService
}

func NewArmingHandler(areas ZoneService) *ArmingHandler {
	return &ArmingHandler{Areas: areas}
}

func (h *ArmingHandler) GetArming(w http.ResponseWriter, r *http.Request) {
	area, ok := h.loadArea(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"area_id":     area.ID.String(),
		"armed_state": string(area.ArmedState),
	})
}

type armingRequest struct {
	ArmedState data.ArmedState `json:"armed_state"`
}

func (h *ArmingHandler) PutArming(w http.ResponseWriter, r *http.Request) {
	area, ok := h.loadArea(w, r)
	if !ok {
		return
	}

	var req armingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if !data.ValidArmedState(req.ArmedState) {
		http.Error(w, "invalid armed state", http.StatusBadRequest)
		return
	}
	// Operators cannot set triggered directly; only the evaluator does.
	if req.ArmedState == data.ArmedStateTriggered {
		http.Error(w, "triggered is not an operator state", http.StatusUnprocessableEntity)
		return
	}

	if err := h.Areas.UpdateArmedState(r.Context(), area.ID, req.ArmedState); err != nil {
		http.Error(w, "failed to update armed state", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"area_id":     area.ID.String(),
		"armed_state": string(req.ArmedState),
	})
}

func (h *ArmingHandler) loadArea(w http.ResponseWriter, r *http.Request) (*data.Area, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "areaID"))
	if err != nil {
		http.Error(w, "invalid area id", http.StatusBadRequest)
		return nil, false
	}
	area, err := h.Areas.GetByID(r.Context(), id)
	if errors.Is(err, data.ErrRecordNotFound) {
		http.Error(w, "area not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "failed to load area", http.StatusInternalServerError)
		return nil, false
	}
	return area, true
}
