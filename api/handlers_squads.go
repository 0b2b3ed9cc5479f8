package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rmacedo/patrol-ops/models"
)

func (h *Handlers) CreateSquad(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}

	var req createSquadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || len(req.Members) == 0 {
		respondError(w, http.StatusBadRequest, "name and members are required")
		return
	}

	squad := &models.Squad{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Members: req.Members,
	}
	if err := h.store.CreateSquad(squad); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, squad)
}

func (h *Handlers) ListSquads(w http.ResponseWriter, r *http.Request) {
	squads, err := h.store.ListSquads()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list squads")
		return
	}
	respondJSON(w, http.StatusOK, squads)
}

func (h *Handlers) GetSquad(w http.ResponseWriter, r *http.Request) {
	squad, err := h.store.GetSquad(mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, squad)
}

func (h *Handlers) RenameSquad(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}
	var req renameSquadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.RenameSquad(mux.Vars(r)["id"], req.Name); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handlers) DeleteSquad(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}
	if err := h.store.DeleteSquad(mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handlers) InsertSquadMember(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.InsertSquadMember(mux.Vars(r)["id"], req.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handlers) RemoveSquadMember(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.store.RemoveSquadMember(mux.Vars(r)["id"], req.UserID); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
