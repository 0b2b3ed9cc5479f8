package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/db"
	"github.com/rmacedo/patrol-ops/models"
)

func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userType := models.UserType(req.Type)
	switch userType {
	case models.TypeManager, models.TypeOperator, models.TypePolice:
	default:
		respondError(w, http.StatusBadRequest, "invalid user type")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	user := &models.User{
		ID:       uuid.NewString(),
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
		Type:     userType,
		Status:   models.StatusNotWorking,
	}
	if err := h.store.CreateUser(user); err != nil {
		respondError(w, http.StatusInternalServerError, "could not create user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// ListFreeUsers lists police with no squad, for roster assembly.
func (h *Handlers) ListFreeUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListFreeUsers()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.GetUser(mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Email != "" {
		user.Email = req.Email
	}
	if req.Password != "" {
		hashed, err := auth.HashPassword(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "could not update user")
			return
		}
		user.Password = hashed
	}

	if err := h.store.UpdateUser(user); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if !requireManager(w, r) {
		return
	}
	if err := h.store.DeleteUser(mux.Vars(r)["id"]); err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handlers) GetUserStats(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(mux.Vars(r)["id"])
	if err != nil {
		respondStoreError(w, err)
		return
	}
	counts, err := h.store.CountUserReferences(user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not load stats")
		return
	}

	stats := models.UserStats{
		Work:        counts["work"],
		Occurrences: counts["occurrences"],
	}
	if user.Type == models.TypePolice {
		stats.Supported = counts["supported"]
	}
	respondJSON(w, http.StatusOK, stats)
}

func respondStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error")
}
