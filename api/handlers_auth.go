package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/auth"
)

func (h *Handlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.store.GetUserByEmail(req.Email)
	if err != nil || !auth.VerifyPassword(req.Password, user.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	pair, err := h.tokens.GenerateTokens(user.ID, user.Type)
	if err != nil {
		h.log.Error("token generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not sign in")
		return
	}

	user.RefreshToken = pair.RefreshToken
	if err := h.store.UpdateUser(user); err != nil {
		h.log.Error("refresh token persist failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not sign in")
		return
	}

	respondJSON(w, http.StatusOK, signInResponse{
		ID:           user.ID,
		Type:         string(user.Type),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims, err := h.tokens.VerifyRefresh(req.RefreshToken)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// The token must still be the one stored for the user it names.
	user, err := h.store.GetUserByRefreshToken(req.RefreshToken)
	if err != nil || user.ID != claims.SubjectID {
		respondError(w, http.StatusUnauthorized, "refresh token has a wrong payload")
		return
	}

	pair, err := h.tokens.GenerateTokens(user.ID, user.Type)
	if err != nil {
		h.log.Error("token generation failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not refresh")
		return
	}

	user.RefreshToken = pair.RefreshToken
	if err := h.store.UpdateUser(user); err != nil {
		h.log.Error("refresh token persist failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "could not refresh")
		return
	}

	respondJSON(w, http.StatusOK, signInResponse{
		ID:           user.ID,
		Type:         string(user.Type),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}
