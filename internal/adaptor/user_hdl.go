package adaptor

import (
	"encoding/json"
	"net/http"

	"tcg-server/internal/dto/request"
	"tcg-server/internal/usecase"
	"tcg-server/pkg/utils"

	"go.uber.org/zap"
)

// UserHandler serves the account endpoints behind the session middleware.
type UserHandler struct {
	service usecase.AuthService
	log     *zap.Logger
}

func NewUserHandler(service usecase.AuthService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		log:     log.With(zap.String("handler", "user")),
	}
}

// GetProfile handles GET /api/users/me
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetTokenFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, usecase.MsgLoginRequired)
		return
	}

	profile, err := h.service.GetUserInfo(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.log, err, "get profile")
		return
	}

	utils.ResponseSuccess(w, "Profile retrieved successfully", profile)
}

// ChangePassword handles PUT /api/users/me/password
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetTokenFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, usecase.MsgLoginRequired)
		return
	}

	var req request.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.ChangePassword(r.Context(), token, &req); err != nil {
		writeServiceError(w, h.log, err, "change password")
		return
	}

	utils.ResponseSuccess(w, "Password changed successfully", nil)
}

// DeleteAccount handles DELETE /api/users/me
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	token, ok := utils.GetTokenFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, usecase.MsgLoginRequired)
		return
	}

	var req request.DeleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), token, &req); err != nil {
		writeServiceError(w, h.log, err, "delete account")
		return
	}

	utils.ResponseSuccess(w, "Account deleted", nil)
}
