package auth

import (
	"net/http"

	"github.com/riddle015/riverhacks/internal/apperr"
	"github.com/riddle015/riverhacks/internal/respond"
	"github.com/riddle015/riverhacks/internal/utils"
)

type Handler struct {
	gw *Gateway
}

func NewHandler(gw *Gateway) *Handler {
	return &Handler{gw: gw}
}

type signupResponse struct {
	User *User `json:"user"`
	Token
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in RegisterInput
	if err := respond.Decode(r, &in); err != nil {
		respond.Error(w, err)
		return
	}
	user, err := h.gw.Register(r.Context(), in)
	if err != nil {
		respond.Error(w, err)
		return
	}
	tok, err := h.gw.IssueToken(user.ID.String())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, signupResponse{User: user, Token: tok})
}

type loginResponse struct {
	UserID string `json:"user_id"`
	Token
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var c Credentials
	if err := respond.Decode(r, &c); err != nil {
		respond.Error(w, err)
		return
	}
	subject, err := h.gw.Authenticate(r.Context(), c)
	if err != nil {
		respond.Error(w, err)
		return
	}
	tok, err := h.gw.IssueToken(subject)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, loginResponse{UserID: subject, Token: tok})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Unauthorized("authentication required"))
		return
	}
	user, err := h.gw.GetUser(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		respond.Error(w, apperr.Unauthorized("authentication required"))
		return
	}
	var req changePasswordRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, err)
		return
	}
	if err := h.gw.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		respond.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
