package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/honeynil/auth-gateway/internal/infrastructure/auth"
	"github.com/honeynil/auth-gateway/internal/infrastructure/observability"
	"github.com/honeynil/auth-gateway/internal/models"
	service "github.com/honeynil/auth-gateway/internal/services"
	pkgerrors "github.com/honeynil/auth-gateway/pkg/errors"
)

const maxRequestBytes = 1 << 20

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	service service.GatewayService
	health  HealthChecker
}

func NewHandler(s service.GatewayService, health HealthChecker) *Handler {
	return &Handler{service: s, health: health}
}

type errorResponse struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/refresh", h.Refresh).Methods("POST")
	r.HandleFunc("/reset-password", h.ResetPassword).Methods("POST")
	r.HandleFunc("/healthz", h.Health).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router, authenticate func(http.Handler) http.Handler) {
	r.Handle("/logout", authenticate(http.HandlerFunc(h.Logout))).Methods("POST")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email                string `json:"email"`
		Password             string `json:"password"`
		ConfirmPassword      string `json:"confirm_password"`
		ConfirmPasswordCamel string `json:"confirmPassword"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	if req.ConfirmPassword == "" {
		req.ConfirmPassword = req.ConfirmPasswordCamel
	}

	result, err := h.service.Register(r.Context(), &models.RegisterRequest{
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	pair, err := h.service.Login(r.Context(), &req)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	pair, err := h.service.Refresh(r.Context(), req.Token)
	if err != nil {
		writeTokenError(w, r, err, models.TokenKindRefresh)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		WriteAccessError(w, r, pkgerrors.ErrNoCredentials)
		return
	}

	if err := h.service.Logout(r.Context(), identity); err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User has been signed out"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	info, err := h.service.ResetPassword(r.Context(), req.Email)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ping(r.Context()); err != nil {
		observability.Logger(r.Context()).Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
