package auth

import (
	"errors"
	"net/http"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/metrics"
	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/store"
	"github.com/ayush/estate-marketplace/internal/validation"
)

const (
	msgSignupConflict = "Please try using a different username or email address."
	msgAuthenticated  = "User authenticated successfully"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc     *Service
	users   UserStore
	cookies Cookies
}

func NewHandler(svc *Service, users UserStore, cookies Cookies) *Handler {
	return &Handler{svc: svc, users: users, cookies: cookies}
}

type authResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		metrics.AuthAttempts.WithLabelValues("signup", "invalid").Inc()
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, ErrUserExists):
		metrics.AuthAttempts.WithLabelValues("signup", "conflict").Inc()
		apierror.Write(w, r, apierror.Conflict(msgSignupConflict))
		return
	case errors.Is(err, ErrMissingFields), errors.Is(err, ErrPasswordTooLong):
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	case err != nil:
		apierror.Write(w, r, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("signup", "success").Inc()
	logging.Ctx(r.Context()).Info().Str("user_id", user.ID).Msg("user registered")
	apierror.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

// Login authenticates a user and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		apierror.Write(w, r, apierror.Validation("All fields are required"))
		return
	}

	user, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		metrics.AuthAttempts.WithLabelValues("signin", "failure").Inc()
		apierror.Write(w, r, apierror.Unauthenticated("Invalid credentials"))
		return
	}
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("signin", "success").Inc()
	h.cookies.Set(w, token)
	apierror.WriteJSON(w, http.StatusOK, authResponse{Message: msgAuthenticated, User: user.Public()})
}

// Federated signs in a user whose identity an external provider vouched for.
func (h *Handler) Federated(w http.ResponseWriter, r *http.Request) {
	var req models.FederatedLoginRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}

	user, token, err := h.svc.LoginFederated(r.Context(), req.Email, req.DisplayName, req.AvatarURL)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	metrics.AuthAttempts.WithLabelValues("federated", "success").Inc()
	h.cookies.Set(w, token)
	apierror.WriteJSON(w, http.StatusOK, authResponse{Message: msgAuthenticated, User: user.Public()})
}

// Logout clears the session cookie. The token itself stays valid until it
// expires; nothing is revoked server-side.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w)
	apierror.WriteJSON(w, http.StatusOK, map[string]string{"message": "User signed out successfully"})
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		apierror.Write(w, r, apierror.Unauthenticated("No token, authorization denied"))
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id.UserID)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, r, apierror.NotFound("User not found"))
		return
	}
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, user.Public())
}
