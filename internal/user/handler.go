// Package user serves account self-service: profile reads, updates, account
// deletion and the caller's own listings.
package user

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/auth"
	"github.com/ayush/estate-marketplace/internal/events"
	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/store"
	"github.com/ayush/estate-marketplace/internal/validation"
)

const msgNotFound = "User not found"

// UserStore defines the interface for user persistence.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ListingLister returns the listings a user owns.
type ListingLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
}

// Handler holds user HTTP handlers.
type Handler struct {
	users    UserStore
	listings ListingLister
	cookies  auth.Cookies
	events   events.Publisher
}

func NewHandler(users UserStore, listings ListingLister, cookies auth.Cookies, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Handler{users: users, listings: listings, cookies: cookies, events: pub}
}

type userResponse struct {
	Message string            `json:"message"`
	User    models.PublicUser `json:"user"`
}

// Get returns the public profile of any user, used to contact an owner.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUserByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, r, apierror.NotFound(msgNotFound))
		return
	}
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, u.Public())
}

// Update changes the caller's own profile. A new password is hashed before
// it is stored.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r, "You can only update your account")
	if !ok {
		return
	}

	var req models.UpdateUserRequest
	if err := validation.Decode(r.Body, &req); err != nil {
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}

	upd := models.UserUpdate{Username: req.Username, Email: req.Email, Avatar: req.Avatar}
	if req.Password != nil {
		hashed, err := auth.HashPassword(*req.Password)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			apierror.Write(w, r, apierror.Validation(err.Error()))
			return
		}
		if err != nil {
			apierror.Write(w, r, err)
			return
		}
		upd.Password = &hashed
	}

	var (
		u   *models.User
		err error
	)
	if upd.Empty() {
		u, err = h.users.GetUserByID(r.Context(), id)
	} else {
		u, err = h.users.UpdateUser(r.Context(), id, upd)
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		apierror.Write(w, r, apierror.NotFound(msgNotFound))
		return
	case errors.Is(err, store.ErrConflict):
		apierror.Write(w, r, apierror.Conflict("Please try using a different username or email address."))
		return
	case err != nil:
		apierror.Write(w, r, err)
		return
	}

	apierror.WriteJSON(w, http.StatusOK, userResponse{Message: "User updated successfully", User: u.Public()})
}

// Delete removes the caller's account and signs them out. Their listings are
// left in place.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r, "You can only delete your account")
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierror.Write(w, r, apierror.NotFound(msgNotFound))
			return
		}
		apierror.Write(w, r, err)
		return
	}

	h.cookies.Clear(w)
	h.events.UserDeleted(r.Context(), id)
	logging.Ctx(r.Context()).Info().Str("user_id", id).Msg("user deleted")
	apierror.WriteJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// Listings returns the caller's own listings, newest first.
func (h *Handler) Listings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.self(w, r, "you can only view your own listings")
	if !ok {
		return
	}

	listings, err := h.listings.ListByOwner(r.Context(), id)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	apierror.WriteJSON(w, http.StatusOK, listings)
}

// self returns the caller's id when it matches the {id} in the URL.
func (h *Handler) self(w http.ResponseWriter, r *http.Request, denied string) (string, bool) {
	id, _ := auth.IdentityFrom(r.Context())
	if id.UserID == "" || id.UserID != chi.URLParam(r, "id") {
		apierror.Write(w, r, apierror.Unauthorized(denied))
		return "", false
	}
	return id.UserID, true
}
