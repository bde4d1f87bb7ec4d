package listing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/auth"
	"github.com/ayush/estate-marketplace/internal/events"
	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/metrics"
	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/search"
	"github.com/ayush/estate-marketplace/internal/store"
	"github.com/ayush/estate-marketplace/internal/validation"
)

const (
	MaxImages    = 6
	MaxImageSize = 2 << 20

	msgNotFound     = "Listing not found"
	msgForeignImage = "You can only use images you uploaded"
)

// ListingStore defines the interface for listing persistence.
type ListingStore interface {
	Insert(ctx context.Context, l *models.Listing) (*models.Listing, error)
	GetByID(ctx context.Context, id string) (*models.Listing, error)
	Update(ctx context.Context, id string, in models.ListingInput) (*models.Listing, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q search.Query) ([]models.Listing, error)
}

// FileStore defines the interface for image storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Download(ctx context.Context, key string) ([]byte, string, error)
	Remove(ctx context.Context, key string) error
}

// ViewStore counts listing page views.
type ViewStore interface {
	Increment(ctx context.Context, listingID string) (int64, error)
	Count(ctx context.Context, listingID string) (int64, error)
	Reset(ctx context.Context, listingID string) error
}

// Handler holds listing HTTP handlers.
type Handler struct {
	listings  ListingStore
	images    FileStore
	views     ViewStore
	events    events.Publisher
	imageBase string
}

func NewHandler(listings ListingStore, images FileStore, views ViewStore, pub events.Publisher, imageBase string) *Handler {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Handler{listings: listings, images: images, views: views, events: pub, imageBase: imageBase}
}

type listingResponse struct {
	Message string          `json:"message"`
	Listing *models.Listing `json:"listing"`
}

type updateResponse struct {
	Message string          `json:"message"`
	Listing *models.Listing `json:"updatedListing"`
}

type listingWithViews struct {
	*models.Listing
	Views *int64 `json:"views,omitempty"`
}

// Create stores a new listing owned by the caller.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	var in models.ListingInput
	if err := validation.Decode(r.Body, &in); err != nil {
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}
	if !h.ownsImages(id.UserID, in.ImageURLs) {
		apierror.Write(w, r, apierror.Validation(msgForeignImage))
		return
	}

	l, err := h.listings.Insert(r.Context(), models.NewListing(id.UserID, in))
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	h.events.ListingCreated(r.Context(), l)
	logging.Ctx(r.Context()).Info().Str("listing_id", l.ID.Hex()).Str("owner_id", l.OwnerID).Msg("listing created")
	apierror.WriteJSON(w, http.StatusCreated, listingResponse{Message: "Listing created successfully", Listing: l})
}

// Get returns a single listing with its view count when one is available.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	l, ok := h.load(w, r)
	if !ok {
		return
	}

	resp := listingWithViews{Listing: l}
	if h.views != nil {
		n, err := h.views.Count(r.Context(), l.ID.Hex())
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("view count unavailable")
		} else {
			resp.Views = &n
		}
	}
	apierror.WriteJSON(w, http.StatusOK, resp)
}

// Update applies a partial update to a listing the caller owns.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadOwned(w, r, "You can only update your own listing")
	if !ok {
		return
	}

	var upd models.ListingUpdate
	if err := validation.Decode(r.Body, &upd); err != nil {
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}
	in := upd.Apply(l.Input())
	if err := validation.Struct(in); err != nil {
		apierror.Write(w, r, apierror.Validation(err.Error()))
		return
	}
	if !h.ownsImages(l.OwnerID, in.ImageURLs) {
		apierror.Write(w, r, apierror.Validation(msgForeignImage))
		return
	}

	updated, err := h.listings.Update(r.Context(), l.ID.Hex(), in)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, r, apierror.NotFound(msgNotFound))
		return
	}
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, updateResponse{Message: "Listing updated successfully", Listing: updated})
}

// Delete removes a listing the caller owns along with its hosted images.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadOwned(w, r, "You can only delete your own listing")
	if !ok {
		return
	}

	if err := h.listings.Delete(r.Context(), l.ID.Hex()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			apierror.Write(w, r, apierror.NotFound(msgNotFound))
			return
		}
		apierror.Write(w, r, err)
		return
	}

	h.removeImages(r.Context(), l)
	if h.views != nil {
		if err := h.views.Reset(r.Context(), l.ID.Hex()); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("listing_id", l.ID.Hex()).Msg("reset views")
		}
	}
	h.events.ListingDeleted(r.Context(), l)
	apierror.WriteJSON(w, http.StatusOK, map[string]string{"message": "Listing deleted successfully"})
}

// ownsImages reports whether every hosted URL in urls lives under ownerID's
// prefix. External URLs are not checked.
func (h *Handler) ownsImages(ownerID string, urls []string) bool {
	for _, u := range urls {
		key, err := store.ImageKey(h.imageBase, u)
		if err != nil {
			continue
		}
		if !ownedKey(ownerID, key) {
			return false
		}
	}
	return true
}

func ownedKey(ownerID, key string) bool {
	return ownerID != "" && strings.HasPrefix(key, ownerID+"/")
}

// removeImages deletes the hosted images of l that its owner uploaded.
func (h *Handler) removeImages(ctx context.Context, l *models.Listing) {
	if h.images == nil {
		return
	}
	for _, u := range l.ImageURLs {
		key, err := store.ImageKey(h.imageBase, u)
		if err != nil || !ownedKey(l.OwnerID, key) {
			continue
		}
		h.removeObject(ctx, key)
	}
}

func (h *Handler) removeObject(ctx context.Context, key string) {
	if err := h.images.Remove(ctx, key); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("remove image")
	}
}

// Search returns listings matching the query string filters.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := search.Parse(r.URL.Query())

	listings, err := h.listings.Search(r.Context(), q)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}

	metrics.ListingSearches.WithLabelValues(q.Sort).Inc()
	metrics.ListingSearchResults.Observe(float64(len(listings)))
	apierror.WriteJSON(w, http.StatusOK, listings)
}

// RecordView counts one view of an existing listing.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	l, ok := h.load(w, r)
	if !ok {
		return
	}
	if h.views == nil {
		apierror.Write(w, r, apierror.New(http.StatusServiceUnavailable, "View counting is unavailable"))
		return
	}

	n, err := h.views.Increment(r.Context(), l.ID.Hex())
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	apierror.WriteJSON(w, http.StatusOK, map[string]int64{"views": n})
}

// UploadImages stores up to MaxImages images for the caller and returns
// their public URLs, in the order they were sent.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, MaxImages*MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		apierror.Write(w, r, apierror.Validation("Images must be sent as multipart form data"))
		return
	}
	files := r.MultipartForm.File["images"]
	if len(files) == 0 || len(files) > MaxImages {
		apierror.Write(w, r, apierror.Validation("You can upload between 1 and 6 images"))
		return
	}

	type upload struct {
		key         string
		data        []byte
		contentType string
	}
	uploads := make([]upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > MaxImageSize {
			apierror.Write(w, r, apierror.Validation("Each image must be 2 MB or smaller"))
			return
		}
		f, err := fh.Open()
		if err != nil {
			apierror.Write(w, r, apierror.Validation("Unreadable image upload"))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
		f.Close()
		if err != nil || len(data) > MaxImageSize {
			apierror.Write(w, r, apierror.Validation("Each image must be 2 MB or smaller"))
			return
		}

		contentType := http.DetectContentType(data)
		if !strings.HasPrefix(contentType, "image/") {
			apierror.Write(w, r, apierror.Validation("Only image files are allowed"))
			return
		}

		key := id.UserID + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		uploads = append(uploads, upload{key: key, data: data, contentType: contentType})
	}

	urls := make([]string, 0, len(uploads))
	for i, up := range uploads {
		if err := h.images.Upload(r.Context(), up.key, up.data, up.contentType); err != nil {
			// Remove the objects stored so far.
			for _, done := range uploads[:i] {
				h.removeObject(r.Context(), done.key)
			}
			apierror.Write(w, r, err)
			return
		}
		urls = append(urls, store.ImageURL(h.imageBase, up.key))
	}

	logging.Ctx(r.Context()).Info().Str("user_id", id.UserID).Int("count", len(urls)).Msg("images uploaded")
	apierror.WriteJSON(w, http.StatusCreated, map[string][]string{"urls": urls})
}

// GetImage streams a stored image.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if key == "" || strings.Contains(key, "..") {
		apierror.Write(w, r, apierror.NotFound("Image not found"))
		return
	}

	data, ct, err := h.images.Download(r.Context(), key)
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, r, apierror.NotFound("Image not found"))
		return
	}
	if err != nil {
		apierror.Write(w, r, err)
		return
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Listing, bool) {
	l, err := h.listings.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		apierror.Write(w, r, apierror.NotFound(msgNotFound))
		return nil, false
	}
	if err != nil {
		apierror.Write(w, r, err)
		return nil, false
	}
	return l, true
}

// loadOwned loads the listing in the URL and checks the caller owns it.
// Existence is checked before ownership.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request, denied string) (*models.Listing, bool) {
	l, ok := h.load(w, r)
	if !ok {
		return nil, false
	}
	id, _ := auth.IdentityFrom(r.Context())
	if id.UserID == "" || id.UserID != l.OwnerID {
		apierror.Write(w, r, apierror.Forbidden(denied))
		return nil, false
	}
	return l, true
}
