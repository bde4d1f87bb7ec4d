package listing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/ayush/estate-marketplace/internal/apierror"
	"github.com/ayush/estate-marketplace/internal/auth"
	"github.com/ayush/estate-marketplace/internal/models"
)

const (
	imageBase     = "/api/images"
	externalImage = "https://cdn.example.com/a.png"
)

type fixture struct {
	router   http.Handler
	listings *memListings
	files    *memFiles
	views    *memViews
	events   *recordedEvents
}

// asUser stands in for the auth guard: the X-Test-User header becomes the
// caller identity.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get("X-Test-User"); u != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: u}))
		}
		next.ServeHTTP(w, r)
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		listings: newMemListings(),
		files:    newMemFiles(),
		views:    newMemViews(),
		events:   &recordedEvents{},
	}
	h := NewHandler(f.listings, f.files, f.views, f.events, imageBase)

	r := chi.NewRouter()
	r.Use(asUser)
	r.Post("/api/listing", h.Create)
	r.Post("/api/listing/images", h.UploadImages)
	r.Get("/api/listing/{id}", h.Get)
	r.Put("/api/listing/{id}", h.Update)
	r.Delete("/api/listing/{id}", h.Delete)
	r.Post("/api/listing/{id}/views", h.RecordView)
	r.Get("/api/listings", h.Search)
	r.Get("/api/images/*", h.GetImage)
	f.router = r
	return f
}

func (f *fixture) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func listingJSON(name, typ string, price float64, offer bool) string {
	discount := 0.0
	if offer {
		discount = price / 2
	}
	return fmt.Sprintf(`{"name":%q,"description":"d","address":"a","type":%q,"regularPrice":%v,"discountedPrice":%v,"bedrooms":2,"bathrooms":1,"furnished":false,"parking":true,"offer":%v,"imageUrls":[%q]}`,
		name, typ, price, discount, offer, externalImage)
}

func withImage(body, url string) string {
	return strings.Replace(body, externalImage, url, 1)
}

func (f *fixture) create(t *testing.T, owner, body string) *models.Listing {
	t.Helper()
	rec := f.do(http.MethodPost, "/api/listing", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp listingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Listing
}

func errMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var b apierror.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	require.False(t, b.Success)
	require.Equal(t, rec.Code, b.StatusCode)
	return b.Message
}

func TestCreate_OwnerIsCaller(t *testing.T) {
	f := newFixture(t)
	body := strings.Replace(listingJSON("Loft", "rent", 1000, false), `"name"`, `"ownerId":"mallory","name"`, 1)

	l := f.create(t, "alice", body)

	require.Equal(t, "alice", l.OwnerID)
	require.False(t, l.ID.IsZero())
	require.Equal(t, []string{"listing.created"}, f.events.subjects)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/listing", "alice", `{"name":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errMessage(t, rec), "description is required")

	body := strings.Replace(listingJSON("Loft", "rent", 1000, true), `"discountedPrice":500`, `"discountedPrice":1500`, 1)
	rec = f.do(http.MethodPost, "/api/listing", "alice", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errMessage(t, rec), "discountedPrice")
	require.Zero(t, f.listings.count())
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodGet, "/api/listing/"+l.ID.Hex(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Loft", got["name"])
	require.Equal(t, float64(0), got["views"])

	rec = f.do(http.MethodGet, "/api/listing/not-an-id", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, msgNotFound, errMessage(t, rec))
}

func TestUpdate_NotFoundBeforeForbidden(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodPut, "/api/listing/65a000000000000000000000", "bob", `{"name":"x"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPut, "/api/listing/"+l.ID.Hex(), "bob", `{"name":"Hijacked"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "You can only update your own listing", errMessage(t, rec))

	stored, err := f.listings.GetByID(context.Background(), l.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "Loft", stored.Name)
}

func TestUpdate_MergesAndKeepsOwner(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodPut, "/api/listing/"+l.ID.Hex(), "alice", `{"name":"Sunny Loft","regularPrice":1200}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp updateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Listing updated successfully", resp.Message)
	require.Equal(t, "Sunny Loft", resp.Listing.Name)
	require.Equal(t, float64(1200), resp.Listing.RegularPrice)
	require.Equal(t, "a", resp.Listing.Address)
	require.Equal(t, "alice", resp.Listing.OwnerID)
}

func TestUpdate_RejectsInvalidMerge(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodPut, "/api/listing/"+l.ID.Hex(), "alice", `{"type":"lease"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, errMessage(t, rec), "type must be one of")

	rec = f.do(http.MethodPut, "/api/listing/"+l.ID.Hex(), "alice", `{"imageUrls":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", withImage(listingJSON("Loft", "rent", 1000, false), imageBase+"/alice/a.png"))
	_, _ = f.views.Increment(context.Background(), l.ID.Hex())

	rec := f.do(http.MethodDelete, "/api/listing/"+l.ID.Hex(), "bob", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "You can only delete your own listing", errMessage(t, rec))
	require.Equal(t, 1, f.listings.count())

	rec = f.do(http.MethodDelete, "/api/listing/"+l.ID.Hex(), "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"Listing deleted successfully"}`, rec.Body.String())
	require.Zero(t, f.listings.count())
	require.Equal(t, []string{"alice/a.png"}, f.files.removed)
	require.Equal(t, []string{"listing.created", "listing.deleted"}, f.events.subjects)

	n, _ := f.views.Count(context.Background(), l.ID.Hex())
	require.Zero(t, n)

	rec = f.do(http.MethodDelete, "/api/listing/"+l.ID.Hex(), "alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDelete_SkipsExternalImages(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodDelete, "/api/listing/"+l.ID.Hex(), "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.files.removed)
}

func TestDelete_KeepsOtherUsersImages(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.files.Upload(context.Background(), "bob/photo.png", []byte("png"), "image/png"))

	// Stored directly, as a listing saved before upload prefixes were enforced.
	l, err := f.listings.Insert(context.Background(), &models.Listing{
		OwnerID:   "alice",
		Name:      "Loft",
		ImageURLs: []string{imageBase + "/bob/photo.png", imageBase + "/alice/own.png"},
	})
	require.NoError(t, err)

	rec := f.do(http.MethodDelete, "/api/listing/"+l.ID.Hex(), "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"alice/own.png"}, f.files.removed)
	require.Contains(t, f.files.objects, "bob/photo.png")
}

func TestCreate_RejectsOtherUsersImages(t *testing.T) {
	f := newFixture(t)

	body := withImage(listingJSON("Loft", "rent", 1000, false), imageBase+"/bob/photo.png")
	rec := f.do(http.MethodPost, "/api/listing", "alice", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgForeignImage, errMessage(t, rec))
	require.Zero(t, f.listings.count())

	f.create(t, "alice", withImage(listingJSON("Loft", "rent", 1000, false), imageBase+"/alice/own.png"))
}

func TestUpdate_RejectsOtherUsersImages(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	rec := f.do(http.MethodPut, "/api/listing/"+l.ID.Hex(), "alice", `{"imageUrls":["`+imageBase+`/bob/photo.png"]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, msgForeignImage, errMessage(t, rec))

	stored, err := f.listings.GetByID(context.Background(), l.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, []string{externalImage}, stored.ImageURLs)
}

func TestRecordView(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, "alice", listingJSON("Loft", "rent", 1000, false))

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/listing/"+l.ID.Hex()+"/views", "", "").Code)
	}
	rec := f.do(http.MethodPost, "/api/listing/"+l.ID.Hex()+"/views", "", "")
	require.JSONEq(t, `{"views":3}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/listing/65a000000000000000000000/views", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func searchNames(t *testing.T, f *fixture, query string) []string {
	t.Helper()
	rec := f.do(http.MethodGet, "/api/listings"+query, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	names := make([]string, 0, len(got))
	for _, l := range got {
		names = append(names, l.Name)
	}
	return names
}

func TestSearch_Filters(t *testing.T) {
	f := newFixture(t)
	f.create(t, "alice", listingJSON("Beach House", "sale", 500000, true))
	f.create(t, "alice", listingJSON("City Flat", "rent", 1500, false))
	f.create(t, "bob", listingJSON("beach hut", "rent", 800, true))

	require.ElementsMatch(t, []string{"Beach House", "beach hut"}, searchNames(t, f, "?searchTerm=BEACH"))
	require.ElementsMatch(t, []string{"City Flat", "beach hut"}, searchNames(t, f, "?type=rent"))
	require.Len(t, searchNames(t, f, "?type=all"), 3)
	require.Empty(t, searchNames(t, f, "?type=castle"))
	require.ElementsMatch(t, []string{"Beach House", "beach hut"}, searchNames(t, f, "?offer=true"))
	require.ElementsMatch(t, []string{"Beach House", "beach hut"}, searchNames(t, f, "?offer=1"))
	require.Len(t, searchNames(t, f, "?offer=false"), 3)
	require.Empty(t, searchNames(t, f, "?furnished=true"))
	require.Equal(t, []string{"beach hut", "City Flat", "Beach House"}, searchNames(t, f, "?sort=regularPrice&order=asc"))
	require.Equal(t, []string{"beach hut", "City Flat", "Beach House"}, searchNames(t, f, ""))
}

func TestSearch_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/listings?searchTerm=nothing", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearch_PagesConcatenate(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		f.create(t, "alice", listingJSON(fmt.Sprintf("Home %d", i), "sale", 1000, false))
	}

	all := searchNames(t, f, "?sort=regularPrice&limit=7")
	var paged []string
	for start := 0; start < 7; start += 3 {
		paged = append(paged, searchNames(t, f, fmt.Sprintf("?sort=regularPrice&limit=3&startIndex=%d", start))...)
	}
	require.Equal(t, all, paged)
	require.Len(t, searchNames(t, f, ""), 7)
	require.Len(t, searchNames(t, f, "?limit=abc"), 7)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/listing/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Test-User", "alice")
	return req
}

func TestUploadImages_RoundTrip(t *testing.T) {
	f := newFixture(t)
	img := pngBytes(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string][]byte{"Front.PNG": img}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		URLs []string `json:"urls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.URLs, 1)
	require.True(t, strings.HasPrefix(resp.URLs[0], imageBase+"/alice/"))
	require.True(t, strings.HasSuffix(resp.URLs[0], ".png"))

	rec = f.do(http.MethodGet, resp.URLs[0], "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, img, rec.Body.Bytes())
}

func TestUploadImages_RejectsNonImages(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string][]byte{"notes.txt": []byte("hello there")}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Only image files are allowed", errMessage(t, rec))
	require.Empty(t, f.files.objects)
}

func TestUploadImages_Count(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string][]byte{}))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	files := map[string][]byte{}
	for i := 0; i < MaxImages+1; i++ {
		files[fmt.Sprintf("%d.png", i)] = pngBytes(t)
	}
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, files))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, f.files.objects)
}

func TestUploadImages_FailureRemovesStoredObjects(t *testing.T) {
	f := newFixture(t)
	f.files.failOn = 2

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string][]byte{"a.png": pngBytes(t), "b.png": pngBytes(t)}))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, f.files.objects)
	require.Len(t, f.files.removed, 1)
	require.True(t, strings.HasPrefix(f.files.removed[0], "alice/"))
}

func TestUploadImages_InvalidFileStoresNothing(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, map[string][]byte{"a.png": pngBytes(t), "b.txt": []byte("plain text")}))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.files.uploads)
}

func TestRecordView_Unavailable(t *testing.T) {
	l := models.NewListing("alice", models.ListingInput{Name: "Loft"})
	listings := newMemListings()
	_, err := listings.Insert(context.Background(), l)
	require.NoError(t, err)

	h := NewHandler(listings, newMemFiles(), nil, nil, imageBase)
	r := chi.NewRouter()
	r.Post("/api/listing/{id}/views", h.RecordView)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/listing/"+l.ID.Hex()+"/views", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "View counting is unavailable", errMessage(t, rec))
}

func TestGetImage_Missing(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/images/alice/none.png", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
