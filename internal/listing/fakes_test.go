package listing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/search"
	"github.com/ayush/estate-marketplace/internal/store"
)

type memListings struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]models.Listing
	now  time.Time
}

func newMemListings() *memListings {
	return &memListings{docs: map[primitive.ObjectID]models.Listing{}, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memListings) Insert(_ context.Context, l *models.Listing) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(time.Minute)
	l.ID = primitive.NewObjectID()
	l.CreatedAt = m.now
	l.UpdatedAt = m.now
	m.docs[l.ID] = *l
	cp := *l
	return &cp, nil
}

func (m *memListings) GetByID(_ context.Context, id string) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	l, ok := m.docs[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &l, nil
}

func (m *memListings) Update(_ context.Context, id string, in models.ListingInput) (*models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	l, ok := m.docs[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	l.SetInput(in)
	l.UpdatedAt = m.now.Add(time.Hour)
	m.docs[oid] = l
	return &l, nil
}

func (m *memListings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	if _, ok := m.docs[oid]; !ok {
		return store.ErrNotFound
	}
	delete(m.docs, oid)
	return nil
}

func (m *memListings) Search(_ context.Context, q search.Query) ([]models.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Listing
	for _, l := range m.docs {
		if q.Matches(&l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return q.Less(&out[i], &out[j]) })
	if q.StartIndex >= len(out) {
		return []models.Listing{}, nil
	}
	out = out[q.StartIndex:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memListings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

type memFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	removed []string
	// failOn makes the n-th Upload call (1-based) fail.
	failOn  int
	uploads int
}

func newMemFiles() *memFiles {
	return &memFiles{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *memFiles) Upload(_ context.Context, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.failOn != 0 && f.uploads == f.failOn {
		return errors.New("minio put: connection reset")
	}
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *memFiles) Download(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return data, f.types[key], nil
}

func (f *memFiles) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

type memViews struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemViews() *memViews { return &memViews{counts: map[string]int64{}} }

func (v *memViews) Increment(_ context.Context, id string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.counts[id]++
	return v.counts[id], nil
}

func (v *memViews) Count(_ context.Context, id string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.counts[id], nil
}

func (v *memViews) Reset(_ context.Context, id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.counts, id)
	return nil
}

type recordedEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (e *recordedEvents) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, s)
}

func (e *recordedEvents) ListingCreated(context.Context, *models.Listing) { e.add("listing.created") }
func (e *recordedEvents) ListingDeleted(context.Context, *models.Listing) { e.add("listing.deleted") }
func (e *recordedEvents) UserDeleted(context.Context, string)             { e.add("user.deleted") }
