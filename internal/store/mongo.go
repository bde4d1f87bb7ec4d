package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/search"
)

// MongoStore handles listing CRUD in MongoDB.
type MongoStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("listings"), now: time.Now}
}

// EnsureIndexes creates the indexes used by owner lookups and searches.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "regularPrice", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, l *models.Listing) (*models.Listing, error) {
	now := s.now().UTC()
	l.ID = primitive.NilObjectID
	l.CreatedAt = now
	l.UpdatedAt = now
	res, err := s.col.InsertOne(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("mongo insert: %w", err)
	}
	l.ID = res.InsertedID.(primitive.ObjectID)
	return l, nil
}

func (s *MongoStore) GetByID(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var l models.Listing
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	return &l, nil
}

// Update replaces the editable fields of listing id and returns the stored result.
func (s *MongoStore) Update(ctx context.Context, id string, in models.ListingInput) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	set := listingSet(in)
	set["updatedAt"] = s.now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var l models.Listing
	err = s.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongo update: %w", err)
	}
	return &l, nil
}

func listingSet(in models.ListingInput) bson.M {
	return bson.M{
		"name":            in.Name,
		"description":     in.Description,
		"address":         in.Address,
		"type":            in.Type,
		"regularPrice":    in.RegularPrice,
		"discountedPrice": in.DiscountedPrice,
		"bedrooms":        in.Bedrooms,
		"bathrooms":       in.Bathrooms,
		"furnished":       in.Furnished,
		"parking":         in.Parking,
		"offer":           in.Offer,
		"imageUrls":       in.ImageURLs,
	}
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return s.find(ctx, bson.M{"ownerId": ownerID}, opts)
}

// Search runs a parsed listing search.
func (s *MongoStore) Search(ctx context.Context, q search.Query) ([]models.Listing, error) {
	return s.find(ctx, SearchFilter(q), SearchOptions(q))
}

func (s *MongoStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Listing, error) {
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find: %w", err)
	}
	defer cur.Close(ctx)

	docs := []models.Listing{}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode: %w", err)
	}
	return docs, nil
}

// SearchFilter translates q into a MongoDB filter. Booleans that are not
// restricted are omitted, which matches both values.
func SearchFilter(q search.Query) bson.M {
	filter := bson.M{}
	if q.SearchTerm != "" {
		filter["name"] = bson.M{"$regex": regexp.QuoteMeta(q.SearchTerm), "$options": "i"}
	}
	if q.Type != nil {
		filter["type"] = *q.Type
	} else {
		filter["type"] = bson.M{"$in": bson.A{models.ListingTypeSale, models.ListingTypeRent}}
	}
	if q.OnlyOffer {
		filter["offer"] = true
	}
	if q.OnlyFurnished {
		filter["furnished"] = true
	}
	if q.OnlyParking {
		filter["parking"] = true
	}
	return filter
}

// SearchOptions sorts by q.Sort then _id, and applies skip/limit.
func SearchOptions(q search.Query) *options.FindOptions {
	dir := -1
	if q.Ascending {
		dir = 1
	}
	return options.Find().
		SetSort(bson.D{{Key: q.Sort, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(q.StartIndex)).
		SetLimit(int64(q.Limit))
}
