package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ListingTypeSale = "sale"
	ListingTypeRent = "rent"
)

// Listing is a property document stored in MongoDB.
type Listing struct {
	ID              primitive.ObjectID `json:"id"              bson:"_id,omitempty"`
	OwnerID         string             `json:"ownerId"         bson:"ownerId"`
	Name            string             `json:"name"            bson:"name"`
	Description     string             `json:"description"     bson:"description"`
	Address         string             `json:"address"         bson:"address"`
	Type            string             `json:"type"            bson:"type"`
	RegularPrice    float64            `json:"regularPrice"    bson:"regularPrice"`
	DiscountedPrice float64            `json:"discountedPrice" bson:"discountedPrice"`
	Bedrooms        int                `json:"bedrooms"        bson:"bedrooms"`
	Bathrooms       int                `json:"bathrooms"       bson:"bathrooms"`
	Furnished       bool               `json:"furnished"       bson:"furnished"`
	Parking         bool               `json:"parking"         bson:"parking"`
	Offer           bool               `json:"offer"           bson:"offer"`
	ImageURLs       []string           `json:"imageUrls"       bson:"imageUrls"`
	CreatedAt       time.Time          `json:"createdAt"       bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"       bson:"updatedAt"`
}

// ListingInput is the JSON body for POST /api/listing and the validated
// shape of a listing after an update has been merged.
type ListingInput struct {
	Name            string   `json:"name"            validate:"required,max=200"`
	Description     string   `json:"description"     validate:"required,max=5000"`
	Address         string   `json:"address"         validate:"required,max=500"`
	Type            string   `json:"type"            validate:"required,oneof=sale rent"`
	RegularPrice    float64  `json:"regularPrice"    validate:"gte=0"`
	DiscountedPrice float64  `json:"discountedPrice" validate:"gte=0"`
	Bedrooms        int      `json:"bedrooms"        validate:"gte=0,lte=100"`
	Bathrooms       int      `json:"bathrooms"       validate:"gte=0,lte=100"`
	Furnished       bool     `json:"furnished"`
	Parking         bool     `json:"parking"`
	Offer           bool     `json:"offer"`
	ImageURLs       []string `json:"imageUrls"       validate:"min=1,max=6,dive,required,max=2048"`
}

// ListingUpdate is the JSON body for PUT /api/listing/{id}. Absent fields keep
// their stored value; the owner can never be changed.
type ListingUpdate struct {
	Name            *string   `json:"name"`
	Description     *string   `json:"description"`
	Address         *string   `json:"address"`
	Type            *string   `json:"type"`
	RegularPrice    *float64  `json:"regularPrice"`
	DiscountedPrice *float64  `json:"discountedPrice"`
	Bedrooms        *int      `json:"bedrooms"`
	Bathrooms       *int      `json:"bathrooms"`
	Furnished       *bool     `json:"furnished"`
	Parking         *bool     `json:"parking"`
	Offer           *bool     `json:"offer"`
	ImageURLs       *[]string `json:"imageUrls"`
}

// Input returns l's editable fields.
func (l *Listing) Input() ListingInput {
	return ListingInput{
		Name:            l.Name,
		Description:     l.Description,
		Address:         l.Address,
		Type:            l.Type,
		RegularPrice:    l.RegularPrice,
		DiscountedPrice: l.DiscountedPrice,
		Bedrooms:        l.Bedrooms,
		Bathrooms:       l.Bathrooms,
		Furnished:       l.Furnished,
		Parking:         l.Parking,
		Offer:           l.Offer,
		ImageURLs:       l.ImageURLs,
	}
}

// Apply merges the fields present in u into in.
func (u ListingUpdate) Apply(in ListingInput) ListingInput {
	if u.Name != nil {
		in.Name = *u.Name
	}
	if u.Description != nil {
		in.Description = *u.Description
	}
	if u.Address != nil {
		in.Address = *u.Address
	}
	if u.Type != nil {
		in.Type = *u.Type
	}
	if u.RegularPrice != nil {
		in.RegularPrice = *u.RegularPrice
	}
	if u.DiscountedPrice != nil {
		in.DiscountedPrice = *u.DiscountedPrice
	}
	if u.Bedrooms != nil {
		in.Bedrooms = *u.Bedrooms
	}
	if u.Bathrooms != nil {
		in.Bathrooms = *u.Bathrooms
	}
	if u.Furnished != nil {
		in.Furnished = *u.Furnished
	}
	if u.Parking != nil {
		in.Parking = *u.Parking
	}
	if u.Offer != nil {
		in.Offer = *u.Offer
	}
	if u.ImageURLs != nil {
		in.ImageURLs = *u.ImageURLs
	}
	return in
}

// NewListing builds an unsaved listing owned by ownerID.
func NewListing(ownerID string, in ListingInput) *Listing {
	l := &Listing{OwnerID: ownerID}
	l.SetInput(in)
	return l
}

// SetInput overwrites l's editable fields.
func (l *Listing) SetInput(in ListingInput) {
	l.Name = in.Name
	l.Description = in.Description
	l.Address = in.Address
	l.Type = in.Type
	l.RegularPrice = in.RegularPrice
	l.DiscountedPrice = in.DiscountedPrice
	l.Bedrooms = in.Bedrooms
	l.Bathrooms = in.Bathrooms
	l.Furnished = in.Furnished
	l.Parking = in.Parking
	l.Offer = in.Offer
	l.ImageURLs = in.ImageURLs
}
