// Package search turns listing search parameters into a Query.
//
// Boolean filters follow the marketplace's long-standing rule: an absent
// parameter and "false" both mean "don't care". Only a true value ("true",
// "1" or "yes") narrows the result. There is no way to ask for false
// explicitly.
package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/ayush/estate-marketplace/internal/models"
)

const (
	DefaultLimit = 9
	MaxLimit     = 100
)

// TypeAll matches sale and rent listings.
const TypeAll = "all"

// Sortable fields. Anything else falls back to SortCreatedAt.
const (
	SortCreatedAt    = "createdAt"
	SortRegularPrice = "regularPrice"
	SortName         = "name"
)

var sortable = map[string]bool{
	SortCreatedAt:    true,
	SortRegularPrice: true,
	SortName:         true,
}

// Query is a parsed listing search. A nil Type means sale and rent.
type Query struct {
	SearchTerm string
	Type       *string
	// OnlyOffer, OnlyFurnished and OnlyParking restrict to true when set;
	// otherwise both values match.
	OnlyOffer     bool
	OnlyFurnished bool
	OnlyParking   bool
	Sort          string
	Ascending     bool
	Limit         int
	StartIndex    int
}

// Parse reads the search parameters from v. Malformed numbers and unknown
// enum values fall back to defaults; it never fails.
func Parse(v url.Values) Query {
	q := Query{
		SearchTerm:    strings.TrimSpace(v.Get("searchTerm")),
		OnlyOffer:     truthy(v.Get("offer")),
		OnlyFurnished: truthy(v.Get("furnished")),
		OnlyParking:   truthy(v.Get("parking")),
		Sort:          SortCreatedAt,
		Ascending:     v.Get("order") == "asc",
		Limit:         DefaultLimit,
	}

	if t := strings.TrimSpace(v.Get("type")); t != "" && t != TypeAll {
		q.Type = &t
	}

	if s := v.Get("sort"); sortable[s] {
		q.Sort = s
	}

	if n, err := strconv.Atoi(v.Get("limit")); err == nil && n > 0 {
		q.Limit = min(n, MaxLimit)
	}
	if n, err := strconv.Atoi(v.Get("startIndex")); err == nil && n > 0 {
		q.StartIndex = n
	}
	return q
}

// truthy accepts the spellings of true a boolean query parameter may take.
func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Matches reports whether l satisfies q's filters.
func (q Query) Matches(l *models.Listing) bool {
	if q.SearchTerm != "" && !strings.Contains(strings.ToLower(l.Name), strings.ToLower(q.SearchTerm)) {
		return false
	}
	if q.Type != nil && l.Type != *q.Type {
		return false
	}
	if q.OnlyOffer && !l.Offer {
		return false
	}
	if q.OnlyFurnished && !l.Furnished {
		return false
	}
	if q.OnlyParking && !l.Parking {
		return false
	}
	return true
}

// Less orders a before b according to q's sort key and direction. Ties are
// broken by id in the same direction so pagination is stable.
func (q Query) Less(a, b *models.Listing) bool {
	var cmp int
	switch q.Sort {
	case SortRegularPrice:
		cmp = compare(a.RegularPrice, b.RegularPrice)
	case SortName:
		cmp = strings.Compare(a.Name, b.Name)
	default:
		cmp = compareTime(a, b)
	}
	if cmp == 0 {
		cmp = strings.Compare(a.ID.Hex(), b.ID.Hex())
	}
	if q.Ascending {
		return cmp < 0
	}
	return cmp > 0
}

func compare(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b *models.Listing) int {
	return a.CreatedAt.Compare(b.CreatedAt)
}
