package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Rating is one category answer on the 1..5 scale.
type Rating struct {
	Category string
	Value    int
}

// Ratings keeps category answers in submission order. It encodes as a JSON
// object and decoding preserves key order, which the gap extractor relies on
// for tie-breaking.
type Ratings []Rating

// Get returns the rating for category.
func (r Ratings) Get(category string) (int, bool) {
	for _, rt := range r {
		if rt.Category == category {
			return rt.Value, true
		}
	}
	return 0, false
}

// MarshalJSON encodes the ratings as an ordered JSON object.
func (r Ratings) MarshalJSON() ([]byte, error) {
	om := orderedmap.New[string, int](len(r))
	for _, rt := range r {
		om.Set(rt.Category, rt.Value)
	}
	return json.Marshal(om)
}

// UnmarshalJSON decodes a JSON object of category -> integer rating.
func (r *Ratings) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = nil
		return nil
	}
	om := orderedmap.New[string, int]()
	if err := json.Unmarshal(data, om); err != nil {
		return fmt.Errorf("ratings must be an object of integers: %w", err)
	}
	out := make(Ratings, 0, om.Len())
	for pair := om.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Rating{Category: pair.Key, Value: pair.Value})
	}
	*r = out
	return nil
}
