package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// Extractor locates products inside arbitrary JSON payloads and maps them onto
// models.Item using static candidate-key tables.
type Extractor struct {
	ContainerKeys  []string
	PaginationKeys []string
	Fields         FieldTable

	// ProductURLPrefix is joined with the item ID to build ProductURL. Empty
	// disables the derived URL.
	ProductURLPrefix string

	// Fallback decides HasMore when no pagination key is present. The default
	// assumes more pages whenever the current page produced items.
	Fallback func(itemCount int) bool
}

// NewExtractor returns an extractor using the default tables.
func NewExtractor(productURLPrefix string) *Extractor {
	return &Extractor{
		ContainerKeys:    DefaultContainerKeys,
		PaginationKeys:   DefaultPaginationKeys,
		Fields:           DefaultFieldTable,
		ProductURLPrefix: strings.TrimSuffix(productURLPrefix, "/"),
		Fallback:         OptimisticFallback,
	}
}

// OptimisticFallback reports more pages whenever the last page was non-empty.
func OptimisticFallback(itemCount int) bool {
	return itemCount > 0
}

// Decode parses a response body, keeping numbers as json.Number so large IDs
// survive unchanged.
func Decode(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode payload: trailing data after JSON value")
	}
	return payload, nil
}

// LocateList returns the product records of payload. The first container key
// that is present and holds a list wins; a top-level list is returned as is.
// An unrecognised shape yields nil.
func (e *Extractor) LocateList(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range e.ContainerKeys {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// MapFields builds an Item from one raw record. Each field takes the value of
// its first present candidate key; missing fields stay zero. Records without a
// resolvable identity are still returned.
func (e *Extractor) MapFields(raw any) *models.Item {
	item := &models.Item{}
	record, ok := raw.(map[string]any)
	if !ok {
		return item
	}

	if v, ok := e.lookup(record, FieldID); ok {
		item.ID = toString(v)
	}
	if v, ok := e.lookup(record, FieldName); ok {
		item.Name = toString(v)
	}
	if v, ok := e.lookup(record, FieldBrand); ok {
		item.Brand = toString(v)
	}
	if v, ok := e.lookup(record, FieldPrice); ok {
		item.Price = toFloatPtr(v)
	}
	if v, ok := e.lookup(record, FieldListPrice); ok {
		item.ListPrice = toFloatPtr(v)
	}
	if v, ok := e.lookup(record, FieldDescription); ok {
		item.Description = toString(v)
	}
	if v, ok := e.lookup(record, FieldImages); ok {
		item.Images = toImageList(v)
	}
	if v, ok := e.lookup(record, FieldRating); ok {
		item.Rating = toFloatPtr(v)
	}
	if v, ok := e.lookup(record, FieldRatingCount); ok {
		item.RatingCount = toIntPtr(v)
	}
	if v, ok := e.lookup(record, FieldSizes); ok {
		item.Sizes = toStringList(v)
	}
	if v, ok := e.lookup(record, FieldColors); ok {
		item.Colors = toStringList(v)
	}

	if item.ID != "" && e.ProductURLPrefix != "" {
		item.ProductURL = e.ProductURLPrefix + "/" + item.ID
	}
	return item
}

// HasMore reports whether another page is expected after pagesFetched pages.
// Boolean flags, objects carrying such a flag and a totalPages count are
// honoured in key priority order; otherwise Fallback decides.
func (e *Extractor) HasMore(payload any, pagesFetched, itemCount int) bool {
	if record, ok := payload.(map[string]any); ok {
		for _, key := range e.PaginationKeys {
			value, present := record[key]
			if !present {
				continue
			}
			switch v := value.(type) {
			case bool:
				return v
			case map[string]any:
				for _, flag := range nestedFlagKeys {
					if b, ok := v[flag].(bool); ok {
						return b
					}
				}
			case json.Number:
				if key == "totalPages" {
					if total, err := v.Int64(); err == nil {
						return int64(pagesFetched) < total
					}
				}
			case float64:
				if key == "totalPages" {
					return float64(pagesFetched) < v
				}
			}
		}
	}

	fallback := e.Fallback
	if fallback == nil {
		fallback = OptimisticFallback
	}
	return fallback(itemCount)
}

func (e *Extractor) lookup(record map[string]any, field Field) (any, bool) {
	for _, key := range e.Fields[field] {
		if v, ok := record[key]; ok {
			return v, true
		}
	}
	return nil, false
}
