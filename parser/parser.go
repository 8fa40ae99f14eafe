package parser

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// ValidateItem ensures the extractor captured the fields a sink relies on.
func ValidateItem(item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item is nil")
	}
	if !item.HasIdentity() {
		return fmt.Errorf("item missing identity")
	}
	if strings.TrimSpace(item.Category) == "" {
		return fmt.Errorf("item %s missing category", item.ID)
	}
	return nil
}

// NormalizePrice drops any currency prefix, grouping separators and
// whitespace from a price string.
func NormalizePrice(price string) string {
	start := strings.IndexFunc(price, unicode.IsDigit)
	if start < 0 {
		return ""
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' {
			return r
		}
		return -1
	}, price[start:])
}

// NormalizeText collapses runs of whitespace and trims the result.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, key := range nameKeys {
			if inner, ok := t[key]; ok {
				return toString(inner)
			}
		}
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		cleaned := NormalizePrice(t)
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		return f, err == nil
	case map[string]any:
		for _, key := range amountKeys {
			if inner, ok := t[key]; ok {
				return toFloat(inner)
			}
		}
	}
	return 0, false
}

func toFloatPtr(v any) *float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func toIntPtr(v any) *int {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}

// toStringList accepts a list of scalars or a comma-separated string.
func toStringList(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	case []any:
		for _, entry := range t {
			if s := toString(entry); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := toString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// toImageList accepts a single URL, a list of URLs, or a list of objects
// carrying the URL under one of imageKeys.
func toImageList(v any) []string {
	var out []string
	appendURL := func(entry any) {
		switch t := entry.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, key := range imageKeys {
				if s, ok := t[key].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					return
				}
			}
		}
	}

	switch t := v.(type) {
	case []any:
		for _, entry := range t {
			appendURL(entry)
		}
	default:
		appendURL(t)
	}
	return out
}
