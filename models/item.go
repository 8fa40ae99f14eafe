// Package models defines data structures for the harvester.
package models

import (
	"strings"
	"time"
)

// Item is the canonical record extracted from one raw catalog product.
type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Brand       string     `json:"brand"`
	Price       *float64   `json:"price,omitempty"`
	ListPrice   *float64   `json:"list_price,omitempty"`
	Description string     `json:"description,omitempty"`
	Images      []string   `json:"images,omitempty"`
	Rating      *float64   `json:"rating,omitempty"`
	RatingCount *int       `json:"rating_count,omitempty"`
	Sizes       []string   `json:"sizes,omitempty"`
	Colors      []string   `json:"colors,omitempty"`
	ProductURL  string     `json:"product_url,omitempty"`
	Category    string     `json:"category"`
	Provenance  Provenance `json:"provenance"`
}

// Provenance records where and when an item was fetched.
type Provenance struct {
	Raw       any       `json:"raw"`
	FetchedAt time.Time `json:"fetched_at"`
	SessionID string    `json:"session_id"`
	Source    string    `json:"source"`
	Offset    int       `json:"offset"`
	Page      int       `json:"page"`
}

// HasIdentity reports whether the item carries a usable identity.
func (i *Item) HasIdentity() bool {
	return i != nil && strings.TrimSpace(i.ID) != ""
}

// Outcome describes how a category crawl ended.
type Outcome string

const (
	OutcomeCompleted            Outcome = "completed"
	OutcomeSessionUnavailable   Outcome = "session_unavailable"
	OutcomeRetryBudgetExhausted Outcome = "retry_budget_exhausted"
	OutcomeForbidden            Outcome = "forbidden"
	OutcomeCancelled            Outcome = "cancelled"
	OutcomeSinkClosed           Outcome = "sink_closed"
	OutcomeFailed               Outcome = "failed"
)

// Succeeded reports whether the outcome counts as a successful category.
func (o Outcome) Succeeded() bool {
	return o == OutcomeCompleted
}

// CategoryResult summarises one category run.
type CategoryResult struct {
	Category       string        `json:"category"`
	Outcome        Outcome       `json:"outcome"`
	Pages          int           `json:"pages"`
	Items          int           `json:"items"`
	Duplicates     int           `json:"duplicates"`
	Retries        int           `json:"retries"`
	Bootstraps     int           `json:"bootstraps"`
	MalformedSkips int           `json:"malformed_skips"`
	LastOffset     int           `json:"last_offset"`
	Duration       time.Duration `json:"duration"`
	Err            string        `json:"error,omitempty"`
}

// RunReport holds the overall result of a harvest run.
type RunReport struct {
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	Categories []CategoryResult `json:"categories"`
}

// TotalItems sums the emitted items across categories.
func (r *RunReport) TotalItems() int {
	total := 0
	for _, c := range r.Categories {
		total += c.Items
	}
	return total
}

// Failed returns the categories that did not complete.
func (r *RunReport) Failed() []CategoryResult {
	var out []CategoryResult
	for _, c := range r.Categories {
		if !c.Outcome.Succeeded() {
			out = append(out, c)
		}
	}
	return out
}

// AllFailed reports whether no category succeeded.
func (r *RunReport) AllFailed() bool {
	return len(r.Categories) > 0 && len(r.Failed()) == len(r.Categories)
}
