// Package dedup tracks item identities admitted during a harvest run.
package dedup

import (
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/go-catalog-harvester/models"
)

// Deduplicator admits each identity at most once per run. It is safe for
// concurrent use by every category of the run.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}

	// bounded replaces seen when a maximum size is configured; the oldest
	// identities are forgotten first.
	bounded *lru.Cache[string, struct{}]

	duplicates int64
	anonymous  int64
}

// New returns a Deduplicator. maxSize <= 0 keeps every identity for the whole
// run; a positive maxSize caps memory with LRU eviction.
func New(maxSize int) (*Deduplicator, error) {
	d := &Deduplicator{}
	if maxSize <= 0 {
		d.seen = make(map[string]struct{})
		return d, nil
	}

	cache, err := lru.New[string, struct{}](maxSize)
	if err != nil {
		return nil, fmt.Errorf("create dedupe cache: %w", err)
	}
	d.bounded = cache
	return d, nil
}

// Admit reports whether item is the first occurrence of its identity. Items
// without identity are never admitted.
func (d *Deduplicator) Admit(item *models.Item) bool {
	if !item.HasIdentity() {
		d.mu.Lock()
		d.anonymous++
		d.mu.Unlock()
		return false
	}
	key := strings.TrimSpace(item.ID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bounded != nil {
		if found, _ := d.bounded.ContainsOrAdd(key, struct{}{}); found {
			d.duplicates++
			return false
		}
		return true
	}

	if _, ok := d.seen[key]; ok {
		d.duplicates++
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Forget releases the identity of an admitted item that was never delivered,
// so another category may still emit it.
func (d *Deduplicator) Forget(item *models.Item) {
	if !item.HasIdentity() {
		return
	}
	key := strings.TrimSpace(item.ID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bounded != nil {
		d.bounded.Remove(key)
		return
	}
	delete(d.seen, key)
}

// Len returns the number of identities currently remembered.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bounded != nil {
		return d.bounded.Len()
	}
	return len(d.seen)
}

// Stats returns the duplicate and missing-identity drop counts.
func (d *Deduplicator) Stats() (duplicates, anonymous int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.duplicates, d.anonymous
}
