package scraper

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-catalog-harvester/config"
	"github.com/aluiziolira/go-catalog-harvester/models"
	"github.com/aluiziolira/go-catalog-harvester/parser"
)

const (
	testBase     = "https://shop.test"
	testCategory = "men-clothing"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBase
	cfg.Categories = []string{testCategory}
	cfg.PageSize = 50
	cfg.MaxPages = 5
	cfg.Parallelism = 2
	cfg.MaxInFlight = 4
	cfg.Delay = 0
	cfg.RandomDelay = 0
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 3
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 4 * time.Millisecond
	return cfg
}

// storefront is a scripted fake of the target site.
type storefront struct {
	transport *httpmock.MockTransport

	rootStatus int
	rootHits   atomic.Int64

	mu      sync.Mutex
	offsets map[string][]int
	headers []http.Header
}

func newStorefront(categories ...string) *storefront {
	sf := &storefront{
		transport:  httpmock.NewMockTransport(),
		rootStatus: http.StatusOK,
		offsets:    make(map[string][]int),
	}
	sf.transport.RegisterResponder(http.MethodGet, testBase+"/", func(req *http.Request) (*http.Response, error) {
		sf.rootHits.Add(1)
		resp := httpmock.NewStringResponse(sf.rootStatus, "<html></html>")
		resp.Header.Add("Set-Cookie", "_abck=token; Path=/")
		return resp, nil
	})
	for _, category := range categories {
		sf.transport.RegisterResponder(http.MethodGet, testBase+"/"+category,
			httpmock.NewStringResponder(http.StatusOK, "<html></html>"))
	}
	return sf
}

// api scripts the search endpoint of category. respond receives the offset
// and the zero-based number of prior calls for the category.
func (sf *storefront) api(category string, respond func(offset, call int) (int, string)) {
	sf.apiResponder(category, func(_ *http.Request, offset, call int) (*http.Response, error) {
		status, body := respond(offset, call)
		return httpmock.NewStringResponse(status, body), nil
	})
}

// apiResponder is api with full control over the response, including
// transport failures.
func (sf *storefront) apiResponder(category string, respond func(req *http.Request, offset, call int) (*http.Response, error)) {
	sf.transport.RegisterResponder(http.MethodGet, testBase+"/gateway/v2/search/"+category, func(req *http.Request) (*http.Response, error) {
		offset, _ := strconv.Atoi(req.URL.Query().Get("o"))

		sf.mu.Lock()
		call := len(sf.offsets[category])
		sf.offsets[category] = append(sf.offsets[category], offset)
		sf.headers = append(sf.headers, req.Header.Clone())
		sf.mu.Unlock()

		return respond(req, offset, call)
	})
}

func (sf *storefront) offsetsFor(category string) []int {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return append([]int(nil), sf.offsets[category]...)
}

func (sf *storefront) lastHeaders() http.Header {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if len(sf.headers) == 0 {
		return nil
	}
	return sf.headers[len(sf.headers)-1]
}

func newTestPaginator(t *testing.T, cfg *config.Config, sf *storefront) (*Paginator, *[]time.Duration) {
	t.Helper()
	boot, err := NewBootstrapper(cfg, sf.transport, NewLimiter(0, 0, cfg.MaxInFlight), nil)
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	p := NewPaginator(cfg, testCategory, boot, parser.NewExtractor(cfg.BaseURL+cfg.ProductPrefix), nil, nil)

	var sleeps []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return p, &sleeps
}

func collect(ctx context.Context, p *Paginator) ([]*models.Item, error) {
	var items []*models.Item
	for item, err := range p.Run(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
	}
	return items, nil
}

type collectingSink struct {
	mu    sync.Mutex
	items []*models.Item
	err   error
}

func (cs *collectingSink) Process(items ...*models.Item) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.err != nil {
		return cs.err
	}
	cs.items = append(cs.items, items...)
	return nil
}

func (cs *collectingSink) All() []*models.Item {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]*models.Item, len(cs.items))
	copy(out, cs.items)
	return out
}

func stringBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}
