package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-catalog-harvester/config"
	"github.com/aluiziolira/go-catalog-harvester/models"
	"github.com/aluiziolira/go-catalog-harvester/parser"
)

// Establisher produces fresh sessions for a category.
type Establisher interface {
	Establish(ctx context.Context, category string) (*Session, error)
}

// Admitter decides whether an item is emitted. Forget undoes an Admit whose
// item was not delivered.
type Admitter interface {
	Admit(item *models.Item) bool
	Forget(item *models.Item)
}

// errConsumerStopped ends a crawl whose consumer stopped ranging.
var errConsumerStopped = errors.New("consumer stopped")

// Paginator walks the search API of one category page by page, renewing the
// session when the storefront rejects it and retrying failed offsets within a
// budget. A Paginator runs once.
type Paginator struct {
	category    string
	searchURL   string
	location    string
	pageSize    int
	maxPages    int
	maxRetries  int
	backoffBase time.Duration
	backoffMax  time.Duration

	sessions   Establisher
	classifier Classifier
	extractor  *parser.Extractor
	dedup      Admitter
	metrics    *Metrics
	logger     *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	used atomic.Bool

	mu    sync.Mutex
	stats models.CategoryResult
}

// NewPaginator wires a paginator for category. dedup may be nil to emit every
// item with an identity.
func NewPaginator(cfg *config.Config, category string, sessions Establisher, extractor *parser.Extractor, dedup Admitter, metrics *Metrics) *Paginator {
	return &Paginator{
		category:    category,
		searchURL:   strings.TrimSuffix(cfg.BaseURL, "/") + cfg.SearchPath + "/" + url.PathEscape(category),
		location:    cfg.Location,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		maxRetries:  cfg.MaxRetries,
		backoffBase: cfg.RetryBackoff,
		backoffMax:  cfg.RetryBackoffMax,
		sessions:    sessions,
		classifier:  Classifier{StrictForbidden: cfg.StrictForbidden},
		extractor:   extractor,
		dedup:       dedup,
		metrics:     metrics,
		logger:      slog.With(slog.String("category", category)),
		sleep:       sleepContext,
		now:         time.Now,
		stats:       models.CategoryResult{Category: category},
	}
}

// Run returns the lazy item sequence of the category. Items arrive in page
// order. A terminal failure is delivered as a final (nil, err) pair; graceful
// exhaustion and the page cap end the sequence without an error. Breaking out
// of the range loop stops the crawl before the next request.
func (p *Paginator) Run(ctx context.Context) iter.Seq2[*models.Item, error] {
	return func(yield func(*models.Item, error) bool) {
		if !p.used.CompareAndSwap(false, true) {
			yield(nil, ErrPaginatorUsed)
			return
		}

		start := p.now()
		err := p.crawl(ctx, yield)
		p.update(func(s *models.CategoryResult) { s.Duration = p.now().Sub(start) })

		if err != nil && !errors.Is(err, errConsumerStopped) {
			yield(nil, err)
		}
	}
}

// Stats returns a snapshot of the progress counters. It is safe to call while
// Run is in progress.
func (p *Paginator) Stats() models.CategoryResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Paginator) update(fn func(s *models.CategoryResult)) {
	p.mu.Lock()
	fn(&p.stats)
	p.mu.Unlock()
}

func (p *Paginator) establish(ctx context.Context) (*Session, error) {
	session, err := p.sessions.Establish(ctx, p.category)
	p.update(func(s *models.CategoryResult) { s.Bootstraps++ })
	if err != nil {
		return nil, ErrSessionUnavailable{Category: p.category, Err: err}
	}
	p.logger.Debug("session established",
		slog.String("session_id", session.ID),
		slog.Int("cookies", len(session.Cookies())),
	)
	return session, nil
}

func (p *Paginator) crawl(ctx context.Context, yield func(*models.Item, error) bool) error {
	session, err := p.establish(ctx)
	if err != nil {
		return err
	}

	offset, pages, failures := 0, 0, 0
	for pages < p.maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		ex := session.fetch(p.pageURL(offset))
		p.metrics.ObserveRequest(kindPage, ex.elapsed)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		verdict := p.classifier.Classify(ex.status, ex.body)
		p.metrics.IncVerdict(verdict)

		var payload any
		if verdict == VerdictOK {
			if payload, err = parser.Decode(ex.body); err != nil {
				verdict = VerdictMalformedBody
			}
		}

		switch verdict {
		case VerdictOK:
			failures = 0
			pages++
			records := p.extractor.LocateList(payload)
			if err := p.emit(ctx, session, records, offset, pages, yield); err != nil {
				return err
			}
			p.update(func(s *models.CategoryResult) {
				s.Pages = pages
				s.LastOffset = offset
			})

			if len(records) == 0 || !p.extractor.HasMore(payload, pages, len(records)) {
				p.logger.Info("category exhausted", slog.Int("pages", pages), slog.Int("offset", offset))
				return nil
			}
			offset += p.pageSize

		case VerdictMalformedBody:
			p.logger.Warn("skipping malformed page",
				slog.Int("offset", offset),
				slog.Int("status", ex.status),
				slog.Int("bytes", len(ex.body)),
			)
			failures = 0
			pages++
			p.update(func(s *models.CategoryResult) {
				s.Pages = pages
				s.MalformedSkips++
				s.LastOffset = offset
			})
			offset += p.pageSize

		case VerdictForbidden:
			return ErrForbidden{Category: p.category, Offset: offset}

		default:
			if !verdict.Retryable() {
				return fmt.Errorf("category %s offset %d: unhandled verdict %s", p.category, offset, verdict)
			}
			failures++
			if failures > p.maxRetries {
				return ErrRetryBudgetExhausted{Category: p.category, Offset: offset, Attempts: failures, Last: verdict}
			}
			p.metrics.IncRetries(verdict)
			p.update(func(s *models.CategoryResult) { s.Retries++ })

			delay := p.backoff(failures, retryAfter(ex))
			p.logger.Warn("retrying page",
				slog.Int("offset", offset),
				slog.String("verdict", verdict.String()),
				slog.Int("status", ex.status),
				slog.Int("attempt", failures),
				slog.Duration("delay", delay),
				slog.Any("error", classifyTransportError(ex.err)),
			)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}

			if verdict.RenewsSession() {
				if session, err = p.establish(ctx); err != nil {
					return err
				}
			}
		}
	}

	p.logger.Info("page cap reached", slog.Int("pages", pages))
	return nil
}

func (p *Paginator) emit(ctx context.Context, session *Session, records []any, offset, page int, yield func(*models.Item, error) bool) error {
	fetchedAt := p.now()
	for _, raw := range records {
		item := p.extractor.MapFields(raw)
		if item == nil {
			continue
		}
		item.Category = p.category
		item.Provenance = models.Provenance{
			Raw:       raw,
			FetchedAt: fetchedAt,
			SessionID: session.ID,
			Source:    sourceAPI,
			Offset:    offset,
			Page:      page,
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if !item.HasIdentity() || (p.dedup != nil && !p.dedup.Admit(item)) {
			p.metrics.IncDropped()
			p.update(func(s *models.CategoryResult) { s.Duplicates++ })
			continue
		}
		if !yield(item, nil) {
			if p.dedup != nil {
				p.dedup.Forget(item)
			}
			return errConsumerStopped
		}
		p.update(func(s *models.CategoryResult) { s.Items++ })
	}
	return nil
}

func (p *Paginator) pageURL(offset int) string {
	q := url.Values{}
	q.Set("rows", strconv.Itoa(p.pageSize))
	q.Set("o", strconv.Itoa(offset))
	q.Set("plaEnabled", "true")
	q.Set("xdEnabled", "false")
	if p.location != "" {
		q.Set("pincode", p.location)
	}
	return p.searchURL + "?" + q.Encode()
}

// backoff grows exponentially with the attempt number, is capped at
// backoffMax and never undercuts a server-provided floor.
func (p *Paginator) backoff(attempt int, floor time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := p.backoffBase
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	limit := p.backoffMax
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64)
	}

	// Doubling stops at the cap so large attempt counts cannot overflow.
	delay := base
	for i := 1; i < attempt && delay < limit; i++ {
		if delay > limit/2 {
			delay = limit
			break
		}
		delay *= 2
	}
	if floor > delay {
		delay = floor
	}
	if delay > limit {
		delay = limit
	}
	return delay
}

// retryAfter reads a Retry-After header given in seconds on a 429 response.
func retryAfter(ex exchange) time.Duration {
	if ex.status != http.StatusTooManyRequests || ex.header == nil {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(ex.header.Get("Retry-After")))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
