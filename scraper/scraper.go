package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-catalog-harvester/config"
	"github.com/aluiziolira/go-catalog-harvester/dedup"
	"github.com/aluiziolira/go-catalog-harvester/models"
	"github.com/aluiziolira/go-catalog-harvester/parser"
)

// Sink receives emitted items. pipeline.Pipeline satisfies it.
type Sink interface {
	Process(items ...*models.Item) error
}

// Harvester crawls several categories concurrently. Categories share the
// request limiter and the deduplicator but never a session.
type Harvester struct {
	cfg       *config.Config
	transport http.RoundTripper
	extractor *parser.Extractor
	Metrics   *Metrics

	onCategory func(models.CategoryResult)

	mu      sync.Mutex
	running []*Paginator
}

// Option customises a Harvester.
type Option func(*Harvester)

// WithTransport replaces the network transport shared by all sessions.
func WithTransport(rt http.RoundTripper) Option {
	return func(h *Harvester) { h.transport = rt }
}

// WithMetrics replaces the metrics bundle.
func WithMetrics(m *Metrics) Option {
	return func(h *Harvester) { h.Metrics = m }
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *parser.Extractor) Option {
	return func(h *Harvester) { h.extractor = e }
}

// WithCategoryHook registers fn to be called once per finished category.
func WithCategoryHook(fn func(models.CategoryResult)) Option {
	return func(h *Harvester) { h.onCategory = fn }
}

// NewHarvester builds a harvester instance configured from cfg.
func NewHarvester(cfg *config.Config, opts ...Option) (*Harvester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	h := &Harvester{
		cfg:       cfg,
		extractor: parser.NewExtractor(cfg.BaseURL + cfg.ProductPrefix),
		Metrics:   NewMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.transport == nil {
		h.transport = defaultTransport(cfg)
	}
	return h, nil
}

// Run crawls categories with at most cfg.Parallelism in flight and feeds every
// admitted item to sink. The report always covers every category; the error
// is ErrAllCategoriesFailed when none completed.
func (h *Harvester) Run(ctx context.Context, categories []string, sink Sink) (*models.RunReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if h.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.RunTimeout)
		defer cancel()
	}

	limiter := NewLimiter(h.cfg.Delay, h.cfg.RandomDelay, h.cfg.MaxInFlight)
	boot, err := NewBootstrapper(h.cfg, h.transport, limiter, h.Metrics)
	if err != nil {
		return nil, err
	}
	seen, err := dedup.New(h.cfg.DedupeMaxSize)
	if err != nil {
		return nil, err
	}

	report := &models.RunReport{StartTime: time.Now()}
	results := make([]models.CategoryResult, len(categories))

	h.mu.Lock()
	h.running = make([]*Paginator, len(categories))
	for i, category := range categories {
		h.running[i] = NewPaginator(h.cfg, category, boot, h.extractor, seen, h.Metrics)
	}
	paginators := h.running
	h.mu.Unlock()

	slog.Info("harvest started",
		slog.Int("categories", len(categories)),
		slog.Int("parallelism", h.cfg.Parallelism),
	)

	var g errgroup.Group
	g.SetLimit(max(h.cfg.Parallelism, 1))
	for i, p := range paginators {
		g.Go(func() error {
			results[i] = h.runCategory(ctx, p, sink)
			return nil
		})
	}
	_ = g.Wait()

	report.EndTime = time.Now()
	report.Categories = results

	duplicates, anonymous := seen.Stats()
	slog.Info("harvest finished",
		slog.Int("items", report.TotalItems()),
		slog.Int("failed_categories", len(report.Failed())),
		slog.Int64("duplicates", duplicates),
		slog.Int64("anonymous", anonymous),
		slog.Duration("elapsed", report.EndTime.Sub(report.StartTime)),
	)

	if report.AllFailed() {
		return report, ErrAllCategoriesFailed
	}
	return report, nil
}

// Snapshot returns live progress for the categories of the current run.
func (h *Harvester) Snapshot() []models.CategoryResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.CategoryResult, 0, len(h.running))
	for _, p := range h.running {
		out = append(out, p.Stats())
	}
	return out
}

func (h *Harvester) runCategory(ctx context.Context, p *Paginator, sink Sink) models.CategoryResult {
	logger := slog.With(slog.String("category", p.category))
	logger.Info("category started")

	var crawlErr, sinkErr error
	for item, err := range p.Run(ctx) {
		if err != nil {
			crawlErr = err
			break
		}
		if err := sink.Process(item); err != nil {
			sinkErr = err
			break
		}
		h.Metrics.IncItems(p.category)
	}

	result := p.Stats()
	result.Outcome = outcomeFor(ctx, crawlErr, sinkErr)
	switch {
	case sinkErr != nil:
		result.Err = sinkErr.Error()
	case crawlErr != nil:
		result.Err = crawlErr.Error()
	}
	h.Metrics.IncOutcome(string(result.Outcome))

	if result.Outcome.Succeeded() {
		logger.Info("category completed",
			slog.Int("items", result.Items),
			slog.Int("pages", result.Pages),
			slog.Int("retries", result.Retries),
		)
	} else {
		label := errorTypeLabel(crawlErr)
		if sinkErr != nil {
			label = "sink"
		}
		h.Metrics.IncError(label)
		logger.Error("category failed",
			slog.String("outcome", string(result.Outcome)),
			slog.String("error_type", label),
			slog.String("error", result.Err),
		)
	}

	if h.onCategory != nil {
		h.onCategory(result)
	}
	return result
}

func outcomeFor(ctx context.Context, crawlErr, sinkErr error) models.Outcome {
	if sinkErr != nil {
		return models.OutcomeSinkClosed
	}
	if crawlErr == nil {
		return models.OutcomeCompleted
	}
	if ctx.Err() != nil || errors.Is(crawlErr, context.Canceled) {
		return models.OutcomeCancelled
	}

	var unavailable ErrSessionUnavailable
	var budget ErrRetryBudgetExhausted
	var forbidden ErrForbidden
	switch {
	case errors.As(crawlErr, &unavailable):
		return models.OutcomeSessionUnavailable
	case errors.As(crawlErr, &budget):
		return models.OutcomeRetryBudgetExhausted
	case errors.As(crawlErr, &forbidden):
		return models.OutcomeForbidden
	default:
		return models.OutcomeFailed
	}
}
