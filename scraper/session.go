package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-catalog-harvester/config"
)

const (
	browserAccept  = "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8"
	browserLang    = "en-US,en;q=0.5"
	apiAccept      = "application/json"
	apiLang        = "en-IN,en-GB;q=0.9,en-US;q=0.8,en;q=0.7"
	sourceAPI      = "api"
	stepRoot       = "root"
	stepCategory   = "category"
	kindBootstrap  = "bootstrap"
	kindPage       = "page"
	bootstrapOK    = "ok"
	bootstrapError = "failed"
)

// Session is the browser-like context a category's API calls run under: the
// cookies collected while navigating, a device identity and the headers the
// storefront expects from its own web client.
type Session struct {
	ID        string
	Category  string
	UserAgent string
	Referer   string
	CreatedAt time.Time

	base    *url.URL
	jar     http.CookieJar
	headers http.Header
	fetcher *fetcher
}

// Cookies returns the cookies the session would send to the storefront.
func (s *Session) Cookies() []*http.Cookie {
	return s.jar.Cookies(s.base)
}

// Headers returns a copy of the API header set.
func (s *Session) Headers() http.Header {
	return s.headers.Clone()
}

func (s *Session) fetch(rawURL string) exchange {
	return s.fetcher.get(rawURL, s.Headers())
}

// Bootstrapper establishes sessions by replaying the navigation a browser
// performs before the storefront's web client calls the search API.
type Bootstrapper struct {
	cfg       *config.Config
	base      *url.URL
	transport http.RoundTripper
	limiter   *Limiter
	agents    *UserAgentPool
	metrics   *Metrics
	newID     func() string
}

// NewBootstrapper validates the base URL and prepares a Bootstrapper.
func NewBootstrapper(cfg *config.Config, transport http.RoundTripper, limiter *Limiter, metrics *Metrics) (*Bootstrapper, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}
	if transport == nil {
		transport = defaultTransport(cfg)
	}
	return &Bootstrapper{
		cfg:       cfg,
		base:      base,
		transport: transport,
		limiter:   limiter,
		agents:    NewUserAgentPool(cfg.UserAgents),
		metrics:   metrics,
		newID:     uuid.NewString,
	}, nil
}

type navigationStep struct {
	name    string
	url     string
	referer string
}

// Establish visits the storefront root and then the category page with a fresh
// cookie jar. Each call produces an independent session. ctx bounds every
// request the returned session makes.
func (b *Bootstrapper) Establish(ctx context.Context, category string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	jar, err := newSessionJar()
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	root := b.base.String() + "/"
	categoryURL := b.base.String() + "/" + url.PathEscape(category)

	session := &Session{
		ID:        b.newID(),
		Category:  category,
		UserAgent: b.agents.Pick(),
		Referer:   categoryURL,
		CreatedAt: time.Now(),
		base:      b.base,
		jar:       jar,
		fetcher:   newFetcher(ctx, b.cfg, b.base.Hostname(), b.transport, b.limiter, jar),
	}

	steps := []navigationStep{
		{name: stepRoot, url: root},
		{name: stepCategory, url: categoryURL, referer: root},
	}
	for _, step := range steps {
		ex := session.fetcher.get(step.url, b.browserHeaders(session.UserAgent, step.referer))
		b.metrics.ObserveRequest(kindBootstrap, ex.elapsed)

		if ex.err != nil || ex.status == 0 {
			b.metrics.IncBootstrap(bootstrapError)
			cause := ex.err
			if cause == nil {
				cause = fmt.Errorf("no response")
			}
			return nil, ErrBootstrapFailed{Step: step.name, URL: step.url, Err: classifyTransportError(cause)}
		}
		if ex.status >= b.cfg.BootstrapStatusThreshold {
			b.metrics.IncBootstrap(bootstrapError)
			return nil, ErrBootstrapFailed{Step: step.name, URL: step.url, Status: ex.status}
		}
		slog.Debug("bootstrap step",
			slog.String("category", category),
			slog.String("step", step.name),
			slog.Int("status", ex.status),
			slog.Int("cookies", len(session.Cookies())),
		)
	}

	session.headers = b.apiHeaders(session)
	b.metrics.IncBootstrap(bootstrapOK)
	return session, nil
}

func (b *Bootstrapper) browserHeaders(userAgent, referer string) http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", userAgent)
	hdr.Set("Accept", browserAccept)
	hdr.Set("Accept-Language", browserLang)
	hdr.Set("Connection", "keep-alive")
	hdr.Set("Upgrade-Insecure-Requests", "1")
	if referer != "" {
		hdr.Set("Referer", referer)
	}
	return hdr
}

func (b *Bootstrapper) apiHeaders(s *Session) http.Header {
	hdr := http.Header{}
	hdr.Set("User-Agent", s.UserAgent)
	hdr.Set("Accept", apiAccept)
	hdr.Set("Content-Type", apiAccept)
	hdr.Set("Accept-Language", apiLang)
	hdr.Set("Referer", s.Referer)
	hdr.Set("App", "web")
	hdr.Set("X-Meta-App", "channel=web")
	hdr.Set("X-Requested-With", "browser")
	hdr.Set("Sec-Fetch-Dest", "empty")
	hdr.Set("Sec-Fetch-Mode", "cors")
	hdr.Set("Sec-Fetch-Site", "same-origin")
	if b.cfg.Location != "" {
		hdr.Set("X-Location-Context", fmt.Sprintf("pincode=%s;source=IP", b.cfg.Location))
	}
	if b.cfg.DeviceHeader != "" {
		hdr.Set(b.cfg.DeviceHeader, fmt.Sprintf("deviceID=%s;customerID=;reqChannel=web;appFamily=%s;", s.ID, b.cfg.AppFamily))
	}
	return hdr
}
