package scraper

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/aluiziolira/go-catalog-harvester/config"
)

// defaultTransport mirrors the connection settings used for every session.
func defaultTransport(cfg *config.Config) http.RoundTripper {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func newSessionJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// limitedTransport ties every request to the session's context and to the
// run-wide Limiter. The limiter slot is held until the body is closed.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *Limiter
	ctx     context.Context
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithCancel(req.Context())
	stop := context.AfterFunc(t.ctx, cancel)

	release := func() {}
	if t.limiter != nil {
		r, err := t.limiter.Acquire(ctx)
		if err != nil {
			stop()
			cancel()
			return nil, err
		}
		release = r
	}

	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		release()
		stop()
		cancel()
		return nil, err
	}
	resp.Body = &releasingBody{ReadCloser: resp.Body, done: func() {
		release()
		stop()
		cancel()
	}}
	return resp, nil
}

type releasingBody struct {
	io.ReadCloser
	once sync.Once
	done func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.done)
	return err
}

// exchange is the outcome of one GET. A zero status means no response.
type exchange struct {
	status  int
	body    []byte
	header  http.Header
	err     error
	elapsed time.Duration
}

// fetcher drives a dedicated colly collector in synchronous mode; one fetcher
// belongs to one session and is used by one goroutine at a time.
type fetcher struct {
	collector *colly.Collector

	mu   sync.Mutex
	last exchange
}

func newFetcher(ctx context.Context, cfg *config.Config, host string, base http.RoundTripper, limiter *Limiter, jar http.CookieJar) *fetcher {
	collector := colly.NewCollector(
		colly.AllowedDomains(host),
	)
	collector.AllowURLRevisit = true
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	collector.SetRequestTimeout(cfg.Timeout)
	collector.SetCookieJar(jar)
	collector.WithTransport(&limitedTransport{base: base, limiter: limiter, ctx: ctx})

	f := &fetcher{collector: collector}

	collector.OnResponse(func(r *colly.Response) {
		f.last.status = r.StatusCode
		f.last.body = r.Body
		if r.Headers != nil {
			f.last.header = r.Headers.Clone()
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		f.last.status = 0
		f.last.body = nil
		f.last.err = err
	})
	return f
}

func (f *fetcher) get(rawURL string, hdr http.Header) exchange {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = exchange{}
	start := time.Now()
	err := f.collector.Request(http.MethodGet, rawURL, nil, nil, hdr)

	result := f.last
	if err != nil && result.err == nil && result.status == 0 {
		result.err = err
	}
	result.elapsed = time.Since(start)
	return result
}
