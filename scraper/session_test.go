package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
)

func TestEstablishCollectsCookies(t *testing.T) {
	cfg := testConfig()
	sf := newStorefront(testCategory)

	boot, err := NewBootstrapper(cfg, sf.transport, nil, NewMetrics())
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}

	session, err := boot.Establish(context.Background(), testCategory)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	cookies := session.Cookies()
	if len(cookies) != 1 || cookies[0].Name != "_abck" || cookies[0].Value != "token" {
		t.Fatalf("cookies = %v, want _abck=token", cookies)
	}
	if session.ID == "" || session.Category != testCategory {
		t.Fatalf("session = %+v", session)
	}
	if got := session.Headers().Get("Referer"); got != testBase+"/"+testCategory {
		t.Fatalf("referer = %q", got)
	}
}

func TestEstablishIndependentSessions(t *testing.T) {
	cfg := testConfig()
	sf := newStorefront(testCategory)

	boot, err := NewBootstrapper(cfg, sf.transport, nil, nil)
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}

	first, err := boot.Establish(context.Background(), testCategory)
	if err != nil {
		t.Fatalf("first establish: %v", err)
	}
	second, err := boot.Establish(context.Background(), testCategory)
	if err != nil {
		t.Fatalf("second establish: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("sessions share device id %s", first.ID)
	}
	if first.jar == second.jar {
		t.Fatalf("sessions share a cookie jar")
	}
}

func TestEstablishSendsBrowserHeaders(t *testing.T) {
	cfg := testConfig()
	transport := httpmock.NewMockTransport()

	var rootHeaders, categoryHeaders http.Header
	transport.RegisterResponder(http.MethodGet, testBase+"/", func(req *http.Request) (*http.Response, error) {
		rootHeaders = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})
	transport.RegisterResponder(http.MethodGet, testBase+"/"+testCategory, func(req *http.Request) (*http.Response, error) {
		categoryHeaders = req.Header.Clone()
		return httpmock.NewStringResponse(http.StatusOK, ""), nil
	})

	boot, err := NewBootstrapper(cfg, transport, nil, nil)
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	session, err := boot.Establish(context.Background(), testCategory)
	if err != nil {
		t.Fatalf("establish: %v", err)
	}

	if rootHeaders.Get("Referer") != "" {
		t.Fatalf("root step should not send a referer")
	}
	if got := categoryHeaders.Get("Referer"); got != testBase+"/" {
		t.Fatalf("category referer = %q", got)
	}
	for _, hdr := range []http.Header{rootHeaders, categoryHeaders} {
		if hdr.Get("User-Agent") != session.UserAgent {
			t.Fatalf("user agent = %q, want %q", hdr.Get("User-Agent"), session.UserAgent)
		}
		if hdr.Get("Accept") != browserAccept {
			t.Fatalf("accept = %q", hdr.Get("Accept"))
		}
	}
}

func TestEstablishFailures(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(*httpmock.MockTransport)
		step   string
		status int
	}{
		{
			name: "root server error",
			setup: func(tr *httpmock.MockTransport) {
				tr.RegisterResponder(http.MethodGet, testBase+"/", httpmock.NewStringResponder(http.StatusInternalServerError, ""))
			},
			step:   stepRoot,
			status: http.StatusInternalServerError,
		},
		{
			name: "category transport error",
			setup: func(tr *httpmock.MockTransport) {
				tr.RegisterResponder(http.MethodGet, testBase+"/", httpmock.NewStringResponder(http.StatusOK, ""))
				tr.RegisterResponder(http.MethodGet, testBase+"/"+testCategory, httpmock.NewErrorResponder(errors.New("connection reset")))
			},
			step: stepCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := httpmock.NewMockTransport()
			tt.setup(transport)

			boot, err := NewBootstrapper(testConfig(), transport, nil, nil)
			if err != nil {
				t.Fatalf("new bootstrapper: %v", err)
			}
			_, err = boot.Establish(context.Background(), testCategory)

			var failed ErrBootstrapFailed
			if !errors.As(err, &failed) {
				t.Fatalf("err = %v, want ErrBootstrapFailed", err)
			}
			if failed.Step != tt.step || failed.Status != tt.status {
				t.Fatalf("failure = %+v, want step %s status %d", failed, tt.step, tt.status)
			}
			if tt.status == 0 && failed.Err == nil {
				t.Fatalf("transport failure must carry a cause")
			}
		})
	}
}

func TestEstablishCancelled(t *testing.T) {
	boot, err := NewBootstrapper(testConfig(), httpmock.NewMockTransport(), nil, nil)
	if err != nil {
		t.Fatalf("new bootstrapper: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := boot.Establish(ctx, testCategory); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
