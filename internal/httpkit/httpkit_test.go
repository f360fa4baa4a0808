package httpkit

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"
)

// echoUserAgent returns a server that replies with the request's
// User-Agent header.
func echoUserAgent(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fetchBody(t *testing.T, c *http.Client, url string) string {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return string(body)
}

func TestNewClientTimeouts(t *testing.T) {
	cases := []struct {
		name string
		opts []ClientOption
		want time.Duration
	}{
		{"default is 30s", nil, 30 * time.Second},
		{"custom", []ClientOption{WithTimeout(5 * time.Second)}, 5 * time.Second},
		{"zero for streaming", []ClientOption{WithTimeout(0)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if c := NewClient(tc.opts...); c.Timeout != tc.want {
				t.Errorf("Timeout = %v, want %v", c.Timeout, tc.want)
			}
		})
	}
}

func TestUserAgentInjection(t *testing.T) {
	srv := echoUserAgent(t)

	t.Run("default agent identifies Scribe", func(t *testing.T) {
		got := fetchBody(t, NewClient(), srv.URL)
		if !strings.HasPrefix(got, "Scribe/") {
			t.Errorf("User-Agent = %q, want Scribe/ prefix", got)
		}
	})

	t.Run("custom agent", func(t *testing.T) {
		got := fetchBody(t, NewClient(WithUserAgent("TestBot/1.0")), srv.URL)
		if got != "TestBot/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		got := fetchBody(t, NewClient(WithoutUserAgent()), srv.URL)
		if strings.HasPrefix(got, "Scribe/") {
			t.Errorf("User-Agent = %q, injection should be off", got)
		}
	})

	t.Run("caller header wins", func(t *testing.T) {
		c := NewClient()
		req, _ := http.NewRequest("GET", srv.URL, nil)
		req.Header.Set("User-Agent", "CustomBot/2.0")
		resp, err := c.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if string(body) != "CustomBot/2.0" {
			t.Errorf("User-Agent = %q, want CustomBot/2.0", body)
		}
	})
}

func TestNewTransportDefaults(t *testing.T) {
	tr := NewTransport()
	if tr.TLSHandshakeTimeout != DefaultTLSHandshakeTimeout {
		t.Errorf("TLSHandshakeTimeout = %v", tr.TLSHandshakeTimeout)
	}
	if tr.ResponseHeaderTimeout != DefaultResponseHeader {
		t.Errorf("ResponseHeaderTimeout = %v", tr.ResponseHeaderTimeout)
	}
	if tr.IdleConnTimeout != DefaultIdleConnTimeout {
		t.Errorf("IdleConnTimeout = %v", tr.IdleConnTimeout)
	}
	if tr.MaxIdleConns != DefaultMaxIdleConns || tr.MaxIdleConnsPerHost != DefaultMaxIdleConnsPerHost {
		t.Errorf("idle conn limits = %d/%d", tr.MaxIdleConns, tr.MaxIdleConnsPerHost)
	}
	if !tr.ForceAttemptHTTP2 {
		t.Error("ForceAttemptHTTP2 is off")
	}
}

func TestTLSInsecureSkipVerify(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer srv.Close()

	strict := NewClient(WithTimeout(2 * time.Second))
	if _, err := strict.Get(srv.URL); err == nil {
		t.Fatal("self-signed cert accepted by strict client")
	}

	insecure := NewClient(WithTimeout(2*time.Second), WithTLSInsecureSkipVerify())
	if got := fetchBody(t, insecure, srv.URL); got != "secure" {
		t.Errorf("body = %q", got)
	}
}

func TestDrainAndClose(t *testing.T) {
	DrainAndClose(io.NopCloser(strings.NewReader("hello world")), 1024)
	DrainAndClose(io.NopCloser(strings.NewReader(strings.Repeat("x", 10000))), 100)
	DrainAndClose(nil, 1024)
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read error")
}

func TestReadErrorBody(t *testing.T) {
	t.Run("reads the body", func(t *testing.T) {
		got := ReadErrorBody(io.NopCloser(strings.NewReader("error details here")), 512)
		if got != "error details here" {
			t.Errorf("got %q", got)
		}
	})
	t.Run("truncates at limit", func(t *testing.T) {
		got := ReadErrorBody(io.NopCloser(strings.NewReader(strings.Repeat("x", 1000))), 10)
		if len(got) != 10 {
			t.Errorf("len = %d, want 10", len(got))
		}
	})
	t.Run("nil body", func(t *testing.T) {
		if got := ReadErrorBody(nil, 512); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
	t.Run("read failure", func(t *testing.T) {
		got := ReadErrorBody(io.NopCloser(failReader{}), 512)
		if !strings.Contains(got, "failed to read") {
			t.Errorf("got %q", got)
		}
	})
}

// flakyRoundTripper fails the first n calls with an unreachable-host
// error, then succeeds.
type flakyRoundTripper struct {
	failures int
	calls    int
}

func (f *flakyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: &net.OpError{Op: "connect", Err: syscall.EHOSTUNREACH},
		}
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader("ok")),
	}, nil
}

func retrier(base http.RoundTripper, count int) *retryTransport {
	return &retryTransport{base: base, count: count, delay: 10 * time.Millisecond}
}

func TestRetryTransport(t *testing.T) {
	t.Run("recovers from one failure", func(t *testing.T) {
		ft := &flakyRoundTripper{failures: 1}
		resp, err := retrier(ft, 2).RoundTrip(mustGet(t))
		if err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
		if resp.StatusCode != 200 || ft.calls != 2 {
			t.Fatalf("status %d after %d calls", resp.StatusCode, ft.calls)
		}
	})

	t.Run("no retry on success", func(t *testing.T) {
		ft := &flakyRoundTripper{}
		if _, err := retrier(ft, 2).RoundTrip(mustGet(t)); err != nil {
			t.Fatal(err)
		}
		if ft.calls != 1 {
			t.Fatalf("calls = %d, want 1", ft.calls)
		}
	})

	t.Run("gives up after count attempts", func(t *testing.T) {
		ft := &flakyRoundTripper{failures: 10}
		if _, err := retrier(ft, 2).RoundTrip(mustGet(t)); err == nil {
			t.Fatal("expected error after exhausting retries")
		}
		if ft.calls != 3 {
			t.Fatalf("calls = %d, want 3 (original + 2 retries)", ft.calls)
		}
	})

	t.Run("non-retryable error passes through", func(t *testing.T) {
		base := roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("some permanent error")
		})
		calls := 0
		counting := roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return base(r)
		})
		if _, err := retrier(counting, 2).RoundTrip(mustGet(t)); err == nil {
			t.Fatal("expected error")
		}
		if calls != 1 {
			t.Fatalf("calls = %d, want 1", calls)
		}
	})

	t.Run("cancellation interrupts the delay", func(t *testing.T) {
		ft := &flakyRoundTripper{failures: 10}
		rt := &retryTransport{base: ft, count: 5, delay: 5 * time.Second}

		ctx, cancel := context.WithCancel(context.Background())
		req, _ := http.NewRequestWithContext(ctx, "GET", "http://example.com", nil)
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		if _, err := rt.RoundTrip(req); err == nil {
			t.Fatal("expected cancellation error")
		}
		if ft.calls != 1 {
			t.Fatalf("calls = %d, want 1", ft.calls)
		}
	})

	t.Run("rewindable body is retried", func(t *testing.T) {
		ft := &flakyRoundTripper{failures: 1}
		req, _ := http.NewRequest("POST", "http://example.com", strings.NewReader(`{"key":"value"}`))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(`{"key":"value"}`)), nil
		}
		resp, err := retrier(ft, 2).RoundTrip(req)
		if err != nil {
			t.Fatalf("RoundTrip: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	})

	t.Run("unrewindable body is not retried", func(t *testing.T) {
		ft := &flakyRoundTripper{failures: 1}
		req, _ := http.NewRequest("POST", "http://example.com", strings.NewReader(`{"key":"value"}`))
		req.GetBody = nil
		if _, err := retrier(ft, 2).RoundTrip(req); err == nil {
			t.Fatal("expected error, retry without GetBody is unsafe")
		}
		if ft.calls != 1 {
			t.Fatalf("calls = %d, want 1", ft.calls)
		}
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func mustGet(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest("GET", "http://example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generic", fmt.Errorf("oops"), false},
		{"host unreachable", syscall.EHOSTUNREACH, true},
		{"network unreachable", syscall.ENETUNREACH, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"connection reset", syscall.ECONNRESET, false},
		{"wrapped errno", fmt.Errorf("connect: %w", syscall.EHOSTUNREACH), true},
		{"nested OpError", &net.OpError{
			Op: "dial", Net: "tcp",
			Err: &net.OpError{Op: "connect", Err: syscall.EHOSTUNREACH},
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isRetryableError(tc.err); got != tc.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
