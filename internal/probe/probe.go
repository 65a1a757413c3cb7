package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultTimeout applies when a Target carries no timeout.
const DefaultTimeout = 3 * time.Second

// maxDrain bounds how much of a response body is read before the connection
// is returned to the pool.
const maxDrain = 64 << 10

// Target describes one probe.
type Target struct {
	URL          string
	Method       string
	Timeout      time.Duration
	ExpectStatus []int
}

// Result is the outcome of one probe. A network failure is a Result with
// OK false and StatusCode 0, never an error.
type Result struct {
	OK         bool
	StatusCode int // 0 when no response was received
	Latency    time.Duration
	Message    string

	// CertDaysLeft is the remaining validity of the leaf certificate for
	// HTTPS targets, nil otherwise.
	CertDaysLeft *int
}

// Prober issues probes over a shared client so connections are reused
// across services and evaluations.
type Prober struct {
	client *http.Client
	now    func() time.Time
}

// New returns a Prober whose client follows redirects and skips TLS
// verification: internal services commonly use self-signed certificates.
func New() *Prober {
	return &Prober{client: buildHTTPClient(), now: time.Now}
}

// buildHTTPClient constructs the shared probe client. Timeouts are applied
// per request from the Target.
func buildHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // probing internal services
	}
	transport.MaxIdleConnsPerHost = 4
	return &http.Client{Transport: transport}
}

// Probe performs exactly one check against t. It never returns an error.
func (p *Prober) Probe(ctx context.Context, t Target) Result {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if strings.HasPrefix(strings.ToLower(t.URL), "tcp://") {
		return p.probeTCP(ctx, t.URL)
	}
	return p.probeHTTP(ctx, t)
}

func (p *Prober) probeHTTP(ctx context.Context, t Target) Result {
	method := strings.ToUpper(t.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, t.URL, nil)
	if err != nil {
		return Result{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("User-Agent", "servicedeck-probe")

	start := p.now()
	resp, err := p.client.Do(req)
	latency := p.now().Sub(start)
	if err != nil {
		return Result{Message: describe(err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	res := Result{
		OK:           Accepts(t.ExpectStatus, resp.StatusCode),
		StatusCode:   resp.StatusCode,
		Latency:      latency,
		CertDaysLeft: certDaysLeft(resp.TLS, p.now()),
	}
	if !res.OK {
		res.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return res
}

func (p *Prober) probeTCP(ctx context.Context, raw string) Result {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Port() == "" {
		return Result{Message: fmt.Sprintf("invalid tcp target %q: want tcp://host:port", raw)}
	}

	var d net.Dialer
	start := p.now()
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	latency := p.now().Sub(start)
	if err != nil {
		return Result{Message: describe(err)}
	}
	conn.Close()
	return Result{OK: true, Latency: latency}
}

// Accepts reports whether code satisfies expect: membership when expect is
// non-empty, otherwise any code in [200, 400).
func Accepts(expect []int, code int) bool {
	if len(expect) > 0 {
		return slices.Contains(expect, code)
	}
	return code >= 200 && code < 400
}

// describe shortens the usual *url.Error wrapping to the underlying cause.
func describe(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return "timeout: " + ue.Err.Error()
		}
		return ue.Err.Error()
	}
	return err.Error()
}
