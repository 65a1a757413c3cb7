package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, code int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_OK(t *testing.T) {
	srv := statusServer(t, http.StatusOK)

	res := New().Probe(context.Background(), Target{URL: srv.URL, Timeout: time.Second})
	assert.True(t, res.OK)
	assert.Equal(t, 200, res.StatusCode)
	assert.Empty(t, res.Message)
	assert.Nil(t, res.CertDaysLeft)
	assert.GreaterOrEqual(t, res.Latency, time.Duration(0))
}

func TestProbe_ServerErrorNotOK(t *testing.T) {
	srv := statusServer(t, http.StatusServiceUnavailable)

	res := New().Probe(context.Background(), Target{URL: srv.URL, Timeout: time.Second})
	assert.False(t, res.OK)
	assert.Equal(t, 503, res.StatusCode)
	assert.Equal(t, "HTTP 503", res.Message)
}

func TestProbe_ExpectStatus(t *testing.T) {
	srv := statusServer(t, http.StatusUnauthorized)

	res := New().Probe(context.Background(), Target{URL: srv.URL, ExpectStatus: []int{401, 403}})
	assert.True(t, res.OK, "401 listed as acceptable")

	srv200 := statusServer(t, http.StatusOK)
	res = New().Probe(context.Background(), Target{URL: srv200.URL, ExpectStatus: []int{204}})
	assert.False(t, res.OK, "200 not in the explicit list")
}

func TestProbe_UsesMethod(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Method
	}))
	defer srv.Close()

	res := New().Probe(context.Background(), Target{URL: srv.URL, Method: "head"})
	assert.True(t, res.OK)
	assert.Equal(t, http.MethodHead, got)
}

func TestProbe_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res := New().Probe(context.Background(), Target{URL: srv.URL + "/old", ExpectStatus: []int{418}})
	assert.True(t, res.OK)
	assert.Equal(t, 418, res.StatusCode)
}

func TestProbe_AcceptsSelfSignedTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	res := New().Probe(context.Background(), Target{URL: srv.URL})
	assert.True(t, res.OK, res.Message)
	require.NotNil(t, res.CertDaysLeft)
	assert.Greater(t, *res.CertDaysLeft, 0)
}

func TestProbe_ConnectionRefused(t *testing.T) {
	srv := statusServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	res := New().Probe(context.Background(), Target{URL: url, Timeout: time.Second})
	assert.False(t, res.OK)
	assert.Zero(t, res.StatusCode)
	assert.NotEmpty(t, res.Message)
}

func TestProbe_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	res := New().Probe(context.Background(), Target{URL: srv.URL, Timeout: 100 * time.Millisecond})
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.OK)
	assert.Zero(t, res.StatusCode)
	assert.Contains(t, res.Message, "timeout")
}

func TestProbe_InvalidURL(t *testing.T) {
	res := New().Probe(context.Background(), Target{URL: "://nope"})
	assert.False(t, res.OK)
	assert.True(t, strings.HasPrefix(res.Message, "build request"), res.Message)
}

func TestProbe_TCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	res := New().Probe(context.Background(), Target{URL: "tcp://" + ln.Addr().String()})
	assert.True(t, res.OK, res.Message)

	addr := ln.Addr().String()
	ln.Close()
	res = New().Probe(context.Background(), Target{URL: "tcp://" + addr, Timeout: time.Second})
	assert.False(t, res.OK)

	res = New().Probe(context.Background(), Target{URL: "tcp://no-port"})
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "invalid tcp target")
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts(nil, 200))
	assert.True(t, Accepts(nil, 399))
	assert.False(t, Accepts(nil, 400))
	assert.False(t, Accepts(nil, 199))
	assert.True(t, Accepts([]int{500}, 500))
	assert.False(t, Accepts([]int{500}, 200))
}
