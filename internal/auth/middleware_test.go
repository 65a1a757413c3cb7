package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

// passHandler answers 200 "ok".
var passHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
})

func callWithKey(mw func(http.Handler) http.Handler, header, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", nil)
	if key != "" {
		req.Header.Set(header, key)
	}
	rec := httptest.NewRecorder()
	mw(passHandler).ServeHTTP(rec, req)
	return rec
}

func TestAPIKey_ModeNone_PassesThrough(t *testing.T) {
	rec := callWithKey(APIKey("none", "X-API-Key", "secret"), "X-API-Key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAPIKey_EmptyKey_PassesThrough(t *testing.T) {
	rec := callWithKey(APIKey("apikey", "X-API-Key", ""), "X-API-Key", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_CorrectKey(t *testing.T) {
	rec := callWithKey(APIKey("apikey", "X-API-Key", "secret"), "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_HeaderIsCaseInsensitive(t *testing.T) {
	rec := callWithKey(APIKey("apikey", "X-API-Key", "secret"), "x-api-key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPIKey_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantMsg string
	}{
		{"missing key", "", "missing api key"},
		{"wrong key", "guess", "invalid api key"},
		{"prefix of key", "secre", "invalid api key"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := callWithKey(APIKey("apikey", "X-API-Key", "secret"), "X-API-Key", tc.key)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.wantMsg+`"}`, rec.Body.String())
		})
	}
}
