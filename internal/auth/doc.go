// Package auth provides authentication middleware for the servicedeck API.
//
// APIKey(mode, header, key) returns HTTP middleware that validates the API
// key from the named request header. The API wraps only the mutating
// registry routes with it.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware answers 401 immediately.
package auth
