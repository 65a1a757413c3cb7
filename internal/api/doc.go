// Package api implements the HTTP REST API for servicedeck.
//
// New(registry, overview, protect) returns an http.Handler that serves:
//
//	GET    /api/v1/health            liveness and registry size
//	GET    /api/v1/overview          live status of every service, with diagnostics
//	GET    /api/v1/services          registry records in order
//	POST   /api/v1/services          create; 201, 400 on bad JSON, 409 on duplicate slug
//	GET    /api/v1/services/{slug}   one record; 404 if unknown
//	PUT    /api/v1/services/{slug}   merge update, slug pinned to the path; 404 if unknown
//	DELETE /api/v1/services/{slug}   204; 404 if unknown
//
// All endpoints respond with Content-Type: application/json. Registry I/O
// failures are answered with 500 and {"error": ...}. protect wraps the
// mutating routes (see package auth).
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
