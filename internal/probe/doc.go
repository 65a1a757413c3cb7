// Package probe issues single health-check requests against service
// endpoints and measures their latency.
//
// A probe follows redirects, accepts self-signed certificates and reports
// every failure (timeout, refused connection, DNS, TLS) as a Result with
// OK=false and a Message. URLs with the tcp:// scheme are probed by a plain
// TCP dial.
package probe
