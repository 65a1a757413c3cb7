// Package aggregator evaluates every service in the registry concurrently
// and joins the results into a fleet Overview.
//
// For each service the runtime inspector, the prober and the stats resolver
// run side by side; their outputs are reconciled by package status. Results
// keep registry order regardless of completion order. Per-service failures
// are data: they show up in ServiceStatus.Message, never as an error from
// Overview. When the container runtime cannot be consulted at all, the
// Overview carries a degradation message and statuses rely on probes.
package aggregator
