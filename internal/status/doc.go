// Package status reconciles the runtime and probe signals of one service into
// a single verdict: lifecycle state, tri-state health and the online flag.
//
// Resolve is a pure function; it performs no I/O and keeps no state.
package status
