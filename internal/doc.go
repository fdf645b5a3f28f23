// Package internal contains the plumbing of the testbed command: its
// configuration, run identifiers, user-facing output, and the smoke check
// that drives fixtures through a full class lifecycle.
package internal
