// Package fixtures provides ready-made resources whose side effects are
// recorded as reversible operations on a lifecycle.Manager, so temporary
// directories, environment variables, repositories, databases, message
// servers and containers disappear again at the end of the test or class
// that created them.
//
// Each fixture is a lifecycle.Resource. Register the ones a suite needs,
// or call RegisterDefaults for the file and environment fixtures.
package fixtures
