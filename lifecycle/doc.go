// Package lifecycle manages test resources whose cleanup must happen
// automatically and in a well-defined order relative to the phases of a
// test-class run.
//
// A Manager holds the current Phase, a registry of Resources and an
// Operations registry. Host bindings call the Manager's On* entry points
// from their own callbacks; the Manager moves the phase, invokes the
// matching hook on every resource and drains reversible operations at the
// end of each test and at the end of the class.
//
// Code running in a resource hook or a test body records cleanup by
// executing a reversible operation:
//
//	dir, err := lifecycle.ExecuteReversible(m.Operations(), "create temp dir",
//		func() (string, error) { return os.MkdirTemp("", "fixture-") },
//		func(dir string) error { return os.RemoveAll(dir) },
//	)
//
// Operations executed while the phase is BeforeClass or AfterClass are
// reversed by OnAfterAll; all others by the next OnAfterEach. Reversal runs
// in reverse registration order and continues past failures, which are
// reported together as a *MultipleFailuresError.
package lifecycle
