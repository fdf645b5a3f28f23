package internal

// RunID identifies one testbed invocation. Containers started by the run
// carry it in their labels.
type RunID string
