package fixtures

import "github.com/ryanmoran/testbed/lifecycle"

// execute runs a stateful operation with separate forward and reverse
// descriptions and returns its result.
func execute[R any](ops *lifecycle.Operations, desc, reverseDesc string, forward func() (R, error), reverse func(R) error) (R, error) {
	op := lifecycle.NewStateful(desc, forward, reverse).WithReverseDescription(reverseDesc)
	if err := ops.ExecuteOperation(op); err != nil {
		var zero R
		return zero, err
	}

	result, _ := op.Result()
	return result, nil
}
