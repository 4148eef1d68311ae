package decode

import "fmt"

// safeDecode runs fn and converts any panic (out-of-range slice index, for
// instance, from a hand-rolled parser that missed a bounds check somewhere)
// into an ordinary error. Every exported Decode entry point funnels through
// this so a single malformed capture can never take the whole analysis
// pipeline down, matching spec.md §4.4/§9's "never panic" requirement.
func safeDecode[T any](fn func() (T, error)) (result T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("decode: recovered panic: %v", rec)
		}
	}()
	return fn()
}
