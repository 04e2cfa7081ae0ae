package extensions

import (
	"fmt"
	"log/slog"
	"slices"
)

// Policy controls how a SupportEvaluator treats unrecognized extensions.
type Policy int

const (
	// Fail returns an error for unrecognized extensions.
	Fail Policy = iota
	// Warn logs unrecognized extensions and reports them as unsupported
	// without error.
	Warn
)

// SupportEvaluator decides what to do when a storage root or object
// references an extension that isn't in the registry. Names on the ignore
// list are always downgraded to a warning, even under the Fail policy.
type SupportEvaluator struct {
	Registry Registry
	Policy   Policy
	Ignore   []string // extension names exempt from the Fail policy
	Logger   *slog.Logger
}

// Check returns true if name is a supported extension. For unrecognized
// names, the result depends on the evaluator's policy: under Fail, an error
// wrapping ErrUnknown is returned unless name is on the ignore list; under
// Warn (or for ignored names), the unrecognized extension is logged and
// (false, nil) is returned.
func (e SupportEvaluator) Check(name string) (bool, error) {
	if _, err := e.Registry.New(name); err == nil {
		return true, nil
	}
	if e.Policy == Fail && !slices.Contains(e.Ignore, name) {
		return false, fmt.Errorf("%w: %q", ErrUnknown, name)
	}
	if e.Logger != nil {
		e.Logger.Warn("unsupported extension", "extension", name)
	}
	return false, nil
}
