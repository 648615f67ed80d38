package fit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cwbudde/xcfit/internal/xc"
)

// ErrConfig matches every configuration error.
// Use errors.Is(err, ErrConfig) to check for this error.
var ErrConfig = &ConfigError{}

// ConfigError reports inconsistent fitting inputs: a structure referenced by a
// formula without data, parameter name sets that disagree, and similar.
// Configuration errors are fatal and never retried.
type ConfigError struct {
	Op     string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Op == "" {
		return "configuration error: " + e.Reason
	}
	return "configuration error: " + e.Op + ": " + e.Reason
}

func (e *ConfigError) Is(target error) bool {
	_, ok := target.(*ConfigError)
	return ok
}

func configErrorf(op, format string, args ...any) error {
	return &ConfigError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// checkNames verifies that got has exactly the names in want.
func checkNames(op, what string, got xc.Params, want []string) error {
	var missing, extra []string
	for _, name := range want {
		if _, ok := got[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(got) != len(want)-len(missing) {
		wantSet := make(map[string]struct{}, len(want))
		for _, name := range want {
			wantSet[name] = struct{}{}
		}
		for name := range got {
			if _, ok := wantSet[name]; !ok {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing "+strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(extra, ", "))
	}
	return configErrorf(op, "%s parameter names disagree: %s", what, strings.Join(parts, "; "))
}
