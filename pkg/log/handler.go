package log

import (
	"github.com/cockroachdb/errors"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// extractStacktrace returns the first safe detail cockroachdb/errors recorded
// for err, which holds the formatted stack of errors.WithStack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// findError returns the value stored under the "error" key, if it is an error.
func findError(fields []any) (error, bool) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok || key != ErrAttrKey {
			continue
		}
		if err, ok := fields[i+1].(error); ok {
			return err, true
		}
	}
	return nil, false
}
