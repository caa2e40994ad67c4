package util

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const maxTraceDepth = 32

// GetTrace produces the string representation of the caller's stack trace, omitting runtime frames
func GetTrace() string {
	var pcs [maxTraceDepth]uintptr
	var res strings.Builder
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&res, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		}
		if !more {
			break
		}
	}
	return res.String()
}

// FormatMultiError formats an error for logging, placing each error aggregated within a multierror on its own line
func FormatMultiError(err error) string {
	merr, ok := err.(*multierror.Error)
	if !ok {
		return fmt.Sprintf("%+v\n", err)
	}
	var msg strings.Builder
	for _, e := range merr.Errors {
		fmt.Fprintf(&msg, "%+v\n", e)
	}
	return msg.String()
}
