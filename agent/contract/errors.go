package contract

import (
	"errors"
	"strings"
)

var (
	ErrCompletion    = errors.New("completion service failed")
	ErrPlanParse     = errors.New("execution plan could not be parsed")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrToolExecution = errors.New("tool execution failed")
	ErrPromptMissing = errors.New("required prompt is missing")
	ErrValidation    = errors.New("validation failed")
)

// graphFramePrefixes are the headers compose puts on errors that leave a
// graph node, followed by the node path.
var graphFramePrefixes = []string{"[NodeRunError]", "[GraphRunError]"}

// GraphCause returns the error a graph node produced without the compose
// framing around it. errors.Is matches the same sentinels on both.
func GraphCause(err error) error {
	for err != nil && isGraphFrame(err) {
		inner := errors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}
	return err
}

func isGraphFrame(err error) bool {
	msg := err.Error()
	for _, prefix := range graphFramePrefixes {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}
