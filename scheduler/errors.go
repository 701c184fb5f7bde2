package scheduler

import (
	"context"
	"errors"
	"strings"

	oc "github.com/gofhir/orchestrator"
)

// classifyError maps a collaborator error to the issue taxonomy. Deadline
// errors and error text mentioning a timeout become TIMEOUT; unreachable
// downstream dependencies become NETWORK_ERROR; everything else is
// ASPECT_ERROR.
func classifyError(err error) oc.IssueCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return oc.CodeTimeout
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "timeout"), strings.Contains(text, "timed out"),
		strings.Contains(text, "etimedout"), strings.Contains(text, "deadline"):
		return oc.CodeTimeout
	case strings.Contains(text, "econn"), strings.Contains(text, "connection refused"),
		strings.Contains(text, "connection reset"), strings.Contains(text, "no such host"),
		strings.Contains(text, "network"):
		return oc.CodeNetworkError
	default:
		return oc.CodeAspectError
	}
}
