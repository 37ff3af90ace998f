package deadlinks

import (
	"net/http"

	"github.com/nao1215/deadlinks/internal/model"
)

// Classify maps a check outcome to a verdict.
//
// Without a response the link is a connection error when timeouts count as
// errors, and skipped otherwise. A response with a status in [400, 500) is
// an access error. Every other non-200 status is accepted.
func Classify(o model.Outcome, timeoutIsError bool) model.Verdict {
	if o.Availability != model.True {
		if timeoutIsError {
			return model.VerdictConnectionError
		}
		return model.VerdictSkipped
	}

	if o.Success == model.False {
		if o.StatusCode >= http.StatusBadRequest && o.StatusCode < http.StatusInternalServerError {
			return model.VerdictAccessError
		}
		return model.VerdictIgnored
	}

	return model.VerdictGood
}
