package model

import "fmt"

// Verdict is the classification the dispatch policy assigns to a checked link.
// Only ConnectionError and AccessError lead to changes in the document.
type Verdict int

const (
	// VerdictGood is a link that answered 200 OK.
	VerdictGood Verdict = iota

	// VerdictIgnored is a link that answered with a non-200 status outside
	// [400, 500), such as a redirect or a server error. It is accepted as is.
	VerdictIgnored

	// VerdictSkipped is a link that could not be reached while timeouts are
	// not treated as errors. The element is left untouched.
	VerdictSkipped

	// VerdictConnectionError is an unreachable link reported as dead because
	// timeouts are treated as errors.
	VerdictConnectionError

	// VerdictAccessError is a link that answered with a status in [400, 500).
	VerdictAccessError
)

// String returns the machine-friendly name of the verdict.
func (v Verdict) String() string {
	switch v {
	case VerdictGood:
		return "good"
	case VerdictIgnored:
		return "ignored"
	case VerdictSkipped:
		return "skipped"
	case VerdictConnectionError:
		return "connection_error"
	case VerdictAccessError:
		return "access_error"
	default:
		return "unknown"
	}
}

// ParseVerdict is the inverse of Verdict.String.
func ParseVerdict(s string) (Verdict, error) {
	for _, v := range []Verdict{VerdictGood, VerdictIgnored, VerdictSkipped, VerdictConnectionError, VerdictAccessError} {
		if v.String() == s {
			return v, nil
		}
	}
	return VerdictGood, fmt.Errorf("unknown verdict %q", s)
}

// IsDead reports whether the verdict marks the link as dead.
func (v Verdict) IsDead() bool {
	return v == VerdictConnectionError || v == VerdictAccessError
}

// MarshalText encodes the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a verdict name.
func (v *Verdict) UnmarshalText(text []byte) error {
	parsed, err := ParseVerdict(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VerdictInfo describes a verdict for report output.
type VerdictInfo struct {
	Title          string
	Impact         string
	Recommendation string
}

// verdictInfoMapping is the single source of report wording per verdict.
var verdictInfoMapping = map[Verdict]VerdictInfo{
	VerdictGood: {
		Title:  "Good link",
		Impact: "The link answered 200 OK.",
	},
	VerdictIgnored: {
		Title:          "Accepted non-OK status",
		Impact:         "The link answered with a redirect or server error. It is not flagged.",
		Recommendation: "Check the link by hand if the status persists across builds.",
	},
	VerdictSkipped: {
		Title:          "Not available (skipped)",
		Impact:         "The link timed out or could not be reached. It was left unchanged.",
		Recommendation: "Enable timeout_is_error to flag unreachable links, or raise timeout_duration_ms.",
	},
	VerdictConnectionError: {
		Title:          "Dead link (not available)",
		Impact:         "The link timed out or could not be reached.",
		Recommendation: "Replace the link or point it at an archived copy.",
	},
	VerdictAccessError: {
		Title:          "Dead link (access error)",
		Impact:         "The link answered with a client error status such as 403 or 404.",
		Recommendation: "Update the link target; the page has moved or was removed.",
	},
}

// GetVerdictInfo returns the report wording for a verdict.
func GetVerdictInfo(v Verdict) VerdictInfo {
	if info, ok := verdictInfoMapping[v]; ok {
		return info
	}
	return VerdictInfo{Title: v.String()}
}
