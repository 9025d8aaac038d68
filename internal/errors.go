package fleettop

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a chart fetch failed
type ErrorKind int

const (
	// KindNetwork covers connection failures and timeouts
	KindNetwork ErrorKind = iota + 1
	// KindHTTPStatus is a response outside the 2xx range
	KindHTTPStatus
	// KindDecode is a malformed body or a missing top level field
	KindDecode
	// KindMissingLabel means the body decoded but a required column is absent
	KindMissingLabel
	// KindNoData is a scalar query that returned no rows
	KindNoData
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTPStatus:
		return "http_status"
	case KindDecode:
		return "decode"
	case KindMissingLabel:
		return "missing_label"
	case KindNoData:
		return "no_data"
	default:
		return "unknown"
	}
}

// FetchError is returned by every failing chart fetch
type FetchError struct {
	Kind       ErrorKind
	Chart      string
	URL        string
	StatusCode int    // set for KindHTTPStatus
	Body       string // truncated response body, KindHTTPStatus only
	Label      string // set for KindMissingLabel
	Err        error
}

func (e *FetchError) Error() string {
	var msg string
	switch e.Kind {
	case KindHTTPStatus:
		msg = fmt.Sprintf("http %d", e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	case KindMissingLabel:
		msg = fmt.Sprintf("label %q not found in response", e.Label)
	case KindNoData:
		msg = "response contains no rows"
	default:
		msg = e.Kind.String() + " error"
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
	}
	if e.Chart != "" {
		return fmt.Sprintf("chart %s: %s", e.Chart, msg)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first FetchError in err's chain
func KindOf(err error) (ErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries a FetchError of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// MetricError ties a chart failure to the metric being aggregated
type MetricError struct {
	Metric Metric
	Err    error
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("%s: %v", e.Metric, e.Err)
}

func (e *MetricError) Unwrap() error {
	return e.Err
}
