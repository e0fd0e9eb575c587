package crawl

import (
	"fmt"
)

type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindHTTPStatus ErrorKind = "http_status"
	KindRead       ErrorKind = "read"
)

// TransportError is a failed page or enclosure fetch. It ends pagination
// but does not discard changes merged from earlier pages.
type TransportError struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d for %s", e.Kind, e.StatusCode, e.URL)
	}

	return fmt.Sprintf("fetch %s: %s for %s", e.Kind, e.Cause, e.URL)
}

func (e *TransportError) Unwrap() error { return e.Cause }
