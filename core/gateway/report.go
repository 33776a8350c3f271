package gateway

import (
	"net/http"

	"github.com/jarvault/jarvault/core/infra/logging"
)

// Reporter receives unexpected (non-rejection) errors together with the
// request and the trace id handed to the client.
type Reporter interface {
	Report(err error, r *http.Request, traceID string)
}

// LogReporter writes reports to the process log; the default sink when
// no external reporter is wired.
type LogReporter struct{}

func (LogReporter) Report(err error, r *http.Request, traceID string) {
	logging.Error("gateway", "unhandled error",
		"trace", traceID, "method", r.Method, "path", r.URL.Path, "error", err)
}
