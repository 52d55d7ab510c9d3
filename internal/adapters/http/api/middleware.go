package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/scalefilter/pkg/metrics"
)

// MetricsMiddleware records request count and latency for endpoint, and
// counts failed requests under the "http" component by failure class.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next(rec, r)

		status := rec.status()
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(status),
			float64(time.Since(start).Microseconds())/1000)
		if class := failureClass(status); class != "" {
			metrics.RecordErrorByComponent("http", class)
		}
	}
}

// failureClass names the error label for status; empty for success.
func failureClass(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return ""
	case status == http.StatusTooManyRequests:
		return "backpressure"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusRequestEntityTooLarge:
		return "too_large"
	case status >= http.StatusInternalServerError:
		return "internal"
	default:
		return "bad_request"
	}
}

// statusRecorder remembers the first status written. A handler that only
// calls Write gets the implicit 200.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.code == 0 {
		s.code = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) status() int {
	if s.code == 0 {
		return http.StatusOK
	}
	return s.code
}
