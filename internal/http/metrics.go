package http

import (
	"fmt"
	"io"
	"net/http"
)

// handleMetrics writes counters in the Prometheus text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	stats := s.reports.Stats()
	tm := s.tracer.GetMetrics()
	dm := s.detector.GetMetrics()

	writeMetric(w, "rareport_sessions_active", "gauge", "Upload sessions currently held in memory.", int64(stats.Sessions))
	writeMetric(w, "rareport_uploads_processed_total", "counter", "Uploads turned into a session.", stats.UploadsOK)
	writeMetric(w, "rareport_uploads_failed_total", "counter", "Uploads rejected by the pipeline.", stats.UploadsFailed)
	writeMetric(w, "rareport_http_requests_total", "counter", "Completed HTTP requests.", tm.TotalRequests)
	writeMetric(w, "rareport_http_client_errors_total", "counter", "Responses with a 4xx status.", tm.ClientErrors)
	writeMetric(w, "rareport_http_server_errors_total", "counter", "Responses with a 5xx status.", tm.ServerErrors)
	writeMetric(w, "rareport_http_requests_in_flight", "gauge", "Requests being served.", tm.InFlight)
	writeMetric(w, "rareport_http_request_duration_microseconds_sum", "counter", "Total time spent serving requests.", tm.TotalDurationMicros)
	writeMetric(w, "rareport_ratelimit_rejected_total", "counter", "Uploads refused by the rate limiter.", s.limiter.Rejected())
	writeMetric(w, "rareport_ratelimit_clients", "gauge", "Clients tracked by the rate limiter.", int64(s.limiter.ActiveClients()))
	writeMetric(w, "rareport_security_suspicious_requests_total", "counter", "Requests flagged as probing.", dm.SuspiciousRequests)
	writeMetric(w, "rareport_security_invalid_ip_total", "counter", "Requests with an unparsable client address.", dm.InvalidIPAttempts)
}

func writeMetric(w io.Writer, name, kind, help string, v int64) {
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, v)
}
