package observability

// Metric keys and the labels each is recorded with.
const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"            // use_case, outcome
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"          // use_case
	MHTTPRequests            MetricKey = "http_requests_total"               // method, route, status
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"     // method, route, status
	MExternalRequests        MetricKey = "external_requests_total"           // peer (db, outbox), endpoint, outcome
	MExternalRequestDuration MetricKey = "external_request_duration_seconds" // peer, endpoint
)
