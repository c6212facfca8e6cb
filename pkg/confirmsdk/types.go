package confirmsdk

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse carries every reply produced while handling a message, in
// order. A message that releases a confirmed command also carries that
// command's replies.
type MessageResponse struct {
	Replies []string `json:"replies"`
}

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the state of each dependency checked by /readyz.
type HealthChecks struct {
	Store   string `json:"store"`
	Pending int    `json:"pending_commands"`
}
