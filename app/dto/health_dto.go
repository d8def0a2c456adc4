package dto

// HealthResponse reports overall status plus the status of each probed dependency
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  int64             `json:"timestamp"`
}

// GreetingResponse is returned by the API root
type GreetingResponse struct {
	Message string `json:"message"`
}
