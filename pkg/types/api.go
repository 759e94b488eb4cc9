package types

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Summarize this thread in one sentence.
	Prompt string `json:"prompt"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty"`
}

// ClassifyRequest is the payload for POST /classify.
type ClassifyRequest struct {
	// Text to classify (typically subject + snippet).
	Text string `json:"text"`
	// Candidate category names; the response is exactly one of these.
	// example: ["primary","promotions","updates"]
	Categories []string `json:"categories"`
}

// ClassifyResponse wraps the chosen category.
type ClassifyResponse struct {
	Category string `json:"category"`
}

// EnqueueRequest is the payload for POST /queue.
type EnqueueRequest struct {
	Messages []Message `json:"messages"`
}

// ModelsResponse wraps the catalog listing returned by GET /models.
type ModelsResponse struct {
	Models []ModelEntry `json:"models"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// True when some engine tier can serve generative requests.
	EngineAvailable bool `json:"engine_available"`
	// Name of the engine tier currently resolved (embedded, model, none).
	EngineTier string `json:"engine_tier"`
	// Model id recommended for this device's RAM.
	RecommendedModel string `json:"recommended_model"`
	// Bytes used by the models directory.
	StorageBytes int64 `json:"storage_bytes"`
	// Background queue snapshot.
	Queue QueueState `json:"queue"`
	// Uptime of the daemon in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: qwen2.5-1.5b-instruct-q4
	Error string `json:"error"`
	// HTTP status code.
	// example: 404
	Code int `json:"code"`
}
