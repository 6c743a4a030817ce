// internal/models/request.go
package models

// Entity is a named span found in the input.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// AnalyzedRequest is the structured form of a user input. It is the body
// sent to remote api backends.
type AnalyzedRequest struct {
	OriginalInput string      `json:"original_input"`
	Keywords      []string    `json:"keywords"`
	Intent        string      `json:"intent"`
	Entities      []Entity    `json:"entities"`
	Sentiment     string      `json:"sentiment"`
	PreferredType BackendType `json:"preferred_type"`
}

// ProcessInputRequest is the body of POST /process_input.
type ProcessInputRequest struct {
	Input string `json:"input"`
	Type  string `json:"type"`
}

// Envelope is the normalized output returned to callers.
type Envelope struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

// Output kinds.
const (
	OutputText  = "text"
	OutputVoice = "voice"
)

// PerformanceMetrics summarizes recorded executions for one backend.
type PerformanceMetrics struct {
	AverageExecutionTime float64 `json:"average_execution_time"`
	SuccessRate          float64 `json:"success_rate"`
	TotalExecutions      int64   `json:"total_executions"`
}
