package logtypes

// Level is the normalized severity of a parsed log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Record represents one parsed log line, normalized across input formats.
// Timestamps are event time taken from the line itself; records from a
// single file arrive in file order but no ordering holds across files.
type Record struct {
	TimestampNs int64             `json:"timestamp_ns"`     // nanoseconds since epoch, from the line
	Level       Level             `json:"level"`            // normalized severity
	Message     string            `json:"message"`          // format-specific body
	Source      string            `json:"source"`           // originating file path
	Fields      map[string]string `json:"fields,omitempty"` // format-specific metadata (service, thread, ...)
}
