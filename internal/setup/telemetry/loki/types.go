package loki

// pushRequest is the body of a Loki push.
type pushRequest struct {
	Streams []stream `json:"streams"`
}

// stream is a labelled series of log lines.
type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// line is one log record as shipped to Loki.
type line struct {
	Level   string         `json:"level"`
	Time    int64          `json:"ts"`
	Message string         `json:"msg"`
	Logger  string         `json:"logger,omitempty"`
	Caller  string         `json:"caller,omitempty"`
	Stack   string         `json:"stacktrace,omitempty"`
	Fields  map[string]any `json:"fields,omitempty"`
}
