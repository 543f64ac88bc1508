package models

// Stream_Chunk is one incremental fragment of generated output. The last chunk
// of a stream usually carries Finish_Reason and Usage and may have empty Text.
type Stream_Chunk struct {
	Text          string `json:"text,omitempty"`
	Finish_Reason string `json:"finishReason,omitempty"`
	Usage         *Usage `json:"usage,omitempty"`
}

type Usage struct {
	Prompt_Tokens     int `json:"promptTokens"`
	Completion_Tokens int `json:"completionTokens"`
}

// Finish reasons reported to clients.
const (
	FinishStop    = "stop"
	FinishLength  = "length"
	FinishFilter  = "content-filter"
	FinishError   = "error"
	FinishOther   = "other"
	FinishUnknown = "unknown"
)

// Accumulate concatenates chunk texts in arrival order.
func Accumulate(chunks []Stream_Chunk) string {
	n := 0
	for _, c := range chunks {
		n += len(c.Text)
	}
	buf := make([]byte, 0, n)
	for _, c := range chunks {
		buf = append(buf, c.Text...)
	}
	return string(buf)
}
