package datastream

import "github.com/Desarso/minetchat/models"

// Websocket frame types. Server frames carry start, text, error and done;
// clients send chat and cancel.
const (
	FrameStart  = "start"
	FrameText   = "text"
	FrameError  = "error"
	FrameDone   = "done"
	FrameChat   = "chat"
	FrameCancel = "cancel"
)

// Frame is one server to client websocket message. Status is set on errors
// that happen before any output, mirroring the HTTP status the POST endpoint
// would have answered with.
type Frame struct {
	Type         string        `json:"type"`
	MessageID    string        `json:"messageId,omitempty"`
	Text         string        `json:"text,omitempty"`
	Error        string        `json:"error,omitempty"`
	Status       int           `json:"status,omitempty"`
	FinishReason string        `json:"finishReason,omitempty"`
	Usage        *models.Usage `json:"usage,omitempty"`
}

// ClientFrame is one client to server websocket message. An empty Type is
// treated as chat.
type ClientFrame struct {
	Type     string                 `json:"type,omitempty"`
	Messages *[]models.Wire_Message `json:"messages,omitempty"`
}
