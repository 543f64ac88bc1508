package sessions

import (
	"context"

	"github.com/Desarso/minetchat/models"
)

// Generator is the hosted generation API as seen by the relay.
type Generator interface {
	Stream_Text(ctx context.Context, request models.Generate_Request) (<-chan models.Stream_Chunk, <-chan error)
}

// StreamWriter delivers relay output to the client. Begin is called once,
// right before the first text is written, so a writer can still choose the
// response status until then.
type StreamWriter interface {
	Begin(messageID string) error
	WriteText(text string) error
	WriteError(err error) error
	WriteFinish(reason string, usage *models.Usage) error
	Flush()
}

// RelayError represents an upstream failure during a relay call.
type RelayError struct {
	Message string
	// Started is true when output had already reached the client, so the
	// failure was reported inside the stream rather than as a status code.
	Started bool
	Cause   error
}

func (e *RelayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RelayError) Unwrap() error {
	return e.Cause
}

// GenericErrorMessage is what clients see for failures after streaming began.
const GenericErrorMessage = "An error occurred."
