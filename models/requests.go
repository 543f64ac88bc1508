package models

import (
	"github.com/pkg/errors"
)

// Chat_Request is the body accepted by the relay endpoint.
// Messages is a pointer so an absent field can be told apart from an empty array.
type Chat_Request struct {
	Messages *[]Wire_Message `json:"messages"`
}

// Wire_Message is a client supplied message before validation. Any id sent by
// the client is ignored.
type Wire_Message struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History validates the request and returns it as typed messages.
func (r Chat_Request) History() ([]Message, error) {
	if r.Messages == nil {
		return nil, ErrMissingMessages
	}
	history := make([]Message, 0, len(*r.Messages))
	for i, m := range *r.Messages {
		role, err := ParseRole(m.Role)
		if err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		history = append(history, Message{Role: role, Content: m.Content})
	}
	return history, nil
}

// Generate_Request is what a generator receives for a single relay call.
type Generate_Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	// Instruction_As_System routes leading system messages to the provider's
	// system instruction slot. When false they are sent as ordinary turns.
	Instruction_As_System bool `json:"-"`
}
