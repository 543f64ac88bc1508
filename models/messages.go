package models

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var (
	ErrInvalidRole     = errors.New("invalid message role")
	ErrMissingMessages = errors.New("messages must be an array")
)

// ParseRole maps a wire value onto one of the known roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, nil
	default:
		return "", errors.Wrapf(ErrInvalidRole, "%q", s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Message is a single chat turn. ID is only a rendering key and carries no
// ordering or deduplication meaning.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage returns a message with a freshly generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:      NewID(),
		Role:    role,
		Content: content,
	}
}

// NewID generates a message identifier.
func NewID() string {
	return uuid.New().String()
}

// CloneMessages copies a history so callers can mutate the result freely.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
