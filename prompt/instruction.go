// Package prompt holds the product instruction the relay prepends to every
// conversation.
package prompt

import (
	"github.com/Desarso/minetchat/models"
	"github.com/pkg/errors"
)

// RefusalText is the answer the instruction asks the model to give for
// questions outside the product's scope.
const RefusalText = "I am sorry, I can only answer questions related to Minet System and its features."

// Instruction is the fixed product instruction.
const Instruction = `You are a helpful assistant for Minet, an insurance brokerage platform.
Your primary role is to assist users by providing accurate and efficient support regarding the system's features, including:
1. **Business Module**: Help users manage business operations, track performance, and optimize workflows.
2. **Providers Module**: Facilitate provider management, ensuring seamless collaboration and integration with insurance partners.
3. **Scheme Module**: Guide users in configuring and managing insurance schemes tailored to customer needs.
4. **Claims Module**: Assist in the processing, tracking, and resolution of claims to enhance client satisfaction.
5. **Members Module**: Support users in managing member data, including enrollment, updates, and inquiries.

Answer user queries about Minet features, pricing and compatibilities only. Do not answer questions unrelated to Minet.

If the question is outside the scope, respond with: "` + RefusalText + `"
Please format your responses using Markdown. Use **bold**, *italics*, ` + "`code`" + `, lists, and other markdown features as appropriate.
Always ensure responses are structured and easy to read.`

// Builder constructs outbound message sequences.
type Builder struct {
	Text string
	Role models.Role
}

// NewBuilder returns a builder for the given instruction role. An empty text
// falls back to Instruction.
func NewBuilder(text string, role models.Role) (*Builder, error) {
	if text == "" {
		text = Instruction
	}
	if role != models.RoleUser && role != models.RoleSystem {
		return nil, errors.Wrapf(models.ErrInvalidRole, "instruction role must be user or system, got %q", role)
	}
	return &Builder{Text: text, Role: role}, nil
}

// Build returns the instruction followed by a re-identified copy of each
// history message, preserving order, role and content.
func (b *Builder) Build(history []models.Message) []models.Message {
	out := make([]models.Message, 0, len(history)+1)
	out = append(out, models.NewMessage(b.Role, b.Text))
	for _, m := range history {
		out = append(out, models.NewMessage(m.Role, m.Content))
	}
	return out
}

// AsSystem reports whether the instruction should go to the provider's
// system instruction slot.
func (b *Builder) AsSystem() bool {
	return b.Role == models.RoleSystem
}
