// Package googleai streams completions through the official genai SDK.
package googleai

import (
	"context"
	"net/http"
	"strings"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/models/gemini"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// GenAI_Model builds a fresh SDK client for every call, so concurrent relay
// requests never share client state and a missing key only fails the call
// that needed it.
type GenAI_Model struct {
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

func (g *GenAI_Model) Stream_Text(ctx context.Context, request models.Generate_Request) (<-chan models.Stream_Chunk, <-chan error) {
	resChan := make(chan models.Stream_Chunk)
	errChan := make(chan error, 1)

	go func() {
		defer close(resChan)
		defer close(errChan)

		if err := g.stream(ctx, request, resChan); err != nil {
			errChan <- err
		}
	}()

	return resChan, errChan
}

func (g *GenAI_Model) stream(ctx context.Context, request models.Generate_Request, out chan<- models.Stream_Chunk) error {
	cfg := &genai.ClientConfig{
		APIKey:     g.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.HTTPClient,
	}
	if g.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to create genai client")
	}

	model := request.Model
	if model == "" {
		model = g.Model
	}
	contents, config := ToContents(request)
	g.Logger.Debug().Str("model", model).Int("contents", len(contents)).Msg("genai stream request")

	for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return errors.Wrap(err, "genai stream failed")
		}
		chunk, ok := toChunk(resp)
		if !ok {
			continue
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ToContents converts a relay prompt into SDK contents and generation config.
func ToContents(request models.Generate_Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(request.Temperature)),
	}

	msgs := request.Messages
	if request.Instruction_As_System {
		if len(msgs) > 0 && msgs[0].Role == models.RoleSystem {
			config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msgs[0].Content}}}
			msgs = msgs[1:]
		}
	}

	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents, config
}

func toChunk(resp *genai.GenerateContentResponse) (models.Stream_Chunk, bool) {
	var chunk models.Stream_Chunk
	if resp == nil {
		return chunk, false
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		candidate := resp.Candidates[0]
		if candidate.Content != nil {
			var text strings.Builder
			for _, part := range candidate.Content.Parts {
				if part != nil && !part.Thought {
					text.WriteString(part.Text)
				}
			}
			chunk.Text = text.String()
		}
		if candidate.FinishReason != "" {
			chunk.Finish_Reason = gemini.MapFinishReason(string(candidate.FinishReason))
		}
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		chunk.Finish_Reason = models.FinishFilter
	}
	if resp.UsageMetadata != nil && chunk.Finish_Reason != "" {
		chunk.Usage = &models.Usage{
			Prompt_Tokens:     int(resp.UsageMetadata.PromptTokenCount),
			Completion_Tokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return chunk, chunk.Text != "" || chunk.Finish_Reason != ""
}
