package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Desarso/minetchat/models"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Gemini_Model streams completions from the Gemini REST API.
type Gemini_Model struct {
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// StatusError is returned when Gemini answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status code %d: %s", e.StatusCode, e.Message)
}

func (g *Gemini_Model) Stream_Text(ctx context.Context, request models.Generate_Request) (<-chan models.Stream_Chunk, <-chan error) {
	resChan := make(chan models.Stream_Chunk)
	errChan := make(chan error, 1)

	model := request.Model
	if model == "" {
		model = g.Model
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	body, err := json.Marshal(create_gemini_request(request))
	if err != nil {
		errChan <- errors.Wrap(err, "failed to marshal stream request body")
		close(errChan)
		close(resChan)
		return resChan, errChan
	}

	go func() {
		defer close(resChan)
		defer close(errChan)

		if err := g.make_request_stream(ctx, model, body, resChan); err != nil {
			errChan <- err
		}
	}()

	return resChan, errChan
}

func (g *Gemini_Model) endpoint(model string) string {
	base := g.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent", strings.TrimRight(base, "/"), model)
}

func (g *Gemini_Model) make_request_stream(ctx context.Context, model string, body []byte, out chan<- models.Stream_Chunk) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(model), bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create stream request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.APIKey)

	client := g.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	g.Logger.Debug().Str("model", model).Int("body_bytes", len(body)).Msg("gemini stream request")
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "error making POST request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	decoder := json.NewDecoder(resp.Body)

	t, err := decoder.Token()
	if err != nil {
		return errors.Wrap(err, "error reading opening bracket")
	}
	if delim, ok := t.(json.Delim); !ok || delim != '[' {
		return errors.Errorf("expected '[' at start of stream, got %T: %v", t, t)
	}

	for decoder.More() {
		var response Gemini_response
		if err := decoder.Decode(&response); err != nil {
			return errors.Wrap(err, "error decoding JSON object in stream")
		}
		chunk, ok := to_chunk(response)
		if !ok {
			continue
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := decoder.Token(); err != nil && err != io.EOF {
		return errors.Wrap(err, "error reading closing bracket")
	}
	return nil
}

func statusError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var ge Gemini_error
	msg := strings.TrimSpace(string(bodyBytes))
	if json.Unmarshal(bodyBytes, &ge) == nil && ge.Error.Message != "" {
		msg = ge.Error.Message
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}

// to_chunk flattens one streamed response. ok is false when the response
// carries nothing worth forwarding.
func to_chunk(response Gemini_response) (models.Stream_Chunk, bool) {
	var chunk models.Stream_Chunk
	var text strings.Builder
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != nil {
				text.WriteString(*part.Text)
			}
		}
		if candidate.FinishReason != "" {
			chunk.Finish_Reason = MapFinishReason(candidate.FinishReason)
		}
		// only the first candidate is relayed
		break
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		chunk.Finish_Reason = models.FinishFilter
	}
	chunk.Text = text.String()
	if response.UsageMetadata != nil && chunk.Finish_Reason != "" {
		chunk.Usage = &models.Usage{
			Prompt_Tokens:     response.UsageMetadata.PromptTokenCount,
			Completion_Tokens: response.UsageMetadata.CandidatesTokenCount,
		}
	}
	return chunk, chunk.Text != "" || chunk.Finish_Reason != ""
}

// MapFinishReason translates Gemini finish reasons to client finish reasons.
func MapFinishReason(reason string) string {
	switch reason {
	case "STOP":
		return models.FinishStop
	case "MAX_TOKENS":
		return models.FinishLength
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "IMAGE_SAFETY":
		return models.FinishFilter
	case "FINISH_REASON_UNSPECIFIED", "":
		return models.FinishUnknown
	default:
		return models.FinishOther
	}
}

// create_gemini_request turns a relay prompt into a Gemini request body.
// Only the first message can become the system instruction, and only when the
// request asks for it; any other system message is sent as a user turn since
// Gemini has no system role in contents.
func create_gemini_request(request models.Generate_Request) Gemini_Request_Body {
	body := Gemini_Request_Body{Contents: []Gemini_Content{}}

	msgs := request.Messages
	if request.Instruction_As_System {
		if len(msgs) > 0 && msgs[0].Role == models.RoleSystem {
			body.SystemInstruction = &SystemInstruction{Parts: []Request_Part{{Text: msgs[0].Content}}}
			msgs = msgs[1:]
		}
	}

	for _, m := range msgs {
		body.Contents = append(body.Contents, Gemini_Content{
			Role:  gemini_role(m.Role),
			Parts: []Request_Part{{Text: m.Content}},
		})
	}

	temperature := request.Temperature
	body.GenerationConfig = &GenerationConfig{Temperature: &temperature}
	return body
}

func gemini_role(role models.Role) string {
	if role == models.RoleAssistant {
		return "model"
	}
	return "user"
}
