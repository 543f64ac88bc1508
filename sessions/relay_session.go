package sessions

import (
	"context"
	"time"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/prompt"
	"github.com/Desarso/minetchat/stores"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var errNoOutput = errors.New("generation returned no output")

// RelaySession handles one relay request. Sessions hold no state that
// outlives the request.
type RelaySession struct {
	Generator   Generator
	Prompt      *prompt.Builder
	Store       stores.ExchangeStore
	Model       string
	Temperature float64
	ExchangeID  string
	Logger      zerolog.Logger

	now func() time.Time
}

// BuildRequest returns the outbound generation request for a client history.
func (s *RelaySession) BuildRequest(history []models.Message) models.Generate_Request {
	return models.Generate_Request{
		Model:                 s.Model,
		Messages:              s.Prompt.Build(history),
		Temperature:           s.Temperature,
		Instruction_As_System: s.Prompt.AsSystem(),
	}
}

// RunStream starts the generation call and returns its chunk and error channels.
func (s *RelaySession) RunStream(ctx context.Context, history []models.Message) (<-chan models.Stream_Chunk, <-chan error) {
	request := s.BuildRequest(history)
	s.Logger.Debug().Int("history", len(history)).Int("outbound", len(request.Messages)).Msg("relaying conversation")
	return s.Generator.Stream_Text(ctx, request)
}

// RunStreamInteraction relays history to the generator and streams the output
// to writer. A *RelayError reports upstream failures; ctx errors report
// client cancellation.
func (s *RelaySession) RunStreamInteraction(ctx context.Context, history []models.Message, writer StreamWriter) error {
	start := s.now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	respChan, errChan := s.RunStream(ctx, history)

	var (
		acc          []byte
		started      bool
		finishReason string
		usage        *models.Usage
		result       error
	)

	begin := func() error {
		if started {
			return nil
		}
		started = true
		return writer.Begin(s.ExchangeID)
	}

loop:
	for {
		select {
		case chunk, ok := <-respChan:
			if !ok {
				respChan = nil
				break
			}
			if err := begin(); err != nil {
				result = errors.Wrap(err, "failed to start client stream")
				break loop
			}
			if chunk.Text != "" {
				acc = append(acc, chunk.Text...)
				if err := writer.WriteText(chunk.Text); err != nil {
					result = errors.Wrap(err, "failed to write to client stream")
					break loop
				}
				writer.Flush()
			}
			if chunk.Finish_Reason != "" {
				finishReason = chunk.Finish_Reason
			}
			if chunk.Usage != nil {
				usage = chunk.Usage
			}

		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				break
			}
			if err != nil {
				result = err
				break loop
			}

		case <-ctx.Done():
			result = ctx.Err()
			break loop
		}

		if respChan == nil && errChan == nil {
			break
		}
	}

	if result == nil && ctx.Err() != nil {
		result = ctx.Err()
	}

	switch {
	case result == nil && !started:
		result = &RelayError{Message: "upstream generation failed", Cause: errNoOutput}
	case result == nil:
		if finishReason == "" {
			finishReason = models.FinishStop
		}
		if err := writer.WriteFinish(finishReason, usage); err != nil {
			s.Logger.Warn().Err(err).Msg("failed to write finish part")
		}
		writer.Flush()
	case errors.Is(result, context.Canceled) || errors.Is(result, context.DeadlineExceeded):
		s.Logger.Info().Int("chars", len(acc)).Msg("client cancelled relay stream")
	default:
		var re *RelayError
		if !errors.As(result, &re) {
			re = &RelayError{Message: "upstream generation failed", Cause: result}
			result = re
		}
		re.Started = started
		if started {
			if err := writer.WriteError(errors.New(GenericErrorMessage)); err != nil {
				s.Logger.Warn().Err(err).Msg("failed to write error part")
			}
			if err := writer.WriteFinish(models.FinishError, usage); err != nil {
				s.Logger.Warn().Err(err).Msg("failed to write finish part")
			}
			writer.Flush()
		}
		s.Logger.Error().Err(re.Cause).Bool("started", started).Msg(re.Message)
	}

	s.record(history, string(acc), finishReason, result, s.now().Sub(start))
	return result
}

func (s *RelaySession) record(history []models.Message, response, finishReason string, result error, elapsed time.Duration) {
	if s.Store == nil {
		return
	}
	ex := &stores.Exchange{
		ExchangeID:   s.ExchangeID,
		Model:        s.Model,
		Status:       stores.StatusCompleted,
		Messages:     models.CloneMessages(history),
		Response:     response,
		FinishReason: finishReason,
		DurationMS:   elapsed.Milliseconds(),
	}
	if ex.Messages == nil {
		ex.Messages = []models.Message{}
	}
	switch {
	case result == nil:
	case errors.Is(result, context.Canceled) || errors.Is(result, context.DeadlineExceeded):
		ex.Status = stores.StatusCancelled
	default:
		ex.Status = stores.StatusFailed
		ex.Error = result.Error()
	}
	if err := s.Store.SaveExchange(ex); err != nil {
		s.Logger.Warn().Err(err).Msg("failed to record exchange")
	}
}
