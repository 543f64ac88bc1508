package sessions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/prompt"
	"github.com/Desarso/minetchat/stores"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGenerator replays scripted chunks and an optional trailing error.
type fakeGenerator struct {
	mu       sync.Mutex
	requests []models.Generate_Request
	chunks   []models.Stream_Chunk
	err      error
	block    bool
}

func (f *fakeGenerator) Stream_Text(ctx context.Context, request models.Generate_Request) (<-chan models.Stream_Chunk, <-chan error) {
	f.mu.Lock()
	f.requests = append(f.requests, request)
	f.mu.Unlock()

	resChan := make(chan models.Stream_Chunk)
	errChan := make(chan error, 1)
	go func() {
		defer close(resChan)
		defer close(errChan)
		for _, c := range f.chunks {
			select {
			case resChan <- c:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
		if f.block {
			<-ctx.Done()
			errChan <- ctx.Err()
			return
		}
		if f.err != nil {
			errChan <- f.err
		}
	}()
	return resChan, errChan
}

type recordingWriter struct {
	began    string
	texts    []string
	errs     []string
	finishes []string
	flushes  int
	onText   func()
}

func (w *recordingWriter) Begin(messageID string) error {
	w.began = messageID
	return nil
}

func (w *recordingWriter) WriteText(text string) error {
	w.texts = append(w.texts, text)
	if w.onText != nil {
		w.onText()
	}
	return nil
}

func (w *recordingWriter) WriteError(err error) error {
	w.errs = append(w.errs, err.Error())
	return nil
}

func (w *recordingWriter) WriteFinish(reason string, usage *models.Usage) error {
	w.finishes = append(w.finishes, reason)
	return nil
}

func (w *recordingWriter) Flush() { w.flushes++ }

type memoryStore struct {
	mu        sync.Mutex
	exchanges []*stores.Exchange
	fail      bool
}

func (m *memoryStore) SaveExchange(ex *stores.Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("disk full")
	}
	m.exchanges = append(m.exchanges, ex)
	return nil
}

func (m *memoryStore) RecentExchanges(limit int) ([]*stores.Exchange, error) { return m.exchanges, nil }
func (m *memoryStore) PurgeBefore(_ time.Time) (int64, error)              { return 0, nil }
func (m *memoryStore) Ping() error                                          { return nil }
func (m *memoryStore) Close() error                                         { return nil }

func newSession(t *testing.T, gen Generator, store stores.ExchangeStore) *RelaySession {
	t.Helper()
	builder, err := prompt.NewBuilder("", models.RoleUser)
	require.NoError(t, err)
	opts := Options{Model: "gemini-test", Temperature: 0.7, Logger: zerolog.Nop()}
	if store != nil {
		opts.Store = store
	}
	return NewRelaySession(gen, builder, opts)
}

func TestRunStreamInteraction_OutboundSequence(t *testing.T) {
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{{Text: "ok", Finish_Reason: models.FinishStop}}}
	s := newSession(t, gen, nil)
	history := []models.Message{{Role: models.RoleUser, Content: "What is the Claims Module?"}}

	require.NoError(t, s.RunStreamInteraction(context.Background(), history, &recordingWriter{}))

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	assert.Equal(t, "gemini-test", req.Model)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.False(t, req.Instruction_As_System)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, models.RoleUser, req.Messages[0].Role)
	assert.Equal(t, prompt.Instruction, req.Messages[0].Content)
	assert.Equal(t, models.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "What is the Claims Module?", req.Messages[1].Content)
}

func TestRunStreamInteraction_EmptyHistory(t *testing.T) {
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{{Text: "hi"}}}
	s := newSession(t, gen, nil)

	require.NoError(t, s.RunStreamInteraction(context.Background(), nil, &recordingWriter{}))
	require.Len(t, gen.requests[0].Messages, 1)
	assert.Equal(t, prompt.Instruction, gen.requests[0].Messages[0].Content)
}

func TestRunStreamInteraction_StreamsChunksInOrder(t *testing.T) {
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{
		{Text: "Hello"},
		{Text: " world"},
		{Finish_Reason: models.FinishStop, Usage: &models.Usage{Prompt_Tokens: 1, Completion_Tokens: 2}},
	}}
	store := &memoryStore{}
	s := newSession(t, gen, store)
	w := &recordingWriter{}

	require.NoError(t, s.RunStreamInteraction(context.Background(), nil, w))

	assert.Equal(t, s.ExchangeID, w.began)
	assert.Equal(t, []string{"Hello", " world"}, w.texts)
	assert.Equal(t, "Hello world", strings.Join(w.texts, ""))
	assert.Equal(t, []string{models.FinishStop}, w.finishes)
	assert.Empty(t, w.errs)

	require.Len(t, store.exchanges, 1)
	ex := store.exchanges[0]
	assert.Equal(t, stores.StatusCompleted, ex.Status)
	assert.Equal(t, "Hello world", ex.Response)
	assert.Equal(t, models.FinishStop, ex.FinishReason)
	assert.NotNil(t, ex.Messages)
}

func TestRunStreamInteraction_DefaultFinishReason(t *testing.T) {
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{{Text: "x"}}}
	w := &recordingWriter{}
	require.NoError(t, newSession(t, gen, nil).RunStreamInteraction(context.Background(), nil, w))
	assert.Equal(t, []string{models.FinishStop}, w.finishes)
}

func TestRunStreamInteraction_FailsBeforeStart(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("API key not valid")}
	store := &memoryStore{}
	s := newSession(t, gen, store)
	w := &recordingWriter{}

	err := s.RunStreamInteraction(context.Background(), nil, w)

	var re *RelayError
	require.ErrorAs(t, err, &re)
	assert.False(t, re.Started)
	assert.Contains(t, err.Error(), "API key not valid")
	assert.Empty(t, w.began)
	assert.Empty(t, w.errs)
	require.Len(t, store.exchanges, 1)
	assert.Equal(t, stores.StatusFailed, store.exchanges[0].Status)
}

func TestRunStreamInteraction_NoOutputIsFailure(t *testing.T) {
	err := newSession(t, &fakeGenerator{}, nil).RunStreamInteraction(context.Background(), nil, &recordingWriter{})
	var re *RelayError
	require.ErrorAs(t, err, &re)
	assert.False(t, re.Started)
	assert.ErrorIs(t, err, errNoOutput)
}

func TestRunStreamInteraction_FailsMidStream(t *testing.T) {
	gen := &fakeGenerator{
		chunks: []models.Stream_Chunk{{Text: "Hel"}},
		err:    errors.New("stream reset"),
	}
	w := &recordingWriter{}

	err := newSession(t, gen, nil).RunStreamInteraction(context.Background(), nil, w)

	var re *RelayError
	require.ErrorAs(t, err, &re)
	assert.True(t, re.Started)
	assert.Equal(t, []string{"Hel"}, w.texts)
	assert.Equal(t, []string{GenericErrorMessage}, w.errs)
	assert.Equal(t, []string{models.FinishError}, w.finishes)
}

func TestRunStreamInteraction_ClientCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{{Text: "partial"}}, block: true}
	store := &memoryStore{}
	w := &recordingWriter{onText: cancel}

	err := newSession(t, gen, store).RunStreamInteraction(ctx, nil, w)

	assert.ErrorIs(t, err, context.Canceled)
	var re *RelayError
	assert.False(t, errors.As(err, &re))
	assert.Empty(t, w.errs)
	assert.Empty(t, w.finishes)
	require.Len(t, store.exchanges, 1)
	assert.Equal(t, stores.StatusCancelled, store.exchanges[0].Status)
	assert.Equal(t, "partial", store.exchanges[0].Response)
}

func TestRunStreamInteraction_StoreFailureIgnored(t *testing.T) {
	gen := &fakeGenerator{chunks: []models.Stream_Chunk{{Text: "ok"}}}
	err := newSession(t, gen, &memoryStore{fail: true}).RunStreamInteraction(context.Background(), nil, &recordingWriter{})
	assert.NoError(t, err)
}

func TestNewRelaySession_FreshExchangeIDs(t *testing.T) {
	a := newSession(t, &fakeGenerator{}, nil)
	b := newSession(t, &fakeGenerator{}, nil)
	assert.NotEqual(t, a.ExchangeID, b.ExchangeID)
}

func TestBuildRequest_SystemInstruction(t *testing.T) {
	builder, err := prompt.NewBuilder("", models.RoleSystem)
	require.NoError(t, err)
	s := NewRelaySession(&fakeGenerator{}, builder, Options{Logger: zerolog.Nop()})
	req := s.BuildRequest([]models.Message{{Role: models.RoleUser, Content: "hi"}})
	assert.True(t, req.Instruction_As_System)
	assert.Equal(t, models.RoleSystem, req.Messages[0].Role)
}
