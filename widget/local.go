package widget

import (
	"context"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/sessions"
)

// LocalRelay runs relay sessions in process, without an HTTP hop.
type LocalRelay struct {
	NewSession func() *sessions.RelaySession
}

func (r *LocalRelay) Send(ctx context.Context, history []models.Message) (<-chan string, <-chan error) {
	resChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		defer close(resChan)
		defer close(errChan)
		w := &chanWriter{ctx: ctx, out: resChan}
		if err := r.NewSession().RunStreamInteraction(ctx, history, w); err != nil {
			errChan <- err
		}
	}()

	return resChan, errChan
}

// chanWriter adapts a channel to sessions.StreamWriter.
type chanWriter struct {
	ctx context.Context
	out chan<- string
}

func (w *chanWriter) Begin(string) error { return nil }

func (w *chanWriter) WriteText(text string) error {
	return emit(w.ctx, w.out, text)
}

// Error parts are reported through the session's returned error instead.
func (w *chanWriter) WriteError(error) error { return nil }

func (w *chanWriter) WriteFinish(string, *models.Usage) error { return nil }

func (w *chanWriter) Flush() {}
