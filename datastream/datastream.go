// Package datastream implements the line-oriented text streaming protocol the
// chat widget consumes. Every line is "<type>:<json>\n".
package datastream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Desarso/minetchat/models"
	"github.com/pkg/errors"
)

const (
	ContentType   = "text/plain; charset=utf-8"
	VersionHeader = "X-Vercel-AI-Data-Stream"
	Version       = "v1"
)

// Part type codes.
const (
	PartText       = '0'
	PartError      = '3'
	PartStartStep  = 'f'
	PartFinishStep = 'e'
	PartFinish     = 'd'
)

// Finish is the payload of finish parts.
type Finish struct {
	FinishReason string        `json:"finishReason"`
	Usage        *models.Usage `json:"usage,omitempty"`
	IsContinued  *bool         `json:"isContinued,omitempty"`
}

type startStep struct {
	MessageID string `json:"messageId"`
}

// Writer encodes parts onto an HTTP response.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// SetHeaders marks a response as a data stream.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", ContentType)
	h.Set(VersionHeader, Version)
	h.Set("Cache-Control", "no-cache")
}

func (w *Writer) part(code byte, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to encode stream part")
	}
	buf := make([]byte, 0, len(payload)+3)
	buf = append(buf, code, ':')
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	_, err = w.w.Write(buf)
	return err
}

func (w *Writer) WriteStart(messageID string) error {
	return w.part(PartStartStep, startStep{MessageID: messageID})
}

func (w *Writer) WriteText(text string) error {
	if text == "" {
		return nil
	}
	return w.part(PartText, text)
}

func (w *Writer) WriteError(message string) error {
	return w.part(PartError, message)
}

// WriteFinish emits the step finish and message finish parts.
func (w *Writer) WriteFinish(reason string, usage *models.Usage) error {
	continued := false
	if err := w.part(PartFinishStep, Finish{FinishReason: reason, Usage: usage, IsContinued: &continued}); err != nil {
		return err
	}
	return w.part(PartFinish, Finish{FinishReason: reason, Usage: usage})
}

// Part is one decoded line.
type Part struct {
	Type    byte
	Text    string
	Error   string
	Finish  *Finish
	Payload json.RawMessage
}

// Reader decodes parts from a response body.
type Reader struct {
	sc *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &Reader{sc: sc}
}

// Next returns the next part or io.EOF.
func (r *Reader) Next() (Part, error) {
	for r.sc.Scan() {
		line := bytes.TrimRight(r.sc.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		return ParseLine(line)
	}
	if err := r.sc.Err(); err != nil {
		return Part{}, err
	}
	return Part{}, io.EOF
}

// ParseLine decodes a single protocol line without its trailing newline.
func ParseLine(line []byte) (Part, error) {
	if len(line) < 2 || line[1] != ':' {
		return Part{}, errors.Errorf("malformed stream line %q", line)
	}
	p := Part{Type: line[0], Payload: append(json.RawMessage(nil), line[2:]...)}
	switch p.Type {
	case PartText:
		if err := json.Unmarshal(p.Payload, &p.Text); err != nil {
			return Part{}, errors.Wrap(err, "malformed text part")
		}
	case PartError:
		if err := json.Unmarshal(p.Payload, &p.Error); err != nil {
			return Part{}, errors.Wrap(err, "malformed error part")
		}
	case PartFinish, PartFinishStep:
		p.Finish = &Finish{}
		if err := json.Unmarshal(p.Payload, p.Finish); err != nil {
			return Part{}, errors.Wrap(err, "malformed finish part")
		}
	}
	return p, nil
}
