package server

import (
	"net/http"

	"github.com/Desarso/minetchat/datastream"
	"github.com/Desarso/minetchat/models"
	"github.com/gin-gonic/gin"
)

// DataStreamWriter writes relay output in the data stream line protocol.
// Headers are committed by Begin, so an error before the first chunk can
// still be answered with a status code.
type DataStreamWriter struct {
	w   http.ResponseWriter
	out *datastream.Writer
}

func NewDataStreamWriter(w http.ResponseWriter) *DataStreamWriter {
	return &DataStreamWriter{w: w, out: datastream.NewWriter(w)}
}

func (d *DataStreamWriter) Begin(messageID string) error {
	datastream.SetHeaders(d.w.Header())
	d.w.WriteHeader(http.StatusOK)
	return d.out.WriteStart(messageID)
}

func (d *DataStreamWriter) WriteText(text string) error {
	return d.out.WriteText(text)
}

func (d *DataStreamWriter) WriteError(err error) error {
	return d.out.WriteError(err.Error())
}

func (d *DataStreamWriter) WriteFinish(reason string, usage *models.Usage) error {
	return d.out.WriteFinish(reason, usage)
}

func (d *DataStreamWriter) Flush() {
	if f, ok := d.w.(http.Flusher); ok {
		f.Flush()
	}
}

// GinSSEWriter writes relay output as server-sent events. Payloads are JSON
// objects so leading whitespace in text chunks survives the event framing.
type GinSSEWriter struct {
	c         *gin.Context
	messageID string
}

func NewGinSSEWriter(c *gin.Context) *GinSSEWriter {
	return &GinSSEWriter{c: c}
}

func (s *GinSSEWriter) Begin(messageID string) error {
	s.messageID = messageID
	s.c.Header("Content-Type", "text/event-stream")
	s.c.Header("Cache-Control", "no-cache")
	s.c.Header("Connection", "keep-alive")
	s.c.Status(http.StatusOK)
	return nil
}

func (s *GinSSEWriter) WriteText(text string) error {
	s.c.SSEvent("message", gin.H{"text": text})
	return nil
}

func (s *GinSSEWriter) WriteError(err error) error {
	s.c.SSEvent("error", gin.H{"error": err.Error()})
	return nil
}

func (s *GinSSEWriter) WriteFinish(reason string, usage *models.Usage) error {
	s.c.SSEvent("done", gin.H{
		"messageId":    s.messageID,
		"finishReason": reason,
		"usage":        usage,
	})
	return nil
}

func (s *GinSSEWriter) Flush() {
	s.c.Writer.Flush()
}
