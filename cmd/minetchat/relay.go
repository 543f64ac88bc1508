package main

import (
	"strings"

	"github.com/Desarso/minetchat"
	"github.com/Desarso/minetchat/widget"
	"github.com/rs/zerolog"
)

// newRelay returns a websocket relay for ws:// and wss:// urls, an HTTP relay
// for any other url and an in-process relay
// built from the local configuration otherwise. The returned cleanup closes
// whatever the relay opened.
func newRelay(cfg *minetchat.Config, url string, logger zerolog.Logger) (widget.Relay, func(), error) {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return widget.NewWebSocketRelay(url, logger), func() {}, nil
	}
	if url != "" {
		return widget.NewHTTPRelay(url, logger), func() {}, nil
	}
	app, err := minetchat.NewApp(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return &widget.LocalRelay{NewSession: app.NewSession}, func() { _ = app.Close() }, nil
}
