package main

import (
	"io"
	"os"

	"github.com/Desarso/minetchat/widget"
	"github.com/Desarso/minetchat/widget/tui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	var (
		url     string
		logFile string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		Long: `Opens a terminal chat window.

Keys: enter sends, esc stops the current answer, ctrl+r retries a failed
request, ctrl+c quits. Without --url the relay runs in process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var out io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return errors.Wrap(err, "failed to open log file")
				}
				defer f.Close()
				out = f
			}
			cfg, logger, err := opts.load(out)
			if err != nil {
				return err
			}

			relay, cleanup, err := newRelay(cfg, url, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			w := widget.New(relay, logger)
			return tui.Run(cmd.Context(), w, cfg.TerminalStyle)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "relay endpoint, e.g. http://localhost:8080/api/gemini or ws://localhost:8080/api/gemini/ws")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file")
	return cmd
}
