package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Desarso/minetchat/models"
	"github.com/Desarso/minetchat/render"
	"github.com/Desarso/minetchat/widget"
	"github.com/spf13/cobra"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		url      string
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(os.Stderr)
			if err != nil {
				return err
			}
			relay, cleanup, err := newRelay(cfg, url, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			question := strings.Join(args, " ")
			if !markdown {
				err = ask(cmd.Context(), relay, question, cmd.OutOrStdout())
				fmt.Fprintln(cmd.OutOrStdout())
				return err
			}

			var sb strings.Builder
			if err := ask(cmd.Context(), relay, question, &sb); err != nil {
				return err
			}
			r, err := render.NewTerminalRenderer(cfg.TerminalStyle, 80)
			if err != nil {
				return err
			}
			out, err := r.Render(sb.String())
			fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "relay endpoint; the relay runs in process when empty")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the answer as styled markdown once complete")
	return cmd
}

// ask streams the answer to a one-message conversation into out.
func ask(ctx context.Context, relay widget.Relay, question string, out io.Writer) error {
	history := []models.Message{models.NewMessage(models.RoleUser, question)}
	chunks, errs := relay.Send(ctx, history)

	var result error
	for chunks != nil || errs != nil {
		select {
		case text, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if _, err := io.WriteString(out, text); err != nil {
				return err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				result = err
			}
		}
	}
	return result
}
