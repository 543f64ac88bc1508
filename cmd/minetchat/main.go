package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Desarso/minetchat"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "minetchat",
		Short: "Minet landing page and AI chat relay",
		Long: `minetchat serves the Minet landing page together with a chat relay
that forwards conversations to Gemini and streams the answers back.

Configuration comes from an optional YAML file, MINETCHAT_* environment
variables and a .env file. The API key is read from GOOGLE_API_KEY or
GEMINI_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: auto, console or json")

	root.AddCommand(newServeCmd(opts), newChatCmd(opts), newAskCmd(opts))
	return root
}

// load reads the configuration and builds a logger writing to out.
func (o *rootOptions) load(out io.Writer) (*minetchat.Config, zerolog.Logger, error) {
	cfg, err := minetchat.LoadConfig(o.configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	logger, err := minetchat.NewLogger(cfg.LogLevel, cfg.LogFormat, out)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}
