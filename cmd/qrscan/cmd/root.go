package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrscan/internal/config"
)

// app carries the state shared by one command tree: the loader, the loaded
// configuration and the filesystem outputs are written to.
type app struct {
	loader  *config.Loader
	cfgFile string
	cfg     *config.Config
	fs      afero.Fs
}

// NewRootCommand builds the qrscan command tree with its own configuration
// state, so tests can execute it repeatedly.
func NewRootCommand() *cobra.Command {
	a := &app{
		loader: config.NewLoaderWithViper(viper.New()),
		fs:     afero.NewOsFs(),
	}

	rootCmd := &cobra.Command{
		Use:   "qrscan",
		Short: "Locate and decode QR codes in images and PDFs",
		Long: `qrscan finds the three finder patterns of a QR code in a photo or scan,
rectifies the symbol, samples its module grid and decodes the payload.

It works on single images, whole directories, the images embedded in PDF
documents, and as an HTTP/WebSocket service.

Examples:
  qrscan image ticket.png
  qrscan batch photos/ --recursive --format csv
  qrscan pdf invoice.pdf --pages 1-2
  qrscan serve --port 8080`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.initialize,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/qrscan, /etc/qrscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	if err := a.loader.BindFlagSet(pf, map[string]string{
		"verbose":   "verbose",
		"log_level": "log-level",
	}); err != nil {
		panic(fmt.Sprintf("failed to bind root flags: %v", err))
	}

	rootCmd.AddCommand(
		newImageCommand(a),
		newBatchCommand(a),
		newPDFCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return rootCmd
}

// initialize loads the configuration and installs the structured logger.
func (a *app) initialize(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	a.cfg = cfg

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	// Logs go to stderr so stdout carries only results.
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// Run executes the command tree with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// Execute runs the CLI with the process arguments and exits on failure.
func Execute() {
	if code := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		os.Exit(code)
	}
}
