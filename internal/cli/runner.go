// Package cli is the checklist command line. Every command opens the
// configured store, performs one operation and exits; "ls" can also run
// the interactive list and "serve" runs the HTTP API.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/idilsaglam/checklist/internal/app"
	"github.com/idilsaglam/checklist/internal/config"
	"github.com/idilsaglam/checklist/internal/logging"
	"github.com/idilsaglam/checklist/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// usageError marks a mistake in how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// Streams are the process's output channels.
type Streams struct {
	Out io.Writer
	Err io.Writer
}

// Run executes args and returns an exit code (0 ok, 1 error, 2 usage).
func Run(ctx context.Context, args []string, streams Streams) int {
	if streams.Out == nil {
		streams.Out = os.Stdout
	}
	if streams.Err == nil {
		streams.Err = os.Stderr
	}
	env := &environment{streams: streams}
	defer env.close()

	root := newRootCmd(env)
	root.SetArgs(args)
	root.SetOut(streams.Out)
	root.SetErr(streams.Err)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	ui.Fail(streams.Err, err.Error())
	if isUsage(err) {
		return ExitUsage
	}
	return ExitError
}

func isUsage(err error) bool {
	var ue usageError
	if errors.As(err, &ue) {
		return true
	}
	// cobra reports these as plain errors
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// environment carries root flags and lazily opened resources to commands.
type environment struct {
	streams Streams

	configPath string
	dataPath   string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func (e *environment) loadConfig() (*config.Config, error) {
	if e.cfg != nil {
		return e.cfg, nil
	}
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return nil, err
	}
	if e.dataPath != "" {
		cfg.Storage.Path = e.dataPath
	}
	ui.SetTheme(cfg.UI.Theme)
	e.cfg = cfg
	return cfg, nil
}

// open loads config, builds the logger and opens the store. interactive
// keeps log output off the terminal.
func (e *environment) open(ctx context.Context, interactive bool) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	build := logging.New
	if interactive {
		build = logging.ForTerminalUI
	}
	logger, err := build(cfg.Logging, e.verbose)
	if err != nil {
		return nil, err
	}
	e.logger = logger

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	e.app = a
	return a, nil
}

func (e *environment) close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			e.logger.Warn("close failed", zap.Error(err))
		}
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
}
