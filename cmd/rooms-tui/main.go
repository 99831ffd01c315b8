// rooms-tui is a terminal client for the chat-rooms server. It keeps one
// websocket open, reconnects with backoff when it drops, and resumes the
// last joined room from the token saved in the state directory.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/SandroK0/chat-rooms/internal/app"
	"github.com/SandroK0/chat-rooms/internal/config"
	"github.com/SandroK0/chat-rooms/internal/directory"
	"github.com/SandroK0/chat-rooms/internal/keystore"
	"github.com/SandroK0/chat-rooms/internal/logging"
	"github.com/SandroK0/chat-rooms/internal/session"
	"github.com/SandroK0/chat-rooms/internal/transport"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		wsURL      string
		apiURL     string
		stateDir   string
		logFile    string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("rooms-tui", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", config.DefaultPath(), "path to the YAML config file")
	flagSet.StringVar(&wsURL, "ws-url", "", "websocket endpoint of the chat server")
	flagSet.StringVar(&apiURL, "api-url", "", "HTTP base URL for the room listing")
	flagSet.StringVar(&stateDir, "state-dir", "", "directory holding the saved session token")
	flagSet.StringVar(&logFile, "log-file", "", "write JSON log records to this file (in addition to the debug overlay)")
	flagSet.StringVar(&logLevel, "log-level", "", "minimum log level: debug, info, warn, error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("ws-url") {
		cfg.WSURL = wsURL
	}
	if flagSet.Changed("api-url") {
		cfg.APIURL = apiURL
	}
	if flagSet.Changed("state-dir") {
		cfg.StateDir = stateDir
	}
	if flagSet.Changed("log-file") {
		cfg.Log.File = logFile
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logs := logging.NewTUIHandler(level)
	var handler slog.Handler = logs
	if cfg.Log.File != "" {
		fileHandler, file, err := logging.OpenFile(cfg.Log.File, level)
		if err != nil {
			return err
		}
		defer file.Close()
		handler = logging.Fanout{logs, fileHandler}
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := keystore.New(cfg.StateDir)
	rooms := directory.New(ctx, directory.NewClient(cfg.APIURL, cfg.HTTPTimeout), logger.With("component", "directory"))
	machine := session.New(session.Config{
		Tokens:    store,
		Directory: rooms,
		Logger:    logger.With("component", "session"),
	})

	manager := transport.NewManager(transport.Options{
		MaxMessageBytes: cfg.Transport.MaxMessageBytes,
		Logger:          logger.With("component", "transport"),
	})
	defer manager.Shutdown()

	logger.Info("starting", "endpoint", cfg.WSURL, "state", store.Path())

	model := app.New(ctx, app.Deps{
		Transport:     manager,
		Session:       machine,
		Directory:     rooms,
		Logs:          logs,
		Logger:        logger.With("component", "app"),
		Endpoint:      cfg.WSURL,
		BaseDelay:     cfg.Reconnect.BaseDelay,
		MaxDelay:      cfg.Reconnect.MaxDelay,
		MarkdownStyle: cfg.MarkdownStyle,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(app.Model); ok {
		m.Close()
	}
	return err
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rooms-tui: terminal client for chat-rooms.

Connects to the server's websocket, lists rooms over HTTP, and lets you
create, join and chat in one room at a time. A joined room is resumed
automatically after a reconnect or a restart.

Settings are read from the config file, then ROOMS_* environment
variables, then the flags below.

Usage:
  rooms-tui [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
