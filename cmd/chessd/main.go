package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/udisondev/chessd/internal/config"
	"github.com/udisondev/chessd/internal/controller"
	"github.com/udisondev/chessd/internal/game"
	"github.com/udisondev/chessd/internal/parser"
	"github.com/udisondev/chessd/internal/server"
)

// VERSION is populated via build flags when packaging release binaries.
var VERSION = "SELFBUILD"

func main() {
	app := cli.NewApp()
	app.Name = "chessd"
	app.Usage = "multi-session chess game server"
	app.Version = VERSION
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "ip, i",
			Value: "127.0.0.1",
			Usage: "bind address (TCP mode)",
		},
		cli.IntFlag{
			Name:  "port, p",
			Value: 2000,
			Usage: "bind port (TCP mode)",
		},
		cli.BoolFlag{
			Name:  "local",
			Usage: "listen on a Unix-domain socket instead of TCP",
		},
		cli.StringFlag{
			Name:  "socket",
			Value: "/tmp/chess_server.sock",
			Usage: "Unix socket path (with --local)",
		},
		cli.StringFlag{
			Name:  "parser",
			Value: "simple",
			Usage: `move notation: "simple" (e2-e4) or "pgn" (Nf3)`,
		},
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "raise log verbosity",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "optional yaml config file",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		// Initialization failures exit 1 through cli.ExitCoder; anything
		// reaching this point is an unexpected internal error.
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(2)
	}
}

func run(c *cli.Context) error {
	cfg := config.DefaultServer()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadServer(path)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}
		cfg = loaded
	}

	// Command-line flags override the config file.
	if c.IsSet("ip") {
		cfg.BindAddress = c.String("ip")
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("local") {
		cfg.Local = true
	}
	if c.IsSet("socket") {
		cfg.SocketPath = c.String("socket")
	}
	if c.IsSet("parser") {
		cfg.Parser = c.String("parser")
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("chessd starting", "log_level", cfg.LogLevel, "parser", cfg.Parser)

	p, err := parser.New(cfg.Parser)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	coord := game.NewCoordinator()
	ctrl := controller.New(coord, p, cfg.ReplayPace)
	srv := server.New(cfg, ctrl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		if ctx.Err() == nil {
			return cli.NewExitError(err.Error(), 1)
		}
		return err
	}

	slog.Info("chessd stopped")
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
