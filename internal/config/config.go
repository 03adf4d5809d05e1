// Package config holds the server configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the chess server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
	Local       bool   `yaml:"local"`       // Unix-socket mode
	SocketPath  string `yaml:"socket_path"` // with Local

	// Notation parser: "simple" or "pgn"
	Parser string `yaml:"parser"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Session write queue depth; slow clients exceeding it are disconnected.
	SendQueueSize int `yaml:"send_queue_size"`

	// Period of the closed-session registry sweep.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// Pacing delay between streamed move_result lines during replay.
	ReplayPace time.Duration `yaml:"replay_pace"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:     "127.0.0.1",
		Port:            2000,
		Local:           false,
		SocketPath:      "/tmp/chess_server.sock",
		Parser:          "simple",
		LogLevel:        "info",
		SendQueueSize:   256,
		CleanupInterval: 5 * time.Second,
		ReplayPace:      50 * time.Millisecond,
	}
}

// LoadServer reads a yaml config file on top of the defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Server) Validate() error {
	if !c.Local {
		if c.Port <= 0 || c.Port > 65535 {
			return fmt.Errorf("invalid port %d", c.Port)
		}
		if c.BindAddress == "" {
			return fmt.Errorf("bind_address must not be empty")
		}
	} else if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty in local mode")
	}
	if c.Parser != "simple" && c.Parser != "pgn" {
		return fmt.Errorf("unknown parser %q (want simple or pgn)", c.Parser)
	}
	return nil
}
