// Package config loads the process-wide configuration used by the rest of
// the runtime.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"
)

type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server  Server  `cfg:"server"`
	Gateway Gateway `cfg:"gateway"`
	Store   Store   `cfg:"store"`
	Theme   Theme   `cfg:"theme"`

	// AdminContext is the conversation id error replies are sent to when an
	// event has no context of its own (context == 0) or when an uncaught
	// error occurs outside any particular conversation.
	AdminContext int64 `cfg:"admin_context" default:"-114514"`
}

// Server configures the inbound HTTP ingestion endpoint.
type Server struct {
	Host string `cfg:"host"`
	Port string `cfg:"port" default:"8080"`
}

// Gateway configures the outbound client to the chat gateway's JSON API.
type Gateway struct {
	// BaseURL is the gateway's local HTTP address, e.g. "http://127.0.0.1:5700".
	BaseURL string `cfg:"base_url" default:"http://127.0.0.1:5700"`

	// Timeout bounds every outbound gateway call.
	Timeout time.Duration `cfg:"timeout" default:"10s"`
}

// Store configures where each plugin module's workbook file lives.
type Store struct {
	// Dir is the directory holding one "<module>.xlsx" file per plugin
	// module that declares record types.
	Dir string `cfg:"dir" default:"excel"`
}

// Theme carries the original's fixed palette, used by the non-contractual
// status page.
type Theme struct {
	Primary string `cfg:"primary" default:"#2b2e3b"`
	Accent1 string `cfg:"accent1" default:"#e5533c"`
	Accent2 string `cfg:"accent2" default:"#3ca7e5"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("NEZUMI_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
