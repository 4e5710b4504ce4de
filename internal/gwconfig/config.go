/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package gwconfig provides configuration loading for the gateway
// process: a Default() baseline, a Load(path) that overlays a JSON
// file then environment variables, and a Save(path) for round-tripping
// — the same env > file > defaults layering as
// internal/controlplane/config/config.go.
package gwconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds every setting spec.md §6's CLI surface exposes, so that
// cmd/dbgateway's flag parsing only needs to overlay explicit flags on
// top of this baseline.
type Config struct {
	// Transport: "stdio" (default) or "sse".
	Transport string `json:"transport"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`

	// Connection: either DSN, or the six discrete fields.
	DSN      string `json:"dsn,omitempty"`
	DBType   string `json:"db_type,omitempty"`
	DBUser   string `json:"db_user,omitempty"`
	DBPass   string `json:"db_pass,omitempty"`
	DBHost   string `json:"db_host,omitempty"`
	DBPort   int    `json:"db_port,omitempty"`
	Database string `json:"db,omitempty"`

	Persist             bool `json:"persist"`
	DisableToolPriv     bool `json:"disable_tool_priv"`
	DisableFineGranTool bool `json:"disable_fine_gran_tool"`
	DisableTransactions bool `json:"disable_trans"`

	SchemaThreshold int    `json:"schema_threshold"`
	SemanticModel   string `json:"semantic_model,omitempty"`

	// ACL inputs — each accepts a literal policy string or a path to
	// one, resolved by internal/acl at load time.
	ObjectWhitelist string `json:"object_whitelist,omitempty"`
	ObjectBlacklist string `json:"object_blacklist,omitempty"`
	ToolWhitelist   string `json:"tool_whitelist,omitempty"`
	ToolBlacklist   string `json:"tool_blacklist,omitempty"`

	LogLevel string `json:"log_level"`
	Dev      bool   `json:"dev"`

	// AuthToken, when non-empty, is hashed into an gwauth.TokenStore
	// guarding the SSE transport. Generated at startup if empty and
	// Transport == "sse".
	AuthToken string `json:"auth_token,omitempty"`
}

// Default returns configuration with sensible defaults, mirroring
// config.Default()'s shape (stdio transport, no persistence, a 200
// column schema threshold per spec.md §6).
func Default() Config {
	return Config{
		Transport:       "stdio",
		Host:            "127.0.0.1",
		Port:            8090,
		SchemaThreshold: 200,
		LogLevel:        "info",
	}
}

// Load reads configuration from a JSON file if path is non-empty, then
// overlays DBGATEWAY_*-prefixed environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv("DBGATEWAY_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("DBGATEWAY_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("DBGATEWAY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("DBGATEWAY_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("DBGATEWAY_DB_TYPE"); v != "" {
		cfg.DBType = v
	}
	if v := os.Getenv("DBGATEWAY_DB_USER"); v != "" {
		cfg.DBUser = v
	}
	if v := os.Getenv("DBGATEWAY_DB_PASS"); v != "" {
		cfg.DBPass = v
	}
	if v := os.Getenv("DBGATEWAY_DB_HOST"); v != "" {
		cfg.DBHost = v
	}
	if v := os.Getenv("DBGATEWAY_DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBPort = n
		}
	}
	if v := os.Getenv("DBGATEWAY_DB"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("DBGATEWAY_PERSIST"); v != "" {
		cfg.Persist = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGATEWAY_DISABLE_TOOL_PRIV"); v != "" {
		cfg.DisableToolPriv = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGATEWAY_DISABLE_FINE_GRAN_TOOL"); v != "" {
		cfg.DisableFineGranTool = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGATEWAY_DISABLE_TRANS"); v != "" {
		cfg.DisableTransactions = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGATEWAY_SCHEMA_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SchemaThreshold = n
		}
	}
	if v := os.Getenv("DBGATEWAY_SEMANTIC_MODEL"); v != "" {
		cfg.SemanticModel = v
	}
	if v := os.Getenv("DBGATEWAY_ACL_WHITELIST_OBJECT"); v != "" {
		cfg.ObjectWhitelist = v
	}
	if v := os.Getenv("DBGATEWAY_ACL_BLACKLIST_OBJECT"); v != "" {
		cfg.ObjectBlacklist = v
	}
	if v := os.Getenv("DBGATEWAY_ACL_WHITELIST_TOOL"); v != "" {
		cfg.ToolWhitelist = v
	}
	if v := os.Getenv("DBGATEWAY_ACL_BLACKLIST_TOOL"); v != "" {
		cfg.ToolBlacklist = v
	}
	if v := os.Getenv("DBGATEWAY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DBGATEWAY_AUTH_TOKEN"); v != "" {
		cfg.AuthToken = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

// Save writes configuration to a file, for an operator to capture a
// generated token or resolved defaults.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}
