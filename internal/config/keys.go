package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "DOCHOUND_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "DOCHOUND_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "ollama.base_url", typ: kString, env: "DOCHOUND_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.plan_model", typ: kString, env: "DOCHOUND_OLLAMA_PLAN_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.PlanModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.PlanModel },
	},
	{
		key: "ollama.classify_model", typ: kString, env: "DOCHOUND_OLLAMA_CLASSIFY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.ClassifyModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ClassifyModel },
	},
	{
		key: "ollama.auto_pull", typ: kBool, env: "DOCHOUND_OLLAMA_AUTO_PULL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.AutoPull = v.(bool) },
		extract: func(cfg Config) any { return cfg.Ollama.AutoPull },
	},
	{
		key: "scan.root", typ: kString, env: "DOCHOUND_SCAN_ROOT",
		apply:   func(cfg *Config, v any) { cfg.Scan.Root = v.(string) },
		extract: func(cfg Config) any { return cfg.Scan.Root },
	},
	{
		key: "scan.extensions", typ: kString, env: "DOCHOUND_SCAN_EXTENSIONS",
		apply:   func(cfg *Config, v any) { cfg.Scan.Extensions = v.(string) },
		extract: func(cfg Config) any { return cfg.Scan.Extensions },
	},
	{
		key: "classify.concurrency", typ: kInt, env: "DOCHOUND_CLASSIFY_CONCURRENCY",
		apply:   func(cfg *Config, v any) { cfg.Classify.Concurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Classify.Concurrency },
	},
	{
		key: "storage.data_dir", typ: kString, env: "DOCHOUND_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "feedback.path", typ: kString, env: "DOCHOUND_FEEDBACK_PATH",
		apply:   func(cfg *Config, v any) { cfg.Feedback.Path = v.(string) },
		extract: func(cfg Config) any { return cfg.Feedback.Path },
	},
	{
		key: "sink.port", typ: kInt, env: "DOCHOUND_SINK_PORT",
		apply:   func(cfg *Config, v any) { cfg.Sink.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Sink.Port },
	},
	{
		key: "sink.url", typ: kString, env: "DOCHOUND_SINK_URL",
		apply:   func(cfg *Config, v any) { cfg.Sink.URL = v.(string) },
		extract: func(cfg Config) any { return cfg.Sink.URL },
	},
	{
		key: "sink.token", typ: kString, env: "DOCHOUND_SINK_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Sink.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Sink.Token },
	},
	{
		key: "log.level", typ: kString, env: "DOCHOUND_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
