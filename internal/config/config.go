package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Scan     ScanConfig
	Classify ClassifyConfig
	Storage  StorageConfig
	Feedback FeedbackConfig
	Sink     SinkConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type OllamaConfig struct {
	BaseURL       string
	PlanModel     string
	ClassifyModel string
	AutoPull      bool
}

// ScanConfig controls which files the catalog indexes. Extensions is a
// comma-separated list so it can round-trip through the flat config backend.
type ScanConfig struct {
	Root       string
	Extensions string
}

// ExtensionList splits Extensions into normalized, dot-prefixed entries.
func (s ScanConfig) ExtensionList() []string {
	var out []string
	for _, part := range strings.Split(s.Extensions, ",") {
		ext := strings.ToLower(strings.TrimSpace(part))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

type ClassifyConfig struct {
	Concurrency int
}

type StorageConfig struct {
	DataDir string
}

type FeedbackConfig struct {
	Path string
}

type SinkConfig struct {
	Port  int
	URL   string
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Ollama: OllamaConfig{
			BaseURL:       "http://localhost:11434",
			PlanModel:     "mistral-nemo",
			ClassifyModel: "phi3.5",
			AutoPull:      true,
		},
		Scan: ScanConfig{
			Root:       defaultScanRoot(),
			Extensions: ".pdf,.docx,.doc,.pptx,.ppt,.txt",
		},
		Classify: ClassifyConfig{
			Concurrency: 3,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Feedback: FeedbackConfig{
			Path: filepath.Join(dataDir, "feedback.log"),
		},
		Sink: SinkConfig{
			Port: 4002,
			URL:  "http://localhost:4002",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultScanRoot() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Documents")
	}
	return "."
}

// Load reads configuration from the platform-native backend, then applies
// environment variable overrides, then fills secrets from the platform
// secret store.
//
// On macOS the backend is UserDefaults (domain: com.dochound.app) and
// secrets fall back to macOS Keychain. On Linux the backend is a JSON file
// at $XDG_CONFIG_HOME/dochound/config.json and secrets live in a JSON file
// under $XDG_DATA_HOME/dochound.
//
// Environment variables (DOCHOUND_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Sink auth is optional; only consult the secret store when neither the
	// backend nor the environment provided a token.
	if cfg.Sink.Token == "" {
		if tok, err := kc.Get(keychainService, "sink_token"); err == nil && tok != "" {
			cfg.Sink.Token = tok
		}
	}

	if cfg.Classify.Concurrency < 1 {
		return Config{}, fmt.Errorf("classify.concurrency must be at least 1, got %d", cfg.Classify.Concurrency)
	}
	if len(cfg.Scan.ExtensionList()) == 0 {
		return Config{}, fmt.Errorf("scan.extensions must name at least one file extension")
	}

	return cfg, nil
}

const keychainService = "dochound"

// Keychain abstracts the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store. macOS uses the security
// CLI; other platforms use a JSON file under the data directory.
func NewKeychain() Keychain {
	return platformKeychain{}
}

type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainStore(service, account, value)
}

// GetAPIToken returns the bearer token protecting the management API,
// generating and persisting one on first use. The DOCHOUND_API_TOKEN
// environment variable, when set, wins over the stored token.
func GetAPIToken(kc Keychain) (string, error) {
	if tok := os.Getenv("DOCHOUND_API_TOKEN"); tok != "" {
		return tok, nil
	}
	tok, err := kc.Get(keychainService, "api_token")
	if err == nil && tok != "" {
		return tok, nil
	}
	tok = uuid.NewString()
	if err := kc.Set(keychainService, "api_token", tok); err != nil {
		return "", fmt.Errorf("storing API token: %w", err)
	}
	return tok, nil
}
