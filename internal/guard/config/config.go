package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "GUARD_"
	// FileEnvVar names an optional YAML file loaded between defaults and environment.
	FileEnvVar = envPrefix + "CONFIG_FILE"
)

// AppConfig is the complete hostguard configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log        LogConfig        `koanf:"log"`
	Hosts      HostsConfig      `koanf:"hosts"`
	Keywords   KeywordsConfig   `koanf:"keywords"`
	Journal    JournalConfig    `koanf:"journal"`
	API        APIConfig        `koanf:"api"`
	Inspector  InspectorConfig  `koanf:"inspector"`
	Classifier ClassifierConfig `koanf:"classifier"`
	Scorer     ScorerConfig     `koanf:"scorer"`
	Flush      FlushConfig      `koanf:"flush"`
}

type LogConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

type HostsConfig struct {
	// Path is the override file that blocking rewrites.
	Path string `koanf:"path" validate:"required"`
}

type KeywordsConfig struct {
	Path string `koanf:"path" validate:"required"`
	// DefaultCategory is used by the CLI when no category is given.
	DefaultCategory string `koanf:"default_category" validate:"required,category"`
}

type JournalConfig struct {
	// Path is the bbolt database holding the crash-recovery snapshot.
	Path string `koanf:"path" validate:"required"`
}

type APIConfig struct {
	Listen string `koanf:"listen" validate:"required,listen_addr"`
}

type InspectorConfig struct {
	Timeout      time.Duration `koanf:"timeout" validate:"gt=0"`
	ImageTimeout time.Duration `koanf:"image_timeout" validate:"gt=0"`
	MaxImages    int           `koanf:"max_images" validate:"gte=0"`
	Workers      int           `koanf:"workers" validate:"gte=1,lte=64"`
	UserAgent    string        `koanf:"user_agent" validate:"required"`
}

type ClassifierConfig struct {
	// URL of the remote image scoring endpoint; empty disables image classification.
	URL       string  `koanf:"url" validate:"omitempty,url"`
	Threshold float64 `koanf:"threshold" validate:"gt=0,lte=1"`
}

type ScorerConfig struct {
	ExplicitWeight    float64 `koanf:"explicit_weight" validate:"gt=0,lte=1"`
	ModerateWeight    float64 `koanf:"moderate_weight" validate:"gt=0,lte=1"`
	ExplicitThreshold float64 `koanf:"explicit_threshold" validate:"gt=0,lte=1"`
	ModerateThreshold float64 `koanf:"moderate_threshold" validate:"gt=0,lte=1"`
	PatternCache      int     `koanf:"pattern_cache" validate:"gte=1"`
}

type FlushConfig struct {
	// Disabled skips OS DNS cache invalidation after writes.
	Disabled bool `koanf:"disabled"`
}

// DEFAULT_APP_CONFIG holds the defaults applied before the file and environment layers.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LogConfig{Level: "info"},
	Hosts: HostsConfig{
		Path: defaultHostsPath(runtime.GOOS),
	},
	Keywords: KeywordsConfig{
		Path:            filepath.Join(defaultDataDir(runtime.GOOS), "keywords.json"),
		DefaultCategory: "explicit",
	},
	Journal: JournalConfig{
		Path: filepath.Join(defaultDataDir(runtime.GOOS), "journal.db"),
	},
	API: APIConfig{Listen: "127.0.0.1:8053"},
	Inspector: InspectorConfig{
		Timeout:      10 * time.Second,
		ImageTimeout: 5 * time.Second,
		MaxImages:    20,
		Workers:      4,
		UserAgent:    "hostguard/1.0 (+content-check)",
	},
	Classifier: ClassifierConfig{Threshold: 0.85},
	Scorer: ScorerConfig{
		ExplicitWeight:    0.3,
		ModerateWeight:    0.15,
		ExplicitThreshold: 0.3,
		ModerateThreshold: 0.45,
		PatternCache:      1024,
	},
}

func defaultHostsPath(goos string) string {
	if goos == "windows" {
		return `C:\Windows\System32\drivers\etc\hosts`
	}
	return "/etc/hosts"
}

func defaultDataDir(goos string) string {
	if goos == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			return filepath.Join(pd, "hostguard")
		}
		return `C:\ProgramData\hostguard`
	}
	return "/var/lib/hostguard"
}

var categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// validCategory accepts lowercase keyword category names.
func validCategory(fl validator.FieldLevel) bool {
	return categoryPattern.MatchString(fl.Field().String())
}

// validListenAddr accepts "host:port" or ":port" with a port in 1..65535.
// The host, when present, must be an IP literal or "localhost".
func validListenAddr(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if host != "" && host != "localhost" && net.ParseIP(host) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envKeys maps upper-cased env suffixes (LOG_LEVEL) to koanf paths (log.level).
// Nested keys contain underscores, so the mapping is derived from the known keys
// rather than by splitting on "_".
func envKeys(k *koanf.Koanf) map[string]string {
	out := make(map[string]string, len(k.Keys()))
	for _, key := range k.Keys() {
		out[strings.ToUpper(strings.ReplaceAll(key, ".", "_"))] = key
	}
	return out
}

// envLoader loads GUARD_* environment variables over the known keys.
// Unknown variables are ignored. It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	known := envKeys(k)
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path, ok := known[strings.TrimPrefix(key, envPrefix)]
			if !ok {
				return "", nil
			}
			return path, strings.TrimSpace(value)
		},
	}), nil)
}

// fileLoader loads the YAML file named by GUARD_CONFIG_FILE, if set.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(FileEnvVar))
	if path == "" {
		return nil
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "category" and "listen_addr" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("category", validCategory); err != nil {
		return err
	}
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load applies defaults, the optional YAML file and the environment, in that
// order, then validates the result.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if err := fileLoader(k); err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
