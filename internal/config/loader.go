package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// EnvSpec maps an environment variable onto a config path.
type EnvSpec struct {
	Name string
	Path string
}

// shortEnv are the short aliases accepted next to the GOGENIE_<SECTION>_<KEY>
// form.
var shortEnv = map[string]string{
	"server.host":             "HOST",
	"server.port":             "PORT",
	"server.read_timeout":     "READ_TIMEOUT",
	"server.write_timeout":    "WRITE_TIMEOUT",
	"server.idle_timeout":     "IDLE_TIMEOUT",
	"server.shutdown_timeout": "SHUTDOWN_TIMEOUT",
	"logging.level":           "LOG_LEVEL",
	"logging.profile":         "LOG_PROFILE",
	"jobs.dir":                "JOBS_DIR",
	"completion.workers":      "WORKERS",
	"mail.password":           "SMTP_PASSWORD",
}

// SetDefaults registers every config key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("jobs.dir", "/tmp/genie/jobs")
	v.SetDefault("jobs.registry_dir", "/tmp/genie/registry")

	v.SetDefault("completion.workers", 4)
	v.SetDefault("completion.buffer", 256)
	v.SetDefault("completion.drain_timeout", "30s")

	v.SetDefault("archive.exclude", []string{})

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "no-reply@genie.local")
	v.SetDefault("mail.rate_per_minute", 0)

	v.SetDefault("s3.region", "")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.profile", "")
	v.SetDefault("s3.force_path_style", false)
}

// getEnvSpecs lists every environment variable bound by Load, sorted by name.
func getEnvSpecs(v *viper.Viper) []EnvSpec {
	var specs []EnvSpec
	for _, key := range v.AllKeys() {
		specs = append(specs, EnvSpec{Name: envName(key), Path: key})
		if short, ok := shortEnv[key]; ok {
			specs = append(specs, EnvSpec{Name: EnvPrefix + "_" + short, Path: key})
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load builds the configuration from defaults, environment and overrides.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	return LoadFile(ctx, "", overrides...)
}

// LoadFile is Load with an additional YAML file layered between defaults and
// environment. An empty path means no file.
func LoadFile(ctx context.Context, path string, overrides ...map[string]any) (*Config, error) {
	_ = ctx

	v := viper.New()
	SetDefaults(v)

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	for _, spec := range groupEnv(getEnvSpecs(v)) {
		if err := v.BindEnv(append([]string{spec.path}, spec.names...)...); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", spec.path, err)
		}
	}

	for _, o := range overrides {
		for key, val := range flatten("", o) {
			v.Set(key, val)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Archive.Exclude = trimAll(cfg.Archive.Exclude)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

type envBinding struct {
	path  string
	names []string
}

// groupEnv collects env names per path; the long form is listed first so it
// wins over the short alias.
func groupEnv(specs []EnvSpec) []envBinding {
	byPath := map[string][]string{}
	var order []string
	for _, s := range specs {
		if _, ok := byPath[s.Path]; !ok {
			order = append(order, s.Path)
		}
		byPath[s.Path] = append(byPath[s.Path], s.Name)
	}
	out := make([]envBinding, 0, len(order))
	for _, p := range order {
		names := byPath[p]
		long := envName(p)
		sort.SliceStable(names, func(i, j int) bool { return names[i] == long && names[j] != long })
		out = append(out, envBinding{path: p, names: names})
	}
	return out
}

func flatten(prefix string, m map[string]any) map[string]any {
	out := map[string]any{}
	for k, val := range m {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = val
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
