// Package config loads and saves meshforged's settings as JSON, and
// resolves the OS-safe config/data/cache directories settings and the
// history database live under.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/meshforge/meshforge-maps/pkg/mqttclient"

	"github.com/meshforge/meshforge-maps/pkg/model"
)

// Settings is the complete daemon configuration, sectioned the way the
// teacher's tagged UCI config is, but serialized as plain JSON.
type Settings struct {
	Main    MainSettings      `json:"main"`
	Sources SourcesSettings   `json:"sources"`
	History HistorySettings   `json:"history"`
	Alerts  AlertsSettings    `json:"alerts"`
	Lease   LeaseSettings     `json:"lease"`
	HTTP    HTTPSettings      `json:"http"`
	Broker  mqttclient.Config `json:"broker"`
}

// MainSettings covers process-wide knobs.
type MainSettings struct {
	LogLevel     string        `json:"log_level"`
	PollInterval time.Duration `json:"poll_interval"`
	WSHost       string        `json:"ws_host"`
	WSPort       int           `json:"ws_port"`
	HealthPort   int           `json:"health_port"` // 0 disables the liveness server
}

// SourcesSettings configures the four concrete collectors. Any endpoint
// left empty disables that source.
type SourcesSettings struct {
	MeshHTTPFallback string              `json:"mesh_http_fallback"`
	Reticulum        ReticulumSettings   `json:"reticulum"`
	WiFiMesh         []string            `json:"wifi_mesh_endpoints"`
	Propagation      PropagationSettings `json:"propagation"`
}

// ReticulumSettings configures the rnsd diagnostic-process collector.
type ReticulumSettings struct {
	Command []string      `json:"command"`
	Timeout time.Duration `json:"timeout"`
}

// PropagationSettings configures the local-first, public-fallback
// propagation collector.
type PropagationSettings struct {
	LocalHost    string        `json:"local_host"`
	LocalPort    int           `json:"local_port"`
	LegacyPort   int           `json:"legacy_port"`
	PublicAPIURL string        `json:"public_api_url"`
	Timeout      time.Duration `json:"timeout"`
}

// HistorySettings configures the observation history store.
type HistorySettings struct {
	ThrottleSeconds int `json:"throttle_seconds"`
	RetentionHours  int `json:"retention_hours"`
}

// AlertsSettings configures the alert engine and its delivery channels.
type AlertsSettings struct {
	Rules           []model.AlertRule `json:"rules"`
	DefaultCooldown time.Duration     `json:"default_cooldown"`
	PushoverToken   string            `json:"pushover_token"`
	PushoverUser    string            `json:"pushover_user"`
	MQTTTopicBase   string            `json:"mqtt_topic_base"`
	WebhookURL      string            `json:"webhook_url"`
}

// LeaseSettings configures the per-host lease manager.
type LeaseSettings struct {
	TTL time.Duration `json:"ttl"`
}

// HTTPSettings configures the HTTP API server.
type HTTPSettings struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	APIKey     string   `json:"api_key"`
	CORSOrigin []string `json:"cors_origins"`
}

// Default returns Settings populated with the same defaults the daemon
// ships with out of the box.
func Default() Settings {
	return Settings{
		Main: MainSettings{
			LogLevel:     "info",
			PollInterval: 15 * time.Second,
			WSHost:       "127.0.0.1",
			WSPort:       8809,
			HealthPort:   8810,
		},
		Sources: SourcesSettings{
			Reticulum: ReticulumSettings{
				Command: []string{"rnsd-status"},
				Timeout: 10 * time.Second,
			},
			Propagation: PropagationSettings{
				LocalHost:    "127.0.0.1",
				LocalPort:    8081,
				LegacyPort:   8080,
				PublicAPIURL: "https://www.hamqsl.com/solarxml.php",
				Timeout:      10 * time.Second,
			},
		},
		History: HistorySettings{
			ThrottleSeconds: 60,
			RetentionHours:  24 * 30,
		},
		Alerts: AlertsSettings{
			DefaultCooldown: 15 * time.Minute,
			MQTTTopicBase:   "meshforge/alerts",
		},
		Lease: LeaseSettings{
			TTL: 30 * time.Second,
		},
		HTTP: HTTPSettings{
			Host: "127.0.0.1",
			Port: 8808,
		},
		Broker: mqttclient.DefaultConfig(),
	}
}

// Redacted returns a copy of s with every secret field blanked, safe to
// serve from /api/config.
func (s Settings) Redacted() Settings {
	r := s
	r.Alerts.PushoverToken = redactedIfSet(s.Alerts.PushoverToken)
	r.Alerts.PushoverUser = redactedIfSet(s.Alerts.PushoverUser)
	r.HTTP.APIKey = redactedIfSet(s.HTTP.APIKey)
	r.Broker.Password = redactedIfSet(s.Broker.Password)
	return r
}

func redactedIfSet(v string) string {
	if v == "" {
		return ""
	}
	return "***"
}

// Dirs holds the resolved config/data/cache directories.
type Dirs struct {
	Config string
	Data   string
	Cache  string
}

// settingsFile returns the path Load/Save read and write, rooted at
// dirs.Config.
func (d Dirs) settingsFile() string {
	return filepath.Join(d.Config, "plugins", "meshforge-maps", "settings.json")
}

// HistoryDBPath returns the path the node history store opens.
func (d Dirs) HistoryDBPath() string {
	return filepath.Join(d.Data, "maps_node_history.db")
}

// ResolveDirs determines the config/data/cache directories to use,
// preferring each XDG_*_HOME variable when set and otherwise deriving
// a per-user default from the same home-directory resolution Home()
// uses -- so a daemon started under sudo still resolves paths under the
// invoking user's home, not /root.
func ResolveDirs() (Dirs, error) {
	home, err := Home()
	if err != nil {
		return Dirs{}, err
	}

	return Dirs{
		Config: envOrDefault("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		Data:   envOrDefault("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
		Cache:  envOrDefault("XDG_CACHE_HOME", filepath.Join(home, ".cache")),
	}, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Home resolves the home directory to use for config/data/cache paths,
// preferring the invoking user named by SUDO_USER or LOGNAME over the
// process's own (possibly root) home so a daemon launched via sudo does
// not write its state under /root.
func Home() (string, error) {
	for _, name := range []string{os.Getenv("SUDO_USER"), os.Getenv("LOGNAME")} {
		if name == "" {
			continue
		}
		if u, err := user.Lookup(name); err == nil && u.HomeDir != "" {
			return u.HomeDir, nil
		}
	}

	if h := os.Getenv("HOME"); h != "" {
		return h, nil
	}

	h, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return h, nil
}

// Load reads settings.json from dirs.Config, returning Default() merged
// over by any values present in the file. A missing file is not an
// error -- it means "use defaults", matching first-run behavior.
func Load(dirs Dirs) (Settings, error) {
	settings := Default()

	data, err := os.ReadFile(dirs.settingsFile())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	if err := json.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return settings, nil
}

// Save writes settings to dirs.Config/plugins/meshforge-maps/settings.json
// with mode 0600, creating parent directories as needed.
func Save(dirs Dirs, settings Settings) error {
	path := dirs.settingsFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := path + ".tmp" + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}
