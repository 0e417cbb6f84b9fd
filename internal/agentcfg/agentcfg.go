package agentcfg

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Document is the typed form of the agent's YAML configuration file.
// The supervisor only ever mutates telegram.enabled; everything else is
// carried through verbatim so a partial rewrite never loses operator
// settings.
type Document struct {
	Listen       string         `json:"listen" mapstructure:"listen"`
	IntervalSecs int            `json:"interval_secs" mapstructure:"interval_secs"`
	Telegram     TelegramConfig `json:"telegram" mapstructure:"telegram"`
}

// TelegramConfig is the agent's optional alerting feature block.
type TelegramConfig struct {
	Enabled        bool         `json:"enabled" mapstructure:"enabled"`
	BotTokenEnv    string       `json:"bot_token_env" mapstructure:"bot_token_env"`
	AllowedChatIDs []int64      `json:"allowed_chat_ids" mapstructure:"allowed_chat_ids"`
	Alerts         AlertsConfig `json:"alerts" mapstructure:"alerts"`
}

// AlertsConfig holds the agent's alert thresholds. Defaults mirror the
// agent's own built-in values so a document written from defaults behaves
// identically to one the agent generated itself.
type AlertsConfig struct {
	EnabledByDefault          bool    `json:"enabled_by_default" mapstructure:"enabled_by_default"`
	RepeatIntervalSecs        int     `json:"repeat_interval_secs" mapstructure:"repeat_interval_secs"`
	FailThreshold             int     `json:"fail_threshold" mapstructure:"fail_threshold"`
	RecoveryNotify            bool    `json:"recovery_notify" mapstructure:"recovery_notify"`
	ResourceAlertsEnabled     bool    `json:"resource_alerts_enabled" mapstructure:"resource_alerts_enabled"`
	CPULoadThresholdPercent   float64 `json:"cpu_load_threshold_percent" mapstructure:"cpu_load_threshold_percent"`
	CPUTempThresholdCelsius   float64 `json:"cpu_temp_threshold_celsius" mapstructure:"cpu_temp_threshold_celsius"`
	GPULoadThresholdPercent   float64 `json:"gpu_load_threshold_percent" mapstructure:"gpu_load_threshold_percent"`
	GPUTempThresholdCelsius   float64 `json:"gpu_temp_threshold_celsius" mapstructure:"gpu_temp_threshold_celsius"`
	RAMUsageThresholdPercent  float64 `json:"ram_usage_threshold_percent" mapstructure:"ram_usage_threshold_percent"`
	DiskUsageThresholdPercent float64 `json:"disk_usage_threshold_percent" mapstructure:"disk_usage_threshold_percent"`
	ResourceAlertCooldownSecs int     `json:"resource_alert_cooldown_secs" mapstructure:"resource_alert_cooldown_secs"`
}

// Default returns the baseline document used whenever the persisted file is
// missing or unreadable. Feature toggling must keep working even with a
// corrupt file, so loading never hard-fails for callers that use
// LoadOrDefault.
func Default() Document {
	return Document{
		Listen:       "127.0.0.1:9108",
		IntervalSecs: 5,
		Telegram: TelegramConfig{
			Enabled:     false,
			BotTokenEnv: "TELEGRAM_BOT_TOKEN",
			Alerts: AlertsConfig{
				RepeatIntervalSecs:        1800,
				FailThreshold:             3,
				RecoveryNotify:            true,
				ResourceAlertsEnabled:     true,
				CPULoadThresholdPercent:   92.0,
				CPUTempThresholdCelsius:   85.0,
				GPULoadThresholdPercent:   92.0,
				GPUTempThresholdCelsius:   75.0,
				RAMUsageThresholdPercent:  92.0,
				DiskUsageThresholdPercent: 95.0,
				ResourceAlertCooldownSecs: 10,
			},
		},
	}
}

// Store reads and writes one agent configuration file.
type Store struct {
	Path string
}

func NewStore(path string) *Store { return &Store{Path: path} }

// Load parses the document at the store's path.
func (s *Store) Load() (Document, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Clean(s.Path))
	v.SetConfigType("yaml")
	applyDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Document{}, fmt.Errorf("read agent config: %w", err)
	}
	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return Document{}, fmt.Errorf("parse agent config: %w", err)
	}
	normalize(&doc)
	return doc, nil
}

// LoadOrDefault degrades to the baseline document on any read or parse
// failure.
func (s *Store) LoadOrDefault() Document {
	doc, err := s.Load()
	if err != nil {
		return Default()
	}
	return doc
}

// Save writes the full document back to the store's path in YAML form.
func (s *Store) Save(doc Document) error {
	normalize(&doc)
	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("listen", doc.Listen)
	v.Set("interval_secs", doc.IntervalSecs)
	v.Set("telegram", map[string]any{
		"enabled":          doc.Telegram.Enabled,
		"bot_token_env":    doc.Telegram.BotTokenEnv,
		"allowed_chat_ids": doc.Telegram.AllowedChatIDs,
		"alerts": map[string]any{
			"enabled_by_default":           doc.Telegram.Alerts.EnabledByDefault,
			"repeat_interval_secs":         doc.Telegram.Alerts.RepeatIntervalSecs,
			"fail_threshold":               doc.Telegram.Alerts.FailThreshold,
			"recovery_notify":              doc.Telegram.Alerts.RecoveryNotify,
			"resource_alerts_enabled":      doc.Telegram.Alerts.ResourceAlertsEnabled,
			"cpu_load_threshold_percent":   doc.Telegram.Alerts.CPULoadThresholdPercent,
			"cpu_temp_threshold_celsius":   doc.Telegram.Alerts.CPUTempThresholdCelsius,
			"gpu_load_threshold_percent":   doc.Telegram.Alerts.GPULoadThresholdPercent,
			"gpu_temp_threshold_celsius":   doc.Telegram.Alerts.GPUTempThresholdCelsius,
			"ram_usage_threshold_percent":  doc.Telegram.Alerts.RAMUsageThresholdPercent,
			"disk_usage_threshold_percent": doc.Telegram.Alerts.DiskUsageThresholdPercent,
			"resource_alert_cooldown_secs": doc.Telegram.Alerts.ResourceAlertCooldownSecs,
		},
	})
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(s.Path)
}

// SetTelegramEnabled flips telegram.enabled only when it differs from
// target. Returns whether the persisted value changed. Write failures are
// reported but are not fatal to lifecycle operations; the subsequent health
// gate decides whether the agent actually came up with the intended
// configuration.
func (s *Store) SetTelegramEnabled(target bool) (bool, error) {
	doc := s.LoadOrDefault()
	if doc.Telegram.Enabled == target {
		return false, nil
	}
	doc.Telegram.Enabled = target
	if err := s.Save(doc); err != nil {
		return false, err
	}
	return true, nil
}

// BaseAddress derives the dialable http base URL from the document's listen
// address. Wildcard binds (0.0.0.0, ::, empty host) are substituted with the
// matching loopback address: the wildcard guarantees loopback reachability
// but is not itself dialable.
func BaseAddress(doc Document) string {
	listen := strings.TrimSpace(doc.Listen)
	if listen == "" {
		listen = Default().Listen
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::", "0:0:0:0:0:0:0:0":
		host = "::1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func normalize(doc *Document) {
	def := Default()
	if strings.TrimSpace(doc.Listen) == "" {
		doc.Listen = def.Listen
	}
	if doc.IntervalSecs <= 0 {
		doc.IntervalSecs = def.IntervalSecs
	}
	if strings.TrimSpace(doc.Telegram.BotTokenEnv) == "" {
		doc.Telegram.BotTokenEnv = def.Telegram.BotTokenEnv
	}
	if doc.Telegram.Alerts.RepeatIntervalSecs <= 0 {
		doc.Telegram.Alerts.RepeatIntervalSecs = def.Telegram.Alerts.RepeatIntervalSecs
	}
	if doc.Telegram.Alerts.FailThreshold <= 0 {
		doc.Telegram.Alerts.FailThreshold = def.Telegram.Alerts.FailThreshold
	}
	if doc.Telegram.Alerts.CPULoadThresholdPercent <= 0 {
		doc.Telegram.Alerts.CPULoadThresholdPercent = def.Telegram.Alerts.CPULoadThresholdPercent
	}
	if doc.Telegram.Alerts.CPUTempThresholdCelsius <= 0 {
		doc.Telegram.Alerts.CPUTempThresholdCelsius = def.Telegram.Alerts.CPUTempThresholdCelsius
	}
	if doc.Telegram.Alerts.GPULoadThresholdPercent <= 0 {
		doc.Telegram.Alerts.GPULoadThresholdPercent = def.Telegram.Alerts.GPULoadThresholdPercent
	}
	if doc.Telegram.Alerts.GPUTempThresholdCelsius <= 0 {
		doc.Telegram.Alerts.GPUTempThresholdCelsius = def.Telegram.Alerts.GPUTempThresholdCelsius
	}
	if doc.Telegram.Alerts.RAMUsageThresholdPercent <= 0 {
		doc.Telegram.Alerts.RAMUsageThresholdPercent = def.Telegram.Alerts.RAMUsageThresholdPercent
	}
	if doc.Telegram.Alerts.DiskUsageThresholdPercent <= 0 {
		doc.Telegram.Alerts.DiskUsageThresholdPercent = def.Telegram.Alerts.DiskUsageThresholdPercent
	}
	if doc.Telegram.Alerts.ResourceAlertCooldownSecs <= 0 {
		doc.Telegram.Alerts.ResourceAlertCooldownSecs = def.Telegram.Alerts.ResourceAlertCooldownSecs
	}
}

func applyDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("interval_secs", def.IntervalSecs)
	v.SetDefault("telegram.enabled", def.Telegram.Enabled)
	v.SetDefault("telegram.bot_token_env", def.Telegram.BotTokenEnv)
	v.SetDefault("telegram.alerts.repeat_interval_secs", def.Telegram.Alerts.RepeatIntervalSecs)
	v.SetDefault("telegram.alerts.fail_threshold", def.Telegram.Alerts.FailThreshold)
	v.SetDefault("telegram.alerts.recovery_notify", def.Telegram.Alerts.RecoveryNotify)
	v.SetDefault("telegram.alerts.resource_alerts_enabled", def.Telegram.Alerts.ResourceAlertsEnabled)
	v.SetDefault("telegram.alerts.cpu_load_threshold_percent", def.Telegram.Alerts.CPULoadThresholdPercent)
	v.SetDefault("telegram.alerts.cpu_temp_threshold_celsius", def.Telegram.Alerts.CPUTempThresholdCelsius)
	v.SetDefault("telegram.alerts.gpu_load_threshold_percent", def.Telegram.Alerts.GPULoadThresholdPercent)
	v.SetDefault("telegram.alerts.gpu_temp_threshold_celsius", def.Telegram.Alerts.GPUTempThresholdCelsius)
	v.SetDefault("telegram.alerts.ram_usage_threshold_percent", def.Telegram.Alerts.RAMUsageThresholdPercent)
	v.SetDefault("telegram.alerts.disk_usage_threshold_percent", def.Telegram.Alerts.DiskUsageThresholdPercent)
	v.SetDefault("telegram.alerts.resource_alert_cooldown_secs", def.Telegram.Alerts.ResourceAlertCooldownSecs)
}

// ExampleYAML is a starter configuration for `vigilctl config init`.
const ExampleYAML = `listen: "0.0.0.0:9108"
interval_secs: 5
telegram:
  enabled: false
  bot_token_env: TELEGRAM_BOT_TOKEN
  allowed_chat_ids: []
  alerts:
    fail_threshold: 3
    repeat_interval_secs: 1800
    recovery_notify: true
    resource_alerts_enabled: true
    cpu_load_threshold_percent: 92
    cpu_temp_threshold_celsius: 85
    gpu_load_threshold_percent: 92
    gpu_temp_threshold_celsius: 75
    ram_usage_threshold_percent: 92
    disk_usage_threshold_percent: 95
    resource_alert_cooldown_secs: 10
`
