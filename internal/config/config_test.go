package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// isolate points the data directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	for _, k := range []string{"WAKEUP_STORE", "WAKEUP_VOLUME", "WAKEUP_NOTIFICATIONS", "WAKEUP_SPEECH_RATE", "WAKEUP_MQTT_BROKER", "WAKEUP_LANGUAGE", "WAKEUP_HISTORY", "WAKEUP_WEBHOOK_URL"} {
		t.Setenv(k, "")
	}
	return dir
}

func TestUnmarshalDefaults(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{}`), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Volume != DefaultVolume {
		t.Errorf("Volume = %d, want %d", cfg.Volume, DefaultVolume)
	}
	if !cfg.Notifications || !cfg.History {
		t.Error("notifications and history should default on")
	}
	if cfg.SpeechRate != 0.9 || cfg.SpeechPitch != 1.1 {
		t.Errorf("speech = %v/%v", cfg.SpeechRate, cfg.SpeechPitch)
	}
	if cfg.DefaultLanguage != "en-IN" || cfg.DefaultSound != "bell" {
		t.Errorf("defaults = %q/%q", cfg.DefaultLanguage, cfg.DefaultSound)
	}
	if cfg.TickInterval() != time.Second {
		t.Errorf("TickInterval = %s", cfg.TickInterval())
	}
}

func TestUnmarshalOverrides(t *testing.T) {
	data := []byte(`{
		"store": "sqlite",
		"volume": 40,
		"notifications": false,
		"speech_rate": 1.2,
		"mqtt": {"broker": "tcp://localhost:1883", "qos": 1}
	}`)
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.Volume != 40 || cfg.Notifications || cfg.SpeechRate != 1.2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MQTT.Broker != "tcp://localhost:1883" || cfg.MQTT.QoS != 1 {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	// Untouched fields keep their defaults.
	if cfg.SpeechPitch != DefaultSpeechPitch {
		t.Errorf("SpeechPitch = %v", cfg.SpeechPitch)
	}
}

func TestUnmarshalZeroVolume(t *testing.T) {
	var cfg Config
	if err := json.Unmarshal([]byte(`{"volume": 0}`), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 0 {
		t.Errorf("explicit volume 0 = %d", cfg.Volume)
	}
}

func TestUnmarshalYAML(t *testing.T) {
	data := []byte("store: sqlite\nvolume: 55\ndefault_language: de-DE\nmqtt:\n  broker: tcp://pi:1883\n  retain: true\n" +
		"webhook:\n  url: https://hooks.example.com/wake\n  headers:\n    Authorization: Bearer $HOOK_TOKEN\n")
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if cfg.Store != "sqlite" || cfg.Volume != 55 || cfg.DefaultLanguage != "de-DE" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.MQTT.Retain || cfg.MQTT.Broker != "tcp://pi:1883" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Webhook.URL != "https://hooks.example.com/wake" || cfg.Webhook.Headers["Authorization"] != "Bearer $HOOK_TOKEN" {
		t.Errorf("webhook = %+v", cfg.Webhook)
	}
	if !cfg.Notifications || cfg.SpeechRate != DefaultSpeechRate {
		t.Error("yaml config lost defaults")
	}
}

func TestLoadExplicitJSONAndYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "c.json")
	os.WriteFile(jsonPath, []byte(`{"volume": 30}`), 0644)
	cfg, err := Load(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 30 || cfg.Path != jsonPath {
		t.Errorf("json cfg = %+v", cfg)
	}

	yamlPath := filepath.Join(dir, "c.yml")
	os.WriteFile(yamlPath, []byte("volume: 20\n"), 0644)
	cfg, err = Load(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 20 {
		t.Errorf("yaml cfg volume = %d", cfg.Volume)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != DefaultVolume || cfg.Path != "" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFromDataDir(t *testing.T) {
	dir := isolate(t)
	dataDir := filepath.Join(dir, "wakeup")
	os.MkdirAll(dataDir, 0755)
	os.WriteFile(filepath.Join(dataDir, "wakeup-config.yaml"), []byte("volume: 15\n"), 0644)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 15 {
		t.Errorf("Volume = %d, want 15", cfg.Volume)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadBadJSON(t *testing.T) {
	isolate(t)
	p := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(p, []byte(`{"volume": `), 0644)
	if _, err := Load(p); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("WAKEUP_VOLUME", "25")
	t.Setenv("WAKEUP_NOTIFICATIONS", "false")
	t.Setenv("WAKEUP_MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("WAKEUP_SPEECH_RATE", "fast") // invalid → kept
	t.Setenv("WAKEUP_WEBHOOK_URL", "http://localhost:8080/alarm")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Volume != 25 || cfg.Notifications || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SpeechRate != DefaultSpeechRate {
		t.Errorf("SpeechRate = %v, want default after bad override", cfg.SpeechRate)
	}
	if cfg.Webhook.URL != "http://localhost:8080/alarm" {
		t.Errorf("Webhook.URL = %q", cfg.Webhook.URL)
	}
}

func TestDotEnvFromDataDir(t *testing.T) {
	dir := isolate(t)
	dataDir := filepath.Join(dir, "wakeup")
	os.MkdirAll(dataDir, 0755)
	os.WriteFile(filepath.Join(dataDir, ".env"), []byte("WAKEUP_LANGUAGE=fr-FR\n"), 0644)
	t.Cleanup(func() { os.Unsetenv("WAKEUP_LANGUAGE") })
	os.Unsetenv("WAKEUP_LANGUAGE")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DefaultLanguage != "fr-FR" {
		t.Errorf("DefaultLanguage = %q, want fr-FR from .env", cfg.DefaultLanguage)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"defaults", func(*Config) {}, true},
		{"volume high", func(c *Config) { c.Volume = 101 }, false},
		{"volume negative", func(c *Config) { c.Volume = -1 }, false},
		{"bad store", func(c *Config) { c.Store = "redis" }, false},
		{"sqlite store", func(c *Config) { c.Store = "SQLite" }, true},
		{"bad sound", func(c *Config) { c.DefaultSound = "siren" }, false},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }, false},
		{"webhook https", func(c *Config) { c.Webhook.URL = "https://hooks.example.com/a" }, true},
		{"webhook no scheme", func(c *Config) { c.Webhook.URL = "hooks.example.com" }, false},
	}
	for _, tt := range tests {
		c := Default()
		tt.mod(&c)
		if err := c.Validate(); (err == nil) != tt.ok {
			t.Errorf("%s: Validate = %v, want ok=%v", tt.name, err, tt.ok)
		}
	}
}

func TestTickIntervalCapped(t *testing.T) {
	c := Default()
	c.TickIntervalMS = 5000
	if c.TickInterval() != time.Second {
		t.Errorf("TickInterval = %s, want capped at 1s", c.TickInterval())
	}
	c.TickIntervalMS = 250
	if c.TickInterval() != 250*time.Millisecond {
		t.Errorf("TickInterval = %s", c.TickInterval())
	}
}

func TestMaxDuration(t *testing.T) {
	c := Default()
	if c.MaxDuration() != 30 {
		t.Errorf("MaxDuration = %v", c.MaxDuration())
	}
	c.MaxDurationSeconds = 10
	if c.MaxDuration() != 10 {
		t.Errorf("MaxDuration = %v", c.MaxDuration())
	}
	c.MaxDurationSeconds = 90
	if c.MaxDuration() != 30 {
		t.Errorf("MaxDuration above cap = %v", c.MaxDuration())
	}
}
