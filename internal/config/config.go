package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Mavwarf/wakeup/internal/audio"
	"github.com/Mavwarf/wakeup/internal/paths"
)

const (
	// DefaultVolume is the default playback volume (0-100).
	DefaultVolume = 100

	// DefaultTickIntervalMS is how often the scheduler evaluates alarms.
	DefaultTickIntervalMS = 1000

	// DefaultSpeechRate and DefaultSpeechPitch are the multipliers alarm
	// messages are spoken with.
	DefaultSpeechRate  = 0.9
	DefaultSpeechPitch = 1.1

	// DefaultLanguage is the speech language for alarms that name none.
	DefaultLanguage = "en-IN"

	// DefaultWatchDebounceMS delays reloads after the alarm file changes.
	DefaultWatchDebounceMS = 250
)

// MQTT configures the optional firing-event publisher. An empty Broker
// disables it.
type MQTT struct {
	Broker   string `json:"broker,omitempty" yaml:"broker"`
	Topic    string `json:"topic,omitempty" yaml:"topic"`
	ClientID string `json:"client_id,omitempty" yaml:"client_id"`
	Username string `json:"username,omitempty" yaml:"username"`
	Password string `json:"password,omitempty" yaml:"password"`
	QoS      byte   `json:"qos,omitempty" yaml:"qos"`
	Retain   bool   `json:"retain,omitempty" yaml:"retain"`
}

// Webhook configures the optional HTTP firing-event publisher. An empty
// URL disables it.
type Webhook struct {
	URL     string            `json:"url,omitempty" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers"`
}

// Config holds the global settings.
type Config struct {
	Store              string  `json:"store,omitempty" yaml:"store"`
	Volume             int     `json:"volume" yaml:"volume"`
	TickIntervalMS     int     `json:"tick_interval_ms,omitempty" yaml:"tick_interval_ms"`
	MaxDurationSeconds float64 `json:"max_duration_seconds,omitempty" yaml:"max_duration_seconds"`
	Notifications      bool    `json:"notifications" yaml:"notifications"`
	SpeechRate         float64 `json:"speech_rate,omitempty" yaml:"speech_rate"`
	SpeechPitch        float64 `json:"speech_pitch,omitempty" yaml:"speech_pitch"`
	DefaultLanguage    string  `json:"default_language,omitempty" yaml:"default_language"`
	DefaultSound       string  `json:"default_sound,omitempty" yaml:"default_sound"`
	History            bool    `json:"history" yaml:"history"`
	WatchDebounceMS    int     `json:"watch_debounce_ms,omitempty" yaml:"watch_debounce_ms"`
	MQTT               MQTT    `json:"mqtt,omitempty" yaml:"mqtt"`
	Webhook            Webhook `json:"webhook,omitempty" yaml:"webhook"`

	// Path is the file the config was read from, empty for defaults.
	Path string `json:"-" yaml:"-"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	var c Config
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.Volume = DefaultVolume
	c.TickIntervalMS = DefaultTickIntervalMS
	c.MaxDurationSeconds = audio.MaxDuration
	c.Notifications = true
	c.SpeechRate = DefaultSpeechRate
	c.SpeechPitch = DefaultSpeechPitch
	c.DefaultLanguage = DefaultLanguage
	c.DefaultSound = audio.DefaultSound
	c.History = true
	c.WatchDebounceMS = DefaultWatchDebounceMS
}

// UnmarshalJSON sets defaults then decodes the JSON structure.
// Go's json.Unmarshal merges into existing struct fields, so only
// values present in JSON override the defaults.
func (c *Config) UnmarshalJSON(data []byte) error {
	c.setDefaults()
	type Alias Config
	return json.Unmarshal(data, (*Alias)(c))
}

// UnmarshalYAML is UnmarshalJSON for YAML config files.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	c.setDefaults()
	type Alias Config
	return value.Decode((*Alias)(c))
}

// TickInterval returns the scheduler period, capped at one second so no
// firing second can be skipped.
func (c Config) TickInterval() time.Duration {
	ms := c.TickIntervalMS
	if ms <= 0 || ms > 1000 {
		ms = 1000
	}
	return time.Duration(ms) * time.Millisecond
}

// WatchDebounce returns the delay before reloading a changed alarm file.
func (c Config) WatchDebounce() time.Duration {
	if c.WatchDebounceMS < 0 {
		return 0
	}
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// MaxDuration returns the upload window cap in seconds, never above
// audio.MaxDuration.
func (c Config) MaxDuration() float64 {
	if c.MaxDurationSeconds <= 0 || c.MaxDurationSeconds > audio.MaxDuration {
		return audio.MaxDuration
	}
	return c.MaxDurationSeconds
}

// Validate reports settings that cannot be used as given.
func (c Config) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return fmt.Errorf("volume must be 0-100, got %d", c.Volume)
	}
	switch strings.ToLower(c.Store) {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("store must be file or sqlite, got %q", c.Store)
	}
	if !audio.IsSound(c.DefaultSound) {
		return fmt.Errorf("default_sound %q is not a built-in sound (%s)", c.DefaultSound, strings.Join(audio.SoundIDs(), ", "))
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if u := c.Webhook.URL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("webhook url must start with http:// or https://, got %q", u)
	}
	return nil
}

// fileNames are the config names searched for, in order.
var fileNames = []string{paths.ConfigFileName, "wakeup-config.yaml", "wakeup-config.yml"}

// Load reads and parses a config file. It tries, in order:
//  1. explicitPath (if non-empty)
//  2. wakeup-config.{json,yaml,yml} next to the running binary
//  3. the same names in the data directory (~/.config/wakeup)
//
// A missing file is not an error: defaults are used. Environment
// overrides (WAKEUP_*), optionally from a .env file, are applied last.
func Load(explicitPath string) (Config, error) {
	loadDotEnv()

	cfg, err := loadFile(explicitPath)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", cfg.Path, err)
	}
	return cfg, nil
}

func loadFile(explicitPath string) (Config, error) {
	if explicitPath != "" {
		return readConfig(explicitPath)
	}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, paths.DataDir())

	for _, dir := range dirs {
		for _, name := range fileNames {
			p := filepath.Join(dir, name)
			if _, err := os.Stat(p); err == nil {
				return readConfig(p)
			}
		}
	}
	return Default(), nil
}

// loadDotEnv reads .env files from the working and data directories.
// Variables already set in the environment win.
func loadDotEnv() {
	for _, p := range []string{paths.EnvFileName, filepath.Join(paths.DataDir(), paths.EnvFileName)} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("config: %s: %v", p, err)
		}
	}
}

func readConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.Path = path
	return cfg, nil
}

// applyEnv overrides file settings from WAKEUP_* variables.
func applyEnv(c *Config) {
	c.Store = getEnv("WAKEUP_STORE", c.Store)
	c.Volume = getEnvInt("WAKEUP_VOLUME", c.Volume)
	c.TickIntervalMS = getEnvInt("WAKEUP_TICK_INTERVAL_MS", c.TickIntervalMS)
	c.Notifications = getEnvBool("WAKEUP_NOTIFICATIONS", c.Notifications)
	c.SpeechRate = getEnvFloat("WAKEUP_SPEECH_RATE", c.SpeechRate)
	c.SpeechPitch = getEnvFloat("WAKEUP_SPEECH_PITCH", c.SpeechPitch)
	c.DefaultLanguage = getEnv("WAKEUP_LANGUAGE", c.DefaultLanguage)
	c.DefaultSound = getEnv("WAKEUP_SOUND", c.DefaultSound)
	c.History = getEnvBool("WAKEUP_HISTORY", c.History)
	c.MQTT.Broker = getEnv("WAKEUP_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.Topic = getEnv("WAKEUP_MQTT_TOPIC", c.MQTT.Topic)
	c.MQTT.ClientID = getEnv("WAKEUP_MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("WAKEUP_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("WAKEUP_MQTT_PASSWORD", c.MQTT.Password)
	c.Webhook.URL = getEnv("WAKEUP_WEBHOOK_URL", c.Webhook.URL)
}

func getEnv(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("config: %s=%q is not an integer, keeping %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		log.Printf("config: %s=%q is not a number, keeping %g", key, value, defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("config: %s=%q is not a boolean, keeping %t", key, value, defaultValue)
		return defaultValue
	}
	return b
}
