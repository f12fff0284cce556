// Package config loads the settings tree via viper, with a hot-reload
// watcher for the device-side knobs that can change while the loops
// are running.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envReplacer maps "camera.stop_motion.interval_seconds" to
// CAMERA_STOP_MOTION_INTERVAL_SECONDS for AutomaticEnv lookups.
var envReplacer = strings.NewReplacer(".", "_")

type JWTKeyConfig struct {
	Key            string `mapstructure:"key"`
	ExpiresSeconds int    `mapstructure:"expires_seconds"`
}

type JWTConfig struct {
	Algorithm string       `mapstructure:"algorithm"`
	Access    JWTKeyConfig `mapstructure:"access"`
	Refresh   JWTKeyConfig `mapstructure:"refresh"`
}

type PinDebounceConfig struct {
	Pin           int `mapstructure:"pin"`
	DebounceMS    int `mapstructure:"debounce_ms"`
	PollingRateHz int `mapstructure:"polling_rate_hz"`
}

type Resolution struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type StopMotionConfig struct {
	IntervalSeconds float64 `mapstructure:"interval_seconds"`
	DurationSeconds float64 `mapstructure:"duration_seconds"`
	OutputDir       string  `mapstructure:"output_dir"`
}

type CameraConfig struct {
	DeviceID   int              `mapstructure:"device_id"`
	Resolution Resolution       `mapstructure:"resolution"`
	Framerate  int              `mapstructure:"framerate"`
	Format     string           `mapstructure:"format"`
	StopMotion StopMotionConfig `mapstructure:"stop_motion"`
}

type RGBPins struct {
	R int `mapstructure:"R"`
	G int `mapstructure:"G"`
	B int `mapstructure:"B"`
}

type RGBColor struct {
	R int `mapstructure:"r"`
	G int `mapstructure:"g"`
	B int `mapstructure:"b"`
}

type RGBConfig struct {
	Pins  RGBPins  `mapstructure:"pins"`
	Freq  int      `mapstructure:"freq"`
	Color RGBColor `mapstructure:"color"`
}

type TurnServerConfig struct {
	Host   string `mapstructure:"host"`
	Secret string `mapstructure:"secret"`
}

type WebRTCConfig struct {
	RoomID     string           `mapstructure:"room_id"`
	TurnServer TurnServerConfig `mapstructure:"turn_server"`
}

// Config is the full settings tree, shared (with mostly-disjoint
// sections) by cmd/device and cmd/hub.
type Config struct {
	JWT                     JWTConfig         `mapstructure:"jwt"`
	CaptureDir              string            `mapstructure:"capture_dir"`
	MotionRateLimitMinutes  int               `mapstructure:"motion_rate_limit_minutes"`
	Button                  PinDebounceConfig `mapstructure:"button"`
	MotionSensor            PinDebounceConfig `mapstructure:"motion_sensor"`
	Camera                  CameraConfig      `mapstructure:"camera"`
	RGB                     RGBConfig         `mapstructure:"rgb"`
	WebRTC                  WebRTCConfig      `mapstructure:"webrtc"`
	WSURL                   string            `mapstructure:"ws_url"`
	SignalingServerURL      string            `mapstructure:"signaling_server_url"`
	AuthToken               string            `mapstructure:"auth_token"`

	DatabaseDriver string `mapstructure:"database_driver"` // "postgres" | "sqlite"
	DatabaseDSN    string `mapstructure:"database_dsn"`
	RPIOwnerUserID uint   `mapstructure:"rpi_owner_user_id"`
	HTTPAddr       string `mapstructure:"http_addr"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	FCMServerKey   string `mapstructure:"fcm_server_key"`

	FaceCascadePath string `mapstructure:"face_cascade_path"`
	DeviceID        string `mapstructure:"device_id"`

	StreamingCooldownSeconds float64 `mapstructure:"streaming_cooldown_seconds"`
	ReplyTimeoutSeconds      float64 `mapstructure:"reply_timeout_seconds"`
	WSInactivitySeconds      float64 `mapstructure:"ws_inactivity_seconds"`
	PushTimeoutSeconds       float64 `mapstructure:"push_timeout_seconds"`
	ReconnectBackoffSeconds  float64 `mapstructure:"reconnect_backoff_seconds"`
	PushMaxRetries           int     `mapstructure:"push_max_retries"`
}

func (c *Config) ReplyTimeout() time.Duration {
	return time.Duration(c.ReplyTimeoutSeconds * float64(time.Second))
}

func (c *Config) ReconnectBackoff() time.Duration {
	return time.Duration(c.ReconnectBackoffSeconds * float64(time.Second))
}

func (c *Config) StreamingCooldown() time.Duration {
	return time.Duration(c.StreamingCooldownSeconds * float64(time.Second))
}

func (c *Config) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutSeconds * float64(time.Second))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("motion_rate_limit_minutes", 1)
	v.SetDefault("button.debounce_ms", 200)
	v.SetDefault("button.polling_rate_hz", 20)
	v.SetDefault("motion_sensor.debounce_ms", 500)
	v.SetDefault("motion_sensor.polling_rate_hz", 10)
	v.SetDefault("camera.stop_motion.interval_seconds", 2)
	v.SetDefault("camera.stop_motion.duration_seconds", 30)
	v.SetDefault("streaming_cooldown_seconds", 15)
	v.SetDefault("reply_timeout_seconds", 10)
	v.SetDefault("ws_inactivity_seconds", 60)
	v.SetDefault("push_timeout_seconds", 5)
	v.SetDefault("reconnect_backoff_seconds", 3)
	v.SetDefault("push_max_retries", 3)
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("face_cascade_path", "haarcascade_frontalface_default.xml")
	v.SetDefault("device_id", "rpi")
	v.SetDefault("capture_dir", "captures")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("metrics_addr", ":9090")
}

// Load reads configPath (if non-empty) plus environment overrides into a
// Config. Env vars use "_" in place of "." (e.g.
// CAMERA_STOP_MOTION_INTERVAL_SECONDS); only keys that have a default
// or appear in the config file are read from the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Watcher hot-reloads device-side settings on config file changes.
type Watcher struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// WatchFile starts watching configPath and invokes onChange with the
// freshly reloaded Config each time it changes on disk.
func WatchFile(configPath string, onChange func(*Config)) (*Watcher, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	w := &Watcher{v: v, path: configPath}
	v.OnConfigChange(func(_ fsnotify.Event) {
		w.mu.Lock()
		defer w.mu.Unlock()
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()
	return w, nil
}
