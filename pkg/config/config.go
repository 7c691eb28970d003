// Package config provides configuration management for crimeapp.
// It loads configuration from YAML files with sensible defaults and lets
// CRIMEAPP_* environment variables override individual settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all crimeapp configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Storage     StorageConfig     `yaml:"storage"`
	Sighting    SightingConfig    `yaml:"sighting"`
	Session     SessionConfig     `yaml:"session"`
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CameraConfig holds camera settings.
type CameraConfig struct {
	Device          string `yaml:"device"`
	Width           int    `yaml:"width"`
	Height          int    `yaml:"height"`
	FPS             int    `yaml:"fps"`
	FourCC          string `yaml:"fourcc"`
	MaxReadFailures int    `yaml:"max_read_failures"`
	RetryDelayMs    int    `yaml:"retry_delay_ms"`
}

// RecognitionConfig holds face recognition settings.
type RecognitionConfig struct {
	Tolerance float64 `yaml:"tolerance"`
	ModelPath string  `yaml:"model_path"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Backend is "sqlite" or "file".
	Backend           string `yaml:"backend"`
	DatabasePath      string `yaml:"database_path"`
	DataDir           string `yaml:"data_dir"`
	EncryptionEnabled bool   `yaml:"encryption_enabled"`
	MediaDir          string `yaml:"media_dir"`
	ResultsDir        string `yaml:"results_dir"`
}

// SightingConfig holds the location stamped on every recorded sighting.
type SightingConfig struct {
	Latitude  string `yaml:"latitude"`
	Longitude string `yaml:"longitude"`
}

// SessionConfig holds capture session behavior.
type SessionConfig struct {
	AnnotateFrames bool `yaml:"annotate_frames"`
	RecordOneShot  bool `yaml:"record_one_shot"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".local/share/crimeapp")
	return &Config{
		Camera: CameraConfig{
			Device:          "0",
			Width:           640,
			Height:          480,
			FPS:             30,
			FourCC:          "MJPG",
			MaxReadFailures: 10,
			RetryDelayMs:    100,
		},
		Recognition: RecognitionConfig{
			Tolerance: 0.6,
			ModelPath: filepath.Join(dataDir, "models"),
		},
		Storage: StorageConfig{
			Backend:           "sqlite",
			DatabasePath:      filepath.Join(dataDir, "crimeapp.db"),
			DataDir:           filepath.Join(dataDir, "records"),
			EncryptionEnabled: false,
			MediaDir:          filepath.Join(dataDir, "media"),
			ResultsDir:        filepath.Join(dataDir, "media/results"),
		},
		Sighting: SightingConfig{
			Latitude:  "25.3176° N",
			Longitude: "82.9739° E",
		},
		Session: SessionConfig{
			AnnotateFrames: true,
			RecordOneShot:  false,
		},
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
	}
}

// Load loads configuration from the specified file.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, err
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return config, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// LoadDefault tries to load configuration from default locations.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("/etc/crimeapp/crimeapp.yaml"); err == nil {
		return Load("/etc/crimeapp/crimeapp.yaml")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfig(), nil
	}

	userConfig := filepath.Join(homeDir, ".config/crimeapp/crimeapp.yaml")
	if _, err := os.Stat(userConfig); err == nil {
		return Load(userConfig)
	}

	return DefaultConfig(), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// ApplyEnv overrides settings from CRIMEAPP_* environment variables.
// Malformed numeric or boolean values leave the current setting untouched.
func (c *Config) ApplyEnv() {
	c.Camera.Device = getEnvOrDefault("CRIMEAPP_CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Width = getEnvIntOrDefault("CRIMEAPP_CAMERA_WIDTH", c.Camera.Width)
	c.Camera.Height = getEnvIntOrDefault("CRIMEAPP_CAMERA_HEIGHT", c.Camera.Height)
	c.Camera.FPS = getEnvIntOrDefault("CRIMEAPP_CAMERA_FPS", c.Camera.FPS)

	c.Recognition.Tolerance = getEnvFloatOrDefault("CRIMEAPP_TOLERANCE", c.Recognition.Tolerance)
	c.Recognition.ModelPath = getEnvOrDefault("CRIMEAPP_MODEL_PATH", c.Recognition.ModelPath)

	c.Storage.Backend = getEnvOrDefault("CRIMEAPP_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.DatabasePath = getEnvOrDefault("CRIMEAPP_DATABASE_PATH", c.Storage.DatabasePath)
	c.Storage.DataDir = getEnvOrDefault("CRIMEAPP_DATA_DIR", c.Storage.DataDir)
	c.Storage.EncryptionEnabled = getEnvBoolOrDefault("CRIMEAPP_ENCRYPTION", c.Storage.EncryptionEnabled)
	c.Storage.MediaDir = getEnvOrDefault("CRIMEAPP_MEDIA_DIR", c.Storage.MediaDir)
	c.Storage.ResultsDir = getEnvOrDefault("CRIMEAPP_RESULTS_DIR", c.Storage.ResultsDir)

	c.Sighting.Latitude = getEnvOrDefault("CRIMEAPP_LATITUDE", c.Sighting.Latitude)
	c.Sighting.Longitude = getEnvOrDefault("CRIMEAPP_LONGITUDE", c.Sighting.Longitude)

	c.Session.RecordOneShot = getEnvBoolOrDefault("CRIMEAPP_RECORD_ONE_SHOT", c.Session.RecordOneShot)

	c.Server.Host = getEnvOrDefault("CRIMEAPP_HOST", c.Server.Host)
	c.Server.Port = getEnvIntOrDefault("CRIMEAPP_PORT", c.Server.Port)
	if origins := os.Getenv("CRIMEAPP_ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	c.Logging.Level = getEnvOrDefault("CRIMEAPP_LOG_LEVEL", c.Logging.Level)
	c.Logging.File = getEnvOrDefault("CRIMEAPP_LOG_FILE", c.Logging.File)
	c.Logging.Format = getEnvOrDefault("CRIMEAPP_LOG_FORMAT", c.Logging.Format)
}

// ExpandPath expands ~ and environment variables in a path.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Camera.Device == "" {
		return fmt.Errorf("camera device must not be empty")
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera resolution: %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid camera FPS: %d", c.Camera.FPS)
	}
	if len(c.Camera.FourCC) != 0 && len(c.Camera.FourCC) != 4 {
		return fmt.Errorf("fourcc must be 4 characters, got %q", c.Camera.FourCC)
	}
	if c.Camera.MaxReadFailures <= 0 {
		return fmt.Errorf("max_read_failures must be positive, got %d", c.Camera.MaxReadFailures)
	}
	if c.Camera.RetryDelayMs < 0 {
		return fmt.Errorf("retry_delay_ms must not be negative, got %d", c.Camera.RetryDelayMs)
	}

	if c.Recognition.Tolerance <= 0 || c.Recognition.Tolerance > 1 {
		return fmt.Errorf("tolerance must be in (0, 1], got %f", c.Recognition.Tolerance)
	}

	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.DatabasePath == "" {
			return fmt.Errorf("database_path is required for the sqlite backend")
		}
	case "file":
		if c.Storage.DataDir == "" {
			return fmt.Errorf("data_dir is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be sqlite or file)", c.Storage.Backend)
	}
	if c.Storage.MediaDir == "" || c.Storage.ResultsDir == "" {
		return fmt.Errorf("media_dir and results_dir must be set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	return nil
}

// ExpandPaths expands all paths in the configuration.
func (c *Config) ExpandPaths() {
	c.Recognition.ModelPath = ExpandPath(c.Recognition.ModelPath)
	c.Storage.DatabasePath = ExpandPath(c.Storage.DatabasePath)
	c.Storage.DataDir = ExpandPath(c.Storage.DataDir)
	c.Storage.MediaDir = ExpandPath(c.Storage.MediaDir)
	c.Storage.ResultsDir = ExpandPath(c.Storage.ResultsDir)
	if c.Logging.File != "" {
		c.Logging.File = ExpandPath(c.Logging.File)
	}
}

type dirSpec struct {
	path string
	perm os.FileMode
	what string
}

// EnsureDirectories creates the directories the configured backend writes to.
func (c *Config) EnsureDirectories() error {
	dirs := []dirSpec{
		{c.Storage.MediaDir, 0755, "media"},
		{c.Storage.ResultsDir, 0755, "results"},
		{c.Recognition.ModelPath, 0755, "models"},
	}
	if c.Storage.Backend == "file" {
		dirs = append(dirs, dirSpec{c.Storage.DataDir, 0700, "storage"})
	} else {
		dirs = append(dirs, dirSpec{filepath.Dir(c.Storage.DatabasePath), 0755, "database"})
	}
	if c.Logging.File != "" {
		dirs = append(dirs, dirSpec{filepath.Dir(c.Logging.File), 0755, "log"})
	}

	for _, d := range dirs {
		if err := os.MkdirAll(d.path, d.perm); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", d.what, err)
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
