package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a config file accepted by Load.
const MaxConfigFileBytes = 1 << 20 // 1 MiB

// MotorConfig holds the linear-stage stepper configuration.
type MotorConfig struct {
	StepPin        int     `yaml:"step_pin"`
	DirPin         int     `yaml:"dir_pin"`
	EnablePin      int     `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	SensorPin      int     `yaml:"sensor_pin"` // IR limit sensor at the home end
	StepsPerMM     float64 `yaml:"steps_per_mm"`
	TravelLimitMM  float64 `yaml:"travel_limit_mm"`
	PulseFreqHz    int     `yaml:"pulse_freq_hz"`
	MaxHomingSteps int     `yaml:"max_homing_steps"` // step bound before homing is declared failed
}

// CameraConfig describes the frame source.
// Type selects a concrete implementation ("rpicam_still" or "simulated").
type CameraConfig struct {
	Type           string `yaml:"type"`
	StillCommand   string `yaml:"still_command"` // capture binary, e.g. "rpicam-still"
	WidthPx        int    `yaml:"width_px"`
	HeightPx       int    `yaml:"height_px"`
	LightPin       int    `yaml:"light_pin"` // illumination LED (BCM). 0 = not used. Active LOW.
	SettleMs       int    `yaml:"settle_ms"` // light-on delay before exposure
	ReferenceImage string `yaml:"reference_image"`
}

// ScanConfig holds the scan sequence parameters.
type ScanConfig struct {
	TotalFrames    int     `yaml:"total_frames"`
	SpanMM         float64 `yaml:"span_mm"`
	OverlapPercent float64 `yaml:"overlap_percent"` // shared width between neighbor frames (0-100, exclusive)
	RetryLimit     int     `yaml:"retry_limit"`     // extra capture attempts per frame
}

// OutputConfig holds the artifact parameters.
type OutputConfig struct {
	Dir              string  `yaml:"dir"`
	CanvasWidthPx    int     `yaml:"canvas_width_px"`
	CanvasHeightPx   int     `yaml:"canvas_height_px"`
	ContrastFactor   float64 `yaml:"contrast_factor"`
	SaturationFactor float64 `yaml:"saturation_factor"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	Simulation bool `yaml:"simulation"`  // true = no hardware attached (dev/test)
}

// Config aggregates all application configuration.
type Config struct {
	Motor    MotorConfig    `yaml:"motor"`
	Camera   CameraConfig   `yaml:"camera"`
	Scan     ScanConfig     `yaml:"scan"`
	Output   OutputConfig   `yaml:"output"`
	Defaults DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath checks that path points at a .yaml file inside a
// configs/ directory, with no traversal segments.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("config path must not contain traversal segments: %s", path)
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	if filepath.Base(filepath.Dir(filepath.Clean(path))) != "configs" {
		return fmt.Errorf("config file must live under a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Camera.Type == "" {
		return nil, fmt.Errorf("camera.type is required")
	}
	if cfg.Scan.OverlapPercent < 0 || cfg.Scan.OverlapPercent >= 100 {
		return nil, fmt.Errorf("overlap_percent must be in [0, 100), got %.2f", cfg.Scan.OverlapPercent)
	}
	if cfg.Scan.RetryLimit < 0 {
		return nil, fmt.Errorf("retry_limit must be >= 0, got %d", cfg.Scan.RetryLimit)
	}
	if cfg.Scan.SpanMM < 0 {
		return nil, fmt.Errorf("span_mm must be >= 0, got %.2f", cfg.Scan.SpanMM)
	}
	if cfg.Motor.StepsPerMM < 0 {
		return nil, fmt.Errorf("steps_per_mm must be > 0, got %.2f", cfg.Motor.StepsPerMM)
	}

	// Defaults for anything unset
	if cfg.Scan.TotalFrames <= 0 {
		cfg.Scan.TotalFrames = 4
	}
	if cfg.Scan.SpanMM == 0 {
		cfg.Scan.SpanMM = 150
	}
	if cfg.Scan.OverlapPercent == 0 {
		cfg.Scan.OverlapPercent = 15
	}
	if cfg.Motor.StepsPerMM == 0 {
		cfg.Motor.StepsPerMM = 100 // 0.01 mm per microstep
	}
	if cfg.Motor.TravelLimitMM <= 0 {
		cfg.Motor.TravelLimitMM = 160
	}
	if cfg.Motor.PulseFreqHz <= 0 {
		cfg.Motor.PulseFreqHz = 8000
	}
	if cfg.Motor.MaxHomingSteps <= 0 {
		cfg.Motor.MaxHomingSteps = 19322
	}
	if cfg.Scan.SpanMM > cfg.Motor.TravelLimitMM {
		return nil, fmt.Errorf("span_mm %.2f exceeds travel_limit_mm %.2f", cfg.Scan.SpanMM, cfg.Motor.TravelLimitMM)
	}
	if cfg.Camera.StillCommand == "" {
		cfg.Camera.StillCommand = "rpicam-still"
	}
	if cfg.Camera.WidthPx <= 0 {
		cfg.Camera.WidthPx = 2304
	}
	if cfg.Camera.HeightPx <= 0 {
		cfg.Camera.HeightPx = 1296
	}
	if cfg.Camera.SettleMs <= 0 {
		cfg.Camera.SettleMs = 500
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = filepath.Join("data", "processed")
	}
	if cfg.Output.CanvasWidthPx <= 0 {
		cfg.Output.CanvasWidthPx = 480
	}
	if cfg.Output.CanvasHeightPx <= 0 {
		cfg.Output.CanvasHeightPx = 800
	}
	if cfg.Output.ContrastFactor <= 0 {
		cfg.Output.ContrastFactor = 1.2
	}
	if cfg.Output.SaturationFactor <= 0 {
		cfg.Output.SaturationFactor = 1.1
	}

	return &cfg, nil
}

// OverlapFraction returns the overlap as a ratio (0.0 to 1.0).
// For example, 15% becomes 0.15.
func (c *Config) OverlapFraction() float64 {
	return c.Scan.OverlapPercent / 100.0
}

// Settle returns the light-on delay before each exposure.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Camera.SettleMs) * time.Millisecond
}
