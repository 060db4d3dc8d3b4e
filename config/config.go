// Package config holds livestack configuration. It's loaded from a YAML
// file and is read-only for the rest of the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/dudk/livestack/stack"
)

const (
	// AppName is used for XDG directory paths.
	AppName = "livestack"
	// StackedImageFileNameBase is the base name of the stacking result.
	StackedImageFileNameBase = "stacked"
	// WebServedImageFileNameBase is the base name of the image served by
	// the web server.
	WebServedImageFileNameBase = "web_image"
	// ImageSaveJPEG is jpeg file extension.
	ImageSaveJPEG = "jpg"
	// ImageSaveTIFF is tiff file extension.
	ImageSaveTIFF = "tiff"
	// ImageSavePNG is png file extension.
	ImageSavePNG = "png"
	// DefaultScanInterval between two scan folder polls.
	DefaultScanInterval = 500 * time.Millisecond
)

// configFile is the config path relative to XDG config directories.
var configFile = filepath.Join(AppName, "config.yaml")

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
	// ErrInvalidFormat is returned for unsupported image save formats.
	ErrInvalidFormat = errors.New("invalid image save format: must be tiff, png or jpg")
	// ErrInvalidScanInterval is returned when the scan interval is not positive.
	ErrInvalidScanInterval = errors.New("invalid scan interval: must be positive")
	// ErrMissingFolder is returned when scan or work folder is not configured.
	ErrMissingFolder = errors.New("scan and work folders must be configured")
)

// Config holds all configuration options.
type Config struct {
	ScanFolder          string        `yaml:"scan_folder"`
	WorkFolder          string        `yaml:"work_folder"`
	ImageSaveFormat     string        `yaml:"image_save_format"`
	SaveEveryImage      bool          `yaml:"save_every_image"`
	AlignBeforeStacking bool          `yaml:"align_before_stacking"`
	StackingMode        string        `yaml:"stacking_mode"`
	ScanInterval        time.Duration `yaml:"scan_interval"`
	WebServer           bool          `yaml:"web_server"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		ScanFolder:      filepath.Join(xdg.UserDirs.Pictures, AppName, "scan"),
		WorkFolder:      filepath.Join(xdg.DataHome, AppName, "work"),
		ImageSaveFormat: ImageSaveTIFF,
		StackingMode:    string(stack.Mean),
		ScanInterval:    DefaultScanInterval,
	}
}

// Load reads configuration from a YAML file. Values missing in the file
// keep their defaults. ErrConfigNotFound is returned if file doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return c, nil
}

// Find returns path of the configuration file. An explicit path is used as
// is, otherwise XDG config directories are searched. Empty string is
// returned if no file was found.
func Find(path string) string {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		return ""
	}
	found, err := xdg.SearchConfigFile(configFile)
	if err != nil {
		return ""
	}
	return found
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.ScanFolder == "" || c.WorkFolder == "" {
		return ErrMissingFolder
	}
	switch c.ImageSaveFormat {
	case ImageSaveTIFF, ImageSavePNG, ImageSaveJPEG:
	default:
		return ErrInvalidFormat
	}
	if _, err := stack.ParseMode(c.StackingMode); err != nil {
		return err
	}
	if c.ScanInterval <= 0 {
		return ErrInvalidScanInterval
	}
	return nil
}

// ScanFolderPath returns path of the folder scanned for new frames.
func (c *Config) ScanFolderPath() string {
	return c.ScanFolder
}

// WorkFolderPath returns path of the folder results are saved to.
func (c *Config) WorkFolderPath() string {
	return c.WorkFolder
}

// ImageSaveFormatExt returns file extension of saved images.
func (c *Config) ImageSaveFormatExt() string {
	return c.ImageSaveFormat
}
