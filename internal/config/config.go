package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from config.yaml.
type Config struct {
	Root               string   `yaml:"root"                 json:"root"`
	Subfolder          string   `yaml:"subfolder"            json:"subfolder"`
	HTTPAddr           string   `yaml:"http_addr"            json:"-"`
	PermanentDelete    bool     `yaml:"permanent_delete"     json:"permanent_delete"`
	TrashDir           string   `yaml:"trash_dir"            json:"trash_dir"`
	TrashRetentionDays int      `yaml:"trash_retention_days" json:"trash_retention_days"`
	PurgeSchedule      string   `yaml:"purge_schedule"       json:"purge_schedule"`
	DBPath             string   `yaml:"db_path"              json:"-"`
	ImageExts          []string `yaml:"image_exts"           json:"image_exts"`
	PageLimit          int      `yaml:"page_limit"           json:"page_limit"`
	MaxPageLimit       int      `yaml:"max_page_limit"       json:"max_page_limit"`
	DisableWatch       bool     `yaml:"disable_watch"        json:"disable_watch"`
	LogLevel           string   `yaml:"log_level"            json:"-"`
}

// DefaultImageExts are the extensions reviewed when image_exts is unset.
var DefaultImageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tif", ".tiff"}

// ApplyDefaults fills zero/empty fields with sensible defaults. Paths that
// default relative to Root are derived from its current value, so call it
// again after overriding Root.
func (c *Config) ApplyDefaults() {
	if c.Root == "" {
		c.Root = "."
	}
	if abs, err := filepath.Abs(c.Root); err == nil {
		c.Root = abs
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8000"
	}
	if c.TrashDir == "" {
		c.TrashDir = filepath.Join(c.Root, ".image-dup-trash")
	}
	if c.TrashRetentionDays == 0 {
		c.TrashRetentionDays = 30
	}
	if c.PurgeSchedule == "" {
		c.PurgeSchedule = "0 3 * * *"
	}
	if c.DBPath == "" {
		c.DBPath = filepath.Join(c.TrashDir, "dupview.db")
	}
	if len(c.ImageExts) == 0 {
		c.ImageExts = append([]string(nil), DefaultImageExts...)
	}
	if c.PageLimit == 0 {
		c.PageLimit = 24
	}
	if c.MaxPageLimit == 0 {
		c.MaxPageLimit = 200
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SetRoot replaces Root, as the -root flag does. Trash and database paths
// that were derived from the previous root follow the new one; explicitly
// configured paths are kept.
func (c *Config) SetRoot(root string) {
	derivedTrash := c.TrashDir == "" || c.TrashDir == filepath.Join(c.Root, ".image-dup-trash")
	derivedDB := c.DBPath == "" || c.DBPath == filepath.Join(c.TrashDir, "dupview.db")
	c.Root = root
	if derivedTrash {
		c.TrashDir = ""
	}
	if derivedDB {
		c.DBPath = ""
	}
	c.ApplyDefaults()
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	info, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("root %q: %w", c.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %q is not a directory", c.Root)
	}
	if c.TrashRetentionDays < 1 || c.TrashRetentionDays > 365 {
		return fmt.Errorf("trash_retention_days must be 1–365, got %d", c.TrashRetentionDays)
	}
	if c.PageLimit < 1 || c.MaxPageLimit < c.PageLimit {
		return fmt.Errorf("page_limit must be between 1 and max_page_limit (%d), got %d", c.MaxPageLimit, c.PageLimit)
	}
	return nil
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the tool
// can be started with flags alone.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		var cfg Config
		cfg.ApplyDefaults()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// MergeDBSettings overlays settings stored in the DB on top of the config.
// Keys recognised: "permanent_delete", "trash_retention_days".
// Unknown keys and unparsable values are ignored.
func MergeDBSettings(cfg *Config, settings map[string]string) {
	if v, ok := settings["permanent_delete"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PermanentDelete = b
		}
	}
	if v, ok := settings["trash_retention_days"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 365 {
			cfg.TrashRetentionDays = n
		}
	}
}
