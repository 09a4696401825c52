// Package config loads and saves the daemon's settings file, a flat
// KEY="VALUE" format matching the plugin UI's existing config files rather
// than a structured format like TOML or YAML. Values can be overridden at
// process start by environment variables so the daemon can run unmodified
// inside a container.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds every tunable read from disk or overridden by environment.
type Config struct {
	Port            int
	ScanThreads     int
	SliderAlpha     float64
	MaxTolerance    float64
	MinFreeHeadroom int64
	ExcludedDisks   []string
	WarnParityCheck bool

	// ConfigPath and DBPath are not persisted in the file itself; they're
	// resolved once at startup from flags/env and carried alongside the
	// tunables for convenience.
	ConfigPath string
	DBPath     string
	MntBase    string
}

// Default returns the settings a fresh install starts with.
func Default() Config {
	return Config{
		Port:            5050,
		ScanThreads:     4,
		SliderAlpha:     0.5,
		MaxTolerance:    0.05,
		MinFreeHeadroom: 5 * 1024 * 1024 * 1024,
		ExcludedDisks:   nil,
		WarnParityCheck: true,
		ConfigPath:      "/boot/config/plugins/perfectly-balanced/settings.cfg",
		DBPath:          "/boot/config/plugins/perfectly-balanced/catalog.db",
		MntBase:         "/mnt",
	}
}

// Load reads configPath (Default().ConfigPath when configPath is empty) if
// present, applying recognized keys on top of
// Default(), then applies environment overrides. A missing file is not an
// error: it means this is a fresh install and the defaults stand.
func Load(configPath string) (Config, error) {
	cfg := Default()
	if configPath != "" {
		cfg.ConfigPath = configPath
	}

	contents, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", cfg.ConfigPath, err)
	}

	parseInto(&cfg, string(contents))
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// parseInto applies every recognized KEY="VALUE" line in contents to cfg.
// Unknown keys and malformed values are ignored rather than rejected, since
// this file is hand-editable and a typo shouldn't prevent the daemon from
// starting with otherwise-good settings.
func parseInto(cfg *Config, contents string) {
	scanner := bufio.NewScanner(strings.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"`)

		switch key {
		case "PORT":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.Port = v
			}
		case "SCAN_THREADS":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.ScanThreads = v
			}
		case "SLIDER_ALPHA":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				cfg.SliderAlpha = v
			}
		case "MAX_TOLERANCE":
			if v, err := strconv.ParseFloat(value, 64); err == nil {
				cfg.MaxTolerance = v
			}
		case "MIN_FREE_HEADROOM":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				cfg.MinFreeHeadroom = v
			}
		case "EXCLUDED_DISKS":
			cfg.ExcludedDisks = splitExcluded(value)
		case "WARN_PARITY_CHECK":
			cfg.WarnParityCheck = value == "yes" || value == "true" || value == "1"
		}
	}
}

func splitExcluded(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyEnvOverrides lets the four process-level settings (config path, DB
// path, port, mount base) be set without
// touching the settings file, and takes precedence over whatever Load just
// parsed out of it.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PB_CONFIG_PATH"); v != "" {
		cfg.ConfigPath = v
	}
	if v := os.Getenv("PB_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("PB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("PB_MNT_BASE"); v != "" {
		cfg.MntBase = v
	}
}

// Save writes cfg back to its ConfigPath in the same KEY="VALUE" format,
// creating the parent directory if needed. It's how the settings API
// endpoint persists changes made through the plugin UI.
func (cfg Config) Save() error {
	if dir := filepath.Dir(cfg.ConfigPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	warnParity := "no"
	if cfg.WarnParityCheck {
		warnParity = "yes"
	}

	var b strings.Builder
	b.WriteString("# Perfectly Balanced configuration\n")
	b.WriteString("# Auto-generated, edit via the plugin UI\n")
	fmt.Fprintf(&b, "PORT=%q\n", strconv.Itoa(cfg.Port))
	fmt.Fprintf(&b, "SCAN_THREADS=%q\n", strconv.Itoa(cfg.ScanThreads))
	fmt.Fprintf(&b, "SLIDER_ALPHA=%q\n", strconv.FormatFloat(cfg.SliderAlpha, 'f', -1, 64))
	fmt.Fprintf(&b, "MAX_TOLERANCE=%q\n", strconv.FormatFloat(cfg.MaxTolerance, 'f', -1, 64))
	fmt.Fprintf(&b, "MIN_FREE_HEADROOM=%q\n", strconv.FormatInt(cfg.MinFreeHeadroom, 10))
	fmt.Fprintf(&b, "EXCLUDED_DISKS=%q\n", strings.Join(cfg.ExcludedDisks, ","))
	fmt.Fprintf(&b, "WARN_PARITY_CHECK=%q\n", warnParity)

	if err := os.WriteFile(cfg.ConfigPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("save config %s: %w", cfg.ConfigPath, err)
	}
	return nil
}
