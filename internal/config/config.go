// Package config holds vault configuration: the split thresholds and
// hub conventions the engine consumes. Configuration lives in
// .palace/config.json under the vault root; missing files yield defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PalaceDir is the vault-local directory for engine state.
	PalaceDir = ".palace"
	// ConfigFile is the configuration filename inside PalaceDir.
	ConfigFile = "config.json"
)

// VaultConfig supplies the split thresholds and hub conventions.
type VaultConfig struct {
	// MaxLines caps a document's body line count (frontmatter excluded).
	MaxLines int `json:"max_lines"`
	// MaxSections caps the number of level-2 sections.
	MaxSections int `json:"max_sections"`
	// SectionMaxLines caps any single section's line span.
	SectionMaxLines int `json:"section_max_lines"`
	// HubSections lists section titles always retained in the hub
	// (case-insensitive match).
	HubSections []string `json:"hub_sections,omitempty"`
	// CodeHeavyMultiplier relaxes MaxLines when the document is mostly
	// fenced code.
	CodeHeavyMultiplier float64 `json:"code_heavy_multiplier"`
	// CodeHeavyRatio is the in-fence line fraction above which the
	// multiplier applies.
	CodeHeavyRatio float64 `json:"code_heavy_ratio"`
	// HubFileName is a legacy literal hub filename honored only for
	// documents with no frontmatter kind tag.
	HubFileName string `json:"hub_file_name,omitempty"`
}

// Default returns the standard thresholds.
func Default() *VaultConfig {
	return &VaultConfig{
		MaxLines:            400,
		MaxSections:         8,
		SectionMaxLines:     120,
		HubSections:         []string{"Overview", "Knowledge Map"},
		CodeHeavyMultiplier: 1.5,
		CodeHeavyRatio:      0.4,
	}
}

// Validate rejects thresholds that would make every decision degenerate.
func (c *VaultConfig) Validate() error {
	if c.MaxLines <= 0 {
		return fmt.Errorf("max_lines must be positive, got %d", c.MaxLines)
	}
	if c.MaxSections <= 0 {
		return fmt.Errorf("max_sections must be positive, got %d", c.MaxSections)
	}
	if c.SectionMaxLines <= 0 {
		return fmt.Errorf("section_max_lines must be positive, got %d", c.SectionMaxLines)
	}
	if c.CodeHeavyMultiplier < 1 {
		return fmt.Errorf("code_heavy_multiplier must be >= 1, got %v", c.CodeHeavyMultiplier)
	}
	if c.CodeHeavyRatio <= 0 || c.CodeHeavyRatio >= 1 {
		return fmt.Errorf("code_heavy_ratio must be in (0, 1), got %v", c.CodeHeavyRatio)
	}
	return nil
}

// Path returns the absolute path of the config file under vaultRoot.
func Path(vaultRoot string) string {
	return filepath.Join(vaultRoot, PalaceDir, ConfigFile)
}

// Load reads the vault configuration, falling back to defaults when the
// file does not exist. Unset numeric fields inherit their defaults so a
// partial config file stays valid.
func Load(vaultRoot string) (*VaultConfig, error) {
	data, err := os.ReadFile(Path(vaultRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration, creating .palace/ as needed.
func Save(vaultRoot string, cfg *VaultConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	dir := filepath.Join(vaultRoot, PalaceDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(Path(vaultRoot), data, 0o644)
}
