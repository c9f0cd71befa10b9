// Package config loads gasto's typed configuration from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Veraticus/gasto/internal/categorize"
	"github.com/Veraticus/gasto/internal/common"
	"github.com/Veraticus/gasto/internal/dedup"
	"github.com/Veraticus/gasto/internal/importer"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides (GASTO_DATABASE_PATH...).
const EnvPrefix = "GASTO"

// DefaultDatabasePath is used when database.path is unset.
const DefaultDatabasePath = "$HOME/.local/share/gasto/gasto.db"

// Config is the application configuration.
type Config struct {
	Database DatabaseConfig
	Logging  LoggingConfig
	Dedup    DedupConfig
	Import   ImportConfig
	Engine   EngineConfig
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// DedupConfig tunes the duplicate detector.
type DedupConfig struct {
	DateToleranceDays int
	AmountEpsilon     float64
	MinPrefixLength   int
	SimilarityRatio   float64
	Threshold         int
}

// ImportConfig tunes how duplicates affect an import.
type ImportConfig struct {
	DubiousThreshold  int
	ConfidenceCeiling int
	SkipThreshold     int
	WarnThreshold     int
}

// EngineConfig tunes the categorization engine.
type EngineConfig struct {
	// BankMapping adds or replaces entries of the default bank category
	// table. Keys are "category|subcategory" or "category"; values are
	// "Category|Subcategory" or "Category".
	BankMapping map[string]string
	Workers     int
}

// EnvKeyReplacer maps nested keys to environment names: dedup.threshold is
// read from GASTO_DEDUP_THRESHOLD.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	d := dedup.DefaultConfig()
	imp := importer.DefaultConfig()
	policy := importer.DefaultPolicy()

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("dedup.date_tolerance_days", d.DateToleranceDays)
	v.SetDefault("dedup.amount_epsilon", d.AmountEpsilon)
	v.SetDefault("dedup.min_prefix_length", d.MinPrefixLength)
	v.SetDefault("dedup.similarity_ratio", d.SimilarityRatio)
	v.SetDefault("dedup.threshold", d.Threshold)

	v.SetDefault("import.dubious_threshold", imp.DubiousThreshold)
	v.SetDefault("import.confidence_ceiling", imp.ConfidenceCeiling)
	v.SetDefault("import.skip_threshold", policy.SkipThreshold)
	v.SetDefault("import.warn_threshold", policy.WarnThreshold)

	v.SetDefault("engine.workers", 0)
}

// Load reads the configuration from v, applying defaults for unset keys.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Dedup: DedupConfig{
			DateToleranceDays: v.GetInt("dedup.date_tolerance_days"),
			AmountEpsilon:     v.GetFloat64("dedup.amount_epsilon"),
			MinPrefixLength:   v.GetInt("dedup.min_prefix_length"),
			SimilarityRatio:   v.GetFloat64("dedup.similarity_ratio"),
			Threshold:         v.GetInt("dedup.threshold"),
		},
		Import: ImportConfig{
			DubiousThreshold:  v.GetInt("import.dubious_threshold"),
			ConfidenceCeiling: v.GetInt("import.confidence_ceiling"),
			SkipThreshold:     v.GetInt("import.skip_threshold"),
			WarnThreshold:     v.GetInt("import.warn_threshold"),
		},
		Engine: EngineConfig{
			BankMapping: v.GetStringMapString("engine.bank_mapping"),
			Workers:     v.GetInt("engine.workers"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("%w: database.path is required", common.ErrInvalidConfig)
	}
	if _, err := common.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := common.NewHandler(os.Stderr, 0, c.Logging.Format); err != nil {
		return err
	}
	if err := c.ImporterConfig().Validate(); err != nil {
		return err
	}
	if err := c.Policy().Validate(); err != nil {
		return err
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("%w: engine.workers must not be negative", common.ErrInvalidConfig)
	}
	for key, target := range c.Engine.BankMapping {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(strings.Split(target, "|")[0]) == "" {
			return fmt.Errorf("%w: bank mapping %q -> %q needs a key and a category", common.ErrInvalidConfig, key, target)
		}
	}
	return nil
}

// DedupConfig converts the dedup section.
func (c *Config) DedupConfig() dedup.Config {
	return dedup.Config{
		DateToleranceDays: c.Dedup.DateToleranceDays,
		AmountEpsilon:     c.Dedup.AmountEpsilon,
		MinPrefixLength:   c.Dedup.MinPrefixLength,
		SimilarityRatio:   c.Dedup.SimilarityRatio,
		Threshold:         c.Dedup.Threshold,
		Workers:           c.Engine.Workers,
	}
}

// ImporterConfig converts the dedup and import sections.
func (c *Config) ImporterConfig() importer.Config {
	return importer.Config{
		Dedup:             c.DedupConfig(),
		DubiousThreshold:  c.Import.DubiousThreshold,
		ConfidenceCeiling: c.Import.ConfidenceCeiling,
	}
}

// Policy converts the persistence thresholds.
func (c *Config) Policy() importer.Policy {
	return importer.Policy{
		SkipThreshold: c.Import.SkipThreshold,
		WarnThreshold: c.Import.WarnThreshold,
	}
}

// CategorizeConfig converts the engine section. Configured bank mappings are
// layered over the default table.
func (c *Config) CategorizeConfig() categorize.Config {
	cfg := categorize.DefaultConfig()
	cfg.Workers = c.Engine.Workers

	if len(c.Engine.BankMapping) > 0 {
		overrides := make(map[string]categorize.Target, len(c.Engine.BankMapping))
		for key, target := range c.Engine.BankMapping {
			category, subcategory, _ := strings.Cut(target, "|")
			overrides[key] = categorize.Target{
				Category:    strings.TrimSpace(category),
				Subcategory: strings.TrimSpace(subcategory),
			}
		}
		cfg.BankMapping = categorize.LayerBankMapping(categorize.DefaultBankMapping, overrides)
	}

	return cfg
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}
