package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/haruspex-cli/internal/engine"
	"github.com/KaramelBytes/haruspex-cli/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	OutputModelPrefix string `mapstructure:"output_model_prefix" yaml:"output_model_prefix"`
	OutputData        string `mapstructure:"output_data" yaml:"output_data"`
	// XLSXSheet selects the worksheet of .xlsx inputs; empty is the first sheet.
	XLSXSheet string `mapstructure:"xlsx_sheet" yaml:"xlsx_sheet"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	KMeans KMeans `mapstructure:"kmeans" yaml:"kmeans"`
	PCA    PCA    `mapstructure:"pca" yaml:"pca"`
}

// KMeans holds the kmeans engine parameters.
type KMeans struct {
	DefaultClusters int     `mapstructure:"default_clusters" yaml:"default_clusters"`
	MaxIterations   int     `mapstructure:"max_iterations" yaml:"max_iterations"`
	Tolerance       float64 `mapstructure:"tolerance" yaml:"tolerance"`
	ParametersFile  string  `mapstructure:"parameters_file" yaml:"parameters_file"`
}

// PCA holds the pca engine parameters.
type PCA struct {
	Normalization string  `mapstructure:"normalization" yaml:"normalization"`
	Basis         string  `mapstructure:"basis" yaml:"basis"`
	BasisSize     int     `mapstructure:"basis_size" yaml:"basis_size"`
	BasisEnergy   float64 `mapstructure:"basis_energy" yaml:"basis_energy"`
}

var defaults = map[string]any{
	"output_model_prefix":     "outputModel",
	"output_data":             "outputData.csv",
	"xlsx_sheet":              "",
	"log_format":              "text",
	"kmeans.default_clusters": 3,
	"kmeans.max_iterations":   50,
	"kmeans.tolerance":        0.01,
	"kmeans.parameters_file":  "",
	"pca.normalization":       string(engine.NormalizeNone),
	"pca.basis":               string(engine.BasisFull),
	"pca.basis_size":          0,
	"pca.basis_energy":        0.9,
}

// Defaults returns the built-in configuration, ignoring files and environment.
func Defaults() *Global {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var c Global
	// defaults always decode
	_ = v.Unmarshal(&c)
	return &c
}

// DefaultPath returns ~/.haruspex/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".haruspex", "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.haruspex/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := utils.EnsureParentDir(path); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
// A .env file in the working directory is loaded into the environment first;
// variables already set win over it.
func Load(cfgFile string) (*Global, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("HARUSPEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// the file is optional, a broken one is not
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// EngineSettings converts the engine sections into engine.Settings,
// rejecting values the engines cannot use.
func (c *Global) EngineSettings() (engine.Settings, error) {
	s := engine.Settings{
		KMeans: engine.KMeansSettings{
			DefaultClusters: c.KMeans.DefaultClusters,
			MaxIterations:   c.KMeans.MaxIterations,
			Tolerance:       c.KMeans.Tolerance,
		},
		PCA: engine.PCASettings{
			Normalization: engine.Normalization(c.PCA.Normalization),
			Basis:         engine.Basis(c.PCA.Basis),
			BasisSize:     c.PCA.BasisSize,
			BasisEnergy:   c.PCA.BasisEnergy,
		},
	}
	if s.KMeans.DefaultClusters < 1 {
		return s, fmt.Errorf("invalid kmeans.default_clusters: %d (must be at least 1)", s.KMeans.DefaultClusters)
	}
	if s.KMeans.MaxIterations < 1 {
		return s, fmt.Errorf("invalid kmeans.max_iterations: %d (must be at least 1)", s.KMeans.MaxIterations)
	}
	if s.KMeans.Tolerance < 0 || s.KMeans.Tolerance > 1 {
		return s, fmt.Errorf("invalid kmeans.tolerance: %g (must be in [0,1])", s.KMeans.Tolerance)
	}
	if err := s.PCA.Validate(); err != nil {
		return s, err
	}
	return s, nil
}
