package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/KaramelBytes/haruspex-cli/internal/config"
	"github.com/KaramelBytes/haruspex-cli/internal/utils"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set Haruspex configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		b, err := utils.PrettyYAML(c)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		c, err := loadConfig()
		if err != nil {
			return err
		}
		if err := setKey(c, key, val); err != nil {
			return err
		}
		if _, err := c.EngineSettings(); err != nil {
			return err
		}
		if err := cfgpkg.Save(c, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func setKey(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "output_model_prefix":
		if val == "" {
			return fmt.Errorf("output_model_prefix cannot be empty")
		}
		c.OutputModelPrefix = val
	case "output_data":
		if val == "" {
			return fmt.Errorf("output_data cannot be empty")
		}
		c.OutputData = val
	case "xlsx_sheet":
		c.XLSXSheet = val
	case "log_format":
		switch strings.ToLower(val) {
		case "text", "json":
			c.LogFormat = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_format: %s (use text or json)", val)
		}
	case "kmeans.default_clusters":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for kmeans.default_clusters: %w", err)
		}
		c.KMeans.DefaultClusters = i
	case "kmeans.max_iterations":
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid int for kmeans.max_iterations: %w", err)
		}
		c.KMeans.MaxIterations = i
	case "kmeans.tolerance":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for kmeans.tolerance: %w", err)
		}
		c.KMeans.Tolerance = f
	case "kmeans.parameters_file":
		c.KMeans.ParametersFile = val
	case "pca.normalization":
		c.PCA.Normalization = strings.ToLower(val)
	case "pca.basis":
		c.PCA.Basis = strings.ToLower(val)
	case "pca.basis_size":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid int for pca.basis_size: %v", val)
		}
		c.PCA.BasisSize = i
	case "pca.basis_energy":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid float for pca.basis_energy: %w", err)
		}
		c.PCA.BasisEnergy = f
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}
