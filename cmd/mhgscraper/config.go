package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mhgscraper/pkg/config"
	"mhgscraper/pkg/ui"
)

var forceInit bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage mhgscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (MHG_*, .env files included)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is created as '.mhgscraper.yaml' in the current directory unless a
different path is given with --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source.

The cookie is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration from every source and check its values.

Also checks that the output root and the log file directory can be created.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing file")
}

const configHeader = `# mhgscraper configuration
#
# Every option can also be set with an MHG_ environment variable, for
# example MHG_CONCURRENCY, MHG_OUTPUT_DIR or MHG_COOKIE.
# Durations use Go syntax: 30s, 1m, 1h.

`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = ".mhgscraper.yaml"
	}

	if _, err := os.Stat(configPath); err == nil && !forceInit {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite it, run:")
		fmt.Printf("  mhgscraper config init --force --config %s\n", configPath)
		return &exitError{err: fmt.Errorf("%s exists", configPath)}
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}

	// Save writes bare YAML; prepend the usage header
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read back config file: %w", err)
	}
	if err := os.WriteFile(configPath, append([]byte(configHeader), data...), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file, or store a cookie with 'mhgscraper auth login'")
	fmt.Println("2. Run 'mhgscraper config validate' to check it")
	fmt.Println("3. Start downloading with 'mhgscraper download <series-url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	display := *cfg
	display.Site.Cookie = maskCookie(display.Site.Cookie)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (MHG_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return &exitError{err: err}
	}

	var problems []string
	if err := os.MkdirAll(cfg.Output.Root, 0755); err != nil {
		problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}
	if dir := filepath.Dir(cfg.Ledger.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create ledger directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return &exitError{err: fmt.Errorf("%d configuration errors", len(problems))}
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output root: %s\n", cfg.Output.Root)
	fmt.Printf("  Concurrency: %d (%s)\n", cfg.Download.Concurrency, cfg.Download.Mode)
	fmt.Printf("  Extractor: %s\n", cfg.Extractor.Mode)
	fmt.Printf("  Ledger: %s (%s)\n", cfg.Ledger.Path, cfg.Ledger.Backend)
	if cfg.RateLimit.Requests > 0 {
		fmt.Printf("  Rate limit: %d requests per %s\n", cfg.RateLimit.Requests, cfg.RateLimit.Period)
	} else {
		fmt.Println("  Rate limit: off")
	}
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}

func maskCookie(cookie string) string {
	if cookie == "" {
		return ""
	}
	if len(cookie) > 12 {
		return cookie[:6] + "..." + cookie[len(cookie)-4:]
	}
	return "***"
}
