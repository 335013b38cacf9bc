package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sudharshanj25/bugtracker/internal/output"
	"github.com/Sudharshanj25/bugtracker/internal/service"
	"github.com/Sudharshanj25/bugtracker/internal/store"
	"github.com/Sudharshanj25/bugtracker/internal/uploads"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "bugtracker",
	Short: "Track UAT issues with attachments",
	Long: `bugtracker records issues raised during UAT runs.
It serves a JSON API plus a small web page for creating, updating,
and deleting issues with file attachments, and exports the full
issue list to a spreadsheet.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/bugtracker/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "bugtracker")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUGTRACKER")
	viper.AutomaticEnv()
	// Honor a bare PORT as deployment platforms set it.
	_ = viper.BindEnv("port", "BUGTRACKER_PORT", "PORT")

	// Data lives relative to the deployment root by default.
	viper.SetDefault("port", 5000)
	viper.SetDefault("db_path", "issues.db")
	viper.SetDefault("upload_dir", "uploads")
	viper.SetDefault("max_upload_mb", 25)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// The store is opened lazily so config/version commands run
	// without touching the database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getService wires the issue service over the shared store and the
// configured upload directory.
func getService() (*service.Issues, *uploads.Store, error) {
	s, err := getStore()
	if err != nil {
		return nil, nil, err
	}
	files, err := uploads.New(viper.GetString("upload_dir"))
	if err != nil {
		return nil, nil, err
	}
	return service.NewIssues(s, files), files, nil
}
