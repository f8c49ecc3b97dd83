// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the reference-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/reference-engine/internal/secrets"
	"github.com/pdiddy/reference-engine/internal/store"
	"github.com/pdiddy/reference-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the reference-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "reference-engine",
	Short: "Versioned store of legal and regulatory references",
	Long: `reference-engine maintains a temporal knowledge base of legal and
regulatory documents: acts, regulations, guidance, and case decisions.

Each pipeline stage is a subcommand: acquire downloads sources through a
strategy fallback chain, clean normalizes and chunks them, and ingest
classifies and commits them as versioned references. Query the store with
search and reference, or serve it to research agents with serve.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./reference-engine.yaml or ~/.config/reference-engine/config.yaml)")
	rootCmd.PersistentFlags().String("store-dir", "", "directory holding the reference store (default: store)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("reference-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "reference-engine"))
		}
	}

	viper.SetEnvPrefix("REFERENCE_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// flagOrConfig resolves a string setting: an explicitly set flag wins, then
// the config file, then the built-in default.
func flagOrConfig(cmd *cobra.Command, flag, key, def string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	if v := viper.GetString(key); v != "" {
		return v
	}
	return def
}

// storeConfig resolves the store configuration for cmd.
func storeConfig(cmd *cobra.Command) types.StoreConfig {
	dir, _ := cmd.Root().PersistentFlags().GetString("store-dir")
	if dir == "" {
		dir = viper.GetString("store.store_dir")
	}
	if dir == "" {
		dir = "store"
	}
	return types.StoreConfig{StoreDir: dir}
}

// openStore opens the reference store for cmd. Callers must Close it.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	return store.Open(storeConfig(cmd))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
