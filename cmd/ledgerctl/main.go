// Command ledgerctl is a thin inspection tool over a ledgerstate-backed
// sqlite file: rebuild a space's projection from its event log, catch it
// up from the last checkpoint, or dump the materialized entities. It is a
// demonstration harness, not a product CLI — see internal/exampleapp for
// the domain it operates on.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dbPath     string
	spaceName  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Inspect and repair ledgerstate projections",
	Long: `ledgerctl opens a ledgerstate sqlite file and operates on one space's
flashcards-domain projection (internal/exampleapp): rebuild it from
scratch, catch it up incrementally, or dump its current contents.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func loadConfig() error {
	viper.SetEnvPrefix("LEDGERCTL")
	viper.AutomaticEnv()
	viper.SetConfigName("ledgerctl")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetDefault("db", "ledgerstate.db")
	viper.SetDefault("space", "default")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("ledgerctl: reading config: %w", err)
		}
	}

	if dbPath == "" {
		dbPath = viper.GetString("db")
	}
	if spaceName == "" {
		spaceName = viper.GetString("space")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the sqlite database (default: $LEDGERCTL_DB or ./ledgerctl.yaml's db)")
	rootCmd.PersistentFlags().StringVar(&spaceName, "space", "", "space name to operate on (default: $LEDGERCTL_SPACE or ./ledgerctl.yaml's space)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output machine-readable JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
