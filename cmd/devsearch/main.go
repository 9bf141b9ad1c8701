// Package main is the devsearch entry point: an HTTP service that stores
// devices in a relational database and mirrors them into a RediSearch index.
package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var (
	envFlag    string
	configFlag string
)

var rootCmd = &cobra.Command{
	Use:   "devsearch",
	Short: "Device records with full-text keyword search",
	Long: `devsearch stores devices in a relational database (postgres or sqlite3)
and mirrors every write into a RediSearch index for fuzzy keyword search.

"serve" runs the HTTP API and the index outbox worker; "reindex" rebuilds
the search index from the record store.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "", "environment name, selects config/<env>.yaml (default: $ENV or local)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "explicit config file path (overrides --env lookup)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
