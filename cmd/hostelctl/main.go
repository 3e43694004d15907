// Command hostelctl runs operator tasks against the HostelHub database.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	var dsn string
	rootCmd := &cobra.Command{
		Use:           "hostelctl",
		Short:         "HostelHub operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("HOSTEL_PG_DSN"), "PostgreSQL DSN")

	rootCmd.AddCommand(
		migrateCmd(&dsn),
		tokensCmd(&dsn),
		bootstrapCmd(&dsn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
