// duck-rage registers database credentials in DuckDB from age-encrypted secret stores.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "duck-rage",
	Short: "Register database credentials in DuckDB from age-encrypted secret stores.",
	Long: `duck-rage resolves database credentials from an age-encrypted JSON secret
store and registers them as DuckDB secrets, so attached Postgres and MySQL
databases never need a plaintext password in SQL text or shell history.

Secret stores are flat JSON objects encrypted with age. Decrypted material
lives only in memory for the duration of a resolution and is never written
to disk, logged, or echoed in error messages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(registerCmd, refreshCmd, profilesCmd, initCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
