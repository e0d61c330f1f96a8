package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"recall/claims/internal/db"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create an empty claims database",
	Long: `Create an empty database with the built-in verbs.

The path is taken from the argument, then --db, then db_path from the
config, then ` + dbFileName + ` in the current directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbFileName
		switch {
		case len(args) == 1:
			path = args[0]
		case dbPath != "":
			path = dbPath
		case cfg != nil && cfg.DBPath != "":
			path = cfg.DBPath
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("database already exists at %s", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}

		d, err := db.OpenDB(path, storeOptions())
		if err != nil {
			return err
		}
		defer d.Close()

		fmt.Printf("Initialized claims database at %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
