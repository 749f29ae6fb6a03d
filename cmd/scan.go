package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"restruct/internal/scanner"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Print a directory's tree snapshot as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		sc := scanner.New(afero.NewOsFs(), cfg.IgnoreList, cfg.ScanWorkers)
		tree, err := sc.Scan(cmd.Context(), root)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(tree, "", "  ")
		if err != nil {
			return err
		}

		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
