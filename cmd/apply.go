package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"restruct/internal/applier"
	"restruct/internal/model"
	"restruct/internal/repository"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	applyChangesFile string
	applyBackup      bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <dir>",
	Short: "Apply a change log from a JSON file to a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		data, err := os.ReadFile(applyChangesFile)
		if err != nil {
			return fmt.Errorf("failed to read change log: %w", err)
		}

		var changes []model.ChangeEntry
		if err := json.Unmarshal(data, &changes); err != nil {
			return fmt.Errorf("failed to parse change log: %w", err)
		}

		ap := applier.New(afero.NewOsFs(), applier.NewBackupRegistry(), cfg.BackupPrefix)
		repo := repository.NewHistoryRepository()

		result, err := ap.Apply(root, changes, applyBackup)
		if err != nil {
			_ = repo.Record(root, len(changes), model.OutcomeFor(err, applyBackup), "", err.Error())
			return err
		}

		if err := repo.Record(root, len(changes), model.OutcomeSuccess, result.BackupPath, ""); err != nil {
			return err
		}

		fmt.Printf("applied %d changes to %s\n", result.Applied, root)
		if result.BackupPath != "" {
			fmt.Printf("backup kept at %s\n", result.BackupPath)
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyChangesFile, "changes", "", "path to a JSON change log file")
	applyCmd.Flags().BoolVar(&applyBackup, "backup", true, "back up the directory before applying")
	_ = applyCmd.MarkFlagRequired("changes")
	rootCmd.AddCommand(applyCmd)
}
