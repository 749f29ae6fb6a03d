package cmd

import (
	"fmt"

	"restruct/internal/repository"

	"github.com/spf13/cobra"
)

var historyN int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent apply history",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := repository.NewHistoryRepository()

		records, err := repo.GetRecent(historyN)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, r := range records {
			status := "✓"
			if r.Outcome != "SUCCESS" {
				status = "✗"
			}

			fmt.Printf("%s [%s] %-11s %3d changes  %s\n",
				status,
				r.AppliedAt.Format("2006-01-02 15:04:05"),
				r.Outcome,
				r.Changes,
				r.RootPath,
			)
			if r.ErrMsg != "" {
				fmt.Printf("       error: %s\n", r.ErrMsg)
			}
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	rootCmd.AddCommand(historyCmd)
}
