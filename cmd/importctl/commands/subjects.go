package commands

import (
	"fmt"

	"GomafiaSync/internal/repository"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(subjectsCmd)
}

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Lists stored players ordered by login.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		list, err := repository.NewSubjectRepository(e.db).ListSubjects(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", s.ID, s.Login)
		}
		return nil
	},
}
