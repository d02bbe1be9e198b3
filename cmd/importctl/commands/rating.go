package commands

import (
	"fmt"
	"strconv"

	"GomafiaSync/internal/repository"
	"GomafiaSync/internal/service"

	"github.com/spf13/cobra"
)

var rebuild *bool

func init() {
	rebuild = ratingCmd.Flags().Bool("rebuild", false, "Recompute and overwrite the cached elo_history rows.")
	rootCmd.AddCommand(ratingCmd)
}

var ratingCmd = &cobra.Command{
	Use:   "rating <player-id> [--rebuild]",
	Short: "Prints the cumulative rating series of a stored player.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid player id %q", args[0])
		}
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}

		subjects := repository.NewSubjectRepository(e.db)
		timeline := service.NewTimelineService(subjects, repository.NewRatingRepository(e.db), e.logger)
		if *rebuild {
			if _, err := timeline.Rebuild(cmd.Context(), id); err != nil {
				return err
			}
		}
		chart, err := service.NewQueryService(subjects, timeline, e.logger).GetRatingChart(cmd.Context(), id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "baseline\t%.0f\n", chart.Baseline)
		for _, p := range chart.Points {
			fmt.Fprintf(out, "%s\t%+g\t%g\n", p.Date, p.Delta, p.Elo)
		}
		return nil
	},
}
