package commands

import (
	"fmt"
	"strconv"

	"GomafiaSync/internal/config"
	"GomafiaSync/internal/service"
	"GomafiaSync/internal/syncerr"

	"github.com/spf13/cobra"
)

var onConflict *string

func init() {
	onConflict = importCmd.Flags().String("on-conflict", "", "Override sync.on_conflict (skip | merge_events).")
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <player-id>...",
	Short: "Fetches every history page of the given players and stores them.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]int64, 0, len(args))
		for _, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid player id %q", a)
			}
			ids = append(ids, id)
		}

		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		if *onConflict != "" {
			e.cfg.Sync.OnConflict = config.OnConflict(*onConflict)
			if err := e.cfg.Validate(); err != nil {
				return err
			}
		}

		svc := service.NewSyncService(e.db, e.logger, e.cfg, nil)
		results, errs := svc.ImportMany(cmd.Context(), ids)

		failed := 0
		out := cmd.OutOrStdout()
		for i, id := range ids {
			if errs[i] != nil {
				failed++
				outcome := syncerr.Classify(errs[i])
				hint := "do not retry"
				if outcome.Retryable() {
					hint = "retry later"
				}
				fmt.Fprintf(out, "%d\t%s\t%s\t%v\n", id, outcome, hint, errs[i])
				continue
			}
			r := results[i]
			status := "imported"
			if r.Skipped {
				status = "skipped (already stored)"
			}
			fmt.Fprintf(out, "%d\t%s\tpages=%d events=%d/%d games=%d\n",
				id, status, r.PageCount, r.EventsInserted, r.EventsSeen, r.GamesInserted)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d imports failed", failed, len(ids))
		}
		return nil
	},
}
