package cli

import (
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/stockroom/stockroom/jobs"
)

func newJobsCmd(deps Deps, s *Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage background report jobs",
	}
	var archive jobs.ArchivePayload
	trigger := &cobra.Command{
		Use:       "trigger [warmup|archive]",
		Short:     "Enqueue a report job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"warmup", "archive"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.ToLower(args[0])
			if name == "archive" {
				if _, err := archive.Selector(deps.Now()); err != nil {
					return err
				}
			}
			queue, err := deps.Jobs(*s)
			if err != nil {
				return err
			}
			defer func() { _ = queue.Close() }()

			var info *asynq.TaskInfo
			switch name {
			case "warmup":
				info, err = queue.EnqueueWarmup(cmd.Context(), jobs.WarmupPayload{TopN: s.TopN})
			case "archive":
				info, err = queue.EnqueueArchive(cmd.Context(), archive)
			default:
				return fmt.Errorf("unsupported job %s", args[0])
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(deps.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return err
		},
	}
	trigger.Flags().StringVar(&archive.Period, "period", "", "archive period (default previous month)")
	trigger.Flags().IntVar(&archive.Month, "month", 0, "archive month for the monthly period")
	trigger.Flags().IntVar(&archive.Year, "year", 0, "archive year")
	trigger.Flags().StringSliceVar(&archive.Formats, "formats", nil, "snapshot formats: csv, pdf")
	cmd.AddCommand(trigger)
	return cmd
}
