package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jdziat/redis-scheduler/pkg/schedule"
	"github.com/jdziat/redis-scheduler/pkg/scheduler"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule <task-id>",
	Short: "Schedule a task",
	Long: `Schedules a task for immediate execution, or at the time given by
exactly one of --at, --in or --cron. Scheduling a task again replaces its
trigger time.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().String("at", "", "trigger time, RFC 3339 (e.g. 2030-01-02T15:04:05Z)")
	scheduleCmd.Flags().Duration("in", 0, "trigger after this duration (e.g. 90s, 2h)")
	scheduleCmd.Flags().String("cron", "", "trigger at the next occurrence of a cron expression")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	taskID := args[0]
	flags := cmd.Flags()

	set := 0
	for _, name := range []string{"at", "in", "cron"} {
		if flags.Changed(name) {
			set++
		}
	}
	if set > 1 {
		return errors.New("only one of --at, --in and --cron may be given")
	}

	return withScheduler(cmd.Context(), cmd.ErrOrStderr(), func(s *scheduler.Scheduler) error {
		ctx := cmd.Context()
		var at time.Time

		switch {
		case flags.Changed("at"):
			raw, _ := flags.GetString("at")
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			at = t
			if err := s.ScheduleAt(ctx, taskID, at); err != nil {
				return err
			}
		case flags.Changed("in"):
			d, _ := flags.GetDuration("in")
			at = time.Now().Add(d)
			if err := s.ScheduleAt(ctx, taskID, at); err != nil {
				return err
			}
		case flags.Changed("cron"):
			expr, _ := flags.GetString("cron")
			sched, err := schedule.ParseCron(expr)
			if err != nil {
				return fmt.Errorf("--cron: %w", err)
			}
			if at, err = s.ScheduleNext(ctx, taskID, sched); err != nil {
				return err
			}
		default:
			at = time.Now()
			if err := s.ScheduleAt(ctx, taskID, at); err != nil {
				return err
			}
		}

		cmd.Printf("scheduled %s at %s\n", taskID, at.UTC().Format(time.RFC3339))
		return nil
	})
}
