package cli

import (
	"github.com/spf13/cobra"

	"github.com/jdziat/redis-scheduler/pkg/scheduler"
)

var unscheduleCmd = &cobra.Command{
	Use:   "unschedule <task-id>...",
	Short: "Remove scheduled tasks",
	Long:  `Removes the given tasks. Unknown task ids are ignored.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnschedule,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every task of the scheduler",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().Bool("yes", false, "confirm removal of every scheduled task")
	rootCmd.AddCommand(unscheduleCmd)
	rootCmd.AddCommand(clearCmd)
}

func runUnschedule(cmd *cobra.Command, args []string) error {
	return withScheduler(cmd.Context(), cmd.ErrOrStderr(), func(s *scheduler.Scheduler) error {
		for _, taskID := range args {
			if err := s.Unschedule(cmd.Context(), taskID); err != nil {
				return err
			}
			cmd.Printf("unscheduled %s\n", taskID)
		}
		return nil
	})
}

func runClear(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		cmd.Printf("refusing to clear %q without --yes\n", cfg.Scheduler.Name)
		return nil
	}
	return withScheduler(cmd.Context(), cmd.ErrOrStderr(), func(s *scheduler.Scheduler) error {
		if err := s.UnscheduleAll(cmd.Context()); err != nil {
			return err
		}
		cmd.Printf("cleared %s\n", s.Key())
		return nil
	})
}
