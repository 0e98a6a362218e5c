package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/redis-scheduler/internal/config"
	"github.com/jdziat/redis-scheduler/pkg/core"
	"github.com/jdziat/redis-scheduler/pkg/stats"
	"github.com/jdziat/redis-scheduler/pkg/taskctx"
)

var runCmd = &cobra.Command{
	Use:   "run [-- command [args...]]",
	Short: "Run the polling loop and trigger due tasks",
	Long: `Polls the store and triggers due tasks until interrupted.
Each triggered task id is printed on standard output. When a command is
given, it is also run once per task with SCHEDULER_TASK_ID,
SCHEDULER_NAME and SCHEDULER_INSTANCE_ID set in its environment.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("polling-delay", 0, "delay between two polls that found nothing (overrides scheduler.polling_delay)")
	runCmd.Flags().Int("max-retries", 0, "consecutive connection failures tolerated (overrides scheduler.max_retries)")
	runCmd.Flags().Int("exec-rate", 0, "maximum commands started per second, 0 for no limit (overrides scheduler.exec_rate)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("polling-delay") {
		d, _ := cmd.Flags().GetDuration("polling-delay")
		cfg.Scheduler.PollingDelay = d.String()
	}
	if cmd.Flags().Changed("max-retries") {
		n, _ := cmd.Flags().GetInt("max-retries")
		cfg.Scheduler.MaxRetries = n
	}
	if cmd.Flags().Changed("exec-rate") {
		n, _ := cmd.Flags().GetInt("exec-rate")
		cfg.Scheduler.ExecRate = n
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg.Log, cmd.ErrOrStderr())

	driver, closer, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	listener := &commandListener{
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		argv:    args,
		name:    cfg.Scheduler.Name,
		limiter: newExecLimiter(cfg.Scheduler.ExecRate),
	}
	sched, err := newScheduler(driver, listener, log)
	if err != nil {
		return err
	}

	var collectorDone <-chan struct{}
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	if cfg.Stats.Enabled {
		collectorDone, err = startStats(statsCtx, cfg.Stats, sched, log)
		if err != nil {
			return err
		}
	}

	sched.Start(ctx)
	<-sched.Done()

	// The loop can end on its own; the collector only stops when told to.
	stopStats()
	if collectorDone != nil {
		<-collectorDone
	}

	switch state := sched.State(); state {
	case core.StateStoppedByRetryExhaustion, core.StateStoppedByError:
		return fmt.Errorf("scheduler stopped: %s", state)
	}
	return nil
}

// startStats runs a stats collector until ctx is done. The returned channel
// is closed once the last counters are written.
func startStats(ctx context.Context, c config.StatsConfig, source stats.EventSource, log *slog.Logger) (<-chan struct{}, error) {
	retention, err := config.ParseDurationField("stats.retention", c.Retention)
	if err != nil {
		return nil, err
	}
	storage, err := openStats(ctx, c.Path)
	if err != nil {
		return nil, err
	}

	collector := stats.NewCollector(source, storage,
		stats.WithRetention(retention),
		stats.WithLogger(log),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		collector.Start(ctx)
	}()
	collector.WaitReady()
	return done, nil
}

func openStats(ctx context.Context, path string) (stats.Storage, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create stats directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	storage := stats.NewGormStorage(db)
	if err := storage.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate stats: %w", err)
	}
	return storage, nil
}

// commandListener prints every triggered task and optionally runs a command.
type commandListener struct {
	out     io.Writer
	errOut  io.Writer
	argv    []string
	name    string
	limiter *rate.Limiter // nil means unlimited
}

func newExecLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

func (l *commandListener) TaskTriggered(ctx context.Context, taskID string) error {
	trigger, ok := taskctx.TriggerFromContext(ctx)
	if !ok {
		trigger = taskctx.Trigger{TaskID: taskID, Scheduler: l.name, TriggeredAt: time.Now()}
	}
	fmt.Fprintf(l.out, "%s\ttriggered\t%s\n", trigger.TriggeredAt.UTC().Format(time.RFC3339), taskID)
	if len(l.argv) == 0 {
		return nil
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for exec slot: %w", err)
		}
	}

	c := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	c.Env = append(os.Environ(),
		"SCHEDULER_TASK_ID="+taskID,
		"SCHEDULER_NAME="+trigger.Scheduler,
		"SCHEDULER_INSTANCE_ID="+trigger.InstanceID,
	)
	c.Stdout = l.out
	c.Stderr = l.errOut
	if err := c.Run(); err != nil {
		return fmt.Errorf("run %s: %w", l.argv[0], err)
	}
	return nil
}
