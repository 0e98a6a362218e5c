// Package cli implements the redis-scheduler command line tool.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jdziat/redis-scheduler/internal/config"
)

var version = "dev"

var (
	configPath string
	cfg        = config.Default()
)

var rootCmd = &cobra.Command{
	Use:   "redis-scheduler",
	Short: "Schedule tasks in a shared store and trigger them when due",
	Long: `redis-scheduler stores task ids with a trigger time in Redis (or a SQL
database) and triggers each of them exactly once across every running
instance sharing the same scheduler name.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	flags.String("name", "", "scheduler name (overrides scheduler.name)")
	flags.String("store", "", "store driver: redis, sqlite, postgres or memory (overrides store.driver)")
	flags.String("redis-addr", "", "Redis address (overrides store.redis.addr)")
	flags.String("sqlite-path", "", "SQLite database file (overrides store.sqlite.path)")
	flags.String("postgres-dsn", "", "PostgreSQL DSN (overrides store.postgres.dsn)")
	flags.String("log-level", "", "log level: debug, info, warn or error (overrides log.level)")
	flags.String("log-format", "", "log format: text or json (overrides log.format)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads the configuration file, applies flag overrides and
// validates the result.
func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded := config.Default()
	if configPath != "" {
		var err error
		if loaded, err = config.Load(configPath); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	overrides := []struct {
		flag   string
		target *string
	}{
		{"name", &loaded.Scheduler.Name},
		{"store", &loaded.Store.Driver},
		{"redis-addr", &loaded.Store.Redis.Addr},
		{"sqlite-path", &loaded.Store.SQLite.Path},
		{"postgres-dsn", &loaded.Store.Postgres.DSN},
		{"log-level", &loaded.Log.Level},
		{"log-format", &loaded.Log.Format},
	}
	for _, o := range overrides {
		if !flags.Changed(o.flag) {
			continue
		}
		v, err := flags.GetString(o.flag)
		if err != nil {
			return err
		}
		*o.target = v
	}

	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	return nil
}
