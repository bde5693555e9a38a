package cli

import (
	"context"
	"log/slog"
	"os"

	"hearth/internal/config"
	"hearth/internal/db"
	"hearth/internal/logging"
	"hearth/internal/realtime"
	"hearth/internal/services"
	"hearth/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Global flags
	dbURL   string
	envFile string
	verbose bool
)

// app 命令运行时依赖，PersistentPreRunE 里按需建立
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	conn   *gorm.DB
	svc    *services.Services
	out    printer
}

// NewRootCmd hearthctl 根命令
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hearthctl",
		Short: "Hearth administration tool",
		Long: `hearthctl manages a hearth deployment using the same environment as the server.

Commands:
  migrate        - Create or update database tables
  seed           - Insert default categories and badges
  news           - Manage news sources and run the fetcher once
  rescore        - Recompute hot scores
  badge grant    - Grant a badge to a user without charging points
  user role      - Change a user's role`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL)")
	root.PersistentFlags().StringVar(&envFile, "env", ".env", "Environment file to load")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		newMigrateCmd(a),
		newSeedCmd(a),
		newNewsCmd(a),
		newRescoreCmd(a),
		newBadgeCmd(a),
		newUserCmd(a),
	)
	return root
}

func (a *app) init() error {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	a.cfg = config.Load()
	if dbURL != "" {
		a.cfg.DatabaseURL = dbURL
	}

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.Init(level)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// connect 打开数据库，migrate 之外的命令都需要完整的服务
func (a *app) connect() error {
	conn, err := db.Open(a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.conn = conn

	bucket, err := storage.NewFileBucket(a.cfg.StorageDir, a.cfg.StoragePublicURL)
	if err != nil {
		return err
	}
	a.svc = services.New(conn, a.cfg, realtime.NewMemoryBroker(a.logger), bucket, a.logger)
	return nil
}

func (a *app) close() {
	if a.svc != nil {
		_ = a.svc.Close()
	}
}

// Execute runs the root command
func Execute(ctx context.Context) int {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}.error("%v", err)
		return 1
	}
	return 0
}
