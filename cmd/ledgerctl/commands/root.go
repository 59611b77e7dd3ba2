package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"approval-ledger/internal/config"
	"approval-ledger/internal/database"
	"approval-ledger/internal/ledger"
	"approval-ledger/internal/repository"
	"approval-ledger/internal/service"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app carries what the root command resolved for its subcommands.
type app struct {
	configDir        string
	logLevelOverride string
	noAudit          bool
	cfg              *config.Config
	// audit overrides the postgres audit log, when set.
	audit repository.AuditRepository
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the approval ledger from the shell",
		Long: `ledgerctl reads and changes the configured document store directly:
list dashboards, move documents between statuses, delete and export them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configDir)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return configureLogger(cfg.Log.Level, a.logLevelOverride)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir", "configs", "Directory holding .env and config.yaml")
	cmd.PersistentFlags().StringVar(&a.logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&a.noAudit, "no-audit", false, "Change documents without writing audit log rows")

	cmd.AddCommand(
		newListCmd(a),
		newCountersCmd(a),
		newTransitionCmd(a),
		newDeleteCmd(a),
		newExportCmd(a),
	)

	return cmd
}

// Logs go to stderr so command output stays pipeable.
func configureLogger(configLevel, override string) error {
	raw := configLevel
	if strings.TrimSpace(override) != "" {
		raw = override
	}
	level, err := config.ParseLogLevel(raw)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// openLedger opens the configured store. With audited set, every change is
// also written to the audit log, which lives in postgres whatever the store
// driver. The caller must run the returned close func.
func (a *app) openLedger(ctx context.Context, audited bool) (*ledger.Ledger, func(), error) {
	if a.cfg == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}
	rules, err := ledger.ParseTransitions(a.cfg.Ledger.Transitions)
	if err != nil {
		return nil, nil, err
	}
	opts := []ledger.Option{ledger.WithTransitions(rules)}

	var (
		db      *gorm.DB
		closers []func(context.Context) error
	)
	closeFn := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](context.Background()); err != nil {
				slog.Warn("failed to close connection", "error", err)
			}
		}
	}

	if audited && !a.noAudit {
		audit := a.audit
		if audit == nil {
			db, err = database.NewConnection(a.cfg.Database.DSN())
			if err != nil {
				return nil, nil, fmt.Errorf("connect audit database (pass --no-audit to skip): %w", err)
			}
			closers = append(closers, closeGorm(db))
			audit = repository.NewAuditRepository(db)
		}
		opts = append(opts, ledger.WithListener(service.NewAuditRecorder(audit)))
	}

	store, closeStore, err := database.OpenStore(ctx, a.cfg, db)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	closers = append(closers, closeStore)
	return ledger.New(store, opts...), closeFn, nil
}

func closeGorm(db *gorm.DB) func(context.Context) error {
	return func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
