package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"asset-sync/core/config"
	"asset-sync/core/database"
	"asset-sync/core/logger"
	"asset-sync/core/reconcile"
	"asset-sync/core/storage"
	"asset-sync/feature/assetstore"
	"asset-sync/feature/sourcetree"
	syncfeature "asset-sync/feature/sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Flags for the sync command
	syncSource  string
	syncDryRun  bool
	syncYes     bool
	syncJSON    bool
	syncArchive bool
)

// syncCmd synchronizes one project from a YAML snapshot of the project tree.
var syncCmd = &cobra.Command{
	Use:   "sync <project>",
	Short: "Synchronize a project tree with the asset database",
	Long: `Synchronize a project tree with the asset database.

The project tree is read from a YAML snapshot. The command always computes a
plan first and prints the hierarchy diff. Writes need a confirmation unless
--yes is given. Writes to the tree are saved back to the snapshot file.

Examples:
  # Show the plan only
  sync Film --source film.yaml --dry-run

  # Apply with interactive confirmation
  sync Film --source film.yaml

  # Apply non-interactively and archive the report
  sync Film --source film.yaml --yes --archive`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSource, "source", "", "YAML snapshot of the project tree (defaults to SYNC_SOURCE_PATH)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Compute the plan without writing")
	syncCmd.Flags().BoolVar(&syncYes, "yes", false, "Auto-confirm writes (non-interactive)")
	syncCmd.Flags().BoolVar(&syncJSON, "json", false, "Print the final report as JSON")
	syncCmd.Flags().BoolVar(&syncArchive, "archive", false, "Archive the report in object storage")

	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	project := args[0]

	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	source := syncSource
	if source == "" {
		source = cfg.Sync.SourcePath
	}
	if source == "" {
		return errors.New("no source snapshot: use --source or SYNC_SOURCE_PATH")
	}
	tree, err := sourcetree.Open(source, l)
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	store := assetstore.NewStore(db, l)
	missing, err := store.CheckSchema()
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if len(missing) > 0 {
		return fmt.Errorf("database schema incomplete, run 'check --fix': missing %s", strings.Join(missing, ", "))
	}

	opts, err := cfg.Sync.Options()
	if err != nil {
		return fmt.Errorf("invalid sync configuration: %w", err)
	}
	engine, err := reconcile.NewEngine(tree, store, l, opts)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	var client storage.Client
	if syncArchive {
		if client, err = storage.NewClient(cfg.Storage); err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
	}
	svc := syncfeature.NewService(engine, store, client, syncfeature.Options{
		Bucket:    cfg.Storage.Bucket,
		Prefix:    cfg.Sync.ReportPrefix,
		Retention: cfg.Sync.ReportRetention,
	}, l)

	// Step 1: Plan (always runs, never writes)
	l.Info("Planning synchronization...", zap.String("project", project), zap.String("source", source))
	plan, report := engine.SynchronizeWithPlan(ctx, project, true)
	if report.Message == reconcile.MsgProjectIgnored {
		l.Info("Project is excluded from synchronization", zap.String("project", project))
		return nil
	}
	if !report.Success {
		return errors.New(report.Message)
	}
	if err := printPlan(os.Stdout, plan); err != nil {
		return err
	}

	// Step 2: Apply (if requested and confirmed)
	if syncDryRun || cfg.Sync.DryRun {
		l.Info("Dry-run mode: No changes were made.", report.Fields()...)
		return nil
	}
	if plan.Empty() && len(plan.SourceWrites) == 0 {
		l.Info("Nothing to synchronize", zap.String("project", project))
		return nil
	}
	if !confirmAction(os.Stdin, os.Stdout, syncYes) {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}

	l.Info("Applying synchronization...")
	_, report = svc.Run(ctx, project, false)

	if tree.Dirty() {
		l.Info("Source snapshot updated", zap.String("file", source))
	}

	if syncJSON {
		if err := writeReportJSON(os.Stdout, report); err != nil {
			return err
		}
	} else {
		printReport(l, report)
	}
	if !report.Success {
		return errors.New(report.Message)
	}
	return nil
}

// printPlan writes the hierarchy diff and the planned operations.
func printPlan(w io.Writer, plan *reconcile.Plan) error {
	diff, err := reconcile.HierarchyDiff(plan)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Fprintln(w, "Hierarchy unchanged.")
	} else {
		fmt.Fprint(w, diff)
	}

	ops := plan.Describe()
	fmt.Fprintf(w, "\n=== Planned operations (%d) ===\n", len(ops))
	for _, op := range ops {
		fmt.Fprintln(w, op)
	}
	if n := len(plan.SourceWrites); n > 0 {
		fmt.Fprintf(w, "Source writes: %d\n", n)
	}
	return nil
}

// printReport logs the report summary and every entry.
func printReport(l *zap.Logger, report *reconcile.Report) {
	l.Info("Synchronization report", report.Fields()...)
	for _, e := range report.Entries {
		fields := []zap.Field{zap.String("severity", string(e.Severity)), zap.Strings("paths", e.Paths)}
		if e.Subject != "" {
			fields = append(fields, zap.String("subject", e.Subject))
		}
		switch e.Severity {
		case reconcile.SeverityError:
			l.Error(e.Message, fields...)
		case reconcile.SeverityWarning:
			l.Warn(e.Message, fields...)
		default:
			l.Info(e.Message, fields...)
		}
	}
}

func writeReportJSON(w io.Writer, report *reconcile.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// confirmAction prompts for confirmation unless yes is set.
func confirmAction(in io.Reader, out io.Writer, yes bool) bool {
	if yes {
		fmt.Fprintln(out, "\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprint(out, "\n⚠️  Type 'yes' to apply the synchronization: ")
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
