package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	flagDryRun      bool
	flagAutoConfirm bool
	flagSchemaFile  string
	flagVersion     string
	flagWorkload    string
	flagAllDialects bool
)

var rootCmd = &cobra.Command{
	Use:   "schemaforge",
	Short: "Automatic schema migration and index recommendation tool",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <config.toml>",
	Short: "Diff the live schema against the target and apply the migration",
	Args:  cobra.ExactArgs(1),
	RunE:  runMigrate,
}

var statusCmd = &cobra.Command{
	Use:   "status <config.toml>",
	Short: "Show applied/failed/pending migration counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <config.toml>",
	Short: "Roll back an applied migration",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <config.toml>",
	Short: "Analyze a workload file into prioritized index recommendations",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecommend,
}

func init() {
	migrateCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "generate and preview the migration without applying it")
	migrateCmd.Flags().BoolVar(&flagAutoConfirm, "auto-confirm", false, "apply without prompting")
	migrateCmd.Flags().StringVar(&flagSchemaFile, "schema-file", "", "target schema file (overrides config)")
	rollbackCmd.Flags().StringVar(&flagVersion, "version", "", "migration version to roll back (default: latest applied)")
	recommendCmd.Flags().StringVar(&flagWorkload, "workload", "", "workload file (overrides config)")
	recommendCmd.Flags().BoolVar(&flagAllDialects, "all-dialects", false, "analyze for all three dialects in parallel")
	rootCmd.AddCommand(migrateCmd, statusCmd, rollbackCmd, recommendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	schemaPath := cfg.SchemaFile
	if flagSchemaFile != "" {
		schemaPath = flagSchemaFile
	}
	if schemaPath == "" {
		return fmt.Errorf("schema_file is required (config key or --schema-file)")
	}

	target, err := loadTargetSchema(cfg.resolvePath(schemaPath))
	if err != nil {
		return err
	}

	d, err := newDialect(cfg.Target.Dialect)
	if err != nil {
		return err
	}

	ctx := context.Background()
	start := time.Now()
	log.Printf("schemaforge: %s migration", d.Name())

	conn, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	m := newMigrator(conn, d, cfg)
	_, err = m.autoMigrate(ctx, target, autoMigrateOptions{
		DryRun:      flagDryRun,
		AutoConfirm: flagAutoConfirm,
		Confirm:     promptConfirm,
	})
	if err != nil {
		return err
	}

	log.Printf("done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	d, err := newDialect(cfg.Target.Dialect)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	summary, err := newMigrator(conn, d, cfg).status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total:       %d\n", summary.Total)
	fmt.Printf("applied:     %d\n", summary.Applied)
	fmt.Printf("failed:      %d\n", summary.Failed)
	fmt.Printf("pending:     %d\n", summary.Pending)
	fmt.Printf("rolled back: %d\n", summary.RolledBack)
	return nil
}

func runRollback(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}
	d, err := newDialect(cfg.Target.Dialect)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := openTarget(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	return newMigrator(conn, d, cfg).rollback(ctx, flagVersion)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	workloadPath := cfg.Index.DefaultWorkload
	if flagWorkload != "" {
		workloadPath = flagWorkload
	}
	if workloadPath == "" {
		return fmt.Errorf("workload file is required (index.default_workload or --workload)")
	}

	wl, err := loadWorkload(cfg.resolvePath(workloadPath))
	if err != nil {
		return err
	}

	existing := wl.ExistingIndexes
	if len(existing) == 0 {
		// Fall back to the live database when the workload file does not
		// name the existing indexes.
		d, err := newDialect(cfg.Target.Dialect)
		if err != nil {
			return err
		}
		ctx := context.Background()
		conn, err := openTarget(ctx, cfg)
		if err != nil {
			return err
		}
		existing, err = listExistingIndexes(ctx, conn, d, cfg.Target.Schema)
		conn.Close()
		if err != nil {
			return err
		}
	}

	dialects := []string{cfg.Target.Dialect}
	if flagAllDialects {
		dialects = []string{"postgresql", "mysql", "sqlite"}
	}

	// Index analysis is pure computation over independent snapshots, so the
	// dialects run in parallel with no shared mutable state.
	results := make([]*AnalysisResult, len(dialects))
	var g errgroup.Group
	for i, name := range dialects {
		i, name := i, name
		g.Go(func() error {
			d, err := newDialect(name)
			if err != nil {
				return err
			}
			results[i] = analyzeAndRecommend(wl.Opportunities, wl.Queries, existing, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, res := range results {
		fmt.Println(renderImplementationPlan(res))
	}
	return nil
}

// promptConfirm is the interactive confirmation callback. It blocks until
// the operator answers; the preview has already been printed.
func promptConfirm(string) bool {
	fmt.Print("Apply this migration? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
