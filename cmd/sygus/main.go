package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sygus/internal/config"
	"sygus/internal/graph"
	"sygus/internal/logging"
	"sygus/internal/metrics"
	"sygus/internal/pipeline"
	"sygus/internal/search"
	"sygus/internal/storage"
)

var (
	rootCmd = &cobra.Command{
		Use:           "sygus",
		Short:         "Enumerative syntax-guided synthesis against an SMT solver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Storage.Path = dbPath
			}
			logger, err = logging.New(cfg.Logging, verbose)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// errNoSolution makes the process exit non-zero when the search ends
// without a valid program.
var errNoSolution = errors.New("no solution")

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "sygus.db", "Path to the run ledger database (SQLite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	solveCmd.Flags().String("strategy", "", "Search strategy: bfs or priority")
	solveCmd.Flags().String("heuristic", "", "Heuristic: uniform, terminal-first or table")
	solveCmd.Flags().String("table", "", "Weight table for the table heuristic (YAML)")
	solveCmd.Flags().String("mode", "", "Oracle mode: per-constraint or whole-spec")
	solveCmd.Flags().Duration("timeout", 0, "Wall-clock budget for the search")
	solveCmd.Flags().Int("max-iterations", 0, "Maximum frontier pops")
	solveCmd.Flags().Int("max-verifications", 0, "Maximum oracle queries")
	solveCmd.Flags().Int("max-depth", 0, "Drop candidates deeper than this")
	solveCmd.Flags().Int("workers", 0, "Parallel portfolio workers")
	solveCmd.Flags().Bool("cex-cache", false, "Reject candidates on known counterexamples before calling the solver")
	solveCmd.Flags().Bool("record", false, "Record verification feedback and store the tally with the run")
	solveCmd.Flags().String("report", "", "Write a JSON report to this path")
	solveCmd.Flags().Bool("no-store", false, "Do not record the run in the ledger")

	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show")

	rootCmd.AddCommand(solveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
}

// applySolveFlags copies explicitly set flags over the loaded config.
func applySolveFlags(cmd *cobra.Command) error {
	f := cmd.Flags()
	if f.Changed("strategy") {
		cfg.Search.Strategy, _ = f.GetString("strategy")
	}
	if f.Changed("heuristic") {
		cfg.Heuristic.Kind, _ = f.GetString("heuristic")
	}
	if f.Changed("table") {
		cfg.Heuristic.Table, _ = f.GetString("table")
	}
	if f.Changed("mode") {
		cfg.Solver.Mode, _ = f.GetString("mode")
	}
	if f.Changed("timeout") {
		cfg.Search.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("max-iterations") {
		cfg.Search.MaxIterations, _ = f.GetInt("max-iterations")
	}
	if f.Changed("max-verifications") {
		cfg.Search.MaxVerifications, _ = f.GetInt("max-verifications")
	}
	if f.Changed("max-depth") {
		cfg.Search.MaxDepth, _ = f.GetInt("max-depth")
	}
	if f.Changed("workers") {
		cfg.Search.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("cex-cache") {
		cfg.Search.CounterexampleCache, _ = f.GetBool("cex-cache")
	}
	if f.Changed("record") {
		cfg.Heuristic.Record, _ = f.GetBool("record")
	}
	if f.Changed("no-store") {
		noStore, _ := f.GetBool("no-store")
		cfg.Storage.Disabled = noStore
	}
	return cfg.Validate()
}

var solveCmd = &cobra.Command{
	Use:   "solve FILE",
	Short: "Synthesize the function declared in a SyGuS problem file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applySolveFlags(cmd); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session := pipeline.NewSession(cfg, logger)
		session.Out = cmd.ErrOrStderr()
		session.ReportPath, _ = cmd.Flags().GetString("report")

		rec := metrics.NewRecorder()
		session.Recorder = rec
		if cfg.Metrics.Addr != "" {
			go func() {
				if err := rec.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
					logger.Warn("metrics endpoint stopped", zap.Error(err))
				}
			}()
		}

		if !cfg.Storage.Disabled {
			store, err := storage.NewSQLiteStore(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer store.Close()
			session.Store = store
		}

		res, err := session.Run(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Result.Outcome != search.Valid {
			fmt.Fprintf(cmd.ErrOrStderr(), "Search ended: %s after %d iterations, %d verifications (%v)\n",
				res.Result.Outcome, res.Result.Stats.Iterations, res.Result.Stats.Verifications, res.Result.Stats.Elapsed.Round(time.Millisecond))
			return fmt.Errorf("%w: %s", errNoSolution, res.Result.Outcome)
		}
		fmt.Fprintln(out, res.Result.Definition)
		fmt.Fprintf(cmd.ErrOrStderr(), "Solved in %v: %d iterations, %d verifications (run %s)\n",
			res.Result.Stats.Elapsed.Round(time.Millisecond), res.Result.Stats.Iterations, res.Result.Stats.Verifications, res.RunID)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Parse, resolve and analyze a problem file without searching",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := pipeline.NewSession(cfg, logger).Check(args[0])
		if err != nil {
			return err
		}
		p, g := loaded.Problem, loaded.Grammar
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Target:        %s\n", p.Target.Original)
		fmt.Fprintf(out, "Logic:         %s\n", p.Logic)
		fmt.Fprintf(out, "Declared:      %d\n", p.Stats.Declared)
		fmt.Fprintf(out, "Defined:       %d\n", p.Stats.Defined)
		fmt.Fprintf(out, "Constraints:   %d\n", p.Stats.Constraints)
		fmt.Fprintf(out, "Nonterminals:  %d (%d alternatives, %d edges)\n", g.Metrics.Nonterminals, g.Metrics.Alternatives, g.Metrics.Edges)
		fmt.Fprintf(out, "Finite:        %t\n", g.Finite)
		fmt.Fprintf(out, "Unreachable:   %s\n", names(g.Unreachable))
		fmt.Fprintf(out, "Unproductive:  %s\n", names(g.Unproductive))
		fmt.Fprintf(out, "Recursive:     %s\n", names(g.Recursive))
		if !g.StartProductive {
			fmt.Fprintln(out, "Warning: Start derives no concrete term")
		}
		return nil
	},
}

func names(nodes []*graph.Node) string {
	if len(nodes) == 0 {
		return "-"
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Original
	}
	return strings.Join(out, ", ")
}

var historyCmd = &cobra.Command{
	Use:   "history [RUN_ID]",
	Short: "List recorded runs, or show one run in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer store.Close()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			return showRun(ctx, store, args[0], out)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tTARGET\tSTRATEGY\tOUTCOME\tITER\tVERIF\tELAPSED")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%v\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Target, r.Strategy, r.Outcome,
				r.Iterations, r.Verifications, r.Elapsed)
		}
		return w.Flush()
	},
}

func showRun(ctx context.Context, store storage.Store, id string, out io.Writer) error {
	r, err := store.GetRun(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Run:       %s\n", r.ID)
	fmt.Fprintf(out, "Problem:   %s (%s)\n", r.ProblemPath, r.ProblemHash)
	fmt.Fprintf(out, "Started:   %s\n", r.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Search:    %s / %s (worker %s)\n", r.Strategy, r.Heuristic, r.Worker)
	fmt.Fprintf(out, "Outcome:   %s\n", r.Outcome)
	fmt.Fprintf(out, "Stats:     %d iterations, %d expansions, %d verifications in %v\n",
		r.Iterations, r.Expansions, r.Verifications, r.Elapsed)
	if r.Definition != "" {
		fmt.Fprintf(out, "Solution:  %s\n", r.Definition)
	}

	g, err := store.LoadGrammar(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Grammar:")
	for _, n := range g.Ordered() {
		var deps []string
		for _, d := range g.GetDependencies(n.Name) {
			deps = append(deps, d.Original)
		}
		fmt.Fprintf(out, "  %s %s (%d alternatives) -> %s\n", n.Original, n.Sort, n.Alternatives, strings.Join(deps, " "))
	}
	return nil
}
