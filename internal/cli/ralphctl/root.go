// Package ralphctl is the cobra command tree for the Plan Executor binary
// (spec.md §6 CLI surface), grounded on the teacher's internal/cli.rootCmd
// single-root pattern, generalized to this orchestrator's two binaries.
package ralphctl

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daydemir/ralph-orchestrator/internal/config"
	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/daydemir/ralph-orchestrator/internal/smoke"
	"github.com/spf13/cobra"
)

var (
	flagPlan            string
	flagDryRun          bool
	flagResumeFrom      string
	flagSingleTask      bool
	flagParallel        bool
	flagSkipSmoke       bool
	flagVerbose         bool
	flagMaxBudgetPct    float64
	flagQuotaCeiling    float64
	flagReservedBudget  float64
)

var rootCmd = &cobra.Command{
	Use:   "ralphctl",
	Short: "Drive one plan through its task state machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagPlan == "" {
			return fmt.Errorf("--plan is required")
		}

		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve project root: %w", err)
		}

		orchCfg, err := config.Load(projectRoot)
		if err != nil {
			return fmt.Errorf("load orchestrator config: %w", err)
		}

		cfg := planexec.DefaultConfig(projectRoot)
		cfg.AgentsDir = orchCfg.AgentsDir
		cfg.Verbose = flagVerbose
		cfg.SkipPermissions = config.SandboxEnabled()
		cfg.ClaudeBinary = config.ResolveClaudeBinary(cfg.ClaudeBinary)
		cfg.Smoke = &smoke.Config{
			BuildCommand:     orchCfg.BuildCommand,
			TestCommand:      orchCfg.TestCommand,
			DevServerCommand: orchCfg.DevServerCommand,
			DevServerPort:    orchCfg.DevServerPort,
		}

		claude := llm.NewClaude(cfg.ClaudeBinary)
		disp := display.New()
		executor := planexec.New(*cfg, claude, disp, planexec.NoopNotifier{})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			disp.Info("signal", "received interrupt, saving plan and exiting")
			cancel()
		}()

		result, err := executor.Run(ctx, flagPlan, planexec.RunOptions{
			DryRun:            flagDryRun,
			ResumeFromTaskID:  flagResumeFrom,
			SingleTask:        flagSingleTask,
			SkipSmoke:         flagSkipSmoke,
			Verbose:           flagVerbose,
			Parallel:          flagParallel,
			MaxBudgetPct:      flagMaxBudgetPct,
			QuotaCeilingUSD:   flagQuotaCeiling,
			ReservedBudgetUSD: flagReservedBudget,
		})
		if err != nil {
			return err
		}
		if result.Suspended {
			disp.Resume(fmt.Sprintf("task %s suspended, awaiting handshake", result.SuspendedTaskID))
		}
		os.Exit(result.ExitCode)
		return nil
	},
}

// Execute runs the ralphctl command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().StringVar(&flagPlan, "plan", "", "path to the plan YAML file")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "print the next action without executing it")
	rootCmd.Flags().StringVar(&flagResumeFrom, "resume-from", "", "resume execution from this task id")
	rootCmd.Flags().BoolVar(&flagSingleTask, "single-task", false, "execute exactly one task then exit")
	rootCmd.Flags().BoolVar(&flagParallel, "parallel", false, "run eligible task groups in parallel worktrees")
	rootCmd.Flags().BoolVar(&flagSkipSmoke, "skip-smoke", false, "skip the post-plan smoke test")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose agent output")
	rootCmd.Flags().Float64Var(&flagMaxBudgetPct, "max-budget-pct", 0, "pause once this percentage of the quota ceiling is spent")
	rootCmd.Flags().Float64Var(&flagQuotaCeiling, "quota-ceiling", 0, "hard USD ceiling for this run")
	rootCmd.Flags().Float64Var(&flagReservedBudget, "reserved-budget", 0, "USD reserved and excluded from the spendable budget")
}
