// Package ralphd is the cobra command tree for the Work-Item Pipeline
// daemon (spec.md §6 CLI surface), wiring internal/pipeline.Pipeline and,
// when configured, internal/bridge.Bridge as its notifier and chat front
// end.
package ralphd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daydemir/ralph-orchestrator/internal/bridge"
	"github.com/daydemir/ralph-orchestrator/internal/config"
	"github.com/daydemir/ralph-orchestrator/internal/display"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
	"github.com/daydemir/ralph-orchestrator/internal/pipeline"
	"github.com/daydemir/ralph-orchestrator/internal/planexec"
	"github.com/spf13/cobra"
)

var (
	flagOnce    bool
	flagDryRun  bool
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ralphd",
	Short: "Scan the backlog and drive each eligible item to completion",
	RunE: func(cmd *cobra.Command, args []string) error {
		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve project root: %w", err)
		}

		orchCfg, err := config.Load(projectRoot)
		if err != nil {
			return fmt.Errorf("load orchestrator config: %w", err)
		}
		slackCfg, err := bridge.Load(projectRoot)
		if err != nil {
			return fmt.Errorf("load slack config: %w", err)
		}

		pipelineCfg := pipeline.DefaultConfig(projectRoot)
		pipelineCfg.AgentsDir = orchCfg.AgentsDir
		pipelineCfg.SpecDir = orchCfg.SpecDir
		pipelineCfg.IdleWaitInterval = config.ReportIntervalSeconds(pipelineCfg.IdleWaitInterval)

		execCfg := planexec.DefaultConfig(projectRoot)
		execCfg.AgentsDir = orchCfg.AgentsDir
		execCfg.SkipPermissions = config.SandboxEnabled()
		execCfg.ClaudeBinary = config.ResolveClaudeBinary(execCfg.ClaudeBinary)

		claude := llm.NewClaude(execCfg.ClaudeBinary)
		disp := display.New()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			disp.Info("signal", "received interrupt, stopping after the current item")
			cancel()
		}()

		var notifier planexec.Notifier = planexec.NoopNotifier{}
		var br *bridge.Bridge
		if slackCfg.Enabled {
			transport := bridge.NewSlackTransport(slackCfg.BotToken)
			identity := bridge.NewIdentity(nil)
			br = bridge.New(pipelineCfg, slackCfg, claude, disp, transport, identity)
			notifier = br
			disp.SetRelay(br.Relay)
		}

		executor := planexec.New(*execCfg, claude, disp, notifier)
		pipelineCfg.Executor = executor

		p := pipeline.New(pipelineCfg, claude, disp, notifier)

		if br != nil {
			go func() {
				if err := br.Run(ctx); err != nil && ctx.Err() == nil {
					disp.Error(fmt.Sprintf("messaging bridge stopped: %v", err))
				}
			}()
		}

		return p.Run(ctx, pipeline.RunOptions{
			Once:    flagOnce,
			DryRun:  flagDryRun,
			Verbose: flagVerbose,
		})
	},
}

// Execute runs the ralphd command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolVar(&flagOnce, "once", false, "scan and process the backlog once, then exit")
	rootCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "scan and report without executing")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose agent output")
}
