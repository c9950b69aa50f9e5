package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/browser"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/content"
	"github.com/xkilldash9x/rateidea-agent/internal/diagnostics"
	"github.com/xkilldash9x/rateidea-agent/internal/llmclient"
	"github.com/xkilldash9x/rateidea-agent/internal/locator"
	"github.com/xkilldash9x/rateidea-agent/internal/observability"
	"github.com/xkilldash9x/rateidea-agent/internal/orchestrator"
	"github.com/xkilldash9x/rateidea-agent/internal/pacing"
	"github.com/xkilldash9x/rateidea-agent/internal/schedule"
	"github.com/xkilldash9x/rateidea-agent/internal/workflow"
)

const managerShutdownTimeout = 30 * time.Second

// sessionManager is the browser side of a run.
type sessionManager interface {
	schemas.SessionFactory
	Shutdown(ctx context.Context) error
}

// Seams for tests.
var (
	newSessionManager = func(cfg config.BrowserConfig, logger *zap.Logger) sessionManager {
		return browser.NewManager(cfg, logger)
	}
	newLLMClient = llmclient.NewClient
	newFs        = afero.NewOsFs
	timeNow      = time.Now
)

type runOptions struct {
	action  string
	dryRun  bool
	jsonOut bool
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Performs today's scheduled action in a fresh browser session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			return runAgent(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.action, "action", "a", "", "Perform this action instead of the scheduled one (rate, create, idle)")
	runCmd.Flags().Bool("headless", true, "Run the browser without a window")
	runCmd.Flags().String("base-url", "", "Site root to open (overrides site.base_url)")
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the selected action and exit without launching a browser")
	runCmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print the run report as JSON")

	bindFlag(runCmd, "headless", "browser.headless")
	bindFlag(runCmd, "base-url", "site.base_url")
	return runCmd
}

// runAgent wires every component from cfg and performs exactly one run.
func runAgent(ctx context.Context, out io.Writer, cfg *config.Config, opts *runOptions) error {
	logger := observability.GetLogger()

	policy, err := schedule.NewPolicy(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	var orchOpts []orchestrator.Option
	var override schedule.Action
	if opts.action != "" {
		override, err = schedule.ParseAction(opts.action)
		if err != nil {
			return fmt.Errorf("%w: --action: %w", config.ErrConfiguration, err)
		}
		orchOpts = append(orchOpts, orchestrator.WithAction(override))
	}

	if opts.dryRun {
		action := override
		if action == "" {
			action = policy.Select(timeNow())
		}
		logger.Info("Dry run; no browser launched.", zap.String("action", string(action)), zap.String("policy", policy.Name()))
		fmt.Fprintln(out, action)
		return nil
	}

	llm, err := newLLMClient(ctx, cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to create text generation client: %w", err)
	}
	defer func() {
		if err := llm.Close(); err != nil {
			logger.Warn("Failed to close text generation client.", zap.Error(err))
		}
	}()

	gen, err := content.NewGenerator(llm, cfg.Content, cfg.LLM.Temperature, logger)
	if err != nil {
		return fmt.Errorf("failed to build content generator: %w", err)
	}
	signal, err := locator.NewSignal(cfg.Locator.Signal)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	pacer := pacing.New(cfg.Pacing, logger)
	recorder := diagnostics.NewRecorder(newFs(), cfg.Diagnostics, logger)
	deps := workflow.Deps{
		Site:    cfg.Site,
		Waits:   cfg.Waits,
		Delays:  cfg.Delays,
		Content: gen,
		Pacer:   pacer,
		Capture: recorder,
		Logger:  logger,
	}
	workflows := map[schedule.Action]workflow.Workflow{
		schedule.ActionRate:   workflow.NewRateAndComment(deps, locator.NewFinder(cfg.Site, cfg.Waits, signal, logger)),
		schedule.ActionCreate: workflow.NewCreateIdea(deps),
	}

	manager := newSessionManager(cfg.Browser, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), managerShutdownTimeout)
		defer cancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager shutdown reported an error.", zap.Error(err))
		}
	}()

	orch, err := orchestrator.New(cfg, logger, manager, policy, pacer, recorder, workflows, orchOpts...)
	if err != nil {
		return fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	report, runErr := orch.Run(ctx)
	if err := printReport(out, report, opts.jsonOut); err != nil {
		logger.Warn("Failed to print run report.", zap.Error(err))
	}
	return runErr
}

func printReport(out io.Writer, r orchestrator.Report, asJSON bool) error {
	if asJSON {
		data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	_, err := fmt.Fprintf(out, "run %s: action=%s status=%s target=%q duration=%s\n",
		r.RunID, r.Action, r.Outcome.Status, r.Outcome.Target, r.Duration.Round(time.Millisecond))
	return err
}
