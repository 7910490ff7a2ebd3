package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/stepwright/internal/action"
	"github.com/rahul/stepwright/internal/driver"
	"github.com/rahul/stepwright/internal/gateway"
	"github.com/rahul/stepwright/internal/governance"
	"github.com/rahul/stepwright/internal/metrics"
	"github.com/rahul/stepwright/internal/observability"
	"github.com/rahul/stepwright/internal/orchestrator"
	"github.com/rahul/stepwright/internal/planning"
	"github.com/rahul/stepwright/internal/specsource"
	"github.com/rahul/stepwright/internal/store"
	"github.com/rahul/stepwright/pkg/config"
)

var errRunFailed = errors.New("run failed")

var runCmd = &cobra.Command{
	Use:   "run <narrative-ref>",
	Short: "Execute a narrative against the target app",
	Long: `Loads the narrative named by <narrative-ref> (a file, or an issue id when the
source is http), runs every scenario in Chrome and prints a report. Exits
non-zero when any scenario fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}
		return runNarrative(cmd, cfg, args[0])
	},
}

func init() {
	runCmd.Flags().String("url", "", "Target app URL (overrides browser.target_url)")
	runCmd.Flags().Bool("headless", true, "Run Chrome headless (overrides browser.headless)")
	runCmd.Flags().String("source", "", "Narrative source: file or http (overrides source.type)")
	runCmd.Flags().Bool("keep-artifacts", false, "Keep the per-run artifact directory")
	rootCmd.AddCommand(runCmd)
}

func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if url, _ := cmd.Flags().GetString("url"); url != "" {
		cfg.Browser.TargetURL = url
	}
	if cmd.Flags().Changed("headless") {
		headless, _ := cmd.Flags().GetBool("headless")
		cfg.Browser.Headless = &headless
	}
	if src, _ := cmd.Flags().GetString("source"); src != "" {
		cfg.Source.Type = src
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if cfg.Browser.TargetURL == "" {
		return nil, errors.New("no target URL: set browser.target_url or pass --url")
	}
	return cfg, nil
}

func runNarrative(cmd *cobra.Command, cfg *config.Config, ref string) error {
	observability.PrintBanner(os.Stdout)
	// Route all log output through the terminal mutex so it never
	// interrupts the status line.
	log.SetOutput(observability.NewTermWriter())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src := buildSource(cfg)
	narrative, err := src.Fetch(ctx, ref)
	if err != nil {
		return err
	}

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}

	logger := observability.NewLogger()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, registry)
	}

	svc := planning.NewLLMService(llm, planning.LLMServiceConfig{
		Temperature:     cfg.Planner.Temperature,
		PollInitial:     time.Duration(cfg.Planner.PollInitialIntervalMS) * time.Millisecond,
		PollMaxInterval: time.Duration(cfg.Planner.PollMaxIntervalMS) * time.Millisecond,
		PollMaxRetries:  cfg.Planner.PollMaxRetries,
	}, logger)

	drv := driver.NewChromeDriver(driver.ChromeConfig{
		Headless:      cfg.Browser.IsHeadless(),
		ActionTimeout: cfg.Browser.ActionTimeout(),
		WindowWidth:   cfg.Browser.WindowWidth,
		WindowHeight:  cfg.Browser.WindowHeight,
	})
	defer drv.Close()

	policy, err := buildPolicy(cfg.Policy)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{
		orchestrator.WithPolicy(policy),
		orchestrator.WithLogger(logger),
		orchestrator.WithMetrics(m),
		orchestrator.WithPrompts(planning.NewPromptManager(cfg.App.PromptsDir)),
		orchestrator.WithClient(planning.NewClient(planning.Limits{
			MaxCountRepairs:     cfg.Planner.MaxCountRepairs,
			MaxGroundingRepairs: cfg.Planner.MaxGroundingRepairs,
			MaxSessionRestarts:  cfg.Planner.MaxSessionRestarts,
		}, logger, m)),
	}
	if cfg.Memory.Type == "sqlite" {
		runs, err := store.NewRunStore(cfg.Memory.Path)
		if err != nil {
			return err
		}
		defer runs.Close()
		opts = append(opts, orchestrator.WithRecorder(runs))
	}

	keep, _ := cmd.Flags().GetBool("keep-artifacts")
	orch := orchestrator.New(orchestrator.Config{
		TargetURL:        cfg.Browser.TargetURL,
		SettleDelay:      cfg.Browser.SettleDelay(),
		ContainmentTag:   cfg.Validation.ContainmentTag,
		MaxExcerptBytes:  cfg.Validation.MaxExcerptBytes,
		UngroundedPolicy: orchestrator.UngroundedPolicy(cfg.Planner.UngroundedPolicy),
		ArtifactDir:      cfg.App.Workspace,
		KeepArtifacts:    keep || cfg.App.Workspace != "",
	}, drv, svc, opts...)

	if observability.IsTerminal() {
		go liveStatus(ctx)
	}

	report, runErr := orch.Run(ctx, src.Name()+":"+ref, narrative)
	fmt.Fprint(cmd.OutOrStdout(), "\n"+report.Summary())

	if notifier := buildNotifier(cfg); notifier.Len() > 0 {
		if err := notifier.Broadcast(gateway.FormatReport(report)); err != nil {
			log.Printf("[Gateway] report delivery incomplete: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if !report.Passed() {
		return errRunFailed
	}
	return nil
}

func buildSource(cfg *config.Config) specsource.Source {
	if cfg.Source.Type == "http" {
		return specsource.NewHTTPSource(cfg.Source.URLTemplate)
	}
	return &specsource.FileSource{Dir: cfg.Source.Dir}
}

// buildLLM initialises the default enabled provider.
func buildLLM(cfg *config.Config) (llms.Model, error) {
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		return nil, errors.New("no enabled provider found in config")
	}

	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("provider %s is not supported", pName)
	}
}

func buildPolicy(cfg config.PolicyConfig) (*governance.DefaultPolicyEngine, error) {
	gov := governance.NewDefaultPolicyEngine()
	for _, k := range cfg.DenyKinds {
		kind, err := action.ParseKind(k)
		if err != nil {
			return nil, fmt.Errorf("policy.deny_kinds: %w", err)
		}
		gov.DenyKind(kind)
	}
	for _, pattern := range cfg.DenyTargets {
		if err := gov.DenyTargets(pattern); err != nil {
			return nil, fmt.Errorf("policy.deny_targets: %w", err)
		}
	}
	return gov, nil
}

func buildNotifier(cfg *config.Config) *gateway.Broadcaster {
	b := &gateway.Broadcaster{}
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token)
		if err != nil {
			log.Printf("[Gateway] telegram disabled: %v", err)
		} else {
			b.Add(tg, tgCfg.ChatID)
		}
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token)
		if err != nil {
			log.Printf("[Gateway] discord disabled: %v", err)
		} else {
			b.Add(dc, dcCfg.ChatID)
		}
	}
	return b
}

func serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	log.Printf("[Metrics] serving on %s/metrics", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("[Metrics] server stopped: %v", err)
	}
}

func liveStatus(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			observability.PrintLiveStatus()
		case <-heartbeat.C:
			observability.Heartbeat()
		}
	}
}
