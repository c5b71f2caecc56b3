// Package main is the e2e runner CLI. It drives a running guardian service
// through the demo scenarios over its HTTP API and reports per-stage results.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/paymentops/guardian/test/e2e/config"
	"github.com/paymentops/guardian/test/e2e/scenarios"
)

const banner = "═══════════════════════════════════════════════════════════════"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		baseURL       string
		outputJSON    bool
		stageTimeout  time.Duration
		waitTimeout   time.Duration
		globalTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "e2e [scenario]",
		Short: "Run guardian e2e tests",
		Long: `Run end-to-end tests against a running guardian service.

Available scenarios:
  recovery        - Applies the normal scenario and checks recovery without a run
  single_failure  - Shinhan Bank outage through the full incident workflow
  triple_failure  - Multi-node outage through the full incident workflow
  busy-rejection  - Second trigger rejected while a run is in flight
  all             - Run all scenarios (default)

Examples:
  e2e                                  # Run all scenarios
  e2e single_failure                   # Run specific scenario
  e2e --json                           # Output results as JSON
  e2e --base-url http://host:8003      # Custom guardian URL
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) > 0 {
				name = args[0]
			}

			cfg := config.DefaultConfig()
			cfg.BaseURL = baseURL
			cfg.StageTimeout = stageTimeout
			cfg.WaitTimeout = waitTimeout

			return run(name, cfg, outputJSON, globalTimeout)
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", config.DefaultBaseURL, "Guardian service URL")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")
	cmd.Flags().DurationVar(&stageTimeout, "timeout", config.DefaultStageTimeout, "Per-stage timeout")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", config.DefaultWaitTimeout, "Workflow completion timeout")
	cmd.Flags().DurationVar(&globalTimeout, "global-timeout", 10*time.Minute, "Global timeout for all scenarios")

	cmd.AddCommand(listCmd())

	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available scenarios",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available scenarios:")
			fmt.Println()
			fmt.Println("  recovery        Applies the normal scenario and checks recovery without a run")
			fmt.Println("  single_failure  Shinhan Bank outage through the full incident workflow")
			fmt.Println("  triple_failure  Multi-node outage through the full incident workflow")
			fmt.Println("  busy-rejection  Second trigger rejected while a run is in flight")
			fmt.Println()
			fmt.Println("Use 'e2e all' to run all scenarios.")
		},
	}
}

// printer writes progress to stdout in text mode and stays silent in JSON
// mode, where stdout must carry only the result document.
type printer struct{ quiet bool }

func (p printer) printf(format string, args ...any) {
	if !p.quiet {
		fmt.Printf(format, args...)
	}
}

func run(name string, cfg *config.Config, outputJSON bool, globalTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), globalTimeout)
	defer cancel()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	all := []scenarios.Scenario{
		scenarios.NewRecoveryScenario(cfg),
		scenarios.NewSingleFailureScenario(cfg),
		scenarios.NewTripleFailureScenario(cfg),
		scenarios.NewBusyScenario(cfg),
	}

	var toRun []scenarios.Scenario
	if name == "all" {
		toRun = all
	} else {
		for _, s := range all {
			if s.Name() == name {
				toRun = []scenarios.Scenario{s}
				break
			}
		}
		if toRun == nil {
			return fmt.Errorf("unknown scenario: %s", name)
		}
	}

	p := printer{quiet: outputJSON}
	results := make([]*scenarios.Result, 0, len(toRun))
	allPassed := true

	for _, s := range toRun {
		if ctx.Err() != nil {
			p.printf("\nTest run interrupted!\n")
			break
		}
		result := runScenario(ctx, s, p)
		results = append(results, result)
		if !result.Success {
			allPassed = false
		}
	}

	if outputJSON {
		outputJSONResults(results)
	} else {
		outputTextSummary(results)
	}

	if !allPassed {
		return fmt.Errorf("some scenarios failed")
	}
	return nil
}

func runScenario(ctx context.Context, s scenarios.Scenario, p printer) *scenarios.Result {
	p.printf("\n%s\nRunning: %s\nDescription: %s\n%s\n\n", banner, s.Name(), s.Description(), banner)

	p.printf("Setup... ")
	if err := s.Setup(ctx); err != nil {
		result := scenarios.NewResult(s.Name())
		result.Fail(fmt.Sprintf("setup failed: %v", err))
		result.Complete()
		p.printf("FAILED: %v\n", err)
		return result
	}
	p.printf("OK\n")

	p.printf("Execute... ")
	result, err := s.Execute(ctx)
	switch {
	case err != nil:
		result = scenarios.NewResult(s.Name())
		result.Fail(fmt.Sprintf("execution error: %v", err))
		result.Complete()
		p.printf("ERROR: %v\n", err)
	case result.Success:
		p.printf("PASSED\n")
	default:
		p.printf("FAILED: %s\n", result.Error)
	}

	p.printf("Teardown... ")
	if err := s.Teardown(ctx); err != nil {
		result.AddWarning(fmt.Sprintf("teardown failed: %v", err))
		p.printf("WARNING: %v\n", err)
	} else {
		p.printf("OK\n")
	}

	if len(result.Stages) > 0 {
		p.printf("\nStages:\n")
		for _, stage := range result.Stages {
			mark := "✓"
			if !stage.Success {
				mark = "✗"
			}
			p.printf("  %s %s (%dms)\n", mark, stage.Name, stage.Duration.Milliseconds())
			if stage.Error != "" {
				p.printf("      Error: %s\n", stage.Error)
			}
		}
	}

	return result
}

func outputJSONResults(results []*scenarios.Result) {
	type summary struct {
		Total  int `json:"total"`
		Passed int `json:"passed"`
		Failed int `json:"failed"`
	}
	output := struct {
		Timestamp time.Time           `json:"timestamp"`
		Results   []*scenarios.Result `json:"results"`
		Summary   summary             `json:"summary"`
	}{
		Timestamp: time.Now(),
		Results:   results,
	}

	output.Summary.Total = len(results)
	for _, r := range results {
		if r.Success {
			output.Summary.Passed++
		} else {
			output.Summary.Failed++
		}
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling results: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func outputTextSummary(results []*scenarios.Result) {
	fmt.Println("\n" + banner)
	fmt.Println("                          SUMMARY")
	fmt.Println(banner)

	passed, failed := 0, 0
	for _, r := range results {
		status := "✓ PASSED"
		if r.Success {
			passed++
		} else {
			status = "✗ FAILED"
			failed++
		}
		fmt.Printf("  %s  %s (%dms)\n", status, r.ScenarioName, r.Duration.Milliseconds())
		if !r.Success && r.Error != "" {
			msg := r.Error
			if len(msg) > 80 {
				msg = msg[:77] + "..."
			}
			fmt.Printf("           %s\n", msg)
		}
	}

	fmt.Println(strings.Repeat("─", 65))
	fmt.Printf("  Total: %d | Passed: %d | Failed: %d\n", len(results), passed, failed)
	fmt.Println(banner)

	if failed > 0 {
		fmt.Println("\nSome tests failed. Run with --json for detailed output.")
	}
}
