package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/internal/observability"
	"github.com/3leaps/gogenie/pkg/completion"
)

var (
	finalizeJobID string
	finalizePID   int
)

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Finalize one finished job synchronously",
	Long: `Run the completion pipeline once for a single job.

Examples:
  gogenie finalize --job-id 6f1c2a --pid 31337`,
	RunE: runFinalize,
}

func init() {
	rootCmd.AddCommand(finalizeCmd)
	finalizeCmd.Flags().StringVar(&finalizeJobID, "job-id", "", "id of the finished job (required)")
	finalizeCmd.Flags().IntVar(&finalizePID, "pid", 0, "pid of the job's run script")
	_ = finalizeCmd.MarkFlagRequired("job-id")
}

func runFinalize(cmd *cobra.Command, args []string) error {
	jobID := strings.TrimSpace(finalizeJobID)
	if jobID == "" {
		return fmt.Errorf("--job-id must not be blank")
	}

	p, err := buildPipeline(appConfig, nil, observability.CLILogger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	summary := p.orch.Handle(cmd.Context(), completion.FinishedEvent{JobID: jobID, PID: finalizePID})

	observability.CLILogger.Debug("Finalize complete",
		zap.String("job_id", summary.JobID),
		zap.Stringer("state", summary.State),
		zap.Duration("duration", summary.Duration))
	printSummary(cmd, summary)
	return nil
}

func printSummary(cmd *cobra.Command, s completion.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s: %s in %s\n", s.JobID, s.State, s.Duration.Round(time.Millisecond))
	for _, stage := range completion.Stages {
		outcome, ok := s.Outcomes[stage]
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %-8s %s\n", stage, outcome)
	}
}
