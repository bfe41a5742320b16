package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/internal/config"
	"github.com/3leaps/gogenie/internal/observability"
)

var (
	doctorProvider string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the local setup and suggest fixes for common issues.

Examples:
  gogenie doctor                # Directories and mail settings
  gogenie doctor --provider s3  # Also check AWS credentials for s3:// archives`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().StringVar(&doctorProvider, "provider", "", "Run provider-specific checks (s3)")
}

type doctorCheck struct {
	name string
	run  func(ctx context.Context, cfg *config.Config) (string, error)
}

func doctorChecks() []doctorCheck {
	checks := []doctorCheck{
		{"Go version", func(ctx context.Context, cfg *config.Config) (string, error) {
			return runtime.Version(), nil
		}},
		{"jobs directory", func(ctx context.Context, cfg *config.Config) (string, error) {
			return checkDir(cfg.Jobs.Dir, false)
		}},
		{"registry directory", func(ctx context.Context, cfg *config.Config) (string, error) {
			return checkDir(cfg.Jobs.RegistryDir, true)
		}},
		{"mail delivery", func(ctx context.Context, cfg *config.Config) (string, error) {
			if !cfg.Mail.Enabled {
				return "disabled (notifications are logged only)", nil
			}
			if err := cfg.Mail.SMTP().Validate(); err != nil {
				return "", err
			}
			return fmt.Sprintf("smtp %s:%d", cfg.Mail.Host, cfg.Mail.Port), nil
		}},
	}
	if doctorProvider == "s3" {
		checks = append(checks, doctorCheck{"AWS credentials", checkAWSCredentials})
	}
	return checks
}

func runDoctor(cmd *cobra.Command, args []string) error {
	observability.CLILogger.Info("=== " + binaryName + " doctor ===")
	observability.CLILogger.Info("")

	checks := doctorChecks()
	failed := 0
	for i, check := range checks {
		detail, err := check.run(cmd.Context(), appConfig)
		prefix := fmt.Sprintf("[%d/%d] Checking %s...", i+1, len(checks), check.name)
		if err != nil {
			failed++
			observability.CLILogger.Error(prefix+" ❌ "+err.Error(), zap.String("check", check.name))
			if check.name == "AWS credentials" {
				printAWSCredentialsHelp()
			}
			continue
		}
		observability.CLILogger.Info(prefix+" ✅ "+detail, zap.String("check", check.name))
	}

	observability.CLILogger.Info("")
	if failed > 0 {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	observability.CLILogger.Info("✅ All checks passed!")
	return nil
}

// checkDir verifies path is an existing directory. When writable is set it
// also creates and removes a probe file.
func checkDir(path string, writable bool) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", path)
	}
	if writable {
		f, err := os.CreateTemp(path, ".doctor-*")
		if err != nil {
			return "", fmt.Errorf("%s is not writable: %w", path, err)
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path, nil
	}
	return abs, nil
}

func checkAWSCredentials(ctx context.Context, cfg *config.Config) (string, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3.Region))
	}
	if cfg.S3.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.S3.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("cannot load AWS config: %w", err)
	}
	creds, err := awsCfg.Credentials.Retrieve(ctx)
	if err != nil {
		return "", fmt.Errorf("cannot retrieve credentials: %w", err)
	}
	source := creds.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s (source: %s)", maskAccessKey(creds.AccessKeyID), source), nil
}

// maskAccessKey masks all but the last 4 characters of an access key.
func maskAccessKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}

// printAWSCredentialsHelp prints help for configuring AWS credentials.
func printAWSCredentialsHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure AWS credentials:")
	observability.CLILogger.Info("  1. Set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY environment variables, or")
	observability.CLILogger.Info("  2. Run 'aws configure' to set up a profile and set s3.profile, or")
	observability.CLILogger.Info("  3. Use an IAM role when running on AWS infrastructure")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("For S3-compatible storage (MinIO, Wasabi, etc.), also set s3.endpoint")
	observability.CLILogger.Info("and s3.force_path_style.")
	observability.CLILogger.Info("")
}
