package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/3leaps/gogenie/internal/config"
	"github.com/3leaps/gogenie/internal/metrics"
	"github.com/3leaps/gogenie/pkg/completion"
	"github.com/3leaps/gogenie/pkg/jobregistry"
	"github.com/3leaps/gogenie/pkg/mail"
	"github.com/3leaps/gogenie/pkg/transfer"
)

// pipeline bundles the collaborators of one completion pipeline.
type pipeline struct {
	store    *jobregistry.Store
	transfer *transfer.Service
	sink     metrics.Sink
	orch     *completion.Orchestrator
}

// buildPipeline wires the collaborators from cfg. A nil reg uses a no-op sink.
func buildPipeline(cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*pipeline, error) {
	if err := os.MkdirAll(cfg.Jobs.RegistryDir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	store := jobregistry.NewStore(cfg.Jobs.RegistryDir)

	svc := transfer.New(logger.Named("transfer"), transfer.WithS3Options(transfer.S3Options{
		Region:         cfg.S3.Region,
		Endpoint:       cfg.S3.Endpoint,
		Profile:        cfg.S3.Profile,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	}))

	mailer, err := buildMailer(cfg.Mail, logger.Named("mail"))
	if err != nil {
		_ = svc.Close()
		return nil, err
	}

	var sink metrics.Sink = metrics.NewNoopSink()
	if reg != nil && cfg.Metrics.Enabled {
		sink = metrics.NewPrometheusSink(reg, logger)
	}

	orch, err := completion.New(completion.Deps{
		Persistence: store,
		Search:      store,
		Transfer:    svc,
		Mailer:      mailer,
		Metrics:     sink,
		Logger:      logger.Named("completion"),
	}, completion.Config{
		BaseWorkingDir:  cfg.Jobs.Dir,
		ArchiveExcludes: cfg.Archive.Exclude,
	})
	if err != nil {
		_ = svc.Close()
		return nil, fmt.Errorf("build completion pipeline: %w", err)
	}

	return &pipeline{store: store, transfer: svc, sink: sink, orch: orch}, nil
}

func (p *pipeline) Close() error {
	return p.transfer.Close()
}

func buildMailer(cfg config.MailConfig, logger *zap.Logger) (completion.Mailer, error) {
	if !cfg.Enabled {
		return mail.NewLogMailer(logger), nil
	}
	m, err := mail.NewSMTPMailer(cfg.SMTP())
	if err != nil {
		return nil, fmt.Errorf("build smtp mailer: %w", err)
	}
	return m, nil
}
