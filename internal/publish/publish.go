// Package publish mirrors the produced artifacts to the web hosts with
// rsync. Each destination receives the run documents under json/ and the
// rendered imagery under images/.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
)

// maxAttempts bounds the per-transfer retry loop.
const maxAttempts = 3

// rsyncArgs mirror the source into the destination: delete removed runs,
// only send newer files, archive mode with compression.
var rsyncArgs = []string{"--delete", "--update", "-azvh"}

// runner executes one external command; a seam for tests.
type runner func(ctx context.Context, name string, args ...string) error

// Publisher pushes the output and images directories to the configured
// rsync destinations.
type Publisher struct {
	cfg     *config.Config
	run     runner
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{cfg: cfg, run: runCommand, logger: logger, metrics: metrics}
}

// Publish syncs both artifact trees to every destination. Each transfer is
// retried with exponential backoff; destinations that still fail are
// reported together after the rest have been attempted.
func (p *Publisher) Publish(ctx context.Context) error {
	if len(p.cfg.PublishDests) == 0 {
		p.logger.Info("no publish destinations configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PublishTimeout)
	defer cancel()

	var errs []error
	for _, dest := range p.cfg.PublishDests {
		transfers := []struct{ src, dst string }{
			{p.cfg.OutputDir, join(dest, "json")},
			{p.cfg.ImagesDir, join(dest, "images")},
		}
		for _, tr := range transfers {
			if err := p.sync(ctx, tr.src, tr.dst); err != nil {
				p.logger.Error("publish failed", "dest", tr.dst, "error", err)
				p.metrics.PublishFailures.Inc()
				errs = append(errs, fmt.Errorf("publish %s: %w", tr.dst, err))
				continue
			}
			p.logger.Info("published", "src", tr.src, "dest", tr.dst)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) sync(ctx context.Context, src, dst string) error {
	args := append(append([]string{}, rsyncArgs...), src+"/", dst+"/")
	op := func() error {
		return p.run(ctx, p.cfg.RsyncPath, args...)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	return backoff.Retry(op, policy)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// join appends a path element to an rsync destination, which may be a
// remote user@host:/path spec.
func join(dest, elem string) string {
	return strings.TrimSuffix(dest, "/") + "/" + elem
}
