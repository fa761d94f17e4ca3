// Package retention removes aged run documents from the output directory.
package retention

import (
	"log/slog"
	"os"

	"github.com/wrh-stid/debrisflow-etl/internal/config"
	"github.com/wrh-stid/debrisflow-etl/internal/domain"
	"github.com/wrh-stid/debrisflow-etl/internal/observability"
)

// Sweeper deletes run documents older than the keep window. Candidates are
// probed by run timestamp rather than by directory listing, so stray files
// in the output directory are never touched.
type Sweeper struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Sweeper {
	return &Sweeper{cfg: cfg, logger: logger, metrics: metrics}
}

// Sweep removes the documents of runs aged in (KeepHours, PurgeHours]
// relative to the current hour. Runs older than PurgeHours are assumed
// already gone.
func (s *Sweeper) Sweep() error {
	now := domain.RunTimeFrom(domain.Now())
	s.logger.Info("removing run documents", "older_than_hours", s.cfg.KeepHours)

	removed := 0
	for hr := s.cfg.KeepHours + 1; hr <= s.cfg.PurgeHours; hr++ {
		path := now.Add(-hr).DocumentPath(s.cfg.OutputDir)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			s.logger.Error("failed to remove document", "path", path, "error", err)
			continue
		}
		s.logger.Info("removed run document", "path", path)
		s.metrics.DocumentsSwept.Inc()
		removed++
	}

	s.logger.Info("retention sweep complete", "removed", removed)
	return nil
}
