package storage

import (
	"github.com/sirupsen/logrus"

	"sitemap-monitor/pkg/config"
)

// OpenVisitedSet creates the visited set backend selected by cfg.VisitedStore
func OpenVisitedSet(cfg *config.AppConfig, logger *logrus.Entry) (VisitedSet, error) {
	if cfg.VisitedStore == config.VisitedStoreBadger {
		return NewBadgerVisitedSet(cfg.StateDir, logger)
	}
	return NewMemoryVisitedSet(), nil
}
