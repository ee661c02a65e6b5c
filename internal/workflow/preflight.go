package workflow

import (
	"context"
	"fmt"

	"scribe/internal/logging"
	"scribe/internal/preflight"
)

// runPreflight verifies the environment and every stage handler before any
// job starts. All failures are logged before the run aborts, so an operator
// sees the full list at once.
func (m *Manager) runPreflight(ctx context.Context) error {
	checks := preflight.Run(ctx, m.cfg)
	for _, handler := range m.Handlers() {
		checks = append(checks, handler.HealthCheck(ctx))
	}

	failed := 0
	for _, check := range checks {
		if check.Ready {
			m.logger.Debug("preflight check passed", logging.String("check", check.Name))
			continue
		}
		m.logger.Error("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail))
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("%d preflight checks failed", failed)
	}
	return nil
}
