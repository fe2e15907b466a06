package job

import (
	"context"

	"github.com/jonesrussell/north-cloud/curator/internal/domain"
)

// Trigger runs the cron callback for source immediately.
func (s *AutoCrawlScheduler) Trigger(ctx context.Context, source *domain.Source) {
	s.trigger(ctx, source)
}
