package messaging

import (
	"context"
	"errors"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// Fanout hands each event to every publisher, even when an earlier one fails.
type Fanout []ports.ReportEventPublisher

var _ ports.ReportEventPublisher = Fanout(nil)

func (f Fanout) PublishReportEvent(ctx context.Context, evt domain.ReportEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.PublishReportEvent(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
