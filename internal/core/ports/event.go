package ports

import (
	"context"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

type ReportEventPublisher interface {
	PublishReportEvent(ctx context.Context, evt domain.ReportEvent) error
}
