package service

import (
	"context"

	perr "labelscan/internal/platform/errors"
	"labelscan/internal/platform/logger"
	"labelscan/internal/services/scan/domain"
)

// BatchProgress is told about each item before and after it runs
type BatchProgress func(index int, name string, status string)

// Batch dispatches items in order
// cancellation is checked only between items; the item in flight always finishes
func (s *Service) Batch(ctx context.Context, items []domain.Item, progress BatchProgress) ([]domain.ItemResult, domain.BatchSummary) {
	log := logger.C(ctx)
	sum := domain.BatchSummary{Total: len(items)}
	out := make([]domain.ItemResult, 0, len(items))

	for i, it := range items {
		if ctx.Err() != nil {
			sum.Canceled = true
			log.Info().Int("processed", sum.Processed).Int("total", sum.Total).Msg("batch canceled")
			break
		}

		var itemProgress domain.ProgressFunc
		if progress != nil {
			idx, name := i, it.Name
			itemProgress = func(status string) { progress(idx, name, status) }
		}

		var oc domain.Outcome
		raw, err := it.Load()
		if err != nil {
			oc = domain.Outcome{Err: perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "load %s", it.Name)}
		} else {
			oc = s.Dispatch(context.WithoutCancel(ctx), domain.Request{Image: raw, Progress: itemProgress})
		}

		sum.Processed++
		switch {
		case oc.Err != nil:
			sum.Failed++
		case oc.Source == domain.SourceRemote:
			sum.Succeeded++
			sum.Remote++
		default:
			sum.Succeeded++
			sum.Local++
		}
		out = append(out, domain.ItemResult{Name: it.Name, Outcome: oc})
	}
	return out, sum
}
