// Package usecases holds the business rules of the server: ingestion,
// snapshot aggregation, the fermentation lifecycle and the genotype ledger,
// plus plain management of the reference records. Every operation takes an
// explicit input struct and returns fully materialized views.
package usecases

import (
	"context"
	"time"

	"cacao-server/entities"
	"cacao-server/metrics"
)

// SnapshotCache stores the latest snapshot per device id. Set is a
// compare-and-set against the generation read before the database query, so
// a snapshot loaded before an Invalidate is never written back.
type SnapshotCache interface {
	Get(ctx context.Context, deviceID string) (*entities.Snapshot, bool, error)
	Generation(ctx context.Context, deviceID string) (int64, error)
	Set(ctx context.Context, deviceID string, generation int64, snapshot entities.Snapshot) error
	Invalidate(ctx context.Context, deviceID string) error
}

type clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// resolveEndTime applies the status/end-time coupling: an explicit end time
// always wins; entering a terminal status from a non-terminal one stamps now;
// otherwise the current value is kept.
func resolveEndTime(prev, next entities.Status, current, explicit *time.Time, now time.Time) *time.Time {
	if explicit != nil {
		t := explicit.UTC()
		return &t
	}
	if next.IsTerminal() && !prev.IsTerminal() {
		return &now
	}
	return current
}

// transitionEndTime is the rule for explicit status changes: every move to
// the terminal status stamps now, even from a status that was already
// terminal, unless an end time is given.
func transitionEndTime(next entities.Status, current, explicit *time.Time, now time.Time) *time.Time {
	if next.IsTerminal() && explicit == nil {
		return &now
	}
	return resolveEndTime("", next, current, explicit, now)
}

func observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(KindOf(err))
	}
	metrics.FermentationOps.WithLabelValues(operation, outcome).Inc()
}

func checkStatus(field string, s entities.Status) error {
	if s != "" && !s.Valid() {
		return InvalidField(field, "status must be active or inactive")
	}
	return nil
}
