package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pagefold/pagefold/pkg/errors"
	"github.com/pagefold/pagefold/pkg/measure"
	"github.com/pagefold/pagefold/pkg/plan"
)

// SaveMeasurements persists a measurement snapshot for a document.
func SaveMeasurements(ctx context.Context, s Store, documentID string, snap measure.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "encoding measurements for %s", documentID)
	}
	if err := s.Set(ctx, MeasurementsKey(documentID), data, 0); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "saving measurements for %s", documentID)
	}
	return nil
}

// LoadMeasurements loads a document's persisted measurement snapshot.
// A missing snapshot returns an empty one, not an error.
func LoadMeasurements(ctx context.Context, s Store, documentID string) (measure.Snapshot, error) {
	data, ok, err := s.Get(ctx, MeasurementsKey(documentID))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "loading measurements for %s", documentID)
	}
	if !ok {
		return measure.Snapshot{}, nil
	}

	var snap measure.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "decoding measurements for %s", documentID)
	}
	return snap, nil
}

// SavePlan archives a committed plan for a document.
func SavePlan(ctx context.Context, s Store, documentID string, p *plan.Plan, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "encoding plan for %s", documentID)
	}
	if err := s.Set(ctx, PlanKey(documentID), data, ttl); err != nil {
		return errors.Wrap(errors.ErrCodeStore, err, "saving plan for %s", documentID)
	}
	return nil
}

// LoadPlan retrieves a document's archived plan.
func LoadPlan(ctx context.Context, s Store, documentID string) (*plan.Plan, error) {
	data, ok, err := s.Get(ctx, PlanKey(documentID))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "loading plan for %s", documentID)
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "no archived plan for %s", documentID)
	}

	p, err := plan.Unmarshal(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStore, err, "decoding plan for %s", documentID)
	}
	return p, nil
}
