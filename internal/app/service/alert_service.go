package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"portfolio_tracker/internal/app/port"
	"portfolio_tracker/internal/domain/entity"
)

// AlertService keeps the user's price alerts. Every mutation rewrites the
// persisted list under port.AlertsKey.
type AlertService struct {
	store  port.ListStore
	clock  port.Clock
	logger port.Logger

	mu     sync.Mutex
	alerts []entity.PriceAlert
}

// NewAlertService creates an empty alert list. clock may be nil.
func NewAlertService(store port.ListStore, clock port.Clock, l port.Logger) *AlertService {
	if clock == nil {
		clock = time.Now
	}
	return &AlertService{store: store, clock: clock, logger: l}
}

// Load reads the persisted alerts.
func (s *AlertService) Load(ctx context.Context) error {
	var alerts []entity.PriceAlert
	if _, err := s.store.Load(ctx, port.AlertsKey, &alerts); err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	s.mu.Lock()
	s.alerts = alerts
	s.mu.Unlock()
	s.logger.Debug("Alerts loaded", "count", len(alerts))
	return nil
}

// Add creates an active alert with a fresh id. ID, IsActive and CreatedAt of
// the input are ignored.
func (s *AlertService) Add(ctx context.Context, in entity.PriceAlert) (entity.PriceAlert, error) {
	in.Symbol = strings.ToUpper(strings.TrimSpace(in.Symbol))
	if in.Symbol == "" {
		return entity.PriceAlert{}, fmt.Errorf("%w: symbol is required", entity.ErrInvalidAlert)
	}
	if err := validateAmounts(in.HighThreshold, in.LowThreshold, in.CostBasis, in.PriceTarget); err != nil {
		return entity.PriceAlert{}, err
	}
	in.ID = uuid.NewString()
	in.IsActive = true
	in.CreatedAt = s.clock().UTC()

	err := s.mutate(ctx, func(list []entity.PriceAlert) ([]entity.PriceAlert, error) {
		return append(list, in), nil
	})
	if err != nil {
		return entity.PriceAlert{}, err
	}
	s.logger.Info("Alert added", "id", in.ID, "symbol", in.Symbol)
	return in, nil
}

// Remove deletes the alert.
func (s *AlertService) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func(list []entity.PriceAlert) ([]entity.PriceAlert, error) {
		idx := indexOfAlert(list, id)
		if idx < 0 {
			return nil, entity.ErrAlertNotFound
		}
		return append(list[:idx], list[idx+1:]...), nil
	})
}

// Toggle flips IsActive and returns the updated alert.
func (s *AlertService) Toggle(ctx context.Context, id string) (entity.PriceAlert, error) {
	var out entity.PriceAlert
	err := s.mutate(ctx, func(list []entity.PriceAlert) ([]entity.PriceAlert, error) {
		idx := indexOfAlert(list, id)
		if idx < 0 {
			return nil, entity.ErrAlertNotFound
		}
		list[idx].IsActive = !list[idx].IsActive
		out = list[idx]
		return list, nil
	})
	return out, err
}

// Update applies the set fields of upd and returns the updated alert.
func (s *AlertService) Update(ctx context.Context, id string, upd entity.AlertUpdate) (entity.PriceAlert, error) {
	var out entity.PriceAlert
	err := s.mutate(ctx, func(list []entity.PriceAlert) ([]entity.PriceAlert, error) {
		idx := indexOfAlert(list, id)
		if idx < 0 {
			return nil, entity.ErrAlertNotFound
		}
		a := list[idx]
		if upd.HighThreshold != nil {
			a.HighThreshold = *upd.HighThreshold
		}
		if upd.LowThreshold != nil {
			a.LowThreshold = *upd.LowThreshold
		}
		if upd.CostBasis != nil {
			a.CostBasis = *upd.CostBasis
		}
		if upd.PriceTarget != nil {
			a.PriceTarget = *upd.PriceTarget
		}
		if upd.EmailNotification != nil {
			a.EmailNotification = *upd.EmailNotification
		}
		if upd.IsActive != nil {
			a.IsActive = *upd.IsActive
		}
		if err := validateAmounts(a.HighThreshold, a.LowThreshold, a.CostBasis, a.PriceTarget); err != nil {
			return nil, err
		}
		list[idx] = a
		out = a
		return list, nil
	})
	return out, err
}

// List returns a copy of the alerts in creation order.
func (s *AlertService) List() []entity.PriceAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.PriceAlert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// Evaluate returns the active alerts whose condition holds for the snapshot
// prices. Unpriced symbols never trigger. An alert can trigger more than once.
func (s *AlertService) Evaluate(snap *entity.PortfolioSnapshot) []entity.AlertTrigger {
	if snap == nil {
		return nil
	}
	var out []entity.AlertTrigger
	for _, a := range s.List() {
		if !a.IsActive {
			continue
		}
		asset, ok := snap.AssetBySymbol(a.Symbol)
		if !ok || asset.Price <= 0 {
			continue
		}
		p := asset.Price
		if a.HighThreshold > 0 && p >= a.HighThreshold {
			out = append(out, entity.AlertTrigger{AlertID: a.ID, Symbol: a.Symbol, Price: p, Kind: entity.TriggerHigh})
		}
		if a.LowThreshold > 0 && p <= a.LowThreshold {
			out = append(out, entity.AlertTrigger{AlertID: a.ID, Symbol: a.Symbol, Price: p, Kind: entity.TriggerLow})
		}
		if a.PriceTarget > 0 && p >= a.PriceTarget {
			out = append(out, entity.AlertTrigger{AlertID: a.ID, Symbol: a.Symbol, Price: p, Kind: entity.TriggerTarget})
		}
	}
	return out
}

// mutate runs fn on a copy of the list and keeps the result only when it
// was persisted.
func (s *AlertService) mutate(ctx context.Context, fn func([]entity.PriceAlert) ([]entity.PriceAlert, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := make([]entity.PriceAlert, len(s.alerts))
	copy(work, s.alerts)
	next, err := fn(work)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, port.AlertsKey, next); err != nil {
		return fmt.Errorf("failed to save alerts: %w", err)
	}
	s.alerts = next
	return nil
}

func indexOfAlert(list []entity.PriceAlert, id string) int {
	for i, a := range list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func validateAmounts(values ...float64) error {
	for _, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: amounts must be non-negative numbers", entity.ErrInvalidAlert)
		}
	}
	return nil
}
