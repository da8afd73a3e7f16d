package service

import (
	"context"
	"errors"
	"testing"

	"portfolio_tracker/internal/domain/entity"
	"portfolio_tracker/internal/infrastructure/storage"
	"portfolio_tracker/internal/pkg/logger"
)

func newTestAlertService(t *testing.T, dir string) *AlertService {
	t.Helper()
	store, err := storage.NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	return NewAlertService(store, fixedClock, logger.NewNop())
}

func ptr[T any](v T) *T { return &v }

func TestAlertServiceLifecycle(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s := newTestAlertService(t, dir)

	a, err := s.Add(ctx, entity.PriceAlert{Symbol: " eth ", HighThreshold: 3000, LowThreshold: 2000, EmailNotification: true})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if a.ID == "" || a.Symbol != "ETH" || !a.IsActive || !a.CreatedAt.Equal(fixedNow) {
		t.Errorf("alert = %+v", a)
	}

	toggled, err := s.Toggle(ctx, a.ID)
	if err != nil || toggled.IsActive {
		t.Errorf("Toggle() = %+v, %v", toggled, err)
	}

	updated, err := s.Update(ctx, a.ID, entity.AlertUpdate{PriceTarget: ptr(4000.0), IsActive: ptr(true)})
	if err != nil {
		t.Fatal(err)
	}
	if updated.PriceTarget != 4000 || !updated.IsActive || updated.HighThreshold != 3000 {
		t.Errorf("updated = %+v", updated)
	}

	reloaded := newTestAlertService(t, dir)
	if err := reloaded.Load(ctx); err != nil {
		t.Fatal(err)
	}
	list := reloaded.List()
	if len(list) != 1 || list[0].PriceTarget != 4000 {
		t.Fatalf("reloaded = %+v", list)
	}

	if err := reloaded.Remove(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := reloaded.Remove(ctx, a.ID); !errors.Is(err, entity.ErrAlertNotFound) {
		t.Errorf("Remove() error = %v", err)
	}
	if _, err := reloaded.Toggle(ctx, "missing"); !errors.Is(err, entity.ErrAlertNotFound) {
		t.Errorf("Toggle() error = %v", err)
	}
}

func TestAlertServiceValidation(t *testing.T) {
	s := newTestAlertService(t, t.TempDir())
	ctx := context.Background()

	if _, err := s.Add(ctx, entity.PriceAlert{}); !errors.Is(err, entity.ErrInvalidAlert) {
		t.Errorf("empty symbol error = %v", err)
	}
	if _, err := s.Add(ctx, entity.PriceAlert{Symbol: "ETH", LowThreshold: -1}); !errors.Is(err, entity.ErrInvalidAlert) {
		t.Errorf("negative threshold error = %v", err)
	}

	a, err := s.Add(ctx, entity.PriceAlert{Symbol: "ETH", HighThreshold: 10})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Update(ctx, a.ID, entity.AlertUpdate{HighThreshold: ptr(-5.0)}); !errors.Is(err, entity.ErrInvalidAlert) {
		t.Errorf("Update() error = %v", err)
	}
	if got := s.List()[0].HighThreshold; got != 10 {
		t.Errorf("failed update changed the alert: %v", got)
	}
}

func TestAlertServiceEvaluate(t *testing.T) {
	s := newTestAlertService(t, t.TempDir())
	ctx := context.Background()

	high, _ := s.Add(ctx, entity.PriceAlert{Symbol: "ETH", HighThreshold: 2500, PriceTarget: 2900})
	low, _ := s.Add(ctx, entity.PriceAlert{Symbol: "LINK", LowThreshold: 20})
	inactive, _ := s.Add(ctx, entity.PriceAlert{Symbol: "ETH", HighThreshold: 1})
	if _, err := s.Toggle(ctx, inactive.ID); err != nil {
		t.Fatal(err)
	}
	s.Add(ctx, entity.PriceAlert{Symbol: "UNI", LowThreshold: 100})

	snap := &entity.PortfolioSnapshot{Assets: []entity.Asset{
		{Symbol: "ETH", Price: 3000},
		{Symbol: "LINK", Price: 14.5},
		{Symbol: "UNI", Price: 0},
	}}
	got := s.Evaluate(snap)
	if len(got) != 3 {
		t.Fatalf("triggers = %+v", got)
	}
	want := []entity.AlertTrigger{
		{AlertID: high.ID, Symbol: "ETH", Price: 3000, Kind: entity.TriggerHigh},
		{AlertID: high.ID, Symbol: "ETH", Price: 3000, Kind: entity.TriggerTarget},
		{AlertID: low.ID, Symbol: "LINK", Price: 14.5, Kind: entity.TriggerLow},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("trigger %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if s.Evaluate(nil) != nil {
		t.Error("nil snapshot should yield no triggers")
	}
}
