package feed

import (
	"context"
	"log/slog"

	"secdash/internal/alerts"
	"secdash/internal/model"
	"secdash/internal/storage"
	"secdash/internal/traffic"
)

// Sinks are the working sets the detection collaborator feeds, plus optional
// snapshot write-through.
type Sinks struct {
	Alerts    *alerts.Store
	Traffic   *traffic.Store
	Snapshots storage.Store
	Logger    *slog.Logger
}

func (s Sinks) acceptAlert(ctx context.Context, alert model.Alert) {
	if s.Alerts != nil {
		s.Alerts.Add(alert)
	}
	if s.Snapshots != nil {
		if err := s.Snapshots.SaveAlert(ctx, alert); err != nil && s.Logger != nil {
			s.Logger.Warn("alert snapshot write failed", "id", alert.ID, "err", err)
		}
	}
}

func (s Sinks) acceptTraffic(ctx context.Context, record model.TrafficRecord) {
	if s.Traffic != nil {
		s.Traffic.Add(record)
	}
	if s.Snapshots != nil {
		if err := s.Snapshots.SaveTraffic(ctx, record); err != nil && s.Logger != nil {
			s.Logger.Warn("traffic snapshot write failed", "id", record.ID, "err", err)
		}
	}
}

// Hydrate restores the working sets from snapshot storage at startup.
func Hydrate(ctx context.Context, store storage.Store, sinks Sinks, trafficLimit int) error {
	if store == nil {
		return nil
	}
	loadedAlerts, err := store.LoadAlerts(ctx)
	if err != nil {
		return err
	}
	for _, alert := range loadedAlerts {
		if sinks.Alerts != nil {
			sinks.Alerts.Add(alert)
		}
	}
	loadedTraffic, err := store.LoadTraffic(ctx, trafficLimit)
	if err != nil {
		return err
	}
	for _, record := range loadedTraffic {
		if sinks.Traffic != nil {
			sinks.Traffic.Add(record)
		}
	}
	if sinks.Logger != nil {
		sinks.Logger.Info("working sets hydrated",
			"alerts", len(loadedAlerts),
			"traffic", len(loadedTraffic),
		)
	}
	return nil
}
