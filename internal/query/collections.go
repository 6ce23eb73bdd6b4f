package query

import (
	"time"

	"secdash/internal/model"
)

// AlertSchema fixes the filter semantics for the alert views: severity and
// source match exactly, date bounds compare against created_at.
func AlertSchema() *Schema[model.Alert] {
	return NewSchema[model.Alert]().
		Exact("severity", func(a model.Alert) string { return string(a.Severity) }).
		Exact("source", func(a model.Alert) string { return string(a.Source) }).
		Bool("isResolved", func(a model.Alert) bool { return a.IsResolved }).
		DateRange("startDate", "endDate", func(a model.Alert) time.Time { return a.CreatedAt }).
		Count("severity", func(a model.Alert) string { return string(a.Severity) }).
		Count("source", func(a model.Alert) string { return string(a.Source) }).
		Rate("resolved", func(a model.Alert) bool { return a.IsResolved }).
		Bucket("daily",
			func(a model.Alert) string { return a.CreatedAt.UTC().Format("2006-01-02") },
			func(a model.Alert) string { return string(a.Severity) }).
		Sortable("created_at", func(a, b model.Alert) bool { return a.CreatedAt.Before(b.CreatedAt) }).
		Sortable("severity", func(a, b model.Alert) bool { return severityRank(a.Severity) < severityRank(b.Severity) })
}

// TrafficSchema fixes the filter semantics for the traffic view: IP fields
// match by case-sensitive substring, protocol and the anomaly flag exactly.
func TrafficSchema() *Schema[model.TrafficRecord] {
	return NewSchema[model.TrafficRecord]().
		Contains("sourceIp", func(r model.TrafficRecord) string { return r.SourceIP }).
		Contains("destinationIp", func(r model.TrafficRecord) string { return r.DestinationIP }).
		Exact("protocol", func(r model.TrafficRecord) string { return string(r.Protocol) }).
		Bool("isAnomalous", func(r model.TrafficRecord) bool { return r.IsAnomalous }).
		DateRange("startDate", "endDate", func(r model.TrafficRecord) time.Time { return r.Timestamp }).
		Count("protocol", func(r model.TrafficRecord) string { return string(r.Protocol) }).
		Count("anomaly_type", func(r model.TrafficRecord) string { return r.AnomalyType }).
		Rate("anomaly", func(r model.TrafficRecord) bool { return r.IsAnomalous }).
		Sortable("timestamp", func(a, b model.TrafficRecord) bool { return a.Timestamp.Before(b.Timestamp) }).
		Sortable("packet_size", func(a, b model.TrafficRecord) bool { return a.PacketSize < b.PacketSize })
}

func severityRank(s model.Severity) int {
	switch s {
	case model.SeverityHigh:
		return 3
	case model.SeverityMedium:
		return 2
	case model.SeverityLow:
		return 1
	default:
		return 0
	}
}
