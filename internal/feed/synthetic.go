package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"secdash/internal/config"
	"secdash/internal/model"
)

var alertTitles = []string{
	"Suspicious Login Attempt",
	"Unusual File Access",
	"Port Scanning Detected",
	"Failed Authentication",
	"Configuration Change",
	"Malware Detected",
	"Unusual Network Traffic",
	"System Resource Exhaustion",
	"Unauthorized Access Attempt",
	"Data Exfiltration Attempt",
	"Suspicious Process Execution",
	"Firewall Rule Violation",
}

var anomalyTypes = []string{
	"Suspicious Port Access",
	"Large Packet Size",
	"Unusual Traffic Pattern",
	"Port Scanning",
}

var protocols = []model.Protocol{
	model.ProtocolTCP,
	model.ProtocolUDP,
	model.ProtocolICMP,
	model.ProtocolHTTP,
	model.ProtocolHTTPS,
	model.ProtocolDNS,
	model.ProtocolSSH,
}

// StartSynthetic seeds the working sets with generated demo data in place of
// a live detection feed.
func StartSynthetic(ctx context.Context, cfg *config.Manager, sinks Sinks) {
	current := cfg.Get().Feed.Synthetic
	if !current.Enabled {
		return
	}
	faker := gofakeit.New(uint64(current.Seed))
	now := time.Now().UTC()
	for _, alert := range GenerateAlerts(faker, current.Alerts, now) {
		sinks.acceptAlert(ctx, alert)
	}
	for _, record := range GenerateTraffic(faker, current.TrafficRecords, now) {
		sinks.acceptTraffic(ctx, record)
	}
	if sinks.Logger != nil {
		sinks.Logger.Info("synthetic feed seeded",
			"alerts", current.Alerts,
			"traffic_records", current.TrafficRecords,
		)
	}
}

func GenerateAlerts(faker *gofakeit.Faker, n int, now time.Time) []model.Alert {
	out := make([]model.Alert, 0, n)
	severities := []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh}
	sources := []model.Source{model.SourceNetwork, model.SourceSystem, model.SourceApplication}
	for i := 0; i < n; i++ {
		createdAt := now.Add(-time.Duration(i) * time.Hour)
		alert := model.Alert{
			ID:          uuid.NewString(),
			Title:       alertTitles[i%len(alertTitles)],
			Description: faker.Sentence(8),
			Severity:    severities[faker.IntRange(0, len(severities)-1)],
			Source:      sources[faker.IntRange(0, len(sources)-1)],
			CreatedAt:   createdAt,
			Details: model.Details{
				{Key: "detected_by", Value: faker.AppName()},
				{Key: "host", Value: faker.DomainName()},
			},
		}
		if faker.IntRange(0, 3) == 0 {
			resolvedAt := createdAt.Add(30 * time.Minute)
			alert.IsResolved = true
			alert.ResolvedAt = &resolvedAt
			alert.ResolvedBy = faker.Username()
			alert.ResolutionNotes = faker.Sentence(6)
		}
		out = append(out, alert)
	}
	return out
}

func GenerateTraffic(faker *gofakeit.Faker, n int, now time.Time) []model.TrafficRecord {
	out := make([]model.TrafficRecord, 0, n)
	for i := 0; i < n; i++ {
		anomalous := faker.IntRange(0, 9) < 2
		score := faker.Float64Range(0, 0.3)
		anomalyType := ""
		if anomalous {
			score = faker.Float64Range(0.7, 1.0)
			anomalyType = anomalyTypes[faker.IntRange(0, len(anomalyTypes)-1)]
		}
		out = append(out, model.TrafficRecord{
			ID:              uuid.NewString(),
			SourceIP:        fmt.Sprintf("192.168.%d.%d", faker.IntRange(0, 255), faker.IntRange(1, 254)),
			DestinationIP:   fmt.Sprintf("10.0.%d.%d", faker.IntRange(0, 255), faker.IntRange(1, 254)),
			SourcePort:      faker.IntRange(1024, 65535),
			DestinationPort: faker.IntRange(1, 1024),
			Protocol:        protocols[faker.IntRange(0, len(protocols)-1)],
			PacketSize:      faker.IntRange(64, 1500),
			Timestamp:       now.Add(-time.Duration(i) * time.Minute),
			IsAnomalous:     anomalous,
			AnomalyScore:    score,
			AnomalyType:     anomalyType,
		})
	}
	return out
}
