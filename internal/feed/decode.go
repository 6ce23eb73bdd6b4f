package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"secdash/internal/model"
)

type alertWire struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Severity        string        `json:"severity"`
	Source          string        `json:"source"`
	CreatedAt       string        `json:"created_at"`
	IsResolved      bool          `json:"is_resolved"`
	ResolvedAt      string        `json:"resolved_at"`
	ResolvedBy      string        `json:"resolved_by"`
	ResolutionNotes string        `json:"resolution_notes"`
	Details         model.Details `json:"details"`
}

type trafficWire struct {
	ID              string  `json:"id"`
	SourceIP        string  `json:"source_ip"`
	DestinationIP   string  `json:"destination_ip"`
	SourcePort      int     `json:"source_port"`
	DestinationPort int     `json:"destination_port"`
	Protocol        string  `json:"protocol"`
	PacketSize      int     `json:"packet_size"`
	Timestamp       string  `json:"timestamp"`
	IsAnomalous     bool    `json:"is_anomalous"`
	AnomalyScore    float64 `json:"anomaly_score"`
	AnomalyType     string  `json:"anomaly_type"`
}

func DecodeAlert(data []byte) (model.Alert, error) {
	var wire alertWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.Alert{}, err
	}
	if strings.TrimSpace(wire.Title) == "" {
		return model.Alert{}, errors.New("alert without title")
	}
	severity := model.Severity(strings.ToLower(strings.TrimSpace(wire.Severity)))
	switch severity {
	case model.SeverityLow, model.SeverityMedium, model.SeverityHigh:
	default:
		return model.Alert{}, fmt.Errorf("unknown severity %q", wire.Severity)
	}
	source := model.Source(strings.ToLower(strings.TrimSpace(wire.Source)))
	switch source {
	case model.SourceNetwork, model.SourceSystem, model.SourceApplication:
	default:
		return model.Alert{}, fmt.Errorf("unknown source %q", wire.Source)
	}
	createdAt, err := parseTimestamp(wire.CreatedAt)
	if err != nil {
		return model.Alert{}, err
	}
	alert := model.Alert{
		ID:          wire.ID,
		Title:       wire.Title,
		Description: wire.Description,
		Severity:    severity,
		Source:      source,
		CreatedAt:   createdAt,
		Details:     wire.Details,
	}
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if wire.IsResolved {
		resolvedAt := createdAt
		if wire.ResolvedAt != "" {
			if t, err := parseTimestamp(wire.ResolvedAt); err == nil {
				resolvedAt = t
			}
		}
		alert.IsResolved = true
		alert.ResolvedAt = &resolvedAt
		alert.ResolvedBy = wire.ResolvedBy
		alert.ResolutionNotes = wire.ResolutionNotes
	}
	return alert, nil
}

func DecodeTraffic(data []byte) (model.TrafficRecord, error) {
	var wire trafficWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return model.TrafficRecord{}, err
	}
	if wire.SourceIP == "" || wire.DestinationIP == "" {
		return model.TrafficRecord{}, errors.New("traffic record without endpoints")
	}
	if wire.SourcePort < 0 || wire.SourcePort > 65535 || wire.DestinationPort < 0 || wire.DestinationPort > 65535 {
		return model.TrafficRecord{}, fmt.Errorf("port out of range: %d/%d", wire.SourcePort, wire.DestinationPort)
	}
	if wire.PacketSize < 0 {
		return model.TrafficRecord{}, fmt.Errorf("negative packet size: %d", wire.PacketSize)
	}
	if wire.AnomalyScore < 0 || wire.AnomalyScore > 1 {
		return model.TrafficRecord{}, fmt.Errorf("anomaly score out of range: %v", wire.AnomalyScore)
	}
	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return model.TrafficRecord{}, err
	}
	record := model.TrafficRecord{
		ID:              wire.ID,
		SourceIP:        wire.SourceIP,
		DestinationIP:   wire.DestinationIP,
		SourcePort:      wire.SourcePort,
		DestinationPort: wire.DestinationPort,
		Protocol:        model.Protocol(strings.ToUpper(strings.TrimSpace(wire.Protocol))),
		PacketSize:      wire.PacketSize,
		Timestamp:       ts,
		IsAnomalous:     wire.IsAnomalous,
		AnomalyScore:    wire.AnomalyScore,
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.IsAnomalous {
		record.AnomalyType = wire.AnomalyType
	}
	return record, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Now().UTC(), nil
	}
	if isNumeric(value) {
		if ts, err := parseUnix(value); err == nil {
			return ts, nil
		}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

func isNumeric(value string) bool {
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return len(value) > 0
}

func parseUnix(value string) (time.Time, error) {
	if len(value) >= 13 {
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(0, ms*int64(time.Millisecond)).UTC(), nil
	}
	sec, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}
