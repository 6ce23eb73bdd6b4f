package model

import (
	"bytes"
	"encoding/json"
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Source string

const (
	SourceNetwork     Source = "network"
	SourceSystem      Source = "system"
	SourceApplication Source = "application"
)

type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolICMP  Protocol = "ICMP"
	ProtocolHTTP  Protocol = "HTTP"
	ProtocolHTTPS Protocol = "HTTPS"
	ProtocolDNS   Protocol = "DNS"
	ProtocolSSH   Protocol = "SSH"
)

type SessionStatus string

const (
	StatusUnauthenticated SessionStatus = "unauthenticated"
	StatusAuthenticating  SessionStatus = "authenticating"
	StatusAuthenticated   SessionStatus = "authenticated"
	StatusExpired         SessionStatus = "expired"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type Session struct {
	Status    SessionStatus `json:"status"`
	Token     string        `json:"token,omitempty"`
	User      *User         `json:"user,omitempty"`
	LastError string        `json:"last_error,omitempty"`
}

type Alert struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Severity        Severity   `json:"severity"`
	Source          Source     `json:"source"`
	CreatedAt       time.Time  `json:"created_at"`
	IsResolved      bool       `json:"is_resolved"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy      string     `json:"resolved_by,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	Details         Details    `json:"details,omitempty"`
}

type TrafficRecord struct {
	ID              string    `json:"id"`
	SourceIP        string    `json:"source_ip"`
	DestinationIP   string    `json:"destination_ip"`
	SourcePort      int       `json:"source_port"`
	DestinationPort int       `json:"destination_port"`
	Protocol        Protocol  `json:"protocol"`
	PacketSize      int       `json:"packet_size"`
	Timestamp       time.Time `json:"timestamp"`
	IsAnomalous     bool      `json:"is_anomalous"`
	AnomalyScore    float64   `json:"anomaly_score"`
	AnomalyType     string    `json:"anomaly_type,omitempty"`
}

type Detail struct {
	Key   string
	Value string
}

// Details keeps insertion order while marshaling to a plain JSON object,
// matching the wire shape the detection collaborator produces.
type Details []Detail

func (d Details) Get(key string) (string, bool) {
	for _, field := range d {
		if field.Key == key {
			return field.Value, true
		}
	}
	return "", false
}

func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Details) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	out := make(Details, 0, 4)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var val string
		if err := json.Unmarshal(raw, &val); err != nil {
			val = string(raw)
		}
		out = append(out, Detail{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}
