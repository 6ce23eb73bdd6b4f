package query

import (
	"errors"
	"math"
	"testing"
	"time"

	"secdash/internal/model"
)

func testAlerts() []model.Alert {
	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	severities := []model.Severity{
		model.SeverityHigh, model.SeverityMedium, model.SeverityHigh,
		model.SeverityMedium, model.SeverityLow, model.SeverityHigh,
		model.SeverityMedium, model.SeverityHigh, model.SeverityHigh,
		model.SeverityLow, model.SeverityMedium, model.SeverityMedium,
	}
	sources := []model.Source{
		model.SourceNetwork, model.SourceSystem, model.SourceNetwork,
		model.SourceApplication, model.SourceSystem, model.SourceNetwork,
		model.SourceNetwork, model.SourceSystem, model.SourceApplication,
		model.SourceNetwork, model.SourceSystem, model.SourceNetwork,
	}
	out := make([]model.Alert, 0, 12)
	for i := 0; i < 12; i++ {
		out = append(out, model.Alert{
			ID:        string(rune('a' + i)),
			Title:     "alert",
			Severity:  severities[i],
			Source:    sources[i],
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		})
	}
	return out
}

func TestTotalMatchingIndependentOfPaging(t *testing.T) {
	records := testAlerts()
	schema := AlertSchema()
	for _, pageIndex := range []int{0, 1, 5} {
		for _, pageSize := range []int{1, 3, 10, 50} {
			page, _, err := Run(records, schema, Spec{"severity": "high"}, pageIndex, pageSize)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if page.TotalMatching != 5 {
				t.Fatalf("totalMatching = %d, want 5 (page %d size %d)", page.TotalMatching, pageIndex, pageSize)
			}
		}
	}
}

func TestHighSeverityPaging(t *testing.T) {
	records := testAlerts()
	schema := AlertSchema()
	first, _, err := Run(records, schema, Spec{"severity": "high"}, 0, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Items) != 3 || first.TotalMatching != 5 {
		t.Fatalf("page 0: got %d items, total %d", len(first.Items), first.TotalMatching)
	}
	second, _, err := Run(records, schema, Spec{"severity": "high"}, 1, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Items) != 2 || second.TotalMatching != 5 {
		t.Fatalf("page 1: got %d items, total %d", len(second.Items), second.TotalMatching)
	}
}

func TestPaginationCompleteness(t *testing.T) {
	records := testAlerts()
	schema := AlertSchema()
	spec := Spec{"severity": "medium"}
	pageSize := 2

	full, _, err := Run(records, schema, spec, 0, len(records))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := make(map[string]int)
	collected := 0
	pages := (full.TotalMatching + pageSize - 1) / pageSize
	for i := 0; i < pages; i++ {
		page, _, err := Run(records, schema, spec, i, pageSize)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, item := range page.Items {
			seen[item.ID]++
			collected++
		}
	}
	if collected != full.TotalMatching {
		t.Fatalf("collected %d items, want %d", collected, full.TotalMatching)
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("item %s appeared %d times", id, count)
		}
	}
}

func TestOutOfRangePage(t *testing.T) {
	records := testAlerts()
	page, _, err := Run(records, AlertSchema(), Spec{"severity": "high"}, 99, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(page.Items))
	}
	if page.TotalMatching != 5 {
		t.Fatalf("totalMatching = %d, want 5", page.TotalMatching)
	}
}

func TestExtremePageIndexYieldsEmptyPage(t *testing.T) {
	records := testAlerts()
	for _, pageIndex := range []int{math.MaxInt, math.MaxInt / 2, math.MaxInt/2 + 1} {
		page, _, err := Run(records, AlertSchema(), Spec{}, pageIndex, 2)
		if err != nil {
			t.Fatalf("pageIndex %d: unexpected error: %v", pageIndex, err)
		}
		if len(page.Items) != 0 {
			t.Fatalf("pageIndex %d: expected empty page, got %d items", pageIndex, len(page.Items))
		}
		if page.TotalMatching != len(records) {
			t.Fatalf("pageIndex %d: totalMatching = %d, want %d", pageIndex, page.TotalMatching, len(records))
		}
	}
}

func TestNonPositivePageSizeRejected(t *testing.T) {
	for _, pageSize := range []int{0, -1} {
		_, _, err := Run(testAlerts(), AlertSchema(), Spec{}, 0, pageSize)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("pageSize %d: got %v, want ErrInvalidArgument", pageSize, err)
		}
	}
}

func TestUnknownFilterFieldRejected(t *testing.T) {
	_, _, err := Run(testAlerts(), AlertSchema(), Spec{"owner": "me"}, 0, 10)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}
}

func TestEmptySpecFieldMatchesEverything(t *testing.T) {
	records := testAlerts()
	page, _, err := Run(records, AlertSchema(), Spec{"severity": "", "source": ""}, 0, len(records))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalMatching != len(records) {
		t.Fatalf("totalMatching = %d, want %d", page.TotalMatching, len(records))
	}
}

func TestDateRangeInclusive(t *testing.T) {
	endOfDay := time.Date(2025, 3, 10, 23, 59, 59, int(999*time.Millisecond), time.UTC)
	records := []model.Alert{
		{ID: "included", Severity: model.SeverityLow, Source: model.SourceSystem, CreatedAt: endOfDay},
		{ID: "excluded", Severity: model.SeverityLow, Source: model.SourceSystem, CreatedAt: endOfDay.Add(time.Millisecond)},
		{ID: "start", Severity: model.SeverityLow, Source: model.SourceSystem, CreatedAt: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)},
	}
	page, _, err := Run(records, AlertSchema(), Spec{"startDate": "2025-03-09", "endDate": "2025-03-10"}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalMatching != 2 {
		t.Fatalf("totalMatching = %d, want 2", page.TotalMatching)
	}
	for _, item := range page.Items {
		if item.ID == "excluded" {
			t.Fatalf("record 1ms past end of day was included")
		}
	}
}

func TestAnomalousFlagFilter(t *testing.T) {
	records := []model.TrafficRecord{
		{ID: "1", SourceIP: "192.168.1.5", Protocol: model.ProtocolTCP, IsAnomalous: true, AnomalyScore: 0.9, AnomalyType: "Port Scanning"},
		{ID: "2", SourceIP: "192.168.1.6", Protocol: model.ProtocolUDP, IsAnomalous: false, AnomalyScore: 0.1},
	}
	page, _, err := Run(records, TrafficSchema(), Spec{"isAnomalous": "false"}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalMatching != 1 || page.Items[0].ID != "2" {
		t.Fatalf("expected only the non-anomalous record, got %+v", page.Items)
	}
}

func TestIPSubstringFilter(t *testing.T) {
	records := []model.TrafficRecord{
		{ID: "1", SourceIP: "192.168.10.5", DestinationIP: "10.0.0.1", Protocol: model.ProtocolTCP},
		{ID: "2", SourceIP: "172.16.0.9", DestinationIP: "10.0.0.2", Protocol: model.ProtocolTCP},
	}
	page, _, err := Run(records, TrafficSchema(), Spec{"sourceIp": "192.168"}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.TotalMatching != 1 || page.Items[0].ID != "1" {
		t.Fatalf("substring filter failed: %+v", page.Items)
	}
}

func TestPredicatesCombineWithAnd(t *testing.T) {
	records := testAlerts()
	page, _, err := Run(records, AlertSchema(), Spec{"severity": "high", "source": "network"}, 0, len(records))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, item := range page.Items {
		if item.Severity != model.SeverityHigh || item.Source != model.SourceNetwork {
			t.Fatalf("item %s does not match both predicates", item.ID)
		}
	}
	if page.TotalMatching != 3 {
		t.Fatalf("totalMatching = %d, want 3", page.TotalMatching)
	}
}

func TestStableInputOrderPreserved(t *testing.T) {
	records := testAlerts()
	page, _, err := Run(records, AlertSchema(), Spec{"severity": "high"}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].CreatedAt.After(page.Items[i-1].CreatedAt) {
			t.Fatalf("input order not preserved")
		}
	}
}

func TestSortKey(t *testing.T) {
	records := testAlerts()
	page, _, err := Run(records, AlertSchema(), Spec{"sortBy": "created_at", "sortOrder": "asc"}, 0, len(records))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i].CreatedAt.Before(page.Items[i-1].CreatedAt) {
			t.Fatalf("ascending sort not applied")
		}
	}
	if _, _, err := Run(records, AlertSchema(), Spec{"sortBy": "nope"}, 0, 10); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("unknown sort key accepted: %v", err)
	}
}

func TestAggregatesOverFilteredSet(t *testing.T) {
	records := []model.TrafficRecord{
		{ID: "1", SourceIP: "a", Protocol: model.ProtocolTCP, IsAnomalous: true, AnomalyScore: 0.8, AnomalyType: "Port Scanning"},
		{ID: "2", SourceIP: "a", Protocol: model.ProtocolTCP, IsAnomalous: false},
		{ID: "3", SourceIP: "a", Protocol: model.ProtocolUDP, IsAnomalous: true, AnomalyScore: 0.9, AnomalyType: "Large Packet Size"},
		{ID: "4", SourceIP: "b", Protocol: model.ProtocolTCP, IsAnomalous: false},
	}
	_, agg, err := Run(records, TrafficSchema(), Spec{"sourceIp": "a"}, 0, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := agg.Rates["anomaly"]; got != 2.0/3.0 {
		t.Fatalf("anomaly rate = %v, want 2/3", got)
	}
	if agg.Counts["protocol"]["TCP"] != 2 || agg.Counts["protocol"]["UDP"] != 1 {
		t.Fatalf("protocol counts wrong: %+v", agg.Counts["protocol"])
	}
	if agg.Counts["anomaly_type"]["Port Scanning"] != 1 {
		t.Fatalf("anomaly type counts wrong: %+v", agg.Counts["anomaly_type"])
	}
}

func TestAnomalyRateZeroWhenEmpty(t *testing.T) {
	_, agg, err := Run(nil, TrafficSchema(), Spec{}, 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agg.Rates["anomaly"] != 0 {
		t.Fatalf("anomaly rate = %v, want 0", agg.Rates["anomaly"])
	}
}

func TestBucketedCountsGroupByDayAndSeverity(t *testing.T) {
	day1 := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	records := []model.Alert{
		{ID: "a", Severity: model.SeverityHigh, Source: model.SourceNetwork, CreatedAt: day1},
		{ID: "b", Severity: model.SeverityHigh, Source: model.SourceSystem, CreatedAt: day1.Add(2 * time.Hour)},
		{ID: "c", Severity: model.SeverityLow, Source: model.SourceNetwork, CreatedAt: day1.Add(4 * time.Hour)},
		{ID: "d", Severity: model.SeverityMedium, Source: model.SourceNetwork, CreatedAt: day2},
	}

	agg, total, err := Aggregate(records, AlertSchema(), Spec{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
	daily := agg.Buckets["daily"]
	if len(daily) != 2 {
		t.Fatalf("bucket count = %d, want 2", len(daily))
	}
	if daily["2025-03-09"]["high"] != 2 || daily["2025-03-09"]["low"] != 1 {
		t.Fatalf("day one breakdown = %v", daily["2025-03-09"])
	}
	if daily["2025-03-10"]["medium"] != 1 {
		t.Fatalf("day two breakdown = %v", daily["2025-03-10"])
	}
}

func TestBucketedCountsRespectFilters(t *testing.T) {
	day := time.Date(2025, 3, 9, 8, 0, 0, 0, time.UTC)
	records := []model.Alert{
		{ID: "a", Severity: model.SeverityHigh, Source: model.SourceNetwork, CreatedAt: day},
		{ID: "b", Severity: model.SeverityLow, Source: model.SourceSystem, CreatedAt: day},
	}

	agg, _, err := Aggregate(records, AlertSchema(), Spec{"source": "network"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	breakdown := agg.Buckets["daily"]["2025-03-09"]
	if breakdown["high"] != 1 || breakdown["low"] != 0 {
		t.Fatalf("filtered breakdown = %v", breakdown)
	}
}

func TestAggregateWithoutPaging(t *testing.T) {
	records := testAlerts()
	agg, total, err := Aggregate(records, AlertSchema(), Spec{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 12 {
		t.Fatalf("total = %d, want 12", total)
	}
	if agg.Counts["severity"]["high"] != 5 {
		t.Fatalf("high count = %d, want 5", agg.Counts["severity"]["high"])
	}
}
