package services

import (
	"testing"

	domain "github.com/roasworks/attribution/internal/domain"
)

func i64(v int64) *int64 { return &v }

func TestNormalizeAdIDPrecedence(t *testing.T) {
	n := NewEventNormalizer()

	cases := []struct {
		name  string
		event domain.RawEvent
		want  string
	}{
		{"explicit ad_id wins", domain.RawEvent{AdID: "111", FBAdID: "222", HAdID: "333", UTCUnixTime: i64(1651000000)}, "111"},
		{"secondary wins on conflict", domain.RawEvent{FBAdID: "222", HAdID: "333", UTCUnixTime: i64(1651000000)}, "333"},
		{"equal ids use either", domain.RawEvent{FBAdID: "222", HAdID: "222", UTCUnixTime: i64(1651000000)}, "222"},
		{"platform id alone", domain.RawEvent{FBAdID: "222", UTCUnixTime: i64(1651000000)}, "222"},
		{"secondary id alone", domain.RawEvent{HAdID: "333", UTCUnixTime: i64(1651000000)}, "333"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			normalized, ok := n.Normalize(tc.event)
			if !ok {
				t.Fatalf("expected event to normalize")
			}
			if normalized.AdID != tc.want {
				t.Fatalf("expected ad id %q, got %q", tc.want, normalized.AdID)
			}
		})
	}
}

func TestNormalizeTimestampPrecedence(t *testing.T) {
	n := NewEventNormalizer()

	event := domain.RawEvent{
		AdID:                   "123",
		CreatedAtUnixTimestamp: i64(1651000000),
		UTCUnixTime:            i64(1650000000),
		UTCISODatetime:         "2022-04-01T00:00:00Z",
		UnixDatetime:           i64(1640000000),
	}
	normalized, ok := n.Normalize(event)
	if !ok {
		t.Fatalf("expected event to normalize")
	}
	if normalized.Timestamp != 1651000000 {
		t.Fatalf("expected created_at_unix_timestamp to win, got %d", normalized.Timestamp)
	}

	event.CreatedAtUnixTimestamp = nil
	normalized, _ = n.Normalize(event)
	if normalized.Timestamp != 1650000000 {
		t.Fatalf("expected utc_unix_time next, got %d", normalized.Timestamp)
	}

	event.UTCUnixTime = nil
	normalized, _ = n.Normalize(event)
	if normalized.Timestamp != 1648771200 {
		t.Fatalf("expected iso datetime next, got %d", normalized.Timestamp)
	}

	event.UTCISODatetime = ""
	normalized, _ = n.Normalize(event)
	if normalized.Timestamp != 1640000000 {
		t.Fatalf("expected unix_datetime fallback, got %d", normalized.Timestamp)
	}
}

func TestNormalizeMillisecondCorrection(t *testing.T) {
	n := NewEventNormalizer()

	seconds, ok := n.Normalize(domain.RawEvent{AdID: "1", UTCUnixTime: i64(1651000000)})
	if !ok {
		t.Fatalf("seconds event should normalize")
	}
	millis, ok := n.Normalize(domain.RawEvent{AdID: "1", UTCUnixTime: i64(1651000000000)})
	if !ok {
		t.Fatalf("millisecond event should normalize")
	}

	if seconds.Timestamp != millis.Timestamp {
		t.Fatalf("expected identical timestamps, got %d and %d", seconds.Timestamp, millis.Timestamp)
	}
	if seconds.Date != millis.Date {
		t.Fatalf("expected identical dates, got %q and %q", seconds.Date, millis.Date)
	}
	if seconds.Date != "2022-04-26" {
		t.Fatalf("unexpected date %q", seconds.Date)
	}
}

func TestNormalizeDiscards(t *testing.T) {
	n := NewEventNormalizer()

	if _, ok := n.Normalize(domain.RawEvent{UTCUnixTime: i64(1651000000)}); ok {
		t.Fatalf("expected discard without ad id")
	}
	if _, ok := n.Normalize(domain.RawEvent{AdID: "not-a-number", UTCUnixTime: i64(1651000000)}); ok {
		t.Fatalf("expected discard for non numeric ad id")
	}
	if _, ok := n.Normalize(domain.RawEvent{AdID: "NaN", UTCUnixTime: i64(1651000000)}); ok {
		t.Fatalf("expected discard for NaN ad id")
	}
	if _, ok := n.Normalize(domain.RawEvent{AdID: "123"}); ok {
		t.Fatalf("expected discard without any timestamp field")
	}
}

func TestNormalizeAllKeepsFirstPerAd(t *testing.T) {
	n := NewEventNormalizer()

	events := []domain.RawEvent{
		{AdID: "1", UTCUnixTime: i64(10)},
		{AdID: "2", UTCUnixTime: i64(5)},
		{AdID: "1", UTCUnixTime: i64(20)},
		{AdID: "junk"},
	}
	out := n.NormalizeAll(events)
	if len(out) != 2 {
		t.Fatalf("expected 2 normalized events, got %d", len(out))
	}
	if out[0].AdID != "1" || out[0].Timestamp != 10 {
		t.Fatalf("expected first-encountered event for ad 1, got %+v", out[0])
	}
	if out[1].AdID != "2" || out[1].Timestamp != 5 {
		t.Fatalf("unexpected second event: %+v", out[1])
	}
}
