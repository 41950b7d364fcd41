package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	domain "github.com/roasworks/attribution/internal/domain"
)

// calendarDatePattern validates that a unix-seconds interpretation lands on a
// plausible calendar date; millisecond values overflow into five-digit years.
var calendarDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// timestampExtractor is one (field, conversion) entry of the ordered
// extraction list. First extractor that yields a value wins.
type timestampExtractor func(domain.RawEvent) (int64, bool)

var timestampExtractors = []timestampExtractor{
	func(e domain.RawEvent) (int64, bool) {
		if e.CreatedAtUnixTimestamp != nil {
			return *e.CreatedAtUnixTimestamp, true
		}
		return 0, false
	},
	func(e domain.RawEvent) (int64, bool) {
		if e.UTCUnixTime != nil {
			return *e.UTCUnixTime, true
		}
		return 0, false
	},
	func(e domain.RawEvent) (int64, bool) {
		return parseISOTimestamp(e.UTCISODatetime)
	},
	func(e domain.RawEvent) (int64, bool) {
		if e.UnixDatetime != nil {
			return *e.UnixDatetime, true
		}
		return 0, false
	},
}

// EventNormalizer converts raw heterogeneous events into the canonical
// (ad_id, timestamp, date) form. It holds no state and is safe to share.
type EventNormalizer struct{}

// NewEventNormalizer constructs an EventNormalizer.
func NewEventNormalizer() *EventNormalizer {
	return &EventNormalizer{}
}

// Normalize converts one raw event. The boolean is false when the event has
// no usable ad id or no timestamp; such events are routine beacon noise and
// are dropped without an error.
func (n *EventNormalizer) Normalize(event RawEvent) (NormalizedEvent, bool) {
	adID := resolveAdID(event)
	if adID == "" || !isNumericID(adID) {
		return NormalizedEvent{}, false
	}

	var ts int64
	found := false
	for _, extract := range timestampExtractors {
		if value, ok := extract(event); ok {
			ts = value
			found = true
			break
		}
	}
	if !found {
		return NormalizedEvent{}, false
	}

	// Upstream sources disagree on the unit. A value that does not land on a
	// valid calendar date when read as seconds is assumed to be milliseconds.
	// Applied exactly once, after extraction.
	if !calendarDatePattern.MatchString(unixDate(ts)) {
		ts /= 1000
	}

	return NormalizedEvent{
		AdID:      adID,
		Timestamp: ts,
		Date:      unixDate(ts),
	}, true
}

// NormalizeAll normalizes a batch, keeping only the first-encountered event
// per distinct ad id. Order is preserved.
func (n *EventNormalizer) NormalizeAll(events []RawEvent) []NormalizedEvent {
	seen := make(map[string]struct{}, len(events))
	out := make([]NormalizedEvent, 0, len(events))
	for _, event := range events {
		normalized, ok := n.Normalize(event)
		if !ok {
			continue
		}
		if _, dup := seen[normalized.AdID]; dup {
			continue
		}
		seen[normalized.AdID] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// resolveAdID applies the ad-id precedence: an explicit ad_id is used
// verbatim; when the platform-native and secondary-tracked ids conflict, the
// secondary id wins as the more recent client-side resolution.
func resolveAdID(event RawEvent) string {
	if event.AdID != "" {
		return event.AdID
	}
	if event.HAdID != "" && event.FBAdID != "" {
		return event.HAdID
	}
	if event.HAdID != "" {
		return event.HAdID
	}
	return event.FBAdID
}

func isNumericID(id string) bool {
	value, err := strconv.ParseFloat(id, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}

func parseISOTimestamp(value string) (int64, bool) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return 0, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Unix(), true
		}
	}
	return 0, false
}

func unixDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}
