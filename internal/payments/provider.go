package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/roasworks/attribution/internal/domain"
)

// ErrUnsupportedProcessor is returned when the manager cannot locate a source
// for the requested processor type.
var ErrUnsupportedProcessor = errors.New("payments: unsupported processor")

// StatsSource produces the processor-side customer ledger for one calendar
// date and one account. A date with no orders yields a zero-value document,
// not an error.
type StatsSource interface {
	DailyStats(ctx context.Context, date, accountUserID string) (domain.PaymentStatsDoc, error)
}

// Manager routes ledger reads to the source registered for a processor type.
type Manager struct {
	sources       map[string]StatsSource
	defaultSource string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultSource overrides the source used when no processor type matches.
func WithDefaultSource(processor string) ManagerOption {
	return func(m *Manager) {
		m.defaultSource = processor
	}
}

// NewManager constructs a Manager over the supplied sources. Keys are
// processor types ("stripe", "paypal"). When a "stripe" source is registered
// it becomes the default unless overridden.
func NewManager(sources map[string]StatsSource, opts ...ManagerOption) (*Manager, error) {
	if len(sources) == 0 {
		return nil, errors.New("payments: at least one source is required")
	}
	copyMap := make(map[string]StatsSource, len(sources))
	for k, v := range sources {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid source registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		sources: copyMap,
	}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultSource = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolveSource(processor string) (string, StatsSource, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	if len(m.sources) == 0 {
		return "", nil, errors.New("payments: no sources registered")
	}
	if key := strings.TrimSpace(strings.ToLower(processor)); key != "" {
		if s, ok := m.sources[key]; ok {
			return key, s, nil
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultSource)); def != "" {
		if s, ok := m.sources[def]; ok {
			return def, s, nil
		}
	}
	if len(m.sources) == 1 {
		for key, s := range m.sources {
			return key, s, nil
		}
	}
	return "", nil, ErrUnsupportedProcessor
}

// DailyStats delegates to the source resolved for the processor type.
func (m *Manager) DailyStats(ctx context.Context, processor, date, accountUserID string) (domain.PaymentStatsDoc, error) {
	_, source, err := m.resolveSource(processor)
	if err != nil {
		return domain.PaymentStatsDoc{}, err
	}
	return source.DailyStats(ctx, date, accountUserID)
}
