package intent

import (
	"sync"
	"time"

	"trackguard/pkg/domain"
)

// TemporalConfig tunes the temporal risk term.
type TemporalConfig struct {
	// Window is how far back repeated anomalies count.
	Window time.Duration
	// RepeatCount is how many prior above-suspicious classifications inside
	// the window trigger the full-scale repeat term.
	RepeatCount int
	// RepeatScore is the temporal score for a repeat-anomaly zone.
	RepeatScore float64
	// NightScore applies during night hours (22:00-05:00), EarlyScore during
	// early morning (05:00-07:00); tampering historically clusters there.
	NightScore float64
	EarlyScore float64
}

// DefaultTemporalConfig returns the production tuning.
func DefaultTemporalConfig() TemporalConfig {
	return TemporalConfig{
		Window:      10 * time.Minute,
		RepeatCount: 2,
		RepeatScore: 100,
		NightScore:  50,
		EarlyScore:  25,
	}
}

type historyRecord struct {
	at   time.Time
	risk float64
}

// history tracks recent per-zone classification outcomes for the
// repeated-anomaly escalation term.
type history struct {
	cfg        TemporalConfig
	suspicious float64

	mu    sync.Mutex
	zones map[domain.ZoneID][]historyRecord
}

func newHistory(cfg TemporalConfig, suspiciousThreshold float64) *history {
	return &history{
		cfg:        cfg,
		suspicious: suspiciousThreshold,
		zones:      make(map[domain.ZoneID][]historyRecord),
	}
}

// note records a completed classification for the zone.
func (h *history) note(zone domain.ZoneID, at time.Time, risk float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.zones[zone] = append(h.prune(zone, at), historyRecord{at: at, risk: risk})
}

// temporalScore returns the 0..100 temporal term for a zone at the given
// time. Repeated above-suspicious classifications inside the window dominate;
// otherwise time of day sets the baseline.
func (h *history) temporalScore(zone domain.ZoneID, at time.Time) float64 {
	h.mu.Lock()
	records := h.prune(zone, at)
	h.zones[zone] = records
	h.mu.Unlock()

	repeats := 0
	for _, r := range records {
		if r.risk >= h.suspicious {
			repeats++
		}
	}
	if repeats >= h.cfg.RepeatCount {
		return h.cfg.RepeatScore
	}

	switch hour := at.Hour(); {
	case hour >= 22 || hour < 5:
		return h.cfg.NightScore
	case hour >= 5 && hour < 7:
		return h.cfg.EarlyScore
	default:
		return 0
	}
}

// prune drops records older than the window. Caller holds h.mu.
func (h *history) prune(zone domain.ZoneID, at time.Time) []historyRecord {
	records := h.zones[zone]
	cutoff := at.Add(-h.cfg.Window)
	i := 0
	for i < len(records) && records[i].at.Before(cutoff) {
		i++
	}
	return records[i:]
}
