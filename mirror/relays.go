package mirror

import (
	"slices"

	"nodemirror/report"
)

// RelayHistory is the transition tracker for relay advertisements: a two-slot
// shift register holding the newest advertised relay set and the one before
// it. Older generations fall off the end.
type RelayHistory struct {
	slots [2][]report.RelayAddress
	n     int
}

// HistoryOf loads the tracker from a friend's advertisement state.
func HistoryOf(s report.SentLocalRelaysReport) RelayHistory {
	switch x := s.(type) {
	case report.LastSent:
		return RelayHistory{slots: [2][]report.RelayAddress{x.Relays, nil}, n: 1}
	case report.Transition:
		return RelayHistory{slots: [2][]report.RelayAddress{x.LastSent, x.BeforeLastSent}, n: 2}
	default:
		return RelayHistory{}
	}
}

// Push shifts relays in as the newest generation.
func (h RelayHistory) Push(relays []report.RelayAddress) RelayHistory {
	h.slots[1] = h.slots[0]
	h.slots[0] = slices.Clone(relays)
	h.n = min(h.n+1, len(h.slots))
	return h
}

// Report converts the tracker back into a report arm. A single generation is
// LastSent, never a Transition.
func (h RelayHistory) Report() report.SentLocalRelaysReport {
	switch h.n {
	case 0:
		return report.NeverSent{}
	case 1:
		return report.LastSent{Relays: h.slots[0]}
	default:
		return report.Transition{LastSent: h.slots[0], BeforeLastSent: h.slots[1]}
	}
}

// Generations returns the tracked relay sets, newest first.
func (h RelayHistory) Generations() [][]report.RelayAddress {
	out := make([][]report.RelayAddress, 0, h.n)
	for i := 0; i < h.n; i++ {
		out = append(out, h.slots[i])
	}
	return out
}

// Advertised reports whether relays equals one of the tracked generations.
// An observer uses this when a channel token update refers to a relay set
// that was re-advertised after the token was produced.
func (h RelayHistory) Advertised(relays []report.RelayAddress) bool {
	for _, gen := range h.Generations() {
		if slices.Equal(gen, relays) {
			return true
		}
	}
	return false
}

// AdvanceSentRelays returns the advertisement state after relays was sent.
func AdvanceSentRelays(prev report.SentLocalRelaysReport, relays []report.RelayAddress) report.SentLocalRelaysReport {
	return HistoryOf(prev).Push(relays).Report()
}
