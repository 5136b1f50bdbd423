package ugens

import "math"

// Wavetable holds one table: N sample values plus two guard samples so a
// linear-interpolating reader never branches at the wraparound (Data[N]
// == Data[0], Data[N+1] == Data[1]). Grounded on
// original_source/arco/src/wavetables.h.
type Wavetable struct {
	Data []float32
	N    int
}

func newWavetable(n int) *Wavetable {
	return &Wavetable{Data: make([]float32, n+2), N: n}
}

func (w *Wavetable) setGuards() {
	w.Data[w.N] = w.Data[0]
	w.Data[w.N+1] = w.Data[1]
}

// NewWavetableTTD builds a table directly from time-domain samples
// (create_ttd), preserving them exactly and adding the guard samples.
func NewWavetableTTD(samples []float32) *Wavetable {
	w := newWavetable(len(samples))
	copy(w.Data, samples)
	w.setGuards()
	return w
}

// schroederPhases computes the Schroeder phase for each harmonic of the
// given amplitude spectrum, the phase assignment that minimizes the
// resulting waveform's crest factor. amps[0] is the DC/fundamental
// weight per the source's harmonic indexing starting at 1.
func schroederPhases(amps []float64) []float64 {
	n := len(amps)
	phases := make([]float64, n)
	var sumSq float64
	for _, a := range amps {
		sumSq += a * a
	}
	if sumSq == 0 {
		return phases
	}
	var running float64
	for m := 0; m < n; m++ {
		phases[m] = -2 * math.Pi * running / sumSq
		running += float64(m+1) * amps[m] * amps[m]
	}
	return phases
}

// synthesize builds N time-domain samples from a harmonic amplitude and
// phase spectrum by direct cosine summation (create_table in
// wavetables.h). This runs once at table-construction time, never in
// the audio callback, so an O(N*harmonics) loop is acceptable.
func synthesize(n int, amps, phases []float64) []float32 {
	out := make([]float32, n)
	var peak float64
	for t := 0; t < n; t++ {
		var v float64
		theta := 2 * math.Pi * float64(t) / float64(n)
		for k, a := range amps {
			if a == 0 {
				continue
			}
			harm := float64(k + 1)
			v += a * math.Cos(harm*theta+phases[k])
		}
		out[t] = float32(v)
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}
	if peak > 1e-9 {
		for t := range out {
			out[t] = float32(float64(out[t]) / peak)
		}
	}
	return out
}

// NewWavetableTAS builds a table from an amplitude spectrum alone,
// assigning Schroeder phases to reduce crest factor (create_tas).
func NewWavetableTAS(n int, amps []float64) *Wavetable {
	phases := schroederPhases(amps)
	samples := synthesize(n, amps, phases)
	return NewWavetableTTD(samples)
}

// NewWavetableTCS builds a table from an explicit complex spectrum
// (amplitude plus phase per harmonic), used when the caller wants full
// control rather than Schroeder's crest-factor-minimizing assignment
// (create_tcs).
func NewWavetableTCS(n int, amps, phases []float64) *Wavetable {
	samples := synthesize(n, amps, phases)
	return NewWavetableTTD(samples)
}

// WavetableOwner manages a small set of named/indexed tables an
// oscillator (or its borrowers) can select among, matching the
// Wavetables base class's borrow/select machinery.
type WavetableOwner struct {
	tables []*Wavetable
}

// NumTables reports how many tables are installed.
func (w *WavetableOwner) NumTables() int { return len(w.tables) }

// CreateTableAt installs t at index i, growing the slice as needed.
func (w *WavetableOwner) CreateTableAt(i int, t *Wavetable) {
	for len(w.tables) <= i {
		w.tables = append(w.tables, nil)
	}
	w.tables[i] = t
}

// GetTable returns the table at index i, or nil if unset.
func (w *WavetableOwner) GetTable(i int) *Wavetable {
	if i < 0 || i >= len(w.tables) {
		return nil
	}
	return w.tables[i]
}
