package ugens

import (
	"github.com/rbdannenberg/arco-sub000/internal/block"
	"github.com/rbdannenberg/arco-sub000/internal/ugen"
)

// phaseOne is the fixed-point scale representing exactly one full
// cycle: a phase accumulator of phaseOne wraps back to 0. Storing phase
// as a fraction of a cycle (rather than a sample index) is what lets
// Tableosc switch between differently sized tables without a phase
// discontinuity.
const phaseOne = uint64(1) << 32

// Tableosc is a wavetable oscillator. It owns (or borrows) a
// WavetableOwner holding one or more tables selected by index, and reads
// through a 64-bit fixed-point phase accumulator. Grounded on
// original_source/arco/src/tableosc.h.
type Tableosc struct {
	ugen.Base
	owner     *WavetableOwner
	lender    *Tableosc // non-nil when borrowing another's tables
	which     int
	phase     []uint64 // one accumulator per channel
	freq, amp ugen.Ugen
	prevFreq  []float32
	prevAmp   []float32
}

func (t *Tableosc) ClassName() string { return "tableosc" }

// NewTableosc constructs an oscillator with its own table owner.
func NewTableosc(id, chans int, freq, amp ugen.Ugen) *Tableosc {
	t := &Tableosc{owner: &WavetableOwner{}, freq: freq, amp: amp}
	t.Init(id, ugen.Audio, chans, t, func() {
		t.freq.Unref()
		t.amp.Unref()
		if t.lender != nil {
			t.lender.Unref()
		}
	})
	t.prevFreq = make([]float32, chans)
	t.prevAmp = make([]float32, chans)
	t.phase = make([]uint64, chans)
	freq.Ref()
	amp.Ref()
	return t
}

// Borrow shares lender's tables instead of owning any, holding a strong
// reference on the lender so its storage outlives every borrower
//.
func (t *Tableosc) Borrow(lender *Tableosc) {
	lender.Ref()
	t.lender = lender
	t.owner = lender.owner
}

// CreateTAS/CreateTCS/CreateTTD install a new table at index i built
// from an amplitude spectrum, complex spectrum, or raw time-domain
// samples respectively.
func (t *Tableosc) CreateTAS(i, n int, amps []float64) {
	t.owner.CreateTableAt(i, NewWavetableTAS(n, amps))
}
func (t *Tableosc) CreateTCS(i, n int, amps, phases []float64) {
	t.owner.CreateTableAt(i, NewWavetableTCS(n, amps, phases))
}
func (t *Tableosc) CreateTTD(i int, samples []float32) {
	t.owner.CreateTableAt(i, NewWavetableTTD(samples))
}

// Select changes which table is read; phase is left untouched since it
// is already expressed independent of table length.
func (t *Tableosc) Select(i int) { t.which = i }

// SetPhase resets every channel's phase accumulator to a given fraction
// of a cycle in [0, 1).
func (t *Tableosc) SetPhase(frac float64) {
	p := uint64(frac * float64(phaseOne))
	for i := range t.phase {
		t.phase[i] = p
	}
}

func (t *Tableosc) RealRun(currentBlock int64) {
	table := t.owner.GetTable(t.which)
	out := t.Output()
	if table == nil {
		for i := range out {
			out[i] = 0
		}
		t.freq.Run(currentBlock)
		t.amp.Run(currentBlock)
		return
	}

	fs := t.freq.Run(currentBlock)
	as := t.amp.Run(currentBlock)
	chans := t.Chans()
	bl := block.BL
	n := float64(table.N)
	data := table.Data
	fAudio := t.freq.Rate() == ugen.Audio
	aAudio := t.amp.Rate() == ugen.Audio
	fchans := t.freq.Chans()
	achans := t.amp.Chans()

	// ugen.RateKey(t.freq.Rate(), t.amp.Rate()) would select one of four
	// specialized inner loops in the source; here the fAudio/aAudio
	// branches below cover the same four combinations without a
	// separate function per combination.

	for c := 0; c < chans; c++ {
		fc := c % fchans
		ac := c % achans
		var freqRamp, ampRamp [block.BL]float32
		if fAudio {
			copy(freqRamp[:], fs[fc*bl:fc*bl+bl])
		} else {
			t.prevFreq[c] = rampBlockParam(freqRamp[:], t.prevFreq[c], fs[fc])
		}
		if aAudio {
			copy(ampRamp[:], as[ac*bl:ac*bl+bl])
		} else {
			t.prevAmp[c] = rampBlockParam(ampRamp[:], t.prevAmp[c], as[ac])
		}
		phase := t.phase[c] % phaseOne
		for f := 0; f < bl; f++ {
			pos := (float64(phase) / float64(phaseOne)) * n
			idx := int(pos)
			frac := float32(pos - float64(idx))
			v := data[idx] + frac*(data[idx+1]-data[idx])
			out[c*bl+f] = v * ampRamp[f]
			incr := uint64((float64(freqRamp[f]) / float64(block.AR)) * float64(phaseOne))
			phase = (phase + incr) % phaseOne
		}
		t.phase[c] = phase
	}

	if t.HasFlag(ugen.CanTerminate) && (t.freq.HasFlag(ugen.Terminated) || t.amp.HasFlag(ugen.Terminated)) {
		t.Terminate(0)
	}
}
