package audioio

// flushDenormalsThreshold is conservatively above the float32 denormal
// boundary (~1.2e-38); exponential decay toward silence passes through
// this range long before it would actually underflow, so flushing here
// is early enough to avoid the slowdown denormals cause on most FPUs.
const flushDenormalsThreshold = 1e-30

// flushDenormals zero-clamps any sample whose magnitude has decayed into
// denormal range. The source sets the CPU's flush-to-zero/denormals-are-
// zero mode once at callback entry (a control-register write); Go has no
// portable way to touch MXCSR without per-arch assembly that this
// exercise cannot build or verify, so the equivalent is applied in
// software to the final mixed block each callback instead.
func flushDenormals(buf []float32) {
	for i, v := range buf {
		if v != 0 && v > -flushDenormalsThreshold && v < flushDenormalsThreshold {
			buf[i] = 0
		}
	}
}
