package ugens

import "github.com/rbdannenberg/arco-sub000/internal/block"

// copyFanWrap writes dstChans*BL samples into dst (audio rate) by
// reading from src, which has srcChans channels at srcRate. Channel
// adaptation follows : a mono source fans out to every
// destination channel; otherwise destination channel c reads source
// channel c % srcChans, so a source with fewer channels repeats and
// source channels at or beyond dstChans are not read (used by Thru and
// by Sum's contributors). accumulate selects overwrite (false) vs.
// add-in-place (true).
func copyFanWrap(dst []float32, dstChans int, src []float32, srcChans int, srcAudioRate bool, accumulate bool) {
	bl := block.BL
	for c := 0; c < dstChans; c++ {
		sc := c
		if srcChans == 1 {
			sc = 0
		} else {
			sc = c % srcChans
		}
		for f := 0; f < bl; f++ {
			var v float32
			if srcAudioRate {
				v = src[sc*bl+f]
			} else {
				v = src[sc]
			}
			idx := c*bl + f
			if accumulate {
				dst[idx] += v
			} else {
				dst[idx] = v
			}
		}
	}
}

// rampBlockParam linearly interpolates a block-rate parameter across one
// block's BL samples, from prev (the value at the end of the previous
// block) to cur (the new block-rate value), writing into out (length
// BL). This is the "ramp a fast copy of the block parameter" rule in
// *block combinations. The first sample is exactly prev and the last is
// exactly cur, so a change takes effect fully within one block with no
// residual jump into the next.
// Returns the value to carry forward as prev for the next block.
func rampBlockParam(out []float32, prev, cur float32) float32 {
	bl := len(out)
	if bl == 1 {
		out[0] = cur
		return cur
	}
	incr := (cur - prev) / float32(bl-1)
	for i := 0; i < bl; i++ {
		out[i] = prev + float32(i)*incr
	}
	return cur
}
