// Package block defines the fixed scheduling constants shared by every
// other package in this module: block length, sample rate, and the time
// conversions derived from them. Grounded on original_source/arco/src's
// "BL"/"AR" compile-time constants (see prefs.h, audioio.h).
package block

// BL is the number of audio frames computed per callback iteration, the
// atomic scheduling quantum for every audio-rate ugen.
const BL = 32

// AR is the sample rate in frames per second. Fixed at compile time;
// automatic sample-rate conversion is explicitly out of scope.
const AR = 44100

// BR is the block rate in blocks per second, derived from AR and BL.
const BR = float64(AR) / float64(BL)

// RoundUpToBlock rounds n up to the next multiple of BL.
func RoundUpToBlock(n int) int {
	return (n + BL - 1) &^ (BL - 1)
}

// BlocksToFrames converts a block count to a frame count.
func BlocksToFrames(blocks int) int {
	return blocks * BL
}

// SecondsToBlocks converts a duration in seconds to a whole number of
// blocks, rounded up so the requested duration is never truncated short.
func SecondsToBlocks(seconds float64) int {
	frames := int(seconds*AR + 0.999999)
	blocks := (frames + BL - 1) / BL
	if blocks < 1 {
		blocks = 1
	}
	return blocks
}

// BlockToTime converts a block index to the time in seconds at which that
// block begins.
func BlockToTime(blockIndex int64) float64 {
	return float64(blockIndex) * float64(BL) / float64(AR)
}
