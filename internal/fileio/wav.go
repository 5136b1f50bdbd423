// Package fileio implements the file-I/O worker: a goroutine
// polling its own inbox at a relaxed cadence, performing blocking reads
// and writes of 16-bit frames, and handing audio blocks to/from the
// audio thread by pointer. Grounded on
// original_source/arco/src/{fileio,strplay}.h. No available library does
// raw PCM WAV I/O, so this file is a small standard-library reader/
// writer; everything around it (the worker goroutine, the protocol
// state machine) follows the same concurrency idioms as the rest of
// this package.
package fileio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// WavReader reads interleaved 16-bit PCM samples from a canonical WAV
// file.
type WavReader struct {
	f          *os.File
	Channels   int
	SampleRate int
	dataStart  int64
	dataLen    int64
	pos        int64 // byte offset into the data chunk
}

// OpenWavReader opens path and parses its fmt/data chunk headers.
func OpenWavReader(path string) (*WavReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &WavReader{f: f}
	if err := r.parseHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *WavReader) parseHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(r.f, riff[:]); err != nil {
		return fmt.Errorf("wav: reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("wav: not a RIFF/WAVE file")
	}
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r.f, hdr[:]); err != nil {
			return fmt.Errorf("wav: reading chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r.f, body); err != nil {
				return fmt.Errorf("wav: reading fmt chunk: %w", err)
			}
			r.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			r.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
		case "data":
			r.dataStart, _ = r.f.Seek(0, io.SeekCurrent)
			r.dataLen = size
			return nil
		default:
			if _, err := r.f.Seek(size+size%2, io.SeekCurrent); err != nil {
				return err
			}
		}
	}
}

// SeekFrame positions the reader at the given frame (sample group)
// index.
func (r *WavReader) SeekFrame(frame int64) error {
	byteOff := frame * int64(r.Channels) * 2
	r.pos = byteOff
	_, err := r.f.Seek(r.dataStart+byteOff, io.SeekStart)
	return err
}

// ReadFrames reads up to n frames of interleaved int16 samples into buf
// (which must have room for n*Channels int16s) and reports how many
// frames were actually read and whether the end of the data chunk was
// reached.
func (r *WavReader) ReadFrames(buf []int16, n int) (framesRead int, last bool, err error) {
	remaining := r.dataLen - r.pos
	maxFrames := remaining / int64(r.Channels) / 2
	if int64(n) > maxFrames {
		n = int(maxFrames)
		last = true
	}
	if n <= 0 {
		return 0, true, nil
	}
	raw := make([]byte, n*r.Channels*2)
	rn, err := io.ReadFull(r.f, raw)
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, true, fmt.Errorf("wav: read: %w", err)
	}
	framesRead = rn / (r.Channels * 2)
	for i := 0; i < framesRead*r.Channels; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[2*i : 2*i+2]))
	}
	r.pos += int64(rn)
	return framesRead, last || r.pos >= r.dataLen, nil
}

// Close releases the underlying file.
func (r *WavReader) Close() error { return r.f.Close() }

// WavWriter writes interleaved 16-bit PCM samples to a canonical WAV
// file, patching the header lengths on Close.
type WavWriter struct {
	f          *os.File
	Channels   int
	SampleRate int
	dataBytes  int64
}

// CreateWavWriter creates path and writes a placeholder header.
func CreateWavWriter(path string, channels, sampleRate int) (*WavWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &WavWriter{f: f, Channels: channels, SampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WavWriter) writeHeader() error {
	blockAlign := w.Channels * 2
	byteRate := w.SampleRate * blockAlign
	hdr := make([]byte, 44)
	copy(hdr[0:4], "RIFF")
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], 16)
	copy(hdr[36:40], "data")
	_, err := w.f.Write(hdr)
	return err
}

// WriteFrames appends n frames of interleaved int16 samples.
func (w *WavWriter) WriteFrames(buf []int16, n int) error {
	raw := make([]byte, n*w.Channels*2)
	for i := 0; i < n*w.Channels; i++ {
		binary.LittleEndian.PutUint16(raw[2*i:2*i+2], uint16(buf[i]))
	}
	if _, err := w.f.Write(raw); err != nil {
		return err
	}
	w.dataBytes += int64(len(raw))
	return nil
}

// Close patches the RIFF/data chunk sizes and closes the file.
func (w *WavWriter) Close() error {
	var sizes [4]byte
	binary.LittleEndian.PutUint32(sizes[:], uint32(36+w.dataBytes))
	if _, err := w.f.WriteAt(sizes[:], 4); err != nil {
		w.f.Close()
		return err
	}
	binary.LittleEndian.PutUint32(sizes[:], uint32(w.dataBytes))
	if _, err := w.f.WriteAt(sizes[:], 40); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
