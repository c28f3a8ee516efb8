// Package wavout writes canonical-domain mono float32 audio to a 16-bit PCM
// WAV file. It is the write-side counterpart to wavsrc, used only by the
// detector's optional recording side-output (spec §6) — WAV container I/O
// otherwise remains an external collaborator.
package wavout

import "encoding/binary"

// Writer encodes canonical-domain samples at a fixed sample rate into a
// self-contained mono 16-bit PCM WAV byte slice, following the same
// RIFF/WAVE header layout as the teacher's codec/wav writer.
type Writer struct {
	SampleRate uint
}

// Encode converts samples (normalized to [-1, 1]) to 16-bit PCM and
// prepends a standard 44-byte WAV header.
func (w Writer) Encode(samples []float32) []byte {
	const bitDepth = 16
	const channels = 1

	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		data[i*2], data[i*2+1] = int16Bytes(s)
	}

	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(data)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.SampleRate))
	byteRate := w.SampleRate * channels * bitDepth / 8
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	blockAlign := uint16(channels * bitDepth / 8)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitDepth)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(data)))

	return append(header, data...)
}

func int16Bytes(s float32) (byte, byte) {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	v := int16(s * 32767)
	return byte(v), byte(v >> 8)
}
