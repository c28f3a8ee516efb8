/*
NAME
  serialize.go

DESCRIPTION
  serialize.go implements the binary encode/decode of Ref and Model
  artifacts and their atomic file I/O.

LICENSE
  Copyright (C) 2026 Wakespot. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of Wakespot.
*/

package wakeword

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"github.com/wakespot/wakespot/mfcc"
)

// Wire format, per spec §6: 4-byte magic "RPW1", 1-byte kind (0=Ref,
// 1=Model), then a length-prefixed payload of the artifact fields, followed
// by a trailing 4-byte big-endian CRC32 (IEEE polynomial) computed over
// every preceding byte, mirroring the checksum-trailer convention the
// teacher uses for its own binary container tables. All multi-byte payload
// values are little-endian; the trailing CRC field is big-endian to match
// that convention. Decode rejects a mismatched CRC before dispatching on
// kind. Unknown trailing bytes after the CRC are ignored for forward
// compatibility.
const (
	magic     = "RPW1"
	kindRef   = byte(0)
	kindModel = byte(1)
	crcLen    = 4
)

// Encode serializes a Scorer (a *Ref or *Model) to the wire format.
func Encode(w Scorer) ([]byte, error) {
	var kind byte
	var payload []byte
	var err error

	switch v := w.(type) {
	case *Ref:
		kind = kindRef
		payload, err = encodeRefPayload(v)
	case *Model:
		kind = kindModel
		payload, err = encodeModelPayload(v)
	default:
		return nil, fmt.Errorf("%w: unknown wakeword type %T", ErrInvalidArtifact, w)
	}
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	buf.WriteString(magic)
	buf.WriteByte(kind)
	writeUint32(buf, uint32(len(payload)))
	buf.Write(payload)

	var crc [crcLen]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(buf.Bytes()))
	buf.Write(crc[:])
	return buf.Bytes(), nil
}

// Decode parses the wire format, returning the concrete *Ref or *Model.
func Decode(r io.Reader) (Scorer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: reading artifact: %v", ErrInvalidArtifact, err)
	}
	headerLen := len(magic) + 1 + 4
	if len(data) < headerLen+crcLen {
		return nil, fmt.Errorf("%w: artifact too short", ErrInvalidArtifact)
	}

	// The CRC sits right after the payload; any bytes beyond it are ignored.
	end := uint64(headerLen) + uint64(binary.LittleEndian.Uint32(data[len(magic)+1:headerLen]))
	if end+crcLen > uint64(len(data)) {
		return nil, fmt.Errorf("%w: artifact truncated", ErrInvalidArtifact)
	}
	body := data[:end]
	wantCRC := binary.BigEndian.Uint32(data[end : end+crcLen])
	if gotCRC := crc32.ChecksumIEEE(body); gotCRC != wantCRC {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidArtifact)
	}

	br := bytes.NewReader(body)

	hdr := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrInvalidArtifact, err)
	}
	if string(hdr[:len(magic)]) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidArtifact)
	}
	kind := hdr[len(magic)]

	length, err := readUint32(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload length: %v", ErrInvalidArtifact, err)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrInvalidArtifact, err)
	}

	switch kind {
	case kindRef:
		return decodeRefPayload(payload)
	case kindModel:
		return decodeModelPayload(payload)
	default:
		return nil, fmt.Errorf("%w: unknown kind byte %d", ErrInvalidArtifact, kind)
	}
}

// Save atomically writes data to path by writing to a temp file in the same
// directory and renaming over the destination, per spec §6.
func Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".wakeword-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	return nil
}

// LoadFile reads and decodes an artifact file.
func LoadFile(path string) (Scorer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	defer f.Close()
	return Decode(f)
}

func encodeRefPayload(r *Ref) ([]byte, error) {
	buf := new(bytes.Buffer)
	writeString(buf, r.WName)
	writeFloat64(buf, r.Threshold)
	writeFloat64(buf, r.AvgThreshold)
	writeUint16(buf, r.MFCCSizeField)
	writeFloat64(buf, r.RMSLevelField)
	writeInt32(buf, int32(r.Mode))
	writeFloat64(buf, r.ScoreRef)

	writeUint32(buf, uint32(len(r.Templates)))
	for _, t := range r.Templates {
		writeWindow(buf, t)
	}
	return buf.Bytes(), nil
}

func decodeRefPayload(payload []byte) (*Ref, error) {
	br := bytes.NewReader(payload)
	name, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrInvalidArtifact, err)
	}
	threshold, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	avgThreshold, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	mfccSize, err := readUint16(br)
	if err != nil {
		return nil, err
	}
	rmsLevel, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	mode, err := readInt32(br)
	if err != nil {
		return nil, err
	}
	scoreRef, err := readFloat64(br)
	if err != nil {
		return nil, err
	}

	count, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	templates := make([]mfcc.Window, count)
	for i := range templates {
		w, err := readWindow(br)
		if err != nil {
			return nil, fmt.Errorf("%w: template %d: %v", ErrInvalidArtifact, i, err)
		}
		templates[i] = w
	}

	return &Ref{
		WName:         name,
		Threshold:     threshold,
		AvgThreshold:  avgThreshold,
		MFCCSizeField: mfccSize,
		RMSLevelField: rmsLevel,
		Templates:     templates,
		Mode:          ScoreMode(mode),
		ScoreRef:      scoreRef,
	}, nil
}

func encodeModelPayload(m *Model) ([]byte, error) {
	buf := new(bytes.Buffer)
	writeString(buf, m.MName)
	writeFloat64(buf, m.Threshold)
	writeFloat64(buf, m.AvgThreshold)
	writeUint16(buf, m.MFCCSizeField)
	writeFloat64(buf, m.RMSLevelField)
	writeInt32(buf, int32(m.Type))
	writeInt32(buf, int32(m.TrainWindowSize))
	writeFloat64(buf, m.ScoreRef)

	writeUint32(buf, uint32(len(m.Labels)))
	for _, l := range m.Labels {
		writeString(buf, l)
	}

	writeUint32(buf, uint32(len(m.Weights)))
	for _, l := range m.Weights {
		writeInt32(buf, int32(l.In))
		writeInt32(buf, int32(l.Out))
		writeFloat64Slice(buf, l.W)
		writeFloat64Slice(buf, l.B)
	}
	return buf.Bytes(), nil
}

func decodeModelPayload(payload []byte) (*Model, error) {
	br := bytes.NewReader(payload)
	name, err := readString(br)
	if err != nil {
		return nil, fmt.Errorf("%w: name: %v", ErrInvalidArtifact, err)
	}
	threshold, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	avgThreshold, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	mfccSize, err := readUint16(br)
	if err != nil {
		return nil, err
	}
	rmsLevel, err := readFloat64(br)
	if err != nil {
		return nil, err
	}
	archType, err := readInt32(br)
	if err != nil {
		return nil, err
	}
	trainWindow, err := readInt32(br)
	if err != nil {
		return nil, err
	}
	scoreRef, err := readFloat64(br)
	if err != nil {
		return nil, err
	}

	labelCount, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	labels := make([]string, labelCount)
	for i := range labels {
		labels[i], err = readString(br)
		if err != nil {
			return nil, fmt.Errorf("%w: label %d: %v", ErrInvalidArtifact, i, err)
		}
	}

	layerCount, err := readUint32(br)
	if err != nil {
		return nil, err
	}
	weights := make([]LayerWeights, layerCount)
	for i := range weights {
		in, err := readInt32(br)
		if err != nil {
			return nil, err
		}
		out, err := readInt32(br)
		if err != nil {
			return nil, err
		}
		w, err := readFloat64Slice(br)
		if err != nil {
			return nil, err
		}
		b, err := readFloat64Slice(br)
		if err != nil {
			return nil, err
		}
		weights[i] = LayerWeights{W: w, B: b, In: int(in), Out: int(out)}
	}

	return &Model{
		MName:           name,
		Threshold:       threshold,
		AvgThreshold:    avgThreshold,
		MFCCSizeField:   mfccSize,
		RMSLevelField:   rmsLevel,
		Labels:          labels,
		Type:            ArchType(archType),
		Weights:         weights,
		TrainWindowSize: int(trainWindow),
		ScoreRef:        scoreRef,
	}, nil
}

func writeWindow(buf *bytes.Buffer, w mfcc.Window) {
	writeUint32(buf, uint32(len(w)))
	for _, frame := range w {
		writeFloat64Slice(buf, frame)
	}
}

func readWindow(r io.Reader) (mfcc.Window, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	w := make(mfcc.Window, n)
	for i := range w {
		frame, err := readFloat64Slice(r)
		if err != nil {
			return nil, err
		}
		w[i] = frame
	}
	return w, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeFloat64Slice(buf *bytes.Buffer, v []float64) {
	writeUint32(buf, uint32(len(v)))
	for _, f := range v {
		writeFloat64(buf, f)
	}
}

func readFloat64Slice(r io.Reader) ([]float64, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	v := make([]float64, n)
	for i := range v {
		f, err := readFloat64(r)
		if err != nil {
			return nil, err
		}
		v[i] = f
	}
	return v, nil
}

func writeUint32(buf *bytes.Buffer, v uint32) { binary.Write(buf, binary.LittleEndian, v) }
func writeUint16(buf *bytes.Buffer, v uint16) { binary.Write(buf, binary.LittleEndian, v) }
func writeInt32(buf *bytes.Buffer, v int32)   { binary.Write(buf, binary.LittleEndian, v) }
func writeFloat64(buf *bytes.Buffer, v float64) {
	binary.Write(buf, binary.LittleEndian, v)
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readUint16(r io.Reader) (uint16, error) {
	var v uint16
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readInt32(r io.Reader) (int32, error) {
	var v int32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readFloat64(r io.Reader) (float64, error) {
	var v float64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}
