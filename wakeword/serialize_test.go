package wakeword

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wakespot/wakespot/mfcc"
)

func TestRefRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	r := &Ref{
		WName:         "hey_test",
		Threshold:     0.6,
		AvgThreshold:  0.1,
		MFCCSizeField: 16,
		RMSLevelField: 0.3,
		Templates:     []mfcc.Window{randomWindow(rng, 20, 16), randomWindow(rng, 25, 16)},
		Mode:          Avg,
		ScoreRef:      0.22,
	}

	encoded, err := Encode(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(encoded, []byte(magic)) {
		t.Fatal("encoded artifact missing magic header")
	}

	decoded, err := Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*Ref)
	if !ok {
		t.Fatalf("decoded to %T, want *Ref", decoded)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

// TestRefRoundTripScoresMatch verifies Testable Property 6: scoring a
// reference against its own templates yields the same scores before and
// after a save/load round-trip.
func TestRefRoundTripScoresMatch(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	tmpl := randomWindow(rng, 20, 16)
	r := &Ref{WName: "hey_test", MFCCSizeField: 16, Templates: []mfcc.Window{tmpl}, Mode: Max}

	before, err := r.Score(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "hey_test.rpw")
	encoded, err := Encode(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := Save(path, encoded); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	after, err := loaded.Score(tmpl)
	if err != nil {
		t.Fatal(err)
	}

	if before != after {
		t.Fatalf("score before %v != score after round-trip %v", before, after)
	}
}

func TestModelRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	labels := []string{noneLabel, "ok_casa"}
	m := &Model{
		MName:           "ok_casa",
		Threshold:       0.5,
		MFCCSizeField:   16,
		RMSLevelField:   0.4,
		Labels:          labels,
		Type:            Small,
		Weights:         NewModelWeights(Small, 10, 16, labels, rng),
		TrainWindowSize: 10,
		ScoreRef:        0.22,
	}

	encoded, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(bytes.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	got, ok := decoded.(*Model)
	if !ok {
		t.Fatalf("decoded to %T, want *Model", decoded)
	}
	if diff := cmp.Diff(m, got); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	// Well-formed framing (kind 0, empty payload, valid CRC) so that Decode
	// reaches the magic check rather than failing on length or checksum.
	data := []byte("nope\x00\x00\x00\x00\x00")
	var crc [crcLen]byte
	binary.BigEndian.PutUint32(crc[:], crc32.ChecksumIEEE(data))
	data = append(data, crc[:]...)
	if _, err := Decode(bytes.NewReader(data)); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

// TestDecodeRejectsCorruptedPayload verifies a single flipped bit inside
// the payload is caught by the trailing CRC rather than silently decoding
// into a different artifact, per spec §7's checksum-mismatch InvalidArtifact
// condition.
func TestDecodeRejectsCorruptedPayload(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	r := &Ref{
		WName:         "hey_test",
		Threshold:     0.6,
		MFCCSizeField: 16,
		Templates:     []mfcc.Window{randomWindow(rng, 20, 16)},
		Mode:          Max,
	}
	encoded, err := Encode(r)
	if err != nil {
		t.Fatal(err)
	}

	corrupted := append([]byte{}, encoded...)
	flipIdx := len(corrupted) - crcLen - 1
	corrupted[flipIdx] ^= 0xff

	if _, err := Decode(bytes.NewReader(corrupted)); !errors.Is(err, ErrInvalidArtifact) {
		t.Fatalf("Decode(corrupted) error = %v, want ErrInvalidArtifact", err)
	}
}
