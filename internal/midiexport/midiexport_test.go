package midiexport

import (
	"bytes"
	"testing"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/starford/cadenza/internal/models"
)

func TestBytes_RoundTripsNoteOns(t *testing.T) {
	notes := []models.Note{
		{Step: "D", Octave: 4, Duration: 4, Divisions: 4, Position: 0},
		{Step: "F", Alter: 1, Octave: 4, Duration: 2, Divisions: 4, Position: 1},
		{Step: "F", Alter: 1, Octave: 4, Duration: 2, Divisions: 4, Position: 1.5},
	}
	data, err := Bytes(notes, 120)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("MThd")) {
		t.Fatalf("missing SMF header")
	}

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}
	if len(s.Tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(s.Tracks))
	}

	var keys []uint8
	var onTicks []int64
	var abs int64
	for _, ev := range s.Tracks[0] {
		abs += int64(ev.Delta)
		var ch, key, vel uint8
		if ev.Message.GetNoteOn(&ch, &key, &vel) && vel > 0 {
			keys = append(keys, key)
			onTicks = append(onTicks, abs)
		}
	}
	wantKeys := []uint8{62, 66, 66}
	wantTicks := []int64{0, 960, 1440}
	if len(keys) != len(wantKeys) {
		t.Fatalf("note ons = %v, want %v", keys, wantKeys)
	}
	for i := range keys {
		if keys[i] != wantKeys[i] || onTicks[i] != wantTicks[i] {
			t.Errorf("note %d = key %d at %d, want key %d at %d", i, keys[i], onTicks[i], wantKeys[i], wantTicks[i])
		}
	}
}

func TestWrite_RejectsOutOfRange(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, []models.Note{{Step: "C", Octave: 11, Duration: 1, Divisions: 1}}, 0)
	if err == nil {
		t.Fatal("expected range error")
	}
}
