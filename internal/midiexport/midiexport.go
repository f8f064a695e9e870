// Package midiexport renders note sequences as Standard MIDI Files so an
// expected answer can be auditioned.
package midiexport

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/starford/cadenza/internal/models"
)

const (
	ticksPerQuarter = 960
	channel         = 0
	velocity        = 96
	DefaultTempo    = 100.0
)

type event struct {
	tick uint32
	on   bool
	key  uint8
}

// Write encodes notes as a single-track SMF at the given tempo (BPM).
// Note positions and lengths are read in beats.
func Write(w io.Writer, notes []models.Note, tempo float64) error {
	if tempo <= 0 {
		tempo = DefaultTempo
	}

	events := make([]event, 0, 2*len(notes))
	for _, n := range notes {
		key := n.MidiPitch()
		if key < 0 || key > 127 {
			return fmt.Errorf("midiexport: %s is outside the MIDI range", n.Name())
		}
		start := toTicks(n.Position)
		end := start + toTicks(n.Beats())
		if end == start {
			end = start + 1
		}
		events = append(events,
			event{tick: start, on: true, key: uint8(key)},
			event{tick: end, on: false, key: uint8(key)},
		)
	}
	// Releases sort before attacks on the same tick so repeated pitches retrigger.
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return !events[i].on && events[j].on
	})

	var tr smf.Track
	tr.Add(0, smf.MetaTempo(tempo))
	tr.Add(0, smf.MetaMeter(4, 4))
	var last uint32
	for _, ev := range events {
		delta := ev.tick - last
		last = ev.tick
		if ev.on {
			tr.Add(delta, midi.NoteOn(channel, ev.key, velocity))
		} else {
			tr.Add(delta, midi.NoteOff(channel, ev.key))
		}
	}
	tr.Close(0)

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	if err := s.Add(tr); err != nil {
		return fmt.Errorf("midiexport: add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("midiexport: write: %w", err)
	}
	return nil
}

// Bytes is Write into a buffer.
func Bytes(notes []models.Note, tempo float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, notes, tempo); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toTicks(beats float64) uint32 {
	if beats <= 0 {
		return 0
	}
	return uint32(math.Round(beats * ticksPerQuarter))
}
