// Package musicxml extracts ordered note sequences from MusicXML scores,
// plain or zip-compressed.
package musicxml

import (
	"math"
	"strconv"
	"strings"

	"github.com/starford/cadenza/internal/models"
)

const defaultDivisions = 4

// articulationPrecedence lists recognised articulation elements, strongest
// first. The first present element decides the note's articulation.
var articulationPrecedence = []struct {
	element string
	value   string
}{
	{"staccatissimo", models.ArticulationStaccatissimo},
	{"staccato", models.ArticulationStaccato},
	{"strong-accent", models.ArticulationMarcato},
	{"marcato", models.ArticulationMarcato},
	{"accent", models.ArticulationAccent},
	{"tenuto", models.ArticulationTenuto},
}

// walk is the accumulator threaded through the measure fold.
type walk struct {
	divisions int
	transpose int // written-to-sounding octave offset of the part
	shift     int // active octave-shift, in octaves
	cursor    int // elapsed ticks, in divisions
	lastOnset int
	notes     []models.Note
}

// ParseNotes converts a partwise MusicXML document into its ordered notes.
// The returned slice is never nil. Malformed XML yields a *ParseError and a
// document without notes yields ErrEmptySequence.
func ParseNotes(text []byte) ([]models.Note, error) {
	root, err := parseTree(text)
	if err != nil {
		return []models.Note{}, err
	}

	part := firstPart(root)
	measures := part.lookupAll("measure")
	if len(measures) == 0 {
		measures = []*node{part}
	}

	acc := walk{
		divisions: readDivisions(measures[0]),
		transpose: octaveChange(measures[0].lookup("attributes")) + partListOctaveChange(root, part.attr("id")),
	}
	for _, m := range measures {
		acc = acc.measure(m)
	}

	if len(acc.notes) == 0 {
		return []models.Note{}, ErrEmptySequence
	}
	return acc.notes, nil
}

// firstPart prefers a part directly under the document element, then any
// descendant part, then the document element itself.
func firstPart(root *node) *node {
	if p := root.lookup("part"); p != nil {
		return p
	}
	return root
}

func readDivisions(measure *node) int {
	attrs := measure.lookup("attributes")
	if attrs == nil {
		return defaultDivisions
	}
	if d, err := strconv.Atoi(attrs.value("divisions")); err == nil && d > 0 {
		return d
	}
	return defaultDivisions
}

func octaveChange(n *node) int {
	t := n.lookup("transpose")
	if t == nil {
		return 0
	}
	v, _ := strconv.Atoi(t.value("octave-change"))
	return v
}

// partListOctaveChange reads the octave-change declared on the part-list
// entry whose id matches the part.
func partListOctaveChange(root *node, partID string) int {
	if partID == "" {
		return 0
	}
	for _, sp := range root.lookup("part-list").lookupAll("score-part") {
		if sp.attr("id") != partID {
			continue
		}
		v, _ := strconv.Atoi(sp.value("octave-change"))
		return v
	}
	return 0
}

// measure folds one measure's events into the accumulator.
func (w walk) measure(m *node) walk {
	for _, ev := range events(m) {
		switch ev.name {
		case "octave-shift":
			w.shift = applyOctaveShift(w.shift, ev)
		case "note":
			w = w.note(ev)
		}
	}
	return w
}

// events lists note and octave-shift elements under n in document order.
// Notes are not descended into.
func events(n *node) []*node {
	var out []*node
	for _, c := range n.children {
		switch c.name {
		case "note", "octave-shift":
			out = append(out, c)
		default:
			out = append(out, events(c)...)
		}
	}
	return out
}

func applyOctaveShift(current int, ev *node) int {
	size := 8
	if s, err := strconv.Atoi(ev.attr("size")); err == nil && s > 1 {
		size = s
	}
	octaves := (size - 1) / 7
	switch ev.attr("type") {
	case "up":
		return octaves
	case "down":
		return -octaves
	case "stop":
		return 0
	}
	return current
}

func (w walk) note(n *node) walk {
	pitch := n.lookup("pitch")
	isRest := n.lookup("rest") != nil
	if pitch == nil && !isRest {
		return w
	}
	if n.lookup("grace") != nil {
		return w
	}

	duration, _ := strconv.Atoi(n.value("duration"))
	if duration < 0 {
		duration = 0
	}

	if isRest {
		w.lastOnset = w.cursor
		w.cursor += duration
		return w
	}

	step := strings.ToUpper(pitch.value("step"))
	if _, ok := models.SemitoneOf(step); !ok {
		return w
	}
	octave, err := strconv.Atoi(pitch.value("octave"))
	if err != nil {
		return w
	}

	onset := w.cursor
	if n.lookup("chord") != nil {
		onset = w.lastOnset
	} else {
		w.lastOnset = w.cursor
		w.cursor += duration
	}

	note := models.Note{
		Step:         step,
		Octave:       octave + w.transpose + w.shift,
		Alter:        parseAlter(pitch.value("alter")),
		Duration:     duration,
		Divisions:    w.divisions,
		Type:         n.value("type"),
		Position:     float64(onset) / float64(w.divisions),
		Articulation: articulation(n),
	}
	note.TieStart, note.TieEnd = ties(n)
	note.SlurStart, note.SlurEnd, note.SlurNumber = slurs(n)

	w.notes = append(w.notes, note)
	return w
}

func parseAlter(s string) int {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v))
}

// ties ORs the note-level tie elements with notations/tied.
func ties(n *node) (start, end bool) {
	marks := append(n.lookupAll("tie"), n.findAll("tied")...)
	for _, t := range marks {
		switch t.attr("type") {
		case "start":
			start = true
		case "stop":
			end = true
		}
	}
	return start, end
}

func slurs(n *node) (start, end bool, number string) {
	for _, s := range n.findAll("slur") {
		switch s.attr("type") {
		case "start":
			start = true
		case "stop":
			end = true
		default:
			continue
		}
		if number == "" {
			number = s.attr("number")
			if number == "" {
				number = "1"
			}
		}
	}
	return start, end, number
}

func articulation(n *node) string {
	groups := n.findAll("articulations")
	for _, a := range articulationPrecedence {
		for _, g := range groups {
			if g.child(a.element) != nil {
				return a.value
			}
		}
	}
	return models.ArticulationNone
}
