package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"
	"testing"
)

// ScoreNote describes one <note> of a generated fixture.
type ScoreNote struct {
	Step         string
	Octave       int
	Alter        int
	Duration     int
	Type         string
	Rest         bool
	Chord        bool
	Tie          string // "start", "stop" or ""
	Slur         string // "start", "stop" or ""
	Articulation string // MusicXML element name, e.g. "staccato"
}

// Quarter returns a quarter note at divisions=4.
func Quarter(step string, octave int) ScoreNote {
	return ScoreNote{Step: step, Octave: octave, Duration: 4, Type: "quarter"}
}

// Rest returns a rest of the given duration.
func Rest(duration int) ScoreNote {
	return ScoreNote{Rest: true, Duration: duration, Type: "quarter"}
}

// MusicXML renders a single-part partwise score with every note in one measure.
func MusicXML(divisions int, notes ...ScoreNote) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<score-partwise version="3.1">`)
	b.WriteString(`<part-list><score-part id="P1"><part-name>Music</part-name></score-part></part-list>`)
	b.WriteString(`<part id="P1"><measure number="1">`)
	fmt.Fprintf(&b, `<attributes><divisions>%d</divisions></attributes>`, divisions)
	for _, n := range notes {
		writeNote(&b, n)
	}
	b.WriteString(`</measure></part></score-partwise>`)
	return []byte(b.String())
}

func writeNote(b *strings.Builder, n ScoreNote) {
	b.WriteString("<note>")
	if n.Chord {
		b.WriteString("<chord/>")
	}
	if n.Rest {
		b.WriteString("<rest/>")
	} else {
		fmt.Fprintf(b, "<pitch><step>%s</step>", n.Step)
		if n.Alter != 0 {
			fmt.Fprintf(b, "<alter>%d</alter>", n.Alter)
		}
		fmt.Fprintf(b, "<octave>%d</octave></pitch>", n.Octave)
	}
	fmt.Fprintf(b, "<duration>%d</duration>", n.Duration)
	if n.Tie != "" {
		fmt.Fprintf(b, `<tie type="%s"/>`, n.Tie)
	}
	if n.Type != "" {
		fmt.Fprintf(b, "<type>%s</type>", n.Type)
	}
	if n.Slur != "" || n.Articulation != "" {
		b.WriteString("<notations>")
		if n.Slur != "" {
			fmt.Fprintf(b, `<slur type="%s" number="1"/>`, n.Slur)
		}
		if n.Articulation != "" {
			fmt.Fprintf(b, "<articulations><%s/></articulations>", n.Articulation)
		}
		b.WriteString("</notations>")
	}
	b.WriteString("</note>")
}

// MXL wraps xml in a zip container. With manifest set, a META-INF/container.xml
// points at the payload stored under name.
func MXL(t *testing.T, name string, xml []byte, manifest bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if manifest {
		w, err := zw.Create("META-INF/container.xml")
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<container><rootfiles><rootfile full-path="%s" media-type="application/vnd.recordare.musicxml+xml"/></rootfiles></container>`, name)
	}
	w, err := zw.Create(name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(xml); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// Tetrachord returns C4 D4 E4 F4 quarters, the reference used across tests.
func Tetrachord() []byte {
	return MusicXML(4, Quarter("C", 4), Quarter("D", 4), Quarter("E", 4), Quarter("F", 4))
}

// TetrachordUpWholeTone returns the correct answer to Tetrachord at +2
// semitones. With drop > 0 the last drop notes are left out.
func TetrachordUpWholeTone(drop int) []byte {
	notes := []ScoreNote{
		Quarter("D", 4), Quarter("E", 4),
		{Step: "F", Alter: 1, Octave: 4, Duration: 4, Type: "quarter"},
		Quarter("G", 4),
	}
	return MusicXML(4, notes[:len(notes)-drop]...)
}
