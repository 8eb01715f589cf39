package music

import (
	"fmt"
	"sort"
	"strings"
)

const octave = 12

// Melody range, E4 through E6 inclusive.
const (
	melodyLow  = 64
	melodyHigh = 88
)

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "Db": 1, "D": 2, "D#": 3, "Eb": 3, "E": 4, "F": 5,
	"F#": 6, "Gb": 6, "G": 7, "G#": 8, "Ab": 8, "A": 9, "A#": 10, "Bb": 10, "B": 11,
}

var (
	majorIntervals = []int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = []int{0, 2, 3, 5, 7, 8, 10}
)

// Scale is a seven note diatonic scale.
type Scale struct {
	Root      int
	Minor     bool
	intervals []int
}

func MajorScale(root int) Scale { return Scale{Root: root % octave, intervals: majorIntervals} }
func MinorScale(root int) Scale { return Scale{Root: root % octave, Minor: true, intervals: minorIntervals} }

// Contains reports whether the pitch class of note belongs to the scale.
func (s Scale) Contains(note int) bool {
	pc := ((note-s.Root)%octave + octave) % octave
	for _, iv := range s.intervals {
		if iv == pc {
			return true
		}
	}
	return false
}

// HasChord reports whether every chord tone is in the scale.
func (s Scale) HasChord(c Chord) bool {
	for _, pc := range c.PitchClasses() {
		if !s.Contains(pc) {
			return false
		}
	}
	return true
}

// Notes lists the scale notes in [low, high], ascending.
func (s Scale) Notes(low, high int) []int {
	var notes []int
	for n := low; n <= high; n++ {
		if s.Contains(n) {
			notes = append(notes, n)
		}
	}
	return notes
}

// EstimateScale picks the scale a borrowed chord implies: the minor scale on its
// root for minor chords, the major scale otherwise.
func EstimateScale(c Chord) Scale {
	if c.IsMinor() {
		return MinorScale(c.Root)
	}
	return MajorScale(c.Root)
}

var chordQualities = map[string][]int{
	"":     {0, 4, 7},
	"M7":   {0, 4, 7, 11},
	"m":    {0, 3, 7},
	"m7":   {0, 3, 7, 10},
	"7":    {0, 4, 7, 10},
	"sus4": {0, 5, 7},
	"add9": {0, 2, 4, 7},
}

// Chord is a root pitch class and the intervals stacked on it.
type Chord struct {
	Name      string
	Root      int
	intervals []int
}

// ParseChord reads names such as "CM7", "Am7", "F#m", "Bb" or "Gsus4".
func ParseChord(name string) (Chord, error) {
	if name == "" {
		return Chord{}, fmt.Errorf("empty chord name")
	}
	rootLen := 1
	if len(name) > 1 && (name[1] == '#' || name[1] == 'b') {
		rootLen = 2
	}
	root, ok := pitchClasses[name[:rootLen]]
	if !ok {
		return Chord{}, fmt.Errorf("unknown chord root in %q", name)
	}
	intervals, ok := chordQualities[name[rootLen:]]
	if !ok {
		return Chord{}, fmt.Errorf("unknown chord quality in %q", name)
	}
	return Chord{Name: name, Root: root, intervals: intervals}, nil
}

func mustChords(names ...string) []Chord {
	chords := make([]Chord, 0, len(names))
	for _, n := range names {
		c, err := ParseChord(n)
		if err != nil {
			panic(err)
		}
		chords = append(chords, c)
	}
	return chords
}

// PitchClasses returns the chord tones as pitch classes 0..11.
func (c Chord) PitchClasses() []int {
	pcs := make([]int, len(c.intervals))
	for i, iv := range c.intervals {
		pcs[i] = (c.Root + iv) % octave
	}
	return pcs
}

func (c Chord) IsMinor() bool {
	return len(c.intervals) > 1 && c.intervals[1] == 3
}

// Tones returns every chord tone inside [low, high], ascending.
func (c Chord) Tones(low, high int) []int {
	var tones []int
	for n := low; n <= high; n++ {
		pc := n % octave
		for _, cp := range c.PitchClasses() {
			if pc == cp {
				tones = append(tones, n)
				break
			}
		}
	}
	sort.Ints(tones)
	return tones
}

// Voicing stacks the chord from its root at base upward, one note per tone.
func (c Chord) Voicing(base int) []int {
	root := base + c.Root
	notes := make([]int, len(c.intervals))
	for i, iv := range c.intervals {
		notes[i] = root + iv
	}
	return notes
}

// Progression spreads its chords evenly over Bars bars.
type Progression struct {
	Key    Scale
	Chords []Chord
	Bars   int
}

// ChordsPerBar fails when the chords do not divide evenly into bars.
func (p Progression) ChordsPerBar() (int, error) {
	if p.Bars <= 0 || len(p.Chords)%p.Bars != 0 {
		return 0, fmt.Errorf("%d chords do not fit %d bars", len(p.Chords), p.Bars)
	}
	return len(p.Chords) / p.Bars, nil
}

// Bar returns the chords of bar i (zero based).
func (p Progression) Bar(i int) []Chord {
	per, err := p.ChordsPerBar()
	if err != nil {
		return nil
	}
	i %= p.Bars
	return p.Chords[i*per : (i+1)*per]
}

func (p Progression) String() string {
	names := make([]string, len(p.Chords))
	for i, c := range p.Chords {
		names[i] = c.Name
	}
	return strings.Join(names, " ")
}
