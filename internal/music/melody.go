package music

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand"
	"sort"
)

// melodySpread scales randomness into the standard deviation of a melodic step.
const melodySpread = 3

// MelodyPattern is a one-bar rhythm: true where a note starts.
type MelodyPattern struct {
	Hits     []bool
	Division int
}

// Onsets counts the note starts.
func (p MelodyPattern) Onsets() int {
	n := 0
	for _, h := range p.Hits {
		if h {
			n++
		}
	}
	return n
}

// onsetWeights gives the probability of a note on every step of a 4/4 bar.
// Downbeats get 1-r/2; finer subdivisions move toward it as randomness grows,
// so a high randomness spreads notes off the beat.
func onsetWeights(randomness float64, division int) ([]float64, error) {
	if division < 4 || division&(division-1) != 0 {
		return nil, fmt.Errorf("division %d must be a power of two of at least 4", division)
	}
	depth := bits.Len(uint(division)) - 2
	primary := clamp01(1 - randomness/2)
	weights := make([]float64, depth)
	weights[0] = primary
	for i := 0; i < depth-1; i++ {
		h := randomness / math.Pow(2, float64(i))
		weights[i+1] = clamp01((1-h)*(1-primary) + h*primary)
	}

	pd := make([]float64, division)
	beat := division / 4
	for i := depth - 1; i >= 0; i-- {
		step := max(beat>>i, 1)
		for j := 0; j < division; j += step {
			pd[j] = weights[i]
		}
	}
	return pd, nil
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

// NewMelodyPattern draws a bar rhythm with at least three notes.
func NewMelodyPattern(rng *rand.Rand, randomness float64, division int) (MelodyPattern, error) {
	pd, err := onsetWeights(randomness, division)
	if err != nil {
		return MelodyPattern{}, err
	}
	p := MelodyPattern{Hits: make([]bool, division), Division: division}
	for attempt := 0; attempt < 1000; attempt++ {
		for i, w := range pd {
			p.Hits[i] = rng.Float64() < w
		}
		if p.Onsets() > 2 {
			return p, nil
		}
	}
	// Degenerate weights: fall back to quarter notes.
	for i := range p.Hits {
		p.Hits[i] = i%(division/4) == 0
	}
	return p, nil
}

// MelodyNote is a key held for Steps grid steps. Key 0 is a rest.
type MelodyNote struct {
	Key      int
	Steps    int
	Velocity int
}

// Melody is a line over a chord progression, one pattern repeated every bar.
type Melody struct {
	Scale       Scale
	Randomness  float64
	Pattern     MelodyPattern
	Progression Progression
	Notes       []MelodyNote

	usable []int
	rng    *rand.Rand
}

// NewMelody composes the notes for every bar of progression.
func NewMelody(rng *rand.Rand, scale Scale, randomness float64, progression Progression, pattern MelodyPattern) (*Melody, error) {
	m := &Melody{
		Scale:       scale,
		Randomness:  randomness,
		Pattern:     pattern,
		Progression: progression,
		usable:      scale.Notes(melodyLow, melodyHigh),
		rng:         rng,
	}
	if err := m.build(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Melody) build() error {
	per, err := m.Progression.ChordsPerBar()
	if err != nil {
		return err
	}
	if m.Pattern.Division%per != 0 {
		return fmt.Errorf("%d chords per bar do not divide %d steps", per, m.Pattern.Division)
	}
	m.Notes = m.Notes[:0]
	for bar := 0; bar < m.Progression.Bars; bar++ {
		m.Notes = append(m.Notes, m.makeBar(m.Progression.Bar(bar))...)
	}
	return nil
}

func (m *Melody) makeBar(chords []Chord) []MelodyNote {
	stepsPerChord := m.Pattern.Division / len(chords)
	usable := m.usable

	var notes []MelodyNote
	key, length := 0, 0
	flush := func() {
		if length > 0 {
			notes = append(notes, MelodyNote{Key: key, Steps: length})
		}
	}

	for i, hit := range m.Pattern.Hits {
		chord := chords[i/stepsPerChord]
		firstOfChord := i%stepsPerChord == 0
		if firstOfChord {
			scale := m.Scale
			if !scale.HasChord(chord) {
				scale = EstimateScale(chord)
			}
			usable = scale.Notes(melodyLow, melodyHigh)
		}
		if !hit {
			length++
			continue
		}
		flush()
		length = 1
		if firstOfChord {
			key = m.chooseFromChord(chord, key)
		} else {
			key = m.nextNote(key, usable)
		}
	}
	flush()
	return notes
}

func (m *Melody) spread() float64 {
	return melodySpread*m.Randomness + 0.1
}

// nextNote walks from current to a nearby note of usable.
func (m *Melody) nextNote(current int, usable []int) int {
	if len(usable) == 0 {
		return current
	}
	if current == 0 {
		return usable[m.rng.Intn(len(usable))]
	}
	return usable[m.sampleNear(nearestIndex(usable, current), len(usable))]
}

// chooseFromChord lands on a chord tone close to current, or any chord tone after a rest.
func (m *Melody) chooseFromChord(chord Chord, current int) int {
	tones := chord.Tones(melodyLow, melodyHigh)
	if len(tones) == 0 {
		return m.nextNote(current, m.usable)
	}
	if current == 0 {
		return tones[m.rng.Intn(len(tones))]
	}
	return tones[m.sampleNear(nearestIndex(tones, current), len(tones))]
}

// sampleNear draws an index from a normal distribution around pivot until it lands in [0, n).
func (m *Melody) sampleNear(pivot, n int) int {
	for {
		idx := int(math.Floor(m.rng.NormFloat64()*m.spread() + float64(pivot)))
		if idx >= 0 && idx < n {
			return idx
		}
	}
}

func nearestIndex(sorted []int, v int) int {
	i := sort.SearchInts(sorted, v)
	switch {
	case i == 0:
		return 0
	case i == len(sorted):
		return len(sorted) - 1
	case v-sorted[i-1] <= sorted[i]-v:
		return i - 1
	default:
		return i
	}
}

// ApplyVelocity accents downbeats and the first beat of each bar around base.
func (m *Melody) ApplyVelocity(base int) {
	pos := 0
	for i := range m.Notes {
		n := &m.Notes[i]
		v := base
		switch {
		case pos%m.Pattern.Division == 0:
			v += 12
		case pos%(m.Pattern.Division/4) == 0:
			v += 6
		}
		v += int(math.Round((m.rng.Float64()*2 - 1) * 8 * m.Randomness))
		n.Velocity = min(max(v, 1), 127)
		pos += n.Steps
	}
}

// Vary returns a copy where each note is kept with probability keep and
// otherwise moved to a nearby scale note. Rests and durations are unchanged.
func (m *Melody) Vary(keep float64) *Melody {
	out := *m
	out.Notes = make([]MelodyNote, len(m.Notes))
	for i, n := range m.Notes {
		if n.Key != 0 && m.rng.Float64() > keep {
			n.Key = m.nextNote(n.Key, m.usable)
		}
		out.Notes[i] = n
	}
	return &out
}

// TotalSteps is the length of the melody in grid steps.
func (m *Melody) TotalSteps() int {
	total := 0
	for _, n := range m.Notes {
		total += n.Steps
	}
	return total
}
