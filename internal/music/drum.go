package music

import (
	"errors"
	"fmt"
	"slices"
)

// General MIDI percussion keys.
const (
	KeyBassDrum     = 36
	KeySnareDrum    = 38
	KeyHiHatClosed  = 42
	KeyHiHatOpened  = 46
	KeyCymbalsCrash = 49
)

// Drum voices in the order they appear in a step.
const (
	voiceKick = iota
	voiceSnare
	voiceHiHat
	voiceOpenHiHat
	voiceToms
	voiceCymbals
	voiceCount
)

var ErrPatternLength = errors.New("drum pattern lengths do not match")

// Step holds the MIDI key of every voice hit on one grid position, 0 for silence.
type Step [voiceCount]uint8

// DrumPattern is a loop of Division steps per bar over BarLength bars.
type DrumPattern struct {
	Name      string
	Steps     []Step
	Division  int
	BarLength int
}

// DrumLanes are on/off lanes per voice. Toms carry their own MIDI keys instead of 1.
type DrumLanes struct {
	Kick      []int
	Snare     []int
	HiHat     []int
	OpenHiHat []int
	Toms      []int
	Cymbals   []int
}

// NewDrumPattern maps the lanes onto MIDI keys. Every lane must be
// Division*BarLength steps long.
func NewDrumPattern(name string, lanes DrumLanes, division, barLength int) (DrumPattern, error) {
	if division <= 0 || barLength <= 0 {
		return DrumPattern{}, fmt.Errorf("%s: division and bar length must be positive", name)
	}
	want := division * barLength
	all := [voiceCount][]int{lanes.Kick, lanes.Snare, lanes.HiHat, lanes.OpenHiHat, lanes.Toms, lanes.Cymbals}
	for _, lane := range all {
		if len(lane) != want {
			return DrumPattern{}, fmt.Errorf("%s: %w: want %d steps, got %d", name, ErrPatternLength, want, len(lane))
		}
	}

	keys := [voiceCount]int{KeyBassDrum, KeySnareDrum, KeyHiHatClosed, KeyHiHatOpened, 1, KeyCymbalsCrash}
	steps := make([]Step, want)
	for v, lane := range all {
		for i, hit := range lane {
			if hit < 0 || hit*keys[v] > 127 {
				return DrumPattern{}, fmt.Errorf("%s: step %d of voice %d out of MIDI range", name, i, v)
			}
			steps[i][v] = uint8(hit * keys[v])
		}
	}
	return DrumPattern{Name: name, Steps: steps, Division: division, BarLength: barLength}, nil
}

// MultiplyDivision refines the grid by ratio: every step is followed by ratio-1 silent ones.
func MultiplyDivision(p DrumPattern, ratio int) DrumPattern {
	if ratio <= 1 {
		return p
	}
	steps := make([]Step, 0, len(p.Steps)*ratio)
	for _, s := range p.Steps {
		steps = append(steps, s)
		for i := 1; i < ratio; i++ {
			steps = append(steps, Step{})
		}
	}
	return DrumPattern{Name: p.Name, Steps: steps, Division: p.Division * ratio, BarLength: p.BarLength}
}

// AlignTo returns p on a grid of division steps per bar.
func (p DrumPattern) AlignTo(division int) (DrumPattern, error) {
	if division%p.Division != 0 {
		return DrumPattern{}, fmt.Errorf("%s: division %d does not divide %d", p.Name, p.Division, division)
	}
	return MultiplyDivision(p, division/p.Division), nil
}

func zeros(n int) []int { return make([]int, n) }

func repeat(lane []int, times int) []int {
	return slices.Repeat(lane, times)
}

func concat(lanes ...[]int) []int {
	return slices.Concat(lanes...)
}

// Section names.
const (
	SectionIntro  = "intro"
	SectionVerse  = "verse"
	SectionFillIn = "fill_in"
	SectionOutro  = "outro"
)

const commonPatterns = "common"

type patternTable map[string]map[string][]DrumPattern

func mustPattern(name string, lanes DrumLanes, division, barLength int) DrumPattern {
	p, err := NewDrumPattern(name, lanes, division, barLength)
	if err != nil {
		panic(err)
	}
	return p
}

func silentPattern(name string) DrumPattern {
	return mustPattern(name, DrumLanes{
		Kick: zeros(1), Snare: zeros(1), HiHat: zeros(1),
		OpenHiHat: zeros(1), Toms: zeros(1), Cymbals: zeros(1),
	}, 1, 1)
}

var drumPatterns = patternTable{
	commonPatterns: {
		"empty": {silentPattern("empty")},
	},
	GenreNewAge: {
		SectionIntro: {silentPattern("newage_intro")},
		SectionFillIn: {mustPattern("newage_fill_in", DrumLanes{
			Kick:      []int{1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0},
			Snare:     []int{0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0},
			HiHat:     []int{0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
			OpenHiHat: []int{1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0},
			Cymbals:   []int{1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
			Toms:      []int{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 50, 48, 47, 45},
		}, 16, 1)},
		SectionVerse: {
			mustPattern("8bit_default", DrumLanes{
				Kick:      repeat([]int{1, 0, 0, 0, 0, 1, 0, 0}, 4),
				Snare:     repeat([]int{0, 0, 1, 0, 0, 0, 1, 0}, 4),
				HiHat:     repeat([]int{1, 1, 1, 1, 1, 1, 1, 1}, 4),
				Cymbals:   concat([]int{1, 0, 0, 0, 0, 0, 0, 0}, zeros(8*3)),
				OpenHiHat: zeros(8 * 4),
				Toms:      zeros(8 * 4),
			}, 8, 4),
			mustPattern("16bit_slow", DrumLanes{
				Kick:      repeat([]int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0}, 4),
				Snare:     repeat([]int{0, 0, 0, 0, 1, 0, 0, 1, 0, 1, 0, 0, 1, 0, 0, 1}, 4),
				HiHat:     repeat([]int{1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0}, 4),
				Cymbals:   concat([]int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, zeros(16*3)),
				OpenHiHat: zeros(16 * 4),
				Toms:      zeros(16 * 4),
			}, 16, 4),
		},
		SectionOutro: {silentPattern("newage_outro")},
	},
	GenreRetro: {
		SectionIntro: {mustPattern("retro_count_in", DrumLanes{
			Kick:      zeros(4),
			Snare:     zeros(4),
			HiHat:     []int{1, 1, 1, 1},
			OpenHiHat: zeros(4),
			Toms:      zeros(4),
			Cymbals:   zeros(4),
		}, 4, 1)},
		SectionFillIn: {mustPattern("retro_fill_in", DrumLanes{
			Kick:      []int{1, 0, 0, 0, 1, 0, 0, 0},
			Snare:     []int{0, 0, 1, 1, 0, 1, 1, 1},
			HiHat:     zeros(8),
			OpenHiHat: []int{0, 0, 0, 0, 0, 0, 0, 1},
			Toms:      []int{0, 50, 0, 0, 48, 0, 0, 0},
			Cymbals:   []int{1, 0, 0, 0, 0, 0, 0, 0},
		}, 8, 1)},
		SectionVerse: {
			mustPattern("retro_four_on_floor", DrumLanes{
				Kick:      repeat([]int{1, 0, 1, 0, 1, 0, 1, 0}, 2),
				Snare:     repeat([]int{0, 0, 1, 0, 0, 0, 1, 0}, 2),
				HiHat:     repeat([]int{0, 1, 0, 1, 0, 1, 0, 1}, 2),
				OpenHiHat: repeat([]int{0, 0, 0, 0, 0, 0, 0, 1}, 2),
				Toms:      zeros(16),
				Cymbals:   concat([]int{1}, zeros(15)),
			}, 8, 2),
			mustPattern("retro_backbeat", DrumLanes{
				Kick:      repeat([]int{1, 0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0}, 2),
				Snare:     repeat([]int{0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0}, 2),
				HiHat:     repeat([]int{1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0, 1, 0}, 2),
				OpenHiHat: zeros(32),
				Toms:      zeros(32),
				Cymbals:   concat([]int{1}, zeros(31)),
			}, 16, 2),
		},
		SectionOutro: {mustPattern("retro_hit", DrumLanes{
			Kick:      []int{1, 0, 0, 0},
			Snare:     zeros(4),
			HiHat:     zeros(4),
			OpenHiHat: zeros(4),
			Toms:      zeros(4),
			Cymbals:   []int{1, 0, 0, 0},
		}, 4, 1)},
	},
}

// patternsFor returns the drum patterns for a genre section, falling back to silence.
func patternsFor(genre, section string) []DrumPattern {
	if ps := drumPatterns[genre][section]; len(ps) > 0 {
		return ps
	}
	return drumPatterns[commonPatterns]["empty"]
}
