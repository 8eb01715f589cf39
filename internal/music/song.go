package music

import (
	"fmt"
	"io"
	"math/rand"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const (
	// stepsPerBar is the grid every track is written on: sixteenth notes in 4/4.
	stepsPerBar  = 16
	ticksPerBeat = 480
	ticksPerStep = ticksPerBeat * 4 / stepsPerBar

	channelMelody = 0
	channelPad    = 1
	channelDrums  = 9

	drumVelocity = 100
	padVelocity  = 60
)

var tempoBPM = map[string]int{
	TempoSlow:     72,
	TempoModerate: 96,
	TempoFast:     124,
}

type moodSetting struct {
	Key        Scale
	Chords     []string
	Bars       int
	Randomness float64
	Velocity   int
}

var moods = map[string]moodSetting{
	MoodHappy: {Key: MajorScale(pitchClasses["C"]), Chords: []string{"C", "G", "Am", "F"}, Bars: 4, Randomness: 0.5, Velocity: 90},
	MoodSad:   {Key: MinorScale(pitchClasses["A"]), Chords: []string{"Am", "F", "Dm7", "E7"}, Bars: 4, Randomness: 0.3, Velocity: 70},
	MoodGrand: {
		Key:        MajorScale(pitchClasses["D"]),
		Chords:     []string{"D", "A", "Bm", "F#m", "G", "D", "Gsus4", "A"},
		Bars:       4,
		Randomness: 0.4,
		Velocity:   100,
	},
}

type genreSetting struct {
	MelodyProgram uint8
	PadProgram    uint8
	// VerseVariation is the share of notes kept when the verse repeats.
	VerseVariation float64
}

var genres = map[string]genreSetting{
	GenreNewAge: {MelodyProgram: 0, PadProgram: 88, VerseVariation: 0.7},
	GenreRetro:  {MelodyProgram: 80, PadProgram: 4, VerseVariation: 0.5},
}

// Options select a song. Equal options compose equal songs.
type Options struct {
	Genre string
	Mood  string
	Tempo string
	Seed  int64
}

// Section is one part of the song on the sixteenth grid.
type Section struct {
	Name   string
	Bars   int
	Chords Progression
	Melody []MelodyNote
	Drums  DrumPattern
}

// Song is a composed piece ready to be written as a standard MIDI file.
type Song struct {
	Options       Options
	BPM           int
	MelodyProgram uint8
	PadProgram    uint8
	Sections      []Section
}

// Bars is the total length of the song.
func (s *Song) Bars() int {
	n := 0
	for _, sec := range s.Sections {
		n += sec.Bars
	}
	return n
}

// SectionNames lists the structure in play order.
func (s *Song) SectionNames() []string {
	names := make([]string, len(s.Sections))
	for i, sec := range s.Sections {
		names[i] = sec.Name
	}
	return names
}

// Composer turns options into songs.
type Composer struct{}

func NewComposer() *Composer {
	return &Composer{}
}

// Compose builds intro, verse, fill-in, a varied verse and an outro.
func (c *Composer) Compose(opts Options) (*Song, error) {
	bpm, ok := tempoBPM[opts.Tempo]
	if !ok {
		return nil, fmt.Errorf("unknown tempo %q", opts.Tempo)
	}
	mood, ok := moods[opts.Mood]
	if !ok {
		return nil, fmt.Errorf("unknown mood %q", opts.Mood)
	}
	genre, ok := genres[opts.Genre]
	if !ok {
		return nil, fmt.Errorf("unknown genre %q", opts.Genre)
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	progression := Progression{Key: mood.Key, Chords: mustChords(mood.Chords...), Bars: mood.Bars}

	pattern, err := NewMelodyPattern(rng, mood.Randomness, stepsPerBar)
	if err != nil {
		return nil, err
	}
	verse, err := NewMelody(rng, mood.Key, mood.Randomness, progression, pattern)
	if err != nil {
		return nil, err
	}
	verse.ApplyVelocity(mood.Velocity)
	secondVerse := verse.Vary(genre.VerseVariation)

	first := progression.Chords[:1]
	last := progression.Chords[len(progression.Chords)-1:]
	sections := []struct {
		name   string
		bars   int
		chords Progression
		melody []MelodyNote
	}{
		{SectionIntro, 1, Progression{Key: mood.Key, Chords: first, Bars: 1}, []MelodyNote{{Steps: stepsPerBar}}},
		{SectionVerse, mood.Bars, progression, verse.Notes},
		{SectionFillIn, 1, Progression{Key: mood.Key, Chords: last, Bars: 1}, []MelodyNote{{Steps: stepsPerBar}}},
		{SectionVerse, mood.Bars, progression, secondVerse.Notes},
		{SectionOutro, 1, Progression{Key: mood.Key, Chords: first, Bars: 1}, []MelodyNote{{Key: first[0].Voicing(5 * octave)[0] + octave, Steps: stepsPerBar, Velocity: mood.Velocity}}},
	}

	song := &Song{Options: opts, BPM: bpm, MelodyProgram: genre.MelodyProgram, PadProgram: genre.PadProgram}
	for _, s := range sections {
		drums, err := chooseDrums(rng, opts.Genre, s.name, s.bars)
		if err != nil {
			return nil, err
		}
		song.Sections = append(song.Sections, Section{Name: s.name, Bars: s.bars, Chords: s.chords, Melody: s.melody, Drums: drums})
	}
	return song, nil
}

// chooseDrums picks one pattern variant for the section and aligns it to the sixteenth grid.
func chooseDrums(rng *rand.Rand, genre, section string, bars int) (DrumPattern, error) {
	candidates := patternsFor(genre, section)
	p, err := candidates[rng.Intn(len(candidates))].AlignTo(stepsPerBar)
	if err != nil {
		return DrumPattern{}, err
	}
	// Loop the pattern over the section.
	want := bars * stepsPerBar
	steps := make([]Step, want)
	for i := range steps {
		steps[i] = p.Steps[i%len(p.Steps)]
	}
	return DrumPattern{Name: p.Name, Steps: steps, Division: stepsPerBar, BarLength: bars}, nil
}

// event is a MIDI message at an absolute tick.
type event struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// track collects absolute events and converts them to deltas.
type track struct {
	events []event
}

func (t *track) add(tick uint32, msg midi.Message) {
	t.events = append(t.events, event{tick: tick, msg: msg})
}

func (t *track) note(ch, key, vel uint8, start, length uint32) {
	t.add(start, midi.NoteOn(ch, key, vel))
	t.events = append(t.events, event{tick: start + length, off: true, msg: midi.NoteOff(ch, key)})
}

func (t *track) smf(name string) smf.Track {
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	// Note-offs sort ahead of note-ons sharing a tick so repeated keys retrigger.
	sortEvents(t.events)
	var last uint32
	for _, ev := range t.events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	tr.Close(0)
	return tr
}

func sortEvents(events []event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})
}

// WriteMIDI writes song as a format 1 standard MIDI file: a conductor track
// followed by melody, pad and drum tracks.
func WriteMIDI(song *Song, w io.Writer) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerBeat)

	var conductor smf.Track
	conductor.Add(0, smf.MetaTrackSequenceName(fmt.Sprintf("%s %s %s", song.Options.Genre, song.Options.Mood, song.Options.Tempo)))
	conductor.Add(0, smf.MetaMeter(4, 4))
	conductor.Add(0, smf.MetaTempo(float64(song.BPM)))
	conductor.Close(0)

	melody, pad, drums := &track{}, &track{}, &track{}
	melody.add(0, midi.ProgramChange(channelMelody, song.MelodyProgram))
	pad.add(0, midi.ProgramChange(channelPad, song.PadProgram))

	var bar uint32
	for _, sec := range song.Sections {
		start := bar * stepsPerBar * ticksPerStep

		pos := start
		for _, n := range sec.Melody {
			length := uint32(n.Steps) * ticksPerStep
			if n.Key > 0 {
				melody.note(channelMelody, uint8(n.Key), uint8(n.Velocity), pos, length)
			}
			pos += length
		}

		per, err := sec.Chords.ChordsPerBar()
		if err != nil {
			return err
		}
		chordLen := uint32(stepsPerBar/per) * ticksPerStep
		for b := 0; b < sec.Bars; b++ {
			for i, ch := range sec.Chords.Bar(b) {
				at := start + uint32(b)*stepsPerBar*ticksPerStep + uint32(i)*chordLen
				for _, key := range ch.Voicing(4 * octave) {
					pad.note(channelPad, uint8(key), padVelocity, at, chordLen)
				}
			}
		}

		for i, step := range sec.Drums.Steps {
			at := start + uint32(i)*ticksPerStep
			for _, key := range step {
				if key > 0 {
					drums.note(channelDrums, key, drumVelocity, at, ticksPerStep)
				}
			}
		}
		bar += uint32(sec.Bars)
	}

	for _, tr := range []smf.Track{conductor, melody.smf("melody"), pad.smf("pad"), drums.smf("drums")} {
		if err := s.Add(tr); err != nil {
			return fmt.Errorf("add track: %w", err)
		}
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}
