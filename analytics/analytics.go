// Package analytics derives word and speaker statistics from a transcript.
// It is pure local computation.
package analytics

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kbukum/voicememo/diarization"
)

// DefaultFillers are counted when no list is configured. Multi-word fillers
// are matched as consecutive words.
var DefaultFillers = []string{"um", "uh", "er", "ah", "hmm", "like", "you know", "i mean", "basically", "actually", "literally", "sort of", "kind of"}

// Report holds transcript statistics.
type Report struct {
	WordCount       int                    `json:"word_count"`
	FillerWordCount int                    `json:"filler_word_count"`
	Fillers         map[string]int         `json:"fillers,omitempty"`
	Speakers        map[string]SpeakerStat `json:"speakers,omitempty"`
}

// SpeakerStat holds per-speaker statistics.
type SpeakerStat struct {
	TalkTimeSeconds float64 `json:"talk_time_seconds"`
	Words           int     `json:"words"`
	WordsPerMinute  float64 `json:"words_per_minute"`
}

// Analyzer computes reports.
type Analyzer struct {
	fillers [][]string
}

// New creates an Analyzer counting fillers (DefaultFillers when empty).
func New(fillers []string) *Analyzer {
	if len(fillers) == 0 {
		fillers = DefaultFillers
	}
	a := &Analyzer{}
	for _, f := range fillers {
		if words := Words(f); len(words) > 0 {
			a.fillers = append(a.fillers, words)
		}
	}
	// longest first so "you know" wins over a single-word entry
	sort.SliceStable(a.fillers, func(i, j int) bool { return len(a.fillers[i]) > len(a.fillers[j]) })
	return a
}

// Analyze builds a report for transcript. Speaker stats are added when
// segments and their per-segment text are given.
func (a *Analyzer) Analyze(transcript string, segments []diarization.Segment, perSegment map[int]string) Report {
	words := Words(transcript)
	r := Report{WordCount: len(words), Fillers: map[string]int{}}
	r.FillerWordCount = a.countFillers(words, r.Fillers)

	if len(segments) > 0 {
		r.Speakers = map[string]SpeakerStat{}
		for i, s := range segments {
			st := r.Speakers[s.Speaker]
			st.TalkTimeSeconds += s.Duration()
			st.Words += len(Words(perSegment[i]))
			r.Speakers[s.Speaker] = st
		}
		for k, st := range r.Speakers {
			if st.TalkTimeSeconds > 0 {
				st.WordsPerMinute = float64(st.Words) / st.TalkTimeSeconds * 60
			}
			r.Speakers[k] = st
		}
	}
	return r
}

func (a *Analyzer) countFillers(words []string, tally map[string]int) int {
	total := 0
	for i := 0; i < len(words); {
		matched := false
		for _, f := range a.fillers {
			if i+len(f) <= len(words) && equal(words[i:i+len(f)], f) {
				tally[strings.Join(f, " ")]++
				total++
				i += len(f)
				matched = true
				break
			}
		}
		if !matched {
			i++
		}
	}
	return total
}

// Words lowercases text and splits it into words, dropping punctuation
// except inner apostrophes.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func equal(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
