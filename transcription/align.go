package transcription

import (
	"fmt"
	"strings"

	"github.com/kbukum/voicememo/diarization"
)

// AlignToSpeakers assigns every transcript segment to the speaker segment it
// overlaps most and returns the joined text per speaker segment index.
// Transcript segments that overlap no speaker segment go to the nearest one.
func AlignToSpeakers(text []Segment, speakers []diarization.Segment) map[int]string {
	out := make(map[int]string)
	if len(speakers) == 0 {
		return out
	}
	parts := make([][]string, len(speakers))
	for _, ts := range text {
		t := strings.TrimSpace(ts.Text)
		if t == "" {
			continue
		}
		best := bestMatch(ts, speakers)
		parts[best] = append(parts[best], t)
	}
	for i, p := range parts {
		if len(p) > 0 {
			out[i] = strings.Join(p, " ")
		}
	}
	return out
}

func bestMatch(ts Segment, speakers []diarization.Segment) int {
	best, bestOverlap := -1, 0.0
	for i, s := range speakers {
		if o := min(ts.End, s.End) - max(ts.Start, s.Start); o > bestOverlap {
			best, bestOverlap = i, o
		}
	}
	if best >= 0 {
		return best
	}
	mid := (ts.Start + ts.End) / 2
	nearest, bestDist := 0, -1.0
	for i, s := range speakers {
		d := 0.0
		switch {
		case mid < s.Start:
			d = s.Start - mid
		case mid > s.End:
			d = mid - s.End
		}
		if bestDist < 0 || d < bestDist {
			nearest, bestDist = i, d
		}
	}
	return nearest
}

// SpeakerTranscript renders per-segment text as "SPEAKER: text" lines in
// segment order.
func SpeakerTranscript(speakers []diarization.Segment, perSegment map[int]string) string {
	var b strings.Builder
	for i, s := range speakers {
		t, ok := perSegment[i]
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", s.Speaker, t)
	}
	return b.String()
}
