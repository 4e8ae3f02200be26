package energy

import "math"

// Feature scales: one natural-log unit of loudness and a 0.05 change in
// zero-crossing rate count as the same distance.
const (
	loudnessScale = 1.0
	zcrScale      = 0.05
)

type group struct {
	members []int
	logRMS  float64
	zcr     float64
}

func (g group) dist(o group) float64 {
	dl := (g.logRMS - o.logRMS) / loudnessScale
	dz := (g.zcr - o.zcr) / zcrScale
	return math.Sqrt(dl*dl + dz*dz)
}

func merge(a, b group) group {
	na, nb := float64(len(a.members)), float64(len(b.members))
	return group{
		members: append(append([]int{}, a.members...), b.members...),
		logRMS:  (a.logRMS*na + b.logRMS*nb) / (na + nb),
		zcr:     (a.zcr*na + b.zcr*nb) / (na + nb),
	}
}

// cluster assigns a label to every region. Closest groups are merged while
// there are more than maxK, or while the closest pair is within mergeDist
// and more than minK remain. Labels are numbered by first appearance.
func cluster(regions []region, minK, maxK int, mergeDist float64) []int {
	groups := make([]group, len(regions))
	for i, r := range regions {
		groups[i] = group{members: []int{i}, logRMS: r.logRMS, zcr: r.zcr}
	}

	for len(groups) > 1 {
		bi, bj, best := 0, 1, math.Inf(1)
		for i := 0; i < len(groups); i++ {
			for j := i + 1; j < len(groups); j++ {
				if d := groups[i].dist(groups[j]); d < best {
					bi, bj, best = i, j, d
				}
			}
		}
		if len(groups) <= maxK && (best > mergeDist || len(groups) <= minK) {
			break
		}
		groups[bi] = merge(groups[bi], groups[bj])
		groups = append(groups[:bj], groups[bj+1:]...)
	}

	owner := make([]int, len(regions))
	for gi, g := range groups {
		for _, m := range g.members {
			owner[m] = gi
		}
	}
	labels := make([]int, len(regions))
	next := map[int]int{}
	for i, g := range owner {
		l, ok := next[g]
		if !ok {
			l = len(next)
			next[g] = l
		}
		labels[i] = l
	}
	return labels
}
