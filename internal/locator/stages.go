package locator

import (
	"math"

	"github.com/MeKo-Tech/qrscan/internal/sprite"
	"github.com/MeKo-Tech/qrscan/internal/utils"
)

// Triple is a candidate arrangement of the three position detection
// patterns, with the right angle at UpperLeft.
type Triple struct {
	UpperLeft  sprite.Sprite `json:"upper_left" yaml:"upper_left"`
	UpperRight sprite.Sprite `json:"upper_right" yaml:"upper_right"`
	LowerLeft  sprite.Sprite `json:"lower_left" yaml:"lower_left"`
}

// Labels returns the sprite labels in UL, UR, LL order.
func (t Triple) Labels() [3]int {
	return [3]int{t.UpperLeft.Label, t.UpperRight.Label, t.LowerLeft.Label}
}

// Sprites returns the three sprites in UL, UR, LL order.
func (t Triple) Sprites() [3]sprite.Sprite {
	return [3]sprite.Sprite{t.UpperLeft, t.UpperRight, t.LowerLeft}
}

// Leg returns the distance between the UL and UR centroids.
func (t Triple) Leg() float64 {
	return utils.Distance(t.UpperLeft.Centroid(), t.UpperRight.Centroid())
}

// Pair is an unordered pair of sprites.
type Pair struct {
	A, B sprite.Sprite
}

// Distance returns the distance between the two centroids.
func (p Pair) Distance() float64 {
	return utils.Distance(p.A.Centroid(), p.B.Centroid())
}

// shared returns the sprite common to p and q together with the other member
// of each pair.
func (p Pair) shared(q Pair) (common, pOther, qOther sprite.Sprite, ok bool) {
	switch {
	case p.A.Label == q.A.Label:
		return p.A, p.B, q.B, true
	case p.A.Label == q.B.Label:
		return p.A, p.B, q.A, true
	case p.B.Label == q.A.Label:
		return p.B, p.A, q.B, true
	case p.B.Label == q.B.Label:
		return p.B, p.A, q.A, true
	}
	return sprite.Sprite{}, sprite.Sprite{}, sprite.Sprite{}, false
}

// PairGroup is two pairs that share exactly one sprite and have legs of
// similar length.
type PairGroup struct {
	First, Second Pair
}

// MinSurface estimates the smallest bounding box area a finder pattern can
// have, assuming the symbol covers about 1/25 of the frame and one pattern
// covers 9/(17+4v)^2 of the symbol.
func MinSurface(width, height, version int) int {
	symbolArea := float64(width*height) / 25
	side := float64(17 + 4*version)
	return int(symbolArea * 9 / (side * side))
}

// FilterVisible keeps sprites whose surface exceeds minSurface.
func FilterVisible(sprites []sprite.Sprite, minSurface int) []sprite.Sprite {
	return filter(sprites, func(s sprite.Sprite) bool { return s.Surface() > minSurface })
}

// FilterSquare keeps sprites whose bounding box is nearly square.
func FilterSquare(sprites []sprite.Sprite, tolerance float64) []sprite.Sprite {
	return filter(sprites, func(s sprite.Sprite) bool {
		return utils.RelativeDifference(float64(s.Height()), float64(s.Width())) <= tolerance
	})
}

// FilterDense keeps sprites whose foreground density reaches threshold.
func FilterDense(sprites []sprite.Sprite, threshold float64) []sprite.Sprite {
	return filter(sprites, func(s sprite.Sprite) bool { return s.Density() >= threshold })
}

func filter(sprites []sprite.Sprite, keep func(sprite.Sprite) bool) []sprite.Sprite {
	out := make([]sprite.Sprite, 0, len(sprites))
	for _, s := range sprites {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// GroupBySize clusters sprites of similar pixel count. Each ungrouped sprite
// in turn seeds a group and collects every later ungrouped sprite within
// threshold of the seed. Sprites that match nothing are dropped.
func GroupBySize(sprites []sprite.Sprite, threshold float64) [][]sprite.Sprite {
	grouped := make([]bool, len(sprites))
	var groups [][]sprite.Sprite
	for i, seed := range sprites {
		if grouped[i] {
			continue
		}
		group := []sprite.Sprite{seed}
		for j := i + 1; j < len(sprites); j++ {
			if grouped[j] {
				continue
			}
			if utils.RelativeDifference(float64(seed.Pixels), float64(sprites[j].Pixels)) > threshold {
				continue
			}
			grouped[i], grouped[j] = true, true
			group = append(group, sprites[j])
		}
		if len(group) > 1 {
			groups = append(groups, group)
		}
	}
	return groups
}

// Pairs enumerates all unordered pairs of sprites in input order.
func Pairs(sprites []sprite.Sprite) []Pair {
	n := len(sprites)
	out := make([]Pair, 0, n*(n-1)/2)
	for i := range n {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{A: sprites[i], B: sprites[j]})
		}
	}
	return out
}

// PairsBySimilarDistance returns every combination of two pairs that share
// one sprite and whose inter-centroid distances are within threshold of each
// other. Groups with fewer than three sprites cannot form a triple.
func PairsBySimilarDistance(group []sprite.Sprite, threshold float64) []PairGroup {
	if len(group) < 3 {
		return nil
	}
	pairs := Pairs(group)
	var out []PairGroup
	for i := range pairs {
		for j := i + 1; j < len(pairs); j++ {
			if _, _, _, ok := pairs[i].shared(pairs[j]); !ok {
				continue
			}
			if utils.RelativeDifference(pairs[i].Distance(), pairs[j].Distance()) > threshold {
				continue
			}
			out = append(out, PairGroup{First: pairs[i], Second: pairs[j]})
		}
	}
	return out
}

// CornerAngle returns the angle at ul from the ul->ur leg to the ul->ll leg,
// in degrees within [0, 360).
func CornerAngle(ul, ur, ll sprite.Sprite) float64 {
	return utils.AngleBetween(ur.Centroid(), ul.Centroid(), ll.Centroid())
}

// SearchTriples turns pair groups into oriented triples and keeps those whose
// corner angle is close to 90 degrees. The shared sprite becomes UpperLeft.
// When the measured angle exceeds 180 degrees the legs are swapped so the
// angle lies in [0, 180]. Duplicate triples are reported once.
func SearchTriples(groups []PairGroup, threshold float64) []Triple {
	seen := map[[3]int]bool{}
	var out []Triple
	for _, g := range groups {
		ul, ur, ll, ok := g.First.shared(g.Second)
		if !ok {
			continue
		}
		angle := CornerAngle(ul, ur, ll)
		if angle > 180 {
			ur, ll = ll, ur
			angle = 360 - angle
		}
		if math.Abs(angle-90)/90 > threshold {
			continue
		}
		t := Triple{UpperLeft: ul, UpperRight: ur, LowerLeft: ll}
		if seen[t.Labels()] {
			continue
		}
		seen[t.Labels()] = true
		out = append(out, t)
	}
	return out
}

// MatchInnerOuter looks for two triples whose corners sit on top of each
// other: the inner dark squares and the outer dark rings of the same three
// finder patterns. It returns the outer triple, identified by a LowerLeft box
// that strictly contains the other's.
func MatchInnerOuter(triples []Triple, threshold float64) (Triple, bool) {
	for i := range triples {
		for j := i + 1; j < len(triples); j++ {
			a, b := triples[i], triples[j]
			if !distinctCorners(a, b) || !colocated(a, b, threshold) {
				continue
			}
			switch {
			case a.LowerLeft.Contains(b.LowerLeft):
				return a, true
			case b.LowerLeft.Contains(a.LowerLeft):
				return b, true
			}
		}
	}
	return Triple{}, false
}

func distinctCorners(a, b Triple) bool {
	la, lb := a.Labels(), b.Labels()
	for k := range la {
		if la[k] == lb[k] {
			return false
		}
	}
	return true
}

func colocated(a, b Triple, threshold float64) bool {
	leg := math.Max(a.Leg(), b.Leg())
	if leg == 0 {
		return false
	}
	sa, sb := a.Sprites(), b.Sprites()
	for k := range sa {
		if utils.Distance(sa[k].Centroid(), sb[k].Centroid())/leg > threshold {
			return false
		}
	}
	return true
}
