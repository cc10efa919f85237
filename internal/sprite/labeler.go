package sprite

import (
	"errors"
	"image"
	"image/color"
	"log/slog"

	"github.com/MeKo-Tech/qrscan/internal/mempool"
)

// ErrInvalidImage is returned when the input cannot be labeled.
var ErrInvalidImage = errors.New("sprite: invalid image")

// Options controls labeling.
type Options struct {
	// Background is the colour treated as empty space. When nil the most
	// frequent colour of the image is used.
	Background color.Color
}

// causal neighbours already visited in a row-major scan: NW, N, NE, W.
var causal = [4][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}}

// Find labels the 8-connected foreground regions of img.
//
// Pass one assigns provisional labels, taking the lowest label among the
// already visited neighbours. Pass two unions every label with the labels of
// its causal neighbours. Pass three rewrites each pixel to the canonical
// (minimum) label of its class while tracking bounding boxes.
func Find(img image.Image, opts Options) (*Result, error) {
	if img == nil {
		return nil, ErrInvalidImage
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	lm := &LabelMap{minX: b.Min.X, minY: b.Min.Y, width: w, height: h, labels: make([]int, w*h)}
	res := &Result{Sprites: map[int]Sprite{}, Labels: lm}
	if w == 0 || h == 0 {
		return res, nil
	}

	bg := opts.Background
	if bg == nil {
		bg = MostFrequentColor(img)
	}
	fg := foregroundMask(img, bg)
	defer mempool.PutBool(fg)

	uf := newUnionFind(64)
	labels := lm.labels

	// Pass 1: provisional labels.
	for y := range h {
		for x := range w {
			i := y*w + x
			if !fg[i] {
				continue
			}
			lowest := 0
			for _, d := range causal {
				if l := neighbourLabel(labels, w, h, x+d[0], y+d[1]); l != 0 && (lowest == 0 || l < lowest) {
					lowest = l
				}
			}
			if lowest == 0 {
				lowest = uf.add()
			}
			labels[i] = lowest
		}
	}

	// Pass 2: adjacency between provisional labels.
	for y := range h {
		for x := range w {
			l := labels[y*w+x]
			if l == 0 {
				continue
			}
			for _, d := range causal {
				if n := neighbourLabel(labels, w, h, x+d[0], y+d[1]); n != 0 && n != l {
					uf.union(l, n)
				}
			}
		}
	}

	// Pass 3: canonical labels and bounding boxes.
	for y := range h {
		for x := range w {
			i := y*w + x
			if labels[i] == 0 {
				continue
			}
			canon := uf.find(labels[i])
			labels[i] = canon
			px, py := x+b.Min.X, y+b.Min.Y
			s, ok := res.Sprites[canon]
			if !ok {
				s = Sprite{Label: canon, X1: px, Y1: py, X2: px, Y2: py}
			}
			if px < s.X1 {
				s.X1 = px
			}
			if px > s.X2 {
				s.X2 = px
			}
			if py > s.Y2 {
				s.Y2 = py
			}
			s.Pixels++
			res.Sprites[canon] = s
		}
	}

	slog.Debug("Sprites labeled",
		"provisional", len(uf.parent)-1,
		"components", uf.classes(),
		"width", w, "height", h)
	return res, nil
}

func neighbourLabel(labels []int, w, h, x, y int) int {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0
	}
	return labels[y*w+x]
}

// foregroundMask marks every pixel that differs from bg and is not fully
// transparent. The mask comes from mempool; callers return it with PutBool.
func foregroundMask(img image.Image, bg color.Color) []bool {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := mempool.GetBool(w * h)

	if g, ok := img.(*image.Gray); ok {
		bgY := color.GrayModel.Convert(bg).(color.Gray).Y
		for y := range h {
			row := g.Pix[y*g.Stride : y*g.Stride+w]
			for x, v := range row {
				mask[y*w+x] = v != bgY
			}
		}
		return mask
	}

	key := color.NRGBAModel.Convert(bg).(color.NRGBA)
	for y := range h {
		for x := range w {
			c := color.NRGBAModel.Convert(img.At(x+b.Min.X, y+b.Min.Y)).(color.NRGBA)
			mask[y*w+x] = c.A != 0 && c != key
		}
	}
	return mask
}

// MostFrequentColor returns the colour that occurs most often in img.
func MostFrequentColor(img image.Image) color.Color {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		var hist [256]int
		for y := range b.Dy() {
			for _, v := range g.Pix[y*g.Stride : y*g.Stride+b.Dx()] {
				hist[v]++
			}
		}
		best := 0
		for v := range hist {
			if hist[v] > hist[best] {
				best = v
			}
		}
		return color.Gray{Y: uint8(best)}
	}

	counts := map[color.NRGBA]int{}
	var best color.NRGBA
	bestCount := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			counts[c]++
			if counts[c] > bestCount {
				best, bestCount = c, counts[c]
			}
		}
	}
	return best
}
