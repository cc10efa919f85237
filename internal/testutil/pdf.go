package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// BuildPDF is EncodePDF for tests.
func BuildPDF(t *testing.T, pages [][]image.Image) []byte {
	t.Helper()

	data, err := EncodePDF(pages)
	require.NoError(t, err)
	return data
}

// EncodePDF assembles a minimal PDF with one page per entry of pages. Every
// image is embedded as a DCT (JPEG) grayscale XObject and painted at its
// pixel size, stacked top to bottom.
func EncodePDF(pages [][]image.Image) ([]byte, error) {
	var objects [][]byte
	add := func(body []byte) int {
		objects = append(objects, body)
		return len(objects)
	}
	// 1 catalog, 2 page tree; filled in once the kids are known.
	add(nil)
	add(nil)

	var kids []int
	for _, imgs := range pages {
		width, height := 1, 1
		for _, img := range imgs {
			width = max(width, img.Bounds().Dx())
			height += img.Bounds().Dy()
		}

		var content, resources bytes.Buffer
		y := height
		for i, img := range imgs {
			b := img.Bounds()
			gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
			draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)

			var jpg bytes.Buffer
			if err := jpeg.Encode(&jpg, gray, &jpeg.Options{Quality: 100}); err != nil {
				return nil, fmt.Errorf("encode page image: %w", err)
			}

			var obj bytes.Buffer
			fmt.Fprintf(&obj, "<< /Type /XObject /Subtype /Image /Width %d /Height %d "+
				"/ColorSpace /DeviceGray /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>\nstream\n",
				b.Dx(), b.Dy(), jpg.Len())
			obj.Write(jpg.Bytes())
			obj.WriteString("\nendstream")
			num := add(obj.Bytes())

			name := fmt.Sprintf("Im%d", i)
			fmt.Fprintf(&resources, "/%s %d 0 R ", name, num)
			y -= b.Dy()
			fmt.Fprintf(&content, "q %d 0 0 %d 0 %d cm /%s Do Q\n", b.Dx(), b.Dy(), y, name)
		}

		contentNum := add([]byte(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String())))
		pageNum := add([]byte(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << /XObject << %s>> >> /Contents %d 0 R >>",
			width, height, resources.String(), contentNum)))
		kids = append(kids, pageNum)
	}

	var kidRefs bytes.Buffer
	for _, k := range kids {
		fmt.Fprintf(&kidRefs, "%d 0 R ", k)
	}
	objects[0] = []byte("<< /Type /Catalog /Pages 2 0 R >>")
	objects[1] = []byte(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kidRefs.String(), len(kids)))

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n", i+1)
		out.Write(body)
		out.WriteString("\nendobj\n")
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes(), nil
}

// WriteQRPDF writes a PDF with one QR fixture page per content string and
// returns its path.
func WriteQRPDF(t *testing.T, dir, name string, contents ...string) string {
	t.Helper()
	pages := make([][]image.Image, len(contents))
	for i, c := range contents {
		pages[i] = []image.Image{QRFixture(t, c)}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, BuildPDF(t, pages), 0o600))
	return path
}
