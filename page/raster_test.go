package page

import (
	"math/rand"
	"testing"

	"github.com/paperback-web/paperback/block"
)

func TestPaintProducesExpectedBufferSize(t *testing.T) {
	g, err := NewGeometry(150, 70, 2, 20, 2000, 2000)
	if err != nil {
		t.Fatalf("NewGeometry: %v", err)
	}
	var sb [block.Size]byte
	data := make([][block.Size]byte, g.GroupsPerPage)
	parity := make([][block.Size]byte, g.GroupsPerPage)
	r := Paint(g, sb, data, parity, true)
	if len(r.Pixels) != r.Width*r.Height {
		t.Fatalf("pixel buffer length %d != width*height %d", len(r.Pixels), r.Width*r.Height)
	}
	if r.Width != g.PageWidthPx || r.Height != g.PageHeightPx {
		t.Fatalf("raster dims %dx%d != geometry %dx%d", r.Width, r.Height, g.PageWidthPx, g.PageHeightPx)
	}
}

func TestPaintedBorderIsBlack(t *testing.T) {
	g, err := NewGeometry(150, 70, 2, 20, 2000, 2000)
	if err != nil {
		t.Fatalf("NewGeometry: %v", err)
	}
	var sb [block.Size]byte
	r := Paint(g, sb, nil, nil, true)
	for x := 0; x < r.Width; x++ {
		if r.Pixels[x] != black {
			t.Fatalf("top border pixel (%d,0) = %#02x, want black", x, r.Pixels[x])
		}
	}
}

func TestPaintAcceptsFrameThatRoundTripsThroughDotGrid(t *testing.T) {
	g, err := NewGeometry(150, 70, 2, 20, 2000, 2000)
	if err != nil {
		t.Fatalf("NewGeometry: %v", err)
	}
	var frame [block.Size]byte
	rnd := rand.New(rand.NewSource(9))
	rnd.Read(frame[:])

	grid := block.FromFrame(frame)
	back := grid.ToFrame()
	if back != frame {
		t.Fatal("sanity check failed: FromFrame/ToFrame did not round trip before painting")
	}

	r := Paint(g, frame, nil, nil, false)
	if len(r.Pixels) == 0 {
		t.Fatal("painted an empty page")
	}
}
