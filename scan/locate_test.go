package scan

import "testing"

func uniformImage(w, h int, v byte) []byte {
	buf := make([]byte, w*h)
	for i := range buf {
		buf[i] = v
	}
	return buf
}

func TestRoughBoundsOnUniformImageCoversWholeImage(t *testing.T) {
	const w, h = 200, 150
	img := uniformImage(w, h, 200)
	b := RoughBounds(img, w, h)
	if b.XMin != 0 || b.XMax != w-1 || b.YMin != 0 || b.YMax != h-1 {
		t.Fatalf("RoughBounds on a uniform image = %+v, want the full image", b)
	}
}

func TestMeasureIntensityOnUniformImage(t *testing.T) {
	const w, h = 50, 50
	img := uniformImage(w, h, 123)
	in := MeasureIntensity(img, w, Bounds{XMin: 0, XMax: w - 1, YMin: 0, YMax: h - 1})
	if in.Mean != 123 || in.Min != 123 || in.Max != 123 {
		t.Fatalf("MeasureIntensity = %+v, want all 123", in)
	}
}

func TestLocateRejectsFlatImage(t *testing.T) {
	const w, h = 300, 300
	img := uniformImage(w, h, 255)
	if _, err := Locate(img, w, h); err == nil {
		t.Fatal("expected Locate to reject a featureless flat image")
	}
}

func TestLocateFindsPitchOnSyntheticGrid(t *testing.T) {
	const w, h = 800, 800
	const pitch = 40 // >= NDOT=32 so Locate's pitch guard accepts the fit
	img := uniformImage(w, h, 255)
	for y := 0; y < h; y += pitch {
		for x := 0; x < w; x++ {
			img[y*w+x] = 0
		}
	}
	for x := 0; x < w; x += pitch {
		for y := 0; y < h; y++ {
			img[y*w+x] = 0
		}
	}

	g, err := Locate(img, w, h)
	if err != nil {
		t.Fatalf("Locate on a clean synthetic grid: %v", err)
	}
	if diff := g.X.Step - pitch; diff < -3 || diff > 3 {
		t.Fatalf("fitted X step = %v, want close to %d", g.X.Step, pitch)
	}
	if diff := g.Y.Step - pitch; diff < -3 || diff > 3 {
		t.Fatalf("fitted Y step = %v, want close to %d", g.Y.Step, pitch)
	}
}
