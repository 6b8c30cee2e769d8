package colorize

import (
	"math"
	"testing"

	"github.com/schoolmaps/overcrowding/pkg/errors"
)

var (
	green = RGBA{0, 255, 0, 1}
	red   = RGBA{255, 0, 0, 1}
	white = RGBA{255, 255, 255, 1}
)

func TestRGBAFormat(t *testing.T) {
	c := RGBA{R: 12, G: 200, B: 255, A: 0.75}
	if got := c.String(); got != "rgba(12, 200, 255, 0.75)" {
		t.Errorf("String() = %q", got)
	}
	if got := c.Hex(); got != "#0cc8ff" {
		t.Errorf("Hex() = %q", got)
	}
	if got := Neutral.WithAlpha(0.5).String(); got != "rgba(128, 128, 128, 0.5)" {
		t.Errorf("Neutral.WithAlpha(0.5) = %q", got)
	}
}

func TestLinear(t *testing.T) {
	lin, err := NewLinear([]ColorStop{
		{Position: 1, Color: red},
		{Position: 0, Color: green},
		{Position: 0.5, Color: white},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		value float64
		want  RGBA
	}{
		{"first stop", 0, green},
		{"middle stop exact", 0.5, white},
		{"last stop", 1, red},
		{"between", 0.25, RGBA{128, 255, 128, 1}},
		{"below range saturates", -2, green},
		{"above range saturates", 3, red},
		{"NaN is neutral", math.NaN(), Neutral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lin.Color(tt.value); got != tt.want {
				t.Errorf("Color(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLinearInvalid(t *testing.T) {
	if _, err := NewLinear(nil); !errors.Is(err, errors.ErrCodeInvalidPalette) {
		t.Errorf("empty stops: err = %v", err)
	}
	if _, err := NewLinear([]ColorStop{{Position: 1.5}}); !errors.Is(err, errors.ErrCodeInvalidPalette) {
		t.Errorf("out-of-range stop: err = %v", err)
	}
}

func TestLinearMonotonic(t *testing.T) {
	heat, err := Parse(PaletteHeat, 0)
	if err != nil {
		t.Fatal(err)
	}
	prev := heat.Color(0)
	for i := 1; i <= 20; i++ {
		c := heat.Color(float64(i) / 20)
		if c.R < prev.R || c.G > prev.G {
			t.Fatalf("heat not monotonic at %d: %v after %v", i, c, prev)
		}
		prev = c
	}
	if heat.Color(0.2) == heat.Color(0.8) {
		t.Error("distinct values should produce distinct colors")
	}
}

func TestBinned(t *testing.T) {
	colors := make([]RGBA, 9)
	for i := range colors {
		colors[i] = RGBA{R: uint8(i * 20), A: 1}
	}
	b, err := NewBinned(colors)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{0.1, 0},
		{0.12, 1},
		{0.5, 4},
		{0.999, 8},
		{1.0, 8},
		{1.7, 8},
		{-0.3, 0},
		{math.NaN(), -1},
	}
	for _, tt := range tests {
		if got := b.Bin(tt.value); got != tt.want {
			t.Errorf("Bin(%v) = %d, want %d", tt.value, got, tt.want)
		}
	}

	if got := b.Color(1.0); got != colors[8] {
		t.Errorf("Color(1.0) = %v, want last bin %v", got, colors[8])
	}
	if got := b.Color(math.NaN()); got != Neutral {
		t.Errorf("Color(NaN) = %v, want neutral", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		palette  string
		bins     int
		wantBins int
		wantErr  bool
	}{
		{"heat linear", "heat", 0, 0, false},
		{"rdylgn9 binned", "rdylgn9", 0, 9, false},
		{"case insensitive", " RdYlBu ", 0, 0, false},
		{"heat sampled", "heat", 5, 5, false},
		{"rdylgn9 resampled", "rdylgn9", 4, 4, false},
		{"custom hex", "#2c7bb6,#ffffbf,#d7191c", 0, 0, false},
		{"unknown", "viridis", 0, 0, true},
		{"bad hex", "#zzzzzz,#ffffff", 0, 0, true},
		{"negative bins", "heat", -1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse(tt.palette, tt.bins)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidPalette) {
					t.Fatalf("Parse() err = %v, want INVALID_PALETTE", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			b, binned := c.(*Binned)
			if tt.wantBins == 0 && binned {
				t.Fatalf("Parse() returned binned colorizer, want linear")
			}
			if tt.wantBins > 0 && (!binned || b.Len() != tt.wantBins) {
				t.Fatalf("Parse() = %T, want %d bins", c, tt.wantBins)
			}
		})
	}
}

func TestHeatMatchesFormula(t *testing.T) {
	heat, _ := Parse(PaletteHeat, 0)
	for _, v := range []float64{0, 0.25, 0.6, 1} {
		got := heat.Color(v)
		wantR := uint8(math.Round(255 * v))
		wantG := uint8(math.Round(255 * (1 - v)))
		if got.R != wantR || got.G != wantG || got.B != 0 {
			t.Errorf("heat(%v) = %v, want rgb(%d, %d, 0)", v, got, wantR, wantG)
		}
	}
}

func TestLerp(t *testing.T) {
	tests := []struct {
		t    float64
		a, b RGBA
		want RGBA
	}{
		{0, green, red, green},
		{1, green, red, red},
		{0.5, RGBA{0, 0, 0, 0}, RGBA{255, 100, 10, 1}, RGBA{128, 50, 5, 0.5}},
		{0.25, white, RGBA{0, 0, 0, 1}, RGBA{191, 191, 191, 1}},
	}
	for _, tt := range tests {
		if got := lerp(tt.a, tt.b, tt.t); got != tt.want {
			t.Errorf("lerp(%v, %v, %v) = %v, want %v", tt.a, tt.b, tt.t, got, tt.want)
		}
	}
}

func TestSample(t *testing.T) {
	lin, _ := NewLinear([]ColorStop{{0, green}, {1, red}})
	b, err := Sample(lin, 2)
	if err != nil {
		t.Fatal(err)
	}
	if b.Color(0) != green || b.Color(1) != red {
		t.Errorf("Sample ends = %v, %v", b.Color(0), b.Color(1))
	}
	if _, err := Sample(lin, 0); err == nil {
		t.Error("Sample(0) should fail")
	}
}
