package systems

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/draw"
)

// FieldKind selects how image pixels map onto an auxiliary grid.
type FieldKind int

const (
	// FieldStimuli keeps RGBA in [0, 1] (4 channels).
	FieldStimuli FieldKind = iota
	// FieldInfluence maps luminance to [-1, 1] (1 channel).
	FieldInfluence
	// FieldFluid maps red/green to a [-1, 1] vector (2 channels).
	FieldFluid
)

// Channels returns the grid channel count for the kind.
func (k FieldKind) Channels() int {
	switch k {
	case FieldInfluence:
		return 1
	case FieldFluid:
		return 2
	}
	return 4
}

func (k FieldKind) String() string {
	switch k {
	case FieldInfluence:
		return "influence"
	case FieldFluid:
		return "fluid"
	}
	return "stimuli"
}

// AuxFields groups the read-only fields particles sample. Any nil field
// reads as neutral.
type AuxFields struct {
	Stimuli   *Grid
	Influence *Grid
	Fluid     *Grid
}

// NeutralAux returns fields that contribute nothing anywhere.
func NeutralAux() AuxFields {
	return AuxFields{
		Stimuli:   NeutralGrid(FieldStimuli.Channels()),
		Influence: NeutralGrid(FieldInfluence.Channels()),
		Fluid:     NeutralGrid(FieldFluid.Channels()),
	}
}

// WithDefaults replaces nil fields with neutral ones.
func (a AuxFields) WithDefaults() AuxFields {
	if a.Stimuli == nil {
		a.Stimuli = NeutralGrid(FieldStimuli.Channels())
	}
	if a.Influence == nil {
		a.Influence = NeutralGrid(FieldInfluence.Channels())
	}
	if a.Fluid == nil {
		a.Fluid = NeutralGrid(FieldFluid.Channels())
	}
	return a
}

// StimuliAt returns the stimuli color at (u, v) and its intensity
// (luminance times alpha).
func (a AuxFields) StimuliAt(u, v float32) (mgl32.Vec4, float32) {
	g := a.Stimuli
	x, y := g.Texel(u, v)
	i := (y*g.W + x) * g.C
	c := mgl32.Vec4{g.Data[i], g.Data[i+1], g.Data[i+2], g.Data[i+3]}
	return c, Luminance(c)
}

// StimuliIntensity returns only the intensity at (u, v).
func (a AuxFields) StimuliIntensity(u, v float32) float32 {
	_, in := a.StimuliAt(u, v)
	return in
}

// InfluenceAt returns the signed influence at (u, v).
func (a AuxFields) InfluenceAt(u, v float32) float32 {
	return a.Influence.SampleNearest(u, v, 0)
}

// FluidAt returns the fluid vector at (u, v).
func (a AuxFields) FluidAt(u, v float32) mgl32.Vec2 {
	return a.Fluid.SampleVec2(u, v)
}

// Luminance returns Rec. 709 luma scaled by alpha.
func Luminance(c mgl32.Vec4) float32 {
	return (0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]) * c[3]
}

// LoadImageGrid decodes an image file into a grid of the given kind,
// downscaling so neither side exceeds maxSize (0 = no limit).
func LoadImageGrid(path string, kind FieldKind, maxSize int) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s source: %w", kind, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s source %s: %w", kind, path, err)
	}
	return GridFromImage(img, kind, maxSize), nil
}

// GridFromImage converts img into a grid of the given kind. Row 0 of the
// grid is the top row of the image.
func GridFromImage(img image.Image, kind FieldKind, maxSize int) *Grid {
	img = downscale(img, maxSize)
	b := img.Bounds()
	g := NewGrid(b.Dx(), b.Dy(), kind.Channels())

	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			rgba := mgl32.Vec4{
				float32(c.R) / 255,
				float32(c.G) / 255,
				float32(c.B) / 255,
				float32(c.A) / 255,
			}
			i := (y*g.W + x) * g.C
			switch kind {
			case FieldStimuli:
				copy(g.Data[i:i+4], rgba[:])
			case FieldInfluence:
				g.Data[i] = Luminance(rgba)*2 - 1
			case FieldFluid:
				g.Data[i] = rgba[0]*2 - 1
				g.Data[i+1] = rgba[1]*2 - 1
			}
		}
	}
	return g
}

func downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}
	if w >= h {
		h = max(1, h*maxSize/w)
		w = maxSize
	} else {
		w = max(1, w*maxSize/h)
		h = maxSize
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
