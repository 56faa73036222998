package service

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// minOCRWidth is the narrowest page image Tesseract handles reliably at the
// configured DPI; anything narrower gets upscaled first.
const minOCRWidth = 1200

// Preprocessor prepares a scanned challan page for optical recognition:
// upscale, grayscale, then Otsu binarization to strip the background
// watermark most bank portals stamp on receipts.
type Preprocessor struct {
	targetDPI int
}

func NewPreprocessor(targetDPI int) *Preprocessor {
	if targetDPI <= 0 {
		targetDPI = 300
	}
	return &Preprocessor{targetDPI: targetDPI}
}

func (p *Preprocessor) Prepare(img image.Image) image.Image {
	img = p.upscale(img)
	gray := toGray(img)
	bin := binarize(gray, otsuThreshold(gray))
	if angle := skewAngle(bin); math.Abs(angle) > 0.3 {
		bin = rotate(bin, -angle)
	}
	return bin
}

func (p *Preprocessor) upscale(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() >= minOCRWidth {
		return img
	}

	scale := float64(minOCRWidth) / float64(bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, minOCRWidth, int(float64(bounds.Dy())*scale)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

func toGray(img image.Image) *image.Gray {
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// otsuThreshold picks the binarization threshold that minimizes intra-class
// variance over the grayscale histogram.
func otsuThreshold(gray *image.Gray) uint8 {
	var hist [256]int
	bounds := gray.Bounds()
	total := bounds.Dx() * bounds.Dy()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[gray.GrayAt(x, y).Y]++
		}
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB float64
	var best float64
	threshold := uint8(127)
	for i := 0; i < 256; i++ {
		wB += float64(hist[i])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(i) * float64(hist[i])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			threshold = uint8(i)
		}
	}
	return threshold
}

// skewAngle estimates the dominant text-line tilt in degrees by sweeping
// candidate angles and maximizing the sharpness of the horizontal projection
// profile. Dark pixels are sampled on a coarse grid to keep the sweep cheap.
func skewAngle(bin *image.Gray) float64 {
	const sampleStep = 4
	bounds := bin.Bounds()

	type point struct{ x, y float64 }
	var points []point
	for y := bounds.Min.Y; y < bounds.Max.Y; y += sampleStep {
		for x := bounds.Min.X; x < bounds.Max.X; x += sampleStep {
			if bin.GrayAt(x, y).Y == 0 {
				points = append(points, point{float64(x), float64(y)})
			}
		}
	}
	if len(points) < 64 {
		return 0
	}

	offset := bounds.Dx()
	binCount := bounds.Dy() + 2*offset
	rows := make([]int, binCount)

	best, bestScore := 0.0, -1.0
	for angle := -5.0; angle <= 5.0; angle += 0.25 {
		rad := angle * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)

		for i := range rows {
			rows[i] = 0
		}
		for _, pt := range points {
			row := int(pt.y*cos-pt.x*sin) + offset
			if row >= 0 && row < binCount {
				rows[row]++
			}
		}

		score := 0.0
		for _, c := range rows {
			score += float64(c) * float64(c)
		}
		if score > bestScore {
			bestScore = score
			best = angle
		}
	}
	return best
}

// rotate rotates a binarized page about its center, filling the uncovered
// corners with white.
func rotate(bin *image.Gray, degrees float64) *image.Gray {
	bounds := bin.Bounds()
	dst := image.NewGray(bounds)
	draw.Draw(dst, bounds, image.White, image.Point{}, draw.Src)

	rad := degrees * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx := float64(bounds.Min.X+bounds.Max.X) / 2
	cy := float64(bounds.Min.Y+bounds.Max.Y) / 2

	m := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	xdraw.CatmullRom.Transform(dst, m, bin, bounds, xdraw.Over, nil)
	return dst
}

func binarize(gray *image.Gray, threshold uint8) *image.Gray {
	bounds := gray.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}
