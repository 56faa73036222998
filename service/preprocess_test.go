package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func syntheticPage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 400, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 400; x++ {
			img.SetGray(x, y, color.Gray{Y: 230})
		}
	}
	// Horizontal text-like bands.
	for _, band := range []int{40, 80, 120, 160} {
		for y := band; y < band+8; y++ {
			for x := 20; x < 380; x++ {
				img.SetGray(x, y, color.Gray{Y: 20})
			}
		}
	}
	return img
}

func TestOtsuSeparatesInkFromBackground(t *testing.T) {
	page := syntheticPage()
	threshold := otsuThreshold(page)
	assert.Greater(t, threshold, uint8(20))
	assert.Less(t, threshold, uint8(230))

	bin := binarize(page, threshold)
	assert.Equal(t, uint8(0), bin.GrayAt(100, 44).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(100, 10).Y)
}

func TestSkewAngleOnStraightPage(t *testing.T) {
	page := syntheticPage()
	bin := binarize(page, otsuThreshold(page))
	assert.InDelta(t, 0.0, skewAngle(bin), 0.3)
}

func TestPrepareUpscalesSmallImages(t *testing.T) {
	small := image.NewGray(image.Rect(0, 0, 300, 150))
	for y := 0; y < 150; y++ {
		for x := 0; x < 300; x++ {
			small.SetGray(x, y, color.Gray{Y: 255})
		}
	}

	out := NewPreprocessor(300).Prepare(small)
	assert.GreaterOrEqual(t, out.Bounds().Dx(), minOCRWidth)
}
