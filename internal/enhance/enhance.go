// Package enhance sharpens violation crops before OCR: grayscale, CLAHE
// contrast boost, a 3x3 sharpening kernel, min-max brightness normalization
// and a light denoise pass.
package enhance

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

type Enhancer struct {
	clipLimit float64
	tileGrid  image.Point
}

func New() *Enhancer {
	return &Enhancer{clipLimit: 3.0, tileGrid: image.Pt(8, 8)}
}

// Enhance reads srcPath, applies the enhancement chain and writes the result
// to dstPath.
func (e *Enhancer) Enhance(srcPath, dstPath string) error {
	img := gocv.IMRead(srcPath, gocv.IMReadColor)
	if img.Empty() {
		return fmt.Errorf("cannot read image %s", srcPath)
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	clahe := gocv.NewCLAHEWithParams(e.clipLimit, e.tileGrid)
	defer clahe.Close()
	contrasted := gocv.NewMat()
	defer contrasted.Close()
	clahe.Apply(gray, &contrasted)

	kernel := sharpeningKernel()
	defer kernel.Close()
	sharpened := gocv.NewMat()
	defer sharpened.Close()
	gocv.Filter2D(contrasted, &sharpened, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(sharpened, &normalized, 0, 255, gocv.NormMinMax)

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(normalized, &denoised, 10, 7, 21)

	if !gocv.IMWrite(dstPath, denoised) {
		return fmt.Errorf("cannot write enhanced image %s", dstPath)
	}
	return nil
}

func sharpeningKernel() gocv.Mat {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			kernel.SetFloatAt(row, col, -1)
		}
	}
	kernel.SetFloatAt(1, 1, 9)
	return kernel
}
