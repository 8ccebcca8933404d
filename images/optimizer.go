package images

import (
	"image/png"
	"os"
	"path/filepath"

	"github.com/agnosto/board-collector/config"
	"github.com/disintegration/imaging"
)

// Optimizer shrinks downloaded images into the optimized directory.
type Optimizer struct {
	outDir      string
	maxWidth    int
	jpegQuality int
}

func NewOptimizer(cfg *config.Config) *Optimizer {
	return &Optimizer{
		outDir:      cfg.OptimizedDir(),
		maxWidth:    cfg.Images.MaxWidth,
		jpegQuality: cfg.Images.JPEGQuality,
	}
}

// Optimize resizes src down to the maximum width (never up), re-encodes it
// under the same name in the optimized directory and deletes src. src is
// left in place when decoding or encoding fails.
func (o *Optimizer) Optimize(src string) (string, error) {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", &OptimizeError{Path: src, Err: err}
	}

	if img.Bounds().Dx() > o.maxWidth {
		img = imaging.Resize(img, o.maxWidth, 0, imaging.Lanczos)
	}

	if err := os.MkdirAll(o.outDir, os.ModePerm); err != nil {
		return "", &OptimizeError{Path: src, Err: err}
	}

	dst := filepath.Join(o.outDir, filepath.Base(src))
	err = imaging.Save(img, dst,
		imaging.JPEGQuality(o.jpegQuality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
	if err != nil {
		os.Remove(dst)
		return "", &OptimizeError{Path: src, Err: err}
	}

	if err := os.Remove(src); err != nil {
		return "", &OptimizeError{Path: src, Err: err}
	}
	return dst, nil
}
