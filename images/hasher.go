package images

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// HashLength is the number of binary digits in a rendered hash.
const HashLength = 64

// Hasher computes DCT perceptual hashes.
type Hasher struct{}

// Hash returns the perceptual hash of the image at path as a string of
// HashLength '0'/'1' digits.
func (Hasher) Hash(path string) (string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return "", &OptimizeError{Path: path, Err: err}
	}
	return HashImage(img)
}

func HashImage(img image.Image) (string, error) {
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("failed to hash image: %w", err)
	}
	return fmt.Sprintf("%0*b", HashLength, h.GetHash()), nil
}
