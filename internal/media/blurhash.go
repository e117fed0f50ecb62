package media

import (
	"bytes"
	"fmt"

	"github.com/buckket/go-blurhash"
	"github.com/disintegration/imaging"
)

// Blur is the placeholder hash and the original dimensions of an image
type Blur struct {
	Hash   string
	Width  int
	Height int
}

const blurSampleSize = 32

// BlurHash decodes an image, shrinks it to fit a 32x32 box and encodes a 4x3
// blurhash. Images already inside the box are not enlarged.
func BlurHash(data []byte) (*Blur, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	small := imaging.Fit(img, blurSampleSize, blurSampleSize, imaging.Box)

	hash, err := blurhash.Encode(4, 3, small)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blurhash: %w", err)
	}
	return &Blur{Hash: hash, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}
