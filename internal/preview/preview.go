// Package preview renders the blurred teaser shown before a view is paid.
package preview

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/smallbiznis/privatedrops/internal/config"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedImage = errors.New("unsupported_image")

type Blurrer interface {
	// Blur returns the encoded blurred image and its content type.
	Blur(body []byte, mimeType string) ([]byte, string, error)
}

type GaussianBlurrer struct {
	sigma float64
}

func NewGaussianBlurrer(sigma float64) *GaussianBlurrer {
	if sigma <= 0 {
		sigma = 15
	}
	return &GaussianBlurrer{sigma: sigma}
}

func NewBlurrer(cfg config.Config) Blurrer {
	return NewGaussianBlurrer(cfg.Media.BlurSigma)
}

func (b *GaussianBlurrer) Blur(body []byte, mimeType string) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(body), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	blurred := imaging.Blur(img, b.sigma)

	format, contentType := imaging.JPEG, "image/jpeg"
	// webp cannot be encoded, png keeps transparency
	if mimeType == "image/png" {
		format, contentType = imaging.PNG, "image/png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, blurred, format, imaging.JPEGQuality(80)); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), contentType, nil
}
