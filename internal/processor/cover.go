package processor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	"image/png"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP covers from streaming services
	"go.uber.org/zap"
)

const defaultBlurRadius = 8.0

// CoverProcessor renders album art as a square thumbnail. Non-square covers
// are fitted over a blurred fill of themselves.
type CoverProcessor struct {
	logger     *zap.Logger
	size       int
	blurRadius float64
}

// NewCoverProcessor creates a processor producing size x size PNG images
func NewCoverProcessor(logger *zap.Logger, size int) *CoverProcessor {
	return &CoverProcessor{
		logger:     logger,
		size:       size,
		blurRadius: defaultBlurRadius,
	}
}

// Process decodes imageData and returns the encoded PNG thumbnail
func (p *CoverProcessor) Process(ctx context.Context, imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dy() == 0 || bounds.Dx() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	var result image.Image
	if bounds.Dx() == bounds.Dy() {
		result = imaging.Resize(img, p.size, p.size, imaging.Lanczos)
	} else {
		background := imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Lanczos)
		background = imaging.Blur(background, p.blurRadius)

		cover := imaging.Fit(img, p.size, p.size, imaging.Lanczos)
		offset := image.Pt((p.size-cover.Bounds().Dx())/2, (p.size-cover.Bounds().Dy())/2)
		result = imaging.Paste(background, cover, offset)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, result); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	p.logger.Debug("Image processed successfully", zap.Int("bytes", buf.Len()), zap.Int("size", p.size))
	return buf.Bytes(), nil
}

// Generate processes imageData and writes the thumbnail to outputPath,
// returning its absolute path
func (p *CoverProcessor) Generate(ctx context.Context, imageData []byte, outputPath string) (string, error) {
	processed, err := p.Process(ctx, imageData)
	if err != nil {
		return "", fmt.Errorf("failed to process image: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, processed, 0o644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}

	absPath, err := filepath.Abs(outputPath)
	if err != nil {
		return outputPath, nil
	}

	p.logger.Info("Cover thumbnail written", zap.String("path", absPath), zap.Int("bytes", len(processed)))
	return absPath, nil
}
