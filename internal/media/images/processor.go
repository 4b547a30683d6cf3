package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"

	"github.com/bbrks/go-blurhash"
	"golang.org/x/image/draw"

	domainerrors "github.com/vieuxgrimoire/grimoire-server/internal/errors"
	"github.com/vieuxgrimoire/grimoire-server/internal/id"
)

const (
	// maxWidth is the widest stored cover. Larger uploads are scaled
	// down preserving aspect ratio; smaller ones are never upscaled.
	maxWidth = 800

	// jpegQuality is the re-encode quality target for stored covers.
	jpegQuality = 80

	// maxUploadBytes caps the accepted raw image size.
	maxUploadBytes = 10 << 20 // 10 MiB
)

// allowedMimeTypes is the upload allow-list. Everything is re-encoded
// to JPEG regardless of the input format.
var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// ProcessedImage describes a stored cover produced by Ingest.
type ProcessedImage struct {
	Name     string // Stored object name, e.g. "img-V1StGXR8_Z5jdHi6B-myT.jpg"
	BlurHash string // Low-resolution placeholder hash
	Width    int
	Height   int
}

// Processor validates, transcodes, and stores cover images.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		logger:  logger,
	}
}

// Ingest validates and normalizes an uploaded cover, stores it under a
// freshly generated name, and returns the stored object's description.
// The declared mime type must be on the allow-list and the payload must
// actually decode; a mislabeled payload is rejected.
func (p *Processor) Ingest(raw []byte, declaredMime string) (*ProcessedImage, error) {
	if !allowedMimeTypes[declaredMime] {
		return nil, domainerrors.UnsupportedMedia(fmt.Sprintf("unsupported image type %q (accepted: jpeg, png)", declaredMime))
	}
	if len(raw) == 0 {
		return nil, domainerrors.Validation("image data is empty")
	}
	if len(raw) > maxUploadBytes {
		return nil, domainerrors.Validation("image exceeds maximum size")
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, domainerrors.UnsupportedMedia("image data could not be decoded").WithCause(err)
	}

	img = resizeToMaxWidth(img, maxWidth)
	bounds := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode cover: %w", err)
	}

	hash, err := computeBlurHash(img)
	if err != nil {
		// The placeholder is cosmetic; a failed hash never blocks ingestion.
		p.logger.Warn("failed to compute blurhash", "error", err)
		hash = ""
	}

	imageID, err := id.Generate("img")
	if err != nil {
		return nil, fmt.Errorf("generate image ID: %w", err)
	}
	name := imageID + ".jpg"

	if err := p.storage.Save(name, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("store cover: %w", err)
	}

	p.logger.Debug("ingested cover",
		"name", name,
		"format", format,
		"width", bounds.Dx(),
		"height", bounds.Dy(),
		"bytes", buf.Len(),
	)

	return &ProcessedImage{
		Name:     name,
		BlurHash: hash,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Retire removes a stored cover, best effort. Failures are logged and
// never propagated: asset cleanup must not block or fail the book
// mutation that orphaned the asset. Callers run this off the request
// path (go p.Retire(name)).
func (p *Processor) Retire(name string) {
	if name == "" {
		return
	}
	if err := p.storage.Delete(name); err != nil {
		p.logger.Warn("failed to retire cover", "name", name, "error", err)
		return
	}
	p.logger.Debug("retired cover", "name", name)
}

// resizeToMaxWidth scales img down to at most width pixels wide,
// preserving aspect ratio. Images already narrow enough are returned
// unchanged; upscaling never happens.
func resizeToMaxWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	if srcWidth <= width {
		return img
	}

	dstWidth := width
	dstHeight := (srcHeight * width) / srcWidth
	if dstHeight < 1 {
		dstHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// computeBlurHash generates a BlurHash placeholder from a decoded image.
// The image is shrunk to a small thumbnail first; BlurHash output is
// near-identical at low resolution and far cheaper to compute.
func computeBlurHash(img image.Image) (string, error) {
	const thumbSize = 64

	bounds := img.Bounds()
	if bounds.Dx() > thumbSize {
		thumbHeight := (bounds.Dy() * thumbSize) / bounds.Dx()
		if thumbHeight < 1 {
			thumbHeight = 1
		}
		thumb := image.NewRGBA(image.Rect(0, 0, thumbSize, thumbHeight))
		draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), img, bounds, draw.Over, nil)
		img = thumb
	}

	// 4x3 components, a good balance of size and detail for book covers.
	return blurhash.Encode(4, 3, img)
}
