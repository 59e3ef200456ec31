// Package qrcodec is the boundary to the visual-medium collaborators.
// The chunk pipeline treats it as an opaque injective pair: Encode turns
// a chunk text into an image, Decode recovers the exact text from an
// image. Everything format-specific (module sizing, error correction,
// binarization) lives behind these two wrappers.
package qrcodec

import (
	"bytes"
	"fmt"
	"image"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

// Encoder renders chunk texts as QR PNG images.
type Encoder struct {
	// BoxSize is the pixel size of one QR module.
	BoxSize int

	// Border enables the quiet zone around the code. Scanners cope
	// badly without it; disable only for tightly packed sheets.
	Border bool

	// Recovery is the error correction level.
	Recovery qrcode.RecoveryLevel
}

// NewEncoder returns an encoder with the given module size. Low recovery
// maximizes payload capacity, which is what the chunk budget assumes.
func NewEncoder(boxSize int, border bool) *Encoder {
	if boxSize <= 0 {
		boxSize = 10
	}
	return &Encoder{BoxSize: boxSize, Border: border, Recovery: qrcode.Low}
}

// EncodePNG renders one chunk text as PNG bytes.
func (e *Encoder) EncodePNG(text string) ([]byte, error) {
	q, err := qrcode.New(text, e.Recovery)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	q.DisableBorder = !e.Border
	// Negative size scales each module to BoxSize pixels.
	data, err := q.PNG(-e.BoxSize)
	if err != nil {
		return nil, fmt.Errorf("qr render: %w", err)
	}
	return data, nil
}

// WritePNG renders one chunk text and writes it to path.
func (e *Encoder) WritePNG(text, path string) error {
	data, err := e.EncodePNG(text)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Decoder extracts chunk texts from QR images.
type Decoder struct {
	reader gozxing.Reader
}

// NewDecoder returns a QR image decoder.
func NewDecoder() *Decoder {
	return &Decoder{reader: zxqr.NewQRCodeReader()}
}

// Decode recovers the text from a decoded image.
func (d *Decoder) Decode(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qr binarize: %w", err)
	}
	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("qr decode: %w", err)
	}
	return result.GetText(), nil
}

// DecodeFile reads an image file and recovers its QR text.
func (d *Decoder) DecodeFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image %s: %w", path, err)
	}
	return d.Decode(img)
}

// DecodePNGBytes recovers the QR text from in-memory PNG bytes.
func (d *Decoder) DecodePNGBytes(data []byte) (string, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode png: %w", err)
	}
	return d.Decode(img)
}
