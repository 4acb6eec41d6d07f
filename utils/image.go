package utils

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// Attached images are shrunk to fit this box before upload.
	MaxAttachWidth  = 1920
	MaxAttachHeight = 1080

	// Images inside message bubbles are never wider than this.
	MaxDisplayWidth = 400

	jpegQuality = 85
)

// ImageAttachment is an image ready to be sent with a chat message.
type ImageAttachment struct {
	DataURI  string
	Filename string
	Image    image.Image
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp"}

// ImageExtensions lists the file extensions offered by the attach dialog.
func ImageExtensions() []string {
	return append([]string(nil), imageExts...)
}

// IsImageFile checks the extension against the supported image formats.
func IsImageFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, imgExt := range imageExts {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// PrepareImageFile decodes an image file and turns it into an attachment.
func PrepareImageFile(filePath string) (*ImageAttachment, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	att, err := PrepareImage(img, format)
	if err != nil {
		return nil, err
	}
	att.Filename = filepath.Base(filePath)
	return att, nil
}

// PrepareImage shrinks img to fit MaxAttachWidth x MaxAttachHeight and
// encodes it as a data URI. JPEG sources stay JPEG; everything else becomes
// PNG.
func PrepareImage(img image.Image, format string) (*ImageAttachment, error) {
	img = resize.Thumbnail(MaxAttachWidth, MaxAttachHeight, img, resize.Lanczos3)

	var buf bytes.Buffer
	subtype := "png"
	var err error
	if format == "jpeg" || format == "jpg" {
		subtype = "jpeg"
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	} else {
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &ImageAttachment{
		DataURI: fmt.Sprintf("data:image/%s;base64,%s", subtype, base64.StdEncoding.EncodeToString(buf.Bytes())),
		Image:   img,
	}, nil
}

// DecodeDataURI decodes a base64 image data URI.
func DecodeDataURI(dataURI string) (image.Image, error) {
	if !strings.HasPrefix(dataURI, "data:") {
		return nil, fmt.Errorf("not a data URI")
	}
	comma := strings.IndexByte(dataURI, ',')
	if comma < 0 || !strings.Contains(dataURI[:comma], ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding")
	}

	raw, err := base64.StdEncoding.DecodeString(dataURI[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URI: %w", err)
	}
	return DecodeImage(raw)
}

// DecodeImage decodes raw image bytes in any registered format.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// ScaleToWidth shrinks img proportionally so it is at most maxWidth wide.
// Narrower images are returned unchanged.
func ScaleToWidth(img image.Image, maxWidth uint) image.Image {
	if uint(img.Bounds().Dx()) <= maxWidth {
		return img
	}
	return resize.Resize(maxWidth, 0, img, resize.Lanczos3)
}
