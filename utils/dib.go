package utils

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// Compression values accepted in a BITMAPINFOHEADER.
const (
	biRGB       = 0
	biBitfields = 3
)

// Header sizes: BITMAPINFOHEADER, and the V4 header that first carries the
// colour masks inside the header.
const (
	dibHeaderSize   = 40
	dibV4HeaderSize = 108
)

// DecodeDIB decodes a device independent bitmap as placed on the Windows
// clipboard (CF_DIB or CF_DIBV5): a BITMAPINFOHEADER or one of its larger
// versions followed by 24 or 32 bit pixels. A 40 byte header with
// BI_BITFIELDS is followed by three masks; larger headers hold them inline.
func DecodeDIB(data []byte) (image.Image, error) {
	if len(data) < dibHeaderSize {
		return nil, fmt.Errorf("invalid DIB data: too small")
	}

	headerSize := binary.LittleEndian.Uint32(data[0:4])
	if headerSize < dibHeaderSize || uint64(headerSize) > uint64(len(data)) {
		return nil, fmt.Errorf("invalid DIB header size: %d", headerSize)
	}
	width := int64(int32(binary.LittleEndian.Uint32(data[4:8])))
	height := int64(int32(binary.LittleEndian.Uint32(data[8:12])))
	bitCount := int64(binary.LittleEndian.Uint16(data[14:16]))
	compression := binary.LittleEndian.Uint32(data[16:20])
	colorsUsed := int64(binary.LittleEndian.Uint32(data[32:36]))

	bottomUp := height > 0
	if height < 0 {
		height = -height
	}
	if width <= 0 || height == 0 {
		return nil, fmt.Errorf("invalid DIB dimensions %dx%d", width, height)
	}
	if bitCount != 24 && bitCount != 32 {
		return nil, fmt.Errorf("unsupported bit depth: %d", bitCount)
	}

	offset := int64(headerSize)
	alpha := false
	switch compression {
	case biRGB:
	case biBitfields:
		if headerSize < dibV4HeaderSize {
			offset += 12
			alpha = bitCount == 32
		} else {
			alpha = bitCount == 32 && binary.LittleEndian.Uint32(data[52:56]) != 0
		}
	default:
		return nil, fmt.Errorf("unsupported compression: %d", compression)
	}
	// an optional colour table may sit between header and pixels
	offset += colorsUsed * 4

	// rows are padded to 4 bytes
	stride := ((width*bitCount + 31) / 32) * 4
	avail := int64(len(data)) - offset
	if avail < 0 || height > avail/stride {
		return nil, fmt.Errorf("invalid DIB data: insufficient pixel data for %dx%d", width, height)
	}

	w, h := int(width), int(height)
	bpp := int(bitCount / 8)
	pixels := data[offset:]
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for row := 0; row < h; row++ {
		y := row
		if bottomUp {
			y = h - 1 - row
		}
		line := pixels[int64(row)*stride:]
		for x := 0; x < w; x++ {
			px := line[x*bpp:]
			a := uint8(255)
			if alpha {
				a = px[3]
			}
			img.SetNRGBA(x, y, color.NRGBA{R: px[2], G: px[1], B: px[0], A: a})
		}
	}
	return img, nil
}
