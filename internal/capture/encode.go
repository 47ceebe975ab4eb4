package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is used for preview stream frames.
const DefaultJPEGQuality = 80

var errNilFrame = errors.New("nil or empty frame")

// EncodePNG encodes frame as PNG. Sign thumbnails are stored in this format.
func EncodePNG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, errNilFrame
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()

	return copyBytes(buf.GetBytes()), nil
}

// EncodeJPEG encodes frame as JPEG at the given quality (1-100).
func EncodeJPEG(frame *gocv.Mat, quality int) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, errNilFrame
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, *frame, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	return copyBytes(buf.GetBytes()), nil
}

// copyBytes detaches encoded data from the native buffer before it is closed.
func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
