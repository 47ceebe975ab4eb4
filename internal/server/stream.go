package server

import (
	"fmt"
	"net/http"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
)

// streamInterval paces the preview at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// FrameReader yields the most recent camera frame. The caller closes it.
type FrameReader interface {
	ReadFrame() (*gocv.Mat, error)
}

// StreamHandler serves the preview as MJPEG.
type StreamHandler struct {
	frames FrameReader
}

// NewStreamHandler creates a new StreamHandler reading from frames.
func NewStreamHandler(frames FrameReader) *StreamHandler {
	return &StreamHandler{frames: frames}
}

// ServeHTTP streams MJPEG frames until the client disconnects.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		frame, err := h.frames.ReadFrame()
		if err != nil {
			continue
		}
		jpg, err := capture.EncodeJPEG(frame, capture.DefaultJPEGQuality)
		frame.Close()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpg))
		if _, err := w.Write(jpg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
