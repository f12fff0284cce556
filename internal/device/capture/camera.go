package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Frame is one encoded frame straight off the camera. The hub receives
// Data verbatim plus the declared format; muxing to a final container
// happens server-side.
type Frame struct {
	Data   []byte
	Format string
}

// Camera abstracts the capture device so the pipeline runs against a
// fake in tests.
type Camera interface {
	CaptureFrame() (Frame, error)
	Close() error
}

// GoCVCamera wraps a gocv video capture device, JPEG-encoding each
// grabbed frame.
type GoCVCamera struct {
	mu     sync.Mutex
	webcam *gocv.VideoCapture
	img    gocv.Mat
}

func OpenCamera(deviceID, width, height, framerate int) (*GoCVCamera, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("capture: open video device %d: %w", deviceID, err)
	}
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	if framerate > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(framerate))
	}
	return &GoCVCamera{webcam: webcam, img: gocv.NewMat()}, nil
}

func (c *GoCVCamera) CaptureFrame() (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ok := c.webcam.Read(&c.img); !ok || c.img.Empty() {
		return Frame{}, fmt.Errorf("capture: read frame failed")
	}
	buf, err := gocv.IMEncode(".jpg", c.img)
	if err != nil {
		return Frame{}, fmt.Errorf("capture: encode frame: %w", err)
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return Frame{Data: data, Format: "jpeg"}, nil
}

func (c *GoCVCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.img.Close()
	return c.webcam.Close()
}
