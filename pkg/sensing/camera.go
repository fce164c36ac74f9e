package sensing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// CameraConfig configures a CameraSource.
type CameraConfig struct {
	Device   int            // capture device index
	FPS      float64        // maximum observation rate
	Detector DetectorConfig // face detection model
}

// DefaultCameraConfig returns defaults for the first camera at 10 observations per second.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Device:   0,
		FPS:      10,
		Detector: DefaultDetectorConfig(),
	}
}

// CameraSource observes through a local camera with face detection. The
// observer's position is the center of the best face. Waving cannot be seen
// from faces and is never reported.
//
// The capture device is opened lazily and reopened after a failed read;
// the tracker's retry delay paces reopen attempts.
type CameraSource struct {
	cfg      CameraConfig
	detector Detector
	capture  *gocv.VideoCapture
	interval time.Duration

	// mu guards frame, which LatestJPEG reads from other goroutines.
	mu    sync.Mutex
	frame gocv.Mat

	last     time.Time
}

// NewCameraSource loads the face detection model. The camera itself is
// opened on the first call to Next.
func NewCameraSource(cfg CameraConfig) (*CameraSource, error) {
	det, err := NewYuNet(cfg.Detector)
	if err != nil {
		return nil, err
	}
	return newCameraSource(cfg, det), nil
}

func newCameraSource(cfg CameraConfig, det Detector) *CameraSource {
	var interval time.Duration
	if cfg.FPS > 0 {
		interval = time.Duration(float64(time.Second) / cfg.FPS)
	}
	return &CameraSource{
		cfg:      cfg,
		detector: det,
		frame:    gocv.NewMat(),
		interval: interval,
	}
}

func (c *CameraSource) open() error {
	capture, err := gocv.OpenVideoCapture(c.cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, c.cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d", ErrCameraUnavailable, c.cfg.Device)
	}
	c.capture = capture
	return nil
}

func (c *CameraSource) release() {
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
	}
}

// Next implements Source.
func (c *CameraSource) Next(ctx context.Context) (Observation, error) {
	if c.capture == nil {
		if err := c.open(); err != nil {
			return Observation{}, err
		}
	}

	if wait := c.interval - time.Since(c.last); wait > 0 {
		select {
		case <-ctx.Done():
			return Observation{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	c.last = time.Now()

	c.mu.Lock()
	ok := c.capture.Read(&c.frame) && !c.frame.Empty()
	var dets []Detection
	var err error
	if ok {
		dets, err = c.detector.Detect(c.frame)
	}
	c.mu.Unlock()
	if !ok {
		c.release()
		return Observation{}, ErrFrameRead
	}
	if err != nil {
		return Observation{}, fmt.Errorf("face detection: %w", err)
	}
	best := SelectBest(dets)
	if best == nil {
		return Observation{}, nil
	}
	x, _ := best.Center()
	return Observation{Detected: true, X: x}, nil
}

// LatestJPEG encodes the most recently captured frame as JPEG.
func (c *CameraSource) LatestJPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frame.Empty() {
		return nil, ErrNoFrame
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.frame)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory freed by Close
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close implements Source.
func (c *CameraSource) Close() error {
	c.release()
	c.mu.Lock()
	c.frame.Close()
	c.mu.Unlock()
	return c.detector.Close()
}
