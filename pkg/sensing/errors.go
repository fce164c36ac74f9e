package sensing

import "errors"

var (
	// ErrCameraUnavailable is returned when the capture device cannot be opened.
	ErrCameraUnavailable = errors.New("sensing: camera unavailable")

	// ErrFrameRead is returned when the capture device yields no frame.
	ErrFrameRead = errors.New("sensing: could not read frame")

	// ErrNoFrame is returned by LatestJPEG before the first frame is captured.
	ErrNoFrame = errors.New("sensing: no frame captured yet")

	// ErrModelNotFound is returned when the face detection model is missing.
	ErrModelNotFound = errors.New("sensing: model not found")

	// ErrClosed is returned by a source after Close.
	ErrClosed = errors.New("sensing: source closed")
)
