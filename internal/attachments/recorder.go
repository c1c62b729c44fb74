package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"supportapp/internal/models"
	contextutils "supportapp/internal/utils"
)

// Track is one captured media track
type Track interface {
	Stop()
}

// MediaStream is a granted capture. Read yields encoded media and returns
// io.EOF once every track has been stopped.
type MediaStream interface {
	io.Reader
	Tracks() []Track
	MimeType() string
}

// ScreenCapturer asks the user for permission to capture the screen
type ScreenCapturer interface {
	RequestCapture(ctx context.Context) (MediaStream, error)
}

// RecorderState is the lifecycle state of a Recorder
type RecorderState int

// Recorder states
const (
	RecorderIdle RecorderState = iota
	RecorderRequesting
	RecorderRecording
	RecorderStopped
)

// Recorder records one screen capture into memory. Start blocks only while
// permission is requested; Stop and Cancel may be called from any goroutine.
type Recorder struct {
	capturer ScreenCapturer
	limit    int64
	now      func() time.Time

	mu     sync.Mutex
	state  RecorderState
	stream MediaStream
	buf    bytes.Buffer
	done   chan struct{}
	err    error
}

// NewRecorder creates a recorder that keeps at most limit bytes
func NewRecorder(capturer ScreenCapturer, limit int64) *Recorder {
	return &Recorder{capturer: capturer, limit: limit, now: time.Now}
}

// State returns the current lifecycle state
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start requests capture permission and begins recording once granted
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == RecorderRequesting || r.state == RecorderRecording {
		r.mu.Unlock()
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidTransition, contextutils.SeverityWarn, "Recording already in progress", "")
	}
	r.state = RecorderRequesting
	r.buf.Reset()
	r.err = nil
	r.mu.Unlock()

	stream, err := r.capturer.RequestCapture(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = RecorderIdle
		return contextutils.WrapError(err, "screen capture permission was not granted")
	}
	if r.state != RecorderRequesting {
		// Cancelled while the permission prompt was open
		stopTracks(stream)
		return contextutils.NewAppError(contextutils.ErrorCodeInvalidTransition, contextutils.SeverityInfo, "Recording was cancelled", "")
	}

	r.stream = stream
	r.state = RecorderRecording
	r.done = make(chan struct{})
	go r.collect(stream, r.done)
	return nil
}

func (r *Recorder) collect(stream MediaStream, done chan struct{}) {
	defer close(done)
	chunk := make([]byte, 32*1024)
	for {
		n, err := stream.Read(chunk)
		if n > 0 {
			r.mu.Lock()
			if int64(r.buf.Len()+n) > r.limit {
				r.err = contextutils.NewAppError(
					contextutils.ErrorCodeAttachmentTooLarge,
					contextutils.SeverityWarn,
					fmt.Sprintf("Screen recording is larger than %s", FormatBytes(r.limit)),
					"",
				)
				r.mu.Unlock()
				stopTracks(stream)
				// Drain until the stream reports the tracks are gone
				_, _ = io.Copy(io.Discard, stream)
				return
			}
			r.buf.Write(chunk[:n])
			r.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				r.mu.Lock()
				r.err = contextutils.WrapError(err, "screen recording failed")
				r.mu.Unlock()
			}
			return
		}
	}
}

// Stop ends the recording, always releasing every track, and returns the clip
func (r *Recorder) Stop() (*models.Attachment, error) {
	stream, done := r.finish()
	if stream == nil {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidTransition, contextutils.SeverityWarn, "No recording in progress", "")
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		r.buf.Reset()
		return nil, r.err
	}
	data := append([]byte(nil), r.buf.Bytes()...)
	r.buf.Reset()

	mediaType := stream.MimeType()
	if mediaType == "" {
		mediaType = "video/webm"
	}
	return &models.Attachment{
		Name:      fmt.Sprintf("screen-recording-%s.webm", r.now().UTC().Format("20060102-150405")),
		MediaType: mediaType,
		Data:      data,
		Size:      int64(len(data)),
	}, nil
}

// Cancel releases the capture and discards anything recorded. Safe to call in any state.
func (r *Recorder) Cancel() {
	stream, done := r.finish()
	if stream != nil {
		<-done
	}
	r.mu.Lock()
	r.buf.Reset()
	r.err = nil
	r.mu.Unlock()
}

// finish moves to stopped and stops the tracks of an active stream
func (r *Recorder) finish() (MediaStream, chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case RecorderRequesting:
		r.state = RecorderStopped
		return nil, nil
	case RecorderRecording:
		stream, done := r.stream, r.done
		r.stream = nil
		r.state = RecorderStopped
		stopTracks(stream)
		return stream, done
	default:
		return nil, nil
	}
}

func stopTracks(stream MediaStream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
