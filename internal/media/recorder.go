package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"convo/internal/model"
)

// ErrNotRecording is returned by Stop when no recording session is active.
var ErrNotRecording = errors.New("no active recording")

// elapsedTick is the resolution at which the recorder refreshes its elapsed
// time while capturing.
const elapsedTick = 250 * time.Millisecond

// Recorder is a scoped acquisition of the capture device. It buffers
// captured chunks while active; Stop assembles them into exactly one audio
// attachment. One session at a time.
type Recorder struct {
	device   CaptureDevice
	mediaDir string

	mu        sync.Mutex
	stream    CaptureStream
	buf       []byte
	startedAt time.Time
	elapsed   time.Duration
	drained   chan struct{}

	now func() time.Time
}

// NewRecorder creates a recorder writing finished voice notes to mediaDir.
func NewRecorder(device CaptureDevice, mediaDir string) *Recorder {
	return &Recorder{
		device:   device,
		mediaDir: mediaDir,
		now:      time.Now,
	}
}

// Start acquires the capture device and begins buffering. Returns
// ErrDeviceUnavailable when the device is missing or denied; no session
// state is created in that case.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream != nil {
		return fmt.Errorf("recording already in progress")
	}

	stream, err := r.device.Acquire()
	if err != nil {
		return ErrDeviceUnavailable
	}

	r.stream = stream
	r.buf = nil
	r.startedAt = r.now()
	r.elapsed = 0
	r.drained = make(chan struct{})

	go r.drain(stream, r.drained)
	return nil
}

// drain buffers chunks and refreshes elapsed time until the stream closes.
func (r *Recorder) drain(stream CaptureStream, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(elapsedTick)
	defer ticker.Stop()

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return
			}
			r.mu.Lock()
			r.buf = append(r.buf, chunk...)
			r.mu.Unlock()
		case <-ticker.C:
			r.mu.Lock()
			r.elapsed = r.now().Sub(r.startedAt)
			r.mu.Unlock()
		}
	}
}

// Recording reports whether a capture session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

// Elapsed returns the capture time of the active session, at 250ms
// resolution.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Stop releases the capture device and assembles the buffered chunks into
// exactly one attachment. The device is released on every path, even when
// zero bytes were captured or the payload write fails.
func (r *Recorder) Stop() (model.Attachment, error) {
	r.mu.Lock()
	stream := r.stream
	drained := r.drained
	startedAt := r.startedAt
	r.stream = nil
	r.drained = nil
	r.mu.Unlock()

	if stream == nil {
		return model.Attachment{}, ErrNotRecording
	}

	// Release closes the chunk channel; wait for the drain goroutine so the
	// buffer is complete before assembling.
	stream.Release()
	<-drained

	r.mu.Lock()
	buf := r.buf
	r.buf = nil
	r.mu.Unlock()

	filename := fmt.Sprintf("voice-%s.ogg", startedAt.Format("20060102-150405"))
	refPath := filepath.Join(r.mediaDir, uuid.New().String()+".ogg")

	if err := os.MkdirAll(r.mediaDir, 0700); err != nil {
		return model.Attachment{}, fmt.Errorf("media dir: %w", err)
	}
	if err := os.WriteFile(refPath, buf, 0600); err != nil {
		return model.Attachment{}, fmt.Errorf("write voice note: %w", err)
	}

	return model.Attachment{
		ID:       uuid.New().String(),
		Filename: filename,
		Size:     int64(len(buf)),
		MIME:     "audio/ogg",
		Ref:      refPath,
		Kind:     model.KindAudio,
	}, nil
}
