package media

import (
	"errors"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned when the capture device is missing or
// permission was denied. Surfaced to the user; the triggering operation
// aborts without creating partial state.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// CaptureDevice hands out exclusive capture sessions. Exactly one stream is
// live at a time; callers must Release on every exit path.
type CaptureDevice interface {
	Acquire() (CaptureStream, error)
}

// CaptureStream is one scoped acquisition of the capture device.
type CaptureStream interface {
	// Chunks delivers captured data while the stream is live. The channel
	// closes on Release.
	Chunks() <-chan []byte
	Release()
}

// Probe checks that the capture device can be acquired, releasing it
// immediately. Used by call initiation as a capability check.
func Probe(d CaptureDevice) error {
	if d == nil {
		return ErrDeviceUnavailable
	}
	s, err := d.Acquire()
	if err != nil {
		return ErrDeviceUnavailable
	}
	s.Release()
	return nil
}

// SimDevice is the in-process capture device used when no real hardware
// binding is wired. It emits fixed-size chunks on an interval.
type SimDevice struct {
	// ChunkEvery defaults to 100ms, ChunkSize to 320 bytes.
	ChunkEvery time.Duration
	ChunkSize  int
	// Unavailable makes every Acquire fail, simulating a denied permission.
	Unavailable bool

	mu   sync.Mutex
	busy bool
}

// Acquire starts a simulated capture session. Fails if the device is marked
// unavailable or already held.
func (d *SimDevice) Acquire() (CaptureStream, error) {
	if d.Unavailable {
		return nil, ErrDeviceUnavailable
	}
	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		return nil, ErrDeviceUnavailable
	}
	d.busy = true
	d.mu.Unlock()

	every := d.ChunkEvery
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	size := d.ChunkSize
	if size <= 0 {
		size = 320
	}

	s := &simStream{
		ch:   make(chan []byte, 16),
		stop: make(chan struct{}),
		freeDevice: func() {
			d.mu.Lock()
			d.busy = false
			d.mu.Unlock()
		},
	}
	go s.run(every, size)
	return s, nil
}

type simStream struct {
	ch         chan []byte
	stop       chan struct{}
	once       sync.Once
	freeDevice func()
}

// run owns the chunk channel: it is the only sender and closes it on stop.
func (s *simStream) run(every time.Duration, size int) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer close(s.ch)
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			chunk := make([]byte, size)
			select {
			case s.ch <- chunk:
			case <-s.stop:
				return
			}
		}
	}
}

func (s *simStream) Chunks() <-chan []byte { return s.ch }

func (s *simStream) Release() {
	s.once.Do(func() {
		close(s.stop)
		s.freeDevice()
	})
}
