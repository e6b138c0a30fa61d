package sound

import (
	"log/slog"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	sampleRate = 44100
	frameSize  = 512
	toneHz     = 880.0
	toneLen    = 0.18 // seconds
	volume     = 0.4
)

// Beep plays a short sine chirp through the default output device.
// PortAudio is initialised lazily on first use; every failure is logged at
// debug level and otherwise ignored.
type Beep struct {
	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	playing bool
}

// NewBeep creates the default notification player.
func NewBeep() *Beep { return &Beep{} }

// Play starts playback on its own goroutine and returns immediately.
// Overlapping cues collapse into one.
func (b *Beep) Play() {
	b.mu.Lock()
	if b.playing {
		b.mu.Unlock()
		return
	}
	b.playing = true
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			b.playing = false
			b.mu.Unlock()
		}()
		if err := b.play(); err != nil {
			slog.Debug("sound: playback failed", "err", err)
		}
	}()
}

func (b *Beep) play() error {
	b.initOnce.Do(func() {
		b.initErr = portaudio.Initialize()
	})
	if b.initErr != nil {
		return b.initErr
	}

	buf := make([]int16, frameSize)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRate, frameSize, buf)
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	defer stream.Stop()

	total := int(toneLen * sampleRate)
	for n := 0; n < total; n += frameSize {
		for i := range buf {
			// Linear fade-out over the tail avoids a click.
			env := 1.0 - float64(n+i)/float64(total)
			if env < 0 {
				env = 0
			}
			v := volume * env * math.Sin(2*math.Pi*toneHz*float64(n+i)/sampleRate)
			buf[i] = int16(v * math.MaxInt16)
		}
		if err := stream.Write(); err != nil {
			return err
		}
	}
	return nil
}

var _ Player = (*Beep)(nil)
