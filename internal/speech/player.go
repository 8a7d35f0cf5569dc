package speech

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// bytesPerSample for 16-bit mono PCM.
const bytesPerSample = 2

// Player plays raw 16-bit little-endian mono PCM through the system audio
// device. One stream plays at a time; starting a new stream stops the
// previous one.
type Player struct {
	ctx        *oto.Context
	sampleRate int

	mu      sync.Mutex
	current *oto.Player
	gen     uint64
}

// NewPlayer opens the audio device at the given sample rate. The underlying
// context is process-wide and kept for the player's lifetime.
func NewPlayer(sampleRate int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready
	return &Player{ctx: ctx, sampleRate: sampleRate}, nil
}

// PCMDuration returns the playback time of a PCM buffer at the player's
// sample rate.
func (p *Player) PCMDuration(pcm []byte) time.Duration {
	samples := len(pcm) / bytesPerSample
	return time.Duration(float64(samples) / float64(p.sampleRate) * float64(time.Second))
}

// Play starts playback of a PCM buffer and invokes done from a background
// goroutine when the stream drains. If Stop interrupts the stream, done is
// not invoked.
func (p *Player) Play(pcm []byte, done func()) {
	p.mu.Lock()
	if p.current != nil {
		p.current.Close()
	}
	p.gen++
	gen := p.gen
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.current = player
	p.mu.Unlock()

	player.Play()

	go func() {
		for {
			p.mu.Lock()
			stale := p.gen != gen
			playing := player.IsPlaying()
			p.mu.Unlock()
			if stale {
				return
			}
			if !playing {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		p.mu.Lock()
		if p.gen == gen {
			player.Close()
			p.current = nil
		}
		p.mu.Unlock()
		if done != nil {
			done()
		}
	}()
}

// Stop halts the current stream, if any. Its done callback is suppressed.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
}
