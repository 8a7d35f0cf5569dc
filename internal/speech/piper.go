package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/speakdown/speakdown/internal/cache"
	"github.com/speakdown/speakdown/internal/utterance"
)

// Piper audio format. Piper emits raw 16-bit little-endian mono PCM at a
// fixed sample rate when invoked with --output-raw.
const (
	PiperSampleRate = 22050

	defaultSynthTimeout = 30 * time.Second
)

// voiceModelDirs are searched in order for ONNX voice models.
var voiceModelDirs = []string{
	"$HOME/.local/share/piper-voices",
	"$HOME/.config/piper/voices",
	"/usr/share/piper-voices",
	"/usr/local/share/piper-voices",
	"/opt/piper/voices",
}

// PiperOptions configures a PiperEngine. Zero values fall back to
// autodetection or defaults.
type PiperOptions struct {
	// BinaryPath overrides PATH lookup for the piper executable.
	BinaryPath string

	// NarrationModel and AnnouncementModel are ONNX model paths. When
	// AnnouncementModel is empty, announcements reuse the narration model.
	NarrationModel    string
	AnnouncementModel string

	// Cache holds synthesized audio keyed by text, voice and rate. Nil
	// disables caching.
	Cache *cache.Cache

	// SynthTimeout bounds one synthesis subprocess run.
	SynthTimeout time.Duration

	// SynthPerSecond throttles subprocess launches. Zero means two per
	// second, enough to stay ahead of playback without saturating a core.
	SynthPerSecond float64
}

// PiperEngine speaks through the piper TTS subprocess and plays the raw PCM
// it produces. One request is in flight at a time.
type PiperEngine struct {
	binary        string
	narrationM    string
	announcementM string
	cache         *cache.Cache
	player        *Player
	limiter       *rate.Limiter
	timeout       time.Duration

	mu     sync.Mutex
	busy   bool
	closed bool
	gen    uint64 // request epoch, bumped on Speak and Cancel
	cancel context.CancelFunc
}

// NewPiperEngine locates the piper binary and voice models and opens the
// audio device.
func NewPiperEngine(opts PiperOptions) (*PiperEngine, error) {
	binary := opts.BinaryPath
	if binary == "" {
		var err error
		binary, err = findPiperBinary()
		if err != nil {
			return nil, err
		}
	}

	narration := opts.NarrationModel
	if narration == "" {
		var err error
		narration, err = findVoiceModel()
		if err != nil {
			return nil, err
		}
	}
	announcement := opts.AnnouncementModel
	if announcement == "" {
		announcement = narration
	}

	player, err := NewPlayer(PiperSampleRate)
	if err != nil {
		return nil, err
	}

	timeout := opts.SynthTimeout
	if timeout <= 0 {
		timeout = defaultSynthTimeout
	}
	perSecond := opts.SynthPerSecond
	if perSecond <= 0 {
		perSecond = 2
	}

	return &PiperEngine{
		binary:        binary,
		narrationM:    narration,
		announcementM: announcement,
		cache:         opts.Cache,
		player:        player,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 1),
		timeout:       timeout,
	}, nil
}

// Speak synthesizes req.Text and plays it. Completion is reported through
// done from a background goroutine.
func (e *PiperEngine) Speak(req Request, done func(Result)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.busy {
		e.mu.Unlock()
		return ErrEngineBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.busy = true
	e.cancel = cancel
	e.gen++
	gen := e.gen
	e.mu.Unlock()

	go e.run(ctx, gen, req, done)
	return nil
}

func (e *PiperEngine) run(ctx context.Context, gen uint64, req Request, done func(Result)) {
	pcm, err := e.audioFor(ctx, req)
	if err != nil {
		e.finish(gen, done, Result{Err: err})
		return
	}
	if ctx.Err() != nil {
		e.finish(gen, done, Result{Err: ctx.Err()})
		return
	}

	start := time.Now()
	finished := make(chan struct{})
	e.player.Play(pcm, func() { close(finished) })

	select {
	case <-finished:
		e.finish(gen, done, Result{Duration: time.Since(start)})
	case <-ctx.Done():
		e.player.Stop()
		e.finish(gen, done, Result{Err: ctx.Err()})
	}
}

// audioFor returns PCM for a request, serving from cache when possible.
func (e *PiperEngine) audioFor(ctx context.Context, req Request) ([]byte, error) {
	key := cache.Key(req.Text, req.Voice.String(), req.Rate)
	if e.cache != nil {
		if pcm, ok := e.cache.Load(key); ok {
			return pcm, nil
		}
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	pcm, err := e.synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Store(key, pcm); err != nil {
			log.Warn("audio cache store failed", "error", err)
		}
	}
	return pcm, nil
}

func (e *PiperEngine) synthesize(ctx context.Context, req Request) ([]byte, error) {
	model := e.narrationM
	if req.Voice == utterance.VoiceAnnouncement {
		model = e.announcementM
	}

	args := []string{"--model", model, "--output-raw"}
	if cfg := model + ".json"; fileExists(cfg) {
		args = append(args, "--config", cfg)
	}
	// Piper scales phoneme length, the inverse of speaking rate.
	if req.Rate > 0 && req.Rate != 1.0 {
		args = append(args, "--length-scale", fmt.Sprintf("%.2f", 1.0/req.Rate))
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, e.timeout)
	defer cancelTimeout()

	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdin = strings.NewReader(req.Text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSynthesisFailed, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start piper: %v", ErrSynthesisFailed, err)
	}

	var pcm bytes.Buffer
	if _, err := io.Copy(&pcm, stdout); err != nil {
		_ = cmd.Wait()
		return nil, fmt.Errorf("%w: read audio: %v", ErrSynthesisFailed, err)
	}
	if err := cmd.Wait(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", ErrSynthesisFailed, msg)
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	out := pcm.Bytes()
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no audio produced", ErrSynthesisFailed)
	}
	// 16-bit samples, keep the buffer sample-aligned.
	if len(out)%2 != 0 {
		out = append(out, 0)
	}
	return out, nil
}

// finish releases the busy slot and reports the result. A run whose epoch
// was ended by Cancel or Close must not clear state owned by a newer
// request; its late result still reaches done so the caller can discard it.
func (e *PiperEngine) finish(gen uint64, done func(Result), res Result) {
	e.mu.Lock()
	if gen == e.gen {
		e.busy = false
		e.cancel = nil
	}
	e.mu.Unlock()
	if done != nil {
		done(res)
	}
}

// Cancel aborts the in-flight request: the synthesis subprocess is killed
// and playback stops. The engine is free for the next Speak as soon as
// Cancel returns; the aborted run reports its result afterward.
func (e *PiperEngine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	if cancel != nil {
		e.gen++
		e.busy = false
		e.cancel = nil
	}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.player.Stop()
}

// Close cancels any in-flight request and releases the audio device.
func (e *PiperEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	e.gen++
	e.busy = false
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.player.Stop()
	return nil
}

func findPiperBinary() (string, error) {
	if path, err := exec.LookPath("piper"); err == nil {
		return path, nil
	}
	home, _ := os.UserHomeDir()
	for _, p := range []string{
		"/usr/local/bin/piper",
		"/usr/bin/piper",
		"/opt/piper/piper",
		filepath.Join(home, ".local/bin/piper"),
	} {
		if fileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("piper binary not found; install from https://github.com/rhasspy/piper")
}

func findVoiceModel() (string, error) {
	home, _ := os.UserHomeDir()
	for _, dir := range voiceModelDirs {
		dir = strings.Replace(dir, "$HOME", home, 1)
		var found string
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".onnx") {
				found = path
				return filepath.SkipAll
			}
			return nil
		})
		if found != "" {
			return found, nil
		}
	}
	return "", fmt.Errorf("no ONNX voice model found; download one from https://github.com/rhasspy/piper/releases into ~/.local/share/piper-voices")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
