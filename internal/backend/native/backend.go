// Package native records audio and lists transcripts in-process.
//
// Recording commands return once accepted; outcomes are published as named events in the
// same order the desktop shell always used: recording_* for every clip, and
// continuous_recording_* around a continuous run.
package native

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"workx/internal/domain"
	"workx/internal/ports"
)

var (
	ErrBusy                 = errors.New("a recording is already running")
	ErrNotContinuous        = errors.New("continuous recording is not running")
	ErrOutsideTranscriptDir = errors.New("path is outside the transcript directory")
)

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]domain.AudioDevice, error)
}

// ClipRecorder records one clip and returns its path.
type ClipRecorder interface {
	Record(ctx context.Context, deviceID string, progress func(percent float64)) (string, error)
}

type Config struct {
	TranscriptDir string
	// SourceSuffix marks original-language transcripts, e.g. record_x_EN.txt.
	SourceSuffix string
}

type Backend struct {
	devices  DeviceLister
	recorder ClipRecorder
	events   ports.EventPublisher
	logger   *slog.Logger
	cfg      Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	busy bool
	run  *continuousRun
}

type continuousRun struct {
	once sync.Once
	stop chan struct{}
}

func (r *continuousRun) requestStop() {
	r.once.Do(func() { close(r.stop) })
}

func (r *continuousRun) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func New(devices DeviceLister, recorder ClipRecorder, events ports.EventPublisher, logger *slog.Logger, cfg Config) *Backend {
	if cfg.SourceSuffix == "" {
		cfg.SourceSuffix = "_EN"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		devices:  devices,
		recorder: recorder,
		events:   events,
		logger:   logger,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Close aborts any running recording and waits for it to publish its final event.
func (b *Backend) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}

func (b *Backend) ListAudioDevices(ctx context.Context) ([]domain.AudioDevice, error) {
	return b.devices.ListDevices(ctx)
}

func (b *Backend) StartFixedRecording(_ context.Context, deviceID string) error {
	if err := b.acquire(nil); err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		path, err := b.recordClip(deviceID)
		b.release()
		if err != nil {
			if b.ctx.Err() == nil {
				b.logger.Warn("clip recording failed", "device", deviceID, "error", err)
				b.events.Publish(string(domain.EventRecordingError), err.Error())
			}
			return
		}
		b.events.Publish(string(domain.EventRecordingFinished), path)
	}()
	return nil
}

func (b *Backend) StartContinuousRecording(_ context.Context, deviceID string) error {
	run := &continuousRun{stop: make(chan struct{})}
	if err := b.acquire(run); err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.events.Publish(string(domain.EventContinuousStarted))

		count := 0
		for !run.stopped() && b.ctx.Err() == nil {
			path, err := b.recordClip(deviceID)
			if err != nil {
				if b.ctx.Err() == nil {
					b.logger.Warn("continuous clip failed", "device", deviceID, "error", err)
					b.events.Publish(string(domain.EventRecordingError), err.Error())
					b.events.Publish(string(domain.EventContinuousError), err.Error())
				}
				break
			}
			b.events.Publish(string(domain.EventRecordingFinished), path)

			count++
			if !run.stopped() {
				b.events.Publish(string(domain.EventContinuousProgress), count)
			}
		}

		b.release()
		b.events.Publish(string(domain.EventContinuousStopped), count)
	}()
	return nil
}

// StopContinuousRecording lets the current clip finish and ends the run after it.
func (b *Backend) StopContinuousRecording(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ErrNotContinuous
	}
	b.run.requestStop()
	return nil
}

// ListTranscriptFiles returns the .txt files in the transcript directory, oldest first so the
// rendered logs read chronologically. Equal modification times fall back to name order.
func (b *Backend) ListTranscriptFiles(_ context.Context) (domain.TranscriptListing, error) {
	entries, err := os.ReadDir(b.cfg.TranscriptDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.TranscriptListing{}, nil
		}
		return domain.TranscriptListing{}, fmt.Errorf("read transcript directory: %w", err)
	}

	type stamped struct {
		name    string
		modTime time.Time
	}
	files := make([]stamped, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		files = append(files, stamped{name: entry.Name(), modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.Before(files[j].modTime)
		}
		return files[i].name < files[j].name
	})

	source, target := lo.FilterReject(files, func(f stamped, _ int) bool {
		return strings.HasSuffix(strings.TrimSuffix(f.name, filepath.Ext(f.name)), b.cfg.SourceSuffix)
	})
	toPath := func(f stamped, _ int) string { return filepath.Join(b.cfg.TranscriptDir, f.name) }
	return domain.TranscriptListing{
		Source: lo.Map(source, toPath),
		Target: lo.Map(target, toPath),
	}, nil
}

func (b *Backend) ReadTranscriptFile(_ context.Context, path string) (string, error) {
	resolved, err := b.resolveTranscript(path)
	if err != nil {
		return "", err
	}
	contents, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read transcript %q: %w", path, err)
	}
	return string(contents), nil
}

func (b *Backend) resolveTranscript(path string) (string, error) {
	dir, err := filepath.Abs(b.cfg.TranscriptDir)
	if err != nil {
		return "", fmt.Errorf("resolve transcript directory: %w", err)
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	resolved := filepath.Clean(path)

	rel, err := filepath.Rel(dir, resolved)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideTranscriptDir, path)
	}
	return resolved, nil
}

func (b *Backend) acquire(run *continuousRun) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.busy {
		return ErrBusy
	}
	if err := b.ctx.Err(); err != nil {
		return fmt.Errorf("backend closed: %w", err)
	}
	b.busy = true
	b.run = run
	return nil
}

func (b *Backend) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.busy = false
	b.run = nil
}

// recordClip publishes recording_started and throttled progress for one clip.
func (b *Backend) recordClip(deviceID string) (string, error) {
	b.events.Publish(string(domain.EventRecordingStarted))

	lastStep := 0
	return b.recorder.Record(b.ctx, deviceID, func(percent float64) {
		step := int(math.Floor(percent / 10))
		if step <= lastStep {
			return
		}
		lastStep = step
		b.events.Publish(string(domain.EventRecordingProgress), math.Min(percent, 100))
	})
}
