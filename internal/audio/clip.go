package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"workx/internal/ports"
)

const (
	bytesPerSample = 2
	defaultChunk   = 4096
)

// ClipConfig describes the clips a ClipRecorder writes.
type ClipConfig struct {
	Audio     ports.AudioConfig
	Duration  time.Duration
	OutputDir string
	ChunkSize int
}

// ClipRecorder captures fixed-length clips from a device into WAV files.
type ClipRecorder struct {
	capture ports.AudioCapture
	logger  *slog.Logger
	cfg     ClipConfig
	now     func() time.Time
}

func NewClipRecorder(capture ports.AudioCapture, logger *slog.Logger, cfg ClipConfig) *ClipRecorder {
	cfg.Audio = withCaptureDefaults(cfg.Audio)
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = defaultChunk
	}
	return &ClipRecorder{capture: capture, logger: logger, cfg: cfg, now: time.Now}
}

// ClipName is the file name of a clip started at t.
func ClipName(t time.Time) string {
	return "record_" + t.Format("20060102_150405") + ".wav"
}

// Record captures one clip from deviceID and returns the WAV path. progress receives the
// completed percentage after each chunk. A cancelled ctx removes the partial file.
func (r *ClipRecorder) Record(ctx context.Context, deviceID string, progress func(percent float64)) (string, error) {
	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create clip directory: %w", err)
	}

	audioCfg := r.cfg.Audio
	audioCfg.InputDevice = deviceID
	session, err := r.capture.Start(ctx, audioCfg)
	if err != nil {
		return "", fmt.Errorf("start capture on %q: %w", deviceID, err)
	}
	defer func() { _ = session.Stop() }()

	file, path, err := createClip(r.cfg.OutputDir, r.now())
	if err != nil {
		return "", fmt.Errorf("create clip file: %w", err)
	}

	target := int64(r.cfg.Duration.Seconds() * float64(audioCfg.SampleRate*audioCfg.Channels*bytesPerSample))
	encoder := wav.NewEncoder(file, audioCfg.SampleRate, 16, audioCfg.Channels, 1)
	written, pumpErr := pumpPCM(ctx, session, encoder, audioCfg, target, r.cfg.ChunkSize, progress)

	closeErr := encoder.Close()
	if err := file.Close(); err != nil && closeErr == nil {
		closeErr = err
	}
	if pumpErr == nil {
		pumpErr = closeErr
	}
	if pumpErr != nil {
		_ = os.Remove(path)
		return "", pumpErr
	}

	r.logger.Debug("clip written", "path", path, "bytes", written)
	return path, nil
}

// createClip opens a new clip file without replacing an existing one.
// Clips started within the same second get a _2, _3, ... suffix.
func createClip(dir string, started time.Time) (*os.File, string, error) {
	base := strings.TrimSuffix(ClipName(started), ".wav")
	for n := 1; ; n++ {
		name := base + ".wav"
		if n > 1 {
			name = fmt.Sprintf("%s_%d.wav", base, n)
		}
		path := filepath.Join(dir, name)
		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return file, path, err
	}
}

// pumpPCM copies s16le PCM from src into the encoder until target bytes were written.
func pumpPCM(
	ctx context.Context,
	src io.Reader,
	encoder *wav.Encoder,
	cfg ports.AudioConfig,
	target int64,
	chunkSize int,
	progress func(float64),
) (int64, error) {
	format := &goaudio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate}
	buf := make([]byte, chunkSize)
	var (
		written  int64
		leftover []byte
	)

	for written < target {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			data := append(leftover, buf[:n]...)
			if remaining := target - written; int64(len(data)) > remaining {
				data = data[:remaining]
			}
			whole := len(data) - len(data)%bytesPerSample
			leftover = append([]byte(nil), data[whole:]...)

			if whole > 0 {
				samples := &goaudio.IntBuffer{
					Format:         format,
					Data:           decodeS16LE(data[:whole]),
					SourceBitDepth: 16,
				}
				if err := encoder.Write(samples); err != nil {
					return written, fmt.Errorf("write clip samples: %w", err)
				}
				written += int64(whole)
				if progress != nil {
					progress(float64(written) / float64(target) * 100)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if err := ctx.Err(); err != nil {
					return written, err
				}
				if written == 0 {
					return 0, errors.New("capture ended before any audio was recorded")
				}
				return written, nil
			}
			return written, fmt.Errorf("read captured audio: %w", readErr)
		}
	}
	return written, nil
}

func decodeS16LE(data []byte) []int {
	samples := make([]int, len(data)/bytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:])))
	}
	return samples
}
