package ports

import (
	"context"
	"io"

	"workx/internal/domain"
)

// Backend is the command gateway to the process that owns audio hardware and transcripts.
// Start and stop calls only acknowledge the command; outcomes arrive as events.
type Backend interface {
	ListAudioDevices(ctx context.Context) ([]domain.AudioDevice, error)
	StartFixedRecording(ctx context.Context, deviceID string) error
	StartContinuousRecording(ctx context.Context, deviceID string) error
	StopContinuousRecording(ctx context.Context) error
	ListTranscriptFiles(ctx context.Context) (domain.TranscriptListing, error)
	ReadTranscriptFile(ctx context.Context, path string) (string, error)
}

// HealthChecker is implemented by backends that live in another process.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// EventHandler receives the raw payload of one named notification.
type EventHandler func(payload ...any)

// EventBus delivers named notifications. Subscribe returns a func that removes the listener.
type EventBus interface {
	Subscribe(name string, handler EventHandler) (unsubscribe func(), err error)
}

// EventPublisher is the producing side of the event channel.
type EventPublisher interface {
	Publish(name string, payload ...any)
}

// TextFilter rewrites transcript text before it is displayed.
type TextFilter interface {
	Apply(text string) string
}

// AudioConfig describes how a device should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits coordinator state to the UI.
type EventSink interface {
	SessionChanged(snapshot domain.Snapshot)
	TranscriptsUpdated(logs domain.DisplayLogs)
	DevicesUpdated(devices []domain.AudioDevice, selected string)
	SessionError(code domain.ErrorCode, detail string)
}
