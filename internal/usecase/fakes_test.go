package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workx/internal/domain"
	"workx/internal/logging"
	"workx/internal/metrics"
	"workx/internal/ports"
)

type fakeBackend struct {
	mu sync.Mutex

	devices    []domain.AudioDevice
	devicesErr error

	startFixedErr      error
	startContinuousErr error
	stopErr            error

	listing  domain.TranscriptListing
	listErr  error
	contents map[string]string
	readErrs map[string]error
	// readGate, when set, blocks every read until it is closed; readStarted reports each path first.
	readGate    chan struct{}
	readStarted chan string

	fixedCalls      []string
	continuousCalls []string
	stopCalls       int
	reads           []string
}

func newFakeBackend(devices ...domain.AudioDevice) *fakeBackend {
	return &fakeBackend{
		devices:  devices,
		contents: make(map[string]string),
		readErrs: make(map[string]error),
	}
}

func (f *fakeBackend) ListAudioDevices(_ context.Context) ([]domain.AudioDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return append([]domain.AudioDevice(nil), f.devices...), nil
}

func (f *fakeBackend) StartFixedRecording(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedCalls = append(f.fixedCalls, deviceID)
	return f.startFixedErr
}

func (f *fakeBackend) StartContinuousRecording(_ context.Context, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.continuousCalls = append(f.continuousCalls, deviceID)
	return f.startContinuousErr
}

func (f *fakeBackend) StopContinuousRecording(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

func (f *fakeBackend) ListTranscriptFiles(_ context.Context) (domain.TranscriptListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return domain.TranscriptListing{}, f.listErr
	}
	return domain.TranscriptListing{
		Source: append([]string(nil), f.listing.Source...),
		Target: append([]string(nil), f.listing.Target...),
	}, nil
}

func (f *fakeBackend) ReadTranscriptFile(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	gate, started := f.readGate, f.readStarted
	f.mu.Unlock()
	if started != nil {
		started <- path
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, path)
	if err := f.readErrs[path]; err != nil {
		return "", err
	}
	text, ok := f.contents[path]
	if !ok {
		return "", errors.New("no such transcript")
	}
	return text, nil
}

func (f *fakeBackend) addTranscript(language domain.Language, path string, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if language == domain.LanguageTarget {
		f.listing.Target = append(f.listing.Target, path)
	} else {
		f.listing.Source = append(f.listing.Source, path)
	}
	f.contents[path] = text
}

func (f *fakeBackend) gateReads() (release func(), started <-chan string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gate := make(chan struct{})
	ch := make(chan string, 16)
	f.readGate = gate
	f.readStarted = ch
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }, ch
}

func (f *fakeBackend) setListErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

func (f *fakeBackend) setReadErr(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.readErrs, path)
		return
	}
	f.readErrs[path] = err
}

func (f *fakeBackend) snapshotReads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reads))
	copy(out, f.reads)
	return out
}

func (f *fakeBackend) callCounts() (fixed int, continuous int, stop int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fixedCalls), len(f.continuousCalls), f.stopCalls
}

type fakeEventSink struct {
	mu sync.Mutex

	snapshots []domain.Snapshot
	logs      []domain.DisplayLogs
	devices   [][]domain.AudioDevice
	selected  []string
	errors    []errEvent
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionChanged(snapshot domain.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, snapshot)
}

func (f *fakeEventSink) TranscriptsUpdated(logs domain.DisplayLogs) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logs)
}

func (f *fakeEventSink) DevicesUpdated(devices []domain.AudioDevice, selected string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.devices = append(f.devices, devices)
	f.selected = append(f.selected, selected)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotSessions() []domain.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Snapshot, len(f.snapshots))
	copy(out, f.snapshots)
	return out
}

func (f *fakeEventSink) snapshotLogs() []domain.DisplayLogs {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.DisplayLogs, len(f.logs))
	copy(out, f.logs)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) errorCount(code domain.ErrorCode) int {
	count := 0
	for _, e := range f.snapshotErrors() {
		if e.code == code {
			count++
		}
	}
	return count
}

type fakeFilter struct {
	replace map[string]string
}

func (f fakeFilter) Apply(text string) string {
	if replaced, ok := f.replace[text]; ok {
		return replaced
	}
	return text
}

// failingBus fails the subscription at index failAt and tracks live listeners.
type failingBus struct {
	mu       sync.Mutex
	failAt   int
	calls    int
	live     map[int]string
	released []string
}

func newFailingBus(failAt int) *failingBus {
	return &failingBus{failAt: failAt, live: make(map[int]string)}
}

func (b *failingBus) Subscribe(name string, _ ports.EventHandler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	index := b.calls
	b.calls++
	if index == b.failAt {
		return nil, errors.New("listener limit reached")
	}
	b.live[index] = name
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.live[index]; !ok {
			return
		}
		delete(b.live, index)
		b.released = append(b.released, name)
	}, nil
}

func (b *failingBus) liveCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

func (b *failingBus) releasedNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.released...)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(nil)
}

func newTestReconciler(backend ports.Backend, filter ports.TextFilter, cfg ReconcilerConfig) *Reconciler {
	return NewReconciler(backend, filter, logging.Discard(), newTestMetrics(), cfg)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
