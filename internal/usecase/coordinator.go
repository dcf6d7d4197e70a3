package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"workx/internal/domain"
	"workx/internal/metrics"
	"workx/internal/ports"
)

var (
	ErrDisposed      = errors.New("coordinator is disposed")
	ErrUnknownDevice = errors.New("unknown audio device")
)

const (
	triggerStartup = "startup"
	triggerTick    = "tick"
	triggerManual  = "manual"
)

// CoordinatorConfig controls the transcript poll loop.
type CoordinatorConfig struct {
	PollInterval time.Duration
}

// Coordinator owns the recording session, the backend subscriptions and the transcript poll loop
// for the lifetime of one view.
type Coordinator struct {
	backend    ports.Backend
	bus        ports.EventBus
	sink       ports.EventSink
	reconciler *Reconciler
	machine    *sessionMachine
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cfg        CoordinatorConfig

	// lifeMu guards the lifecycle. Callbacks hold it shared so Dispose waits for them.
	lifeMu   sync.RWMutex
	started  bool
	disposed bool
	release  func()
	cancel   context.CancelFunc
	loopDone chan struct{}

	mu          sync.Mutex
	devices     []domain.AudioDevice
	selected    string
	reason      domain.SessionStateReason
	status      string
	logs        domain.DisplayLogs
	listFailing bool

	kick chan struct{}
}

func NewCoordinator(
	backend ports.Backend,
	bus ports.EventBus,
	sink ports.EventSink,
	reconciler *Reconciler,
	logger *slog.Logger,
	m *metrics.Metrics,
	cfg CoordinatorConfig,
) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Coordinator{
		backend:    backend,
		bus:        bus,
		sink:       sink,
		reconciler: reconciler,
		machine:    newSessionMachine(),
		logger:     logger,
		metrics:    m,
		cfg:        cfg,
		reason:     domain.SessionReasonReady,
		status:     statusMessage(domain.SessionReasonReady, domain.RecordingSession{}, ""),
		kick:       make(chan struct{}, 1),
	}
}

// Start subscribes to backend events, loads devices and starts the transcript poll loop.
func (c *Coordinator) Start(ctx context.Context) error {
	c.lifeMu.Lock()
	if c.disposed {
		c.lifeMu.Unlock()
		return ErrDisposed
	}
	if c.started {
		c.lifeMu.Unlock()
		return nil
	}

	release, err := subscribeBackendEvents(c.bus, c.logger, c.handleEvent)
	if err != nil {
		c.lifeMu.Unlock()
		c.logger.Error("backend event subscription failed", "error", err)
		c.sink.SessionError(domain.ErrorCodeSubscriptionSetup, err.Error())
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.release = release
	c.cancel = cancel
	c.loopDone = make(chan struct{})
	go c.loop(loopCtx, c.loopDone)
	c.lifeMu.Unlock()

	if err := c.RefreshDevices(ctx); err != nil {
		c.logger.Warn("initial device refresh failed", "error", err)
		c.whileLive(func() {
			c.sink.SessionError(domain.ErrorCodeStartup, err.Error())
		})
	}

	c.requestReconcile(triggerStartup)
	c.whileLive(func() {
		c.sink.SessionChanged(c.Snapshot())
	})
	return nil
}

// Dispose stops the poll loop and releases every subscription. Later callbacks are no-ops.
func (c *Coordinator) Dispose() {
	c.lifeMu.Lock()
	if c.disposed {
		c.lifeMu.Unlock()
		return
	}
	c.disposed = true
	release, cancel, done := c.release, c.cancel, c.loopDone
	c.lifeMu.Unlock()

	if release != nil {
		release()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	c.logger.Debug("coordinator disposed")
}

// RefreshDevices reloads the device list. The selection is kept while its device is still present.
func (c *Coordinator) RefreshDevices(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}

	devices, err := c.backend.ListAudioDevices(ctx)
	if err != nil {
		err = fmt.Errorf("list audio devices: %w", err)
		c.whileLive(func() {
			c.setStatus(domain.SessionReasonDevicesUnavailable, err.Error())
			c.sink.SessionChanged(c.Snapshot())
		})
		return err
	}

	c.mu.Lock()
	c.devices = append([]domain.AudioDevice(nil), devices...)
	if !hasDevice(c.devices, c.selected) {
		c.selected = ""
		if len(c.devices) > 0 {
			c.selected = c.devices[0].ID
		}
	}
	snapshot, selected := c.devicesLocked()
	c.mu.Unlock()

	c.logger.Debug("audio devices refreshed", "count", len(snapshot), "selected", selected)
	c.whileLive(func() {
		c.sink.DevicesUpdated(snapshot, selected)
	})
	return nil
}

// SelectDevice sets the device used by the next recording.
func (c *Coordinator) SelectDevice(id string) error {
	c.mu.Lock()
	if !hasDevice(c.devices, id) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	c.selected = id
	snapshot, selected := c.devicesLocked()
	c.mu.Unlock()

	c.whileLive(func() {
		c.sink.DevicesUpdated(snapshot, selected)
	})
	return nil
}

// StartFixedRecording requests a single clip from the selected device.
func (c *Coordinator) StartFixedRecording(ctx context.Context) error {
	return c.startRecording(ctx, domain.SessionModeFixed)
}

// StartContinuousRecording requests open-ended capture from the selected device.
func (c *Coordinator) StartContinuousRecording(ctx context.Context) error {
	return c.startRecording(ctx, domain.SessionModeContinuous)
}

// StopContinuousRecording asks the backend to stop. The session ends on the stopped event.
func (c *Coordinator) StopContinuousRecording(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}

	session, err := c.machine.beginStop()
	if err != nil {
		c.reject(err)
		return err
	}
	c.recordTransition(session)
	c.whileLive(func() {
		c.publish(domain.SessionReasonContinuousStopping, "")
	})

	if err := c.backend.StopContinuousRecording(ctx); err != nil {
		err = fmt.Errorf("stop continuous recording: %w", err)
		if c.machine.revertStop(session.ID, err.Error()) {
			c.logger.Warn("stop call failed", "session", session.ID, "error", err)
			c.recordTransition(c.machine.current())
			c.whileLive(func() {
				c.sink.SessionError(domain.ErrorCodeBackendCall, err.Error())
				c.publish(domain.SessionReasonStopFailed, err.Error())
			})
		}
		return err
	}
	return nil
}

// RefreshTranscripts schedules a reconciliation outside the poll interval.
func (c *Coordinator) RefreshTranscripts() error {
	if c.isDisposed() {
		return ErrDisposed
	}
	c.requestReconcile(triggerManual)
	return nil
}

// Snapshot returns the current view model.
func (c *Coordinator) Snapshot() domain.Snapshot {
	session := c.machine.current()

	c.mu.Lock()
	defer c.mu.Unlock()
	devices, selected := c.devicesLocked()
	return domain.Snapshot{
		Session:        session,
		Reason:         c.reason,
		Status:         c.status,
		Logs:           c.logs,
		Devices:        devices,
		SelectedDevice: selected,
	}
}

func (c *Coordinator) startRecording(ctx context.Context, mode domain.SessionMode) error {
	if c.isDisposed() {
		return ErrDisposed
	}

	c.mu.Lock()
	device := c.selected
	c.mu.Unlock()

	session, err := c.machine.begin(mode, device)
	if err != nil {
		c.reject(err)
		return err
	}
	c.recordTransition(session)

	requested := domain.SessionReasonFixedRequested
	start := c.backend.StartFixedRecording
	if mode == domain.SessionModeContinuous {
		requested = domain.SessionReasonContinuousRequested
		start = c.backend.StartContinuousRecording
	}
	c.whileLive(func() {
		c.publish(requested, "")
	})

	if err := start(ctx, device); err != nil {
		err = fmt.Errorf("start %s recording: %w", mode, err)
		// no event will follow a rejected start
		if c.machine.abortStart(session.ID, err.Error()) {
			c.logger.Warn("start call failed", "session", session.ID, "mode", mode, "error", err)
			c.recordTransition(c.machine.current())
			c.whileLive(func() {
				c.sink.SessionError(domain.ErrorCodeBackendCall, err.Error())
				c.publish(domain.SessionReasonStartFailed, err.Error())
			})
		}
		return err
	}

	c.logger.Info("recording requested", "session", session.ID, "mode", mode, "device", device)
	return nil
}

func (c *Coordinator) handleEvent(event domain.Event) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.disposed {
		return
	}

	c.metrics.BackendEvents.WithLabelValues(string(event.Name())).Inc()

	result := c.machine.apply(event)
	if result.changed {
		session := c.machine.current()
		c.recordTransition(session)
		if result.failure != "" {
			c.logger.Warn("backend reported a recording error", "session", session.ID, "event", event.Name(), "error", result.failure)
			c.sink.SessionError(domain.ErrorCodeBackendReported, result.failure)
		}
		c.publish(result.reason, result.failure)
	} else {
		c.logger.Debug("ignoring event outside its session", "event", event.Name())
	}

	if reconcileAfter(event) {
		c.requestReconcile(string(event.Name()))
	}
}

// requestReconcile never blocks. A pending request absorbs any that arrive before it runs.
func (c *Coordinator) requestReconcile(trigger string) {
	c.metrics.ReconcileTriggers.WithLabelValues(trigger).Inc()
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Coordinator) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.metrics.ReconcileTriggers.WithLabelValues(triggerTick).Inc()
			c.reconcile(ctx)
		case <-c.kick:
			c.reconcile(ctx)
		}
	}
}

func (c *Coordinator) reconcile(ctx context.Context) {
	result, err := c.reconciler.Reconcile(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.mu.Lock()
		first := !c.listFailing
		c.listFailing = true
		c.mu.Unlock()
		if first {
			c.logger.Warn("transcript reconciliation failed", "error", err)
			c.whileLive(func() {
				c.sink.SessionError(domain.ErrorCodeBackendCall, err.Error())
			})
		}
		return
	}

	logs := c.reconciler.Logs()
	c.mu.Lock()
	c.listFailing = false
	c.logs = logs
	c.mu.Unlock()

	if len(result.Failed) > 0 {
		c.logger.Debug("transcripts pending retry", "count", len(result.Failed))
	}
	if !result.Changed {
		return
	}
	c.whileLive(func() {
		c.sink.TranscriptsUpdated(logs)
	})
}

func (c *Coordinator) reject(err error) {
	c.logger.Info("recording request rejected", "error", err)
	c.whileLive(func() {
		c.sink.SessionError(domain.ErrorCodeGuardViolation, err.Error())
		c.publish(domain.SessionReasonGuardRejected, err.Error())
	})
}

func (c *Coordinator) publish(reason domain.SessionStateReason, detail string) {
	c.setStatus(reason, detail)
	c.sink.SessionChanged(c.Snapshot())
}

func (c *Coordinator) setStatus(reason domain.SessionStateReason, detail string) {
	session := c.machine.current()
	c.mu.Lock()
	c.reason = reason
	c.status = statusMessage(reason, session, detail)
	c.mu.Unlock()
}

func (c *Coordinator) recordTransition(session domain.RecordingSession) {
	c.metrics.SessionTransitions.WithLabelValues(string(session.Mode), string(session.Phase)).Inc()
}

// whileLive runs fn unless the coordinator was disposed. Dispose waits for a running fn.
func (c *Coordinator) whileLive(fn func()) {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	if c.disposed {
		return
	}
	fn()
}

func (c *Coordinator) isDisposed() bool {
	c.lifeMu.RLock()
	defer c.lifeMu.RUnlock()
	return c.disposed
}

func (c *Coordinator) devicesLocked() ([]domain.AudioDevice, string) {
	return append([]domain.AudioDevice(nil), c.devices...), c.selected
}

func hasDevice(devices []domain.AudioDevice, id string) bool {
	return id != "" && lo.ContainsBy(devices, func(device domain.AudioDevice) bool {
		return device.ID == id
	})
}
