package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"workx/internal/bootstrap"
	"workx/internal/domain"
	"workx/internal/ports"
)

const (
	eventSession     = "workx:session"
	eventTranscripts = "workx:transcripts"
	eventDevices     = "workx:devices"
	eventError       = "workx:error"
)

var ErrNothingToCopy = errors.New("transcript is empty")

// App is the Wails application root.
type App struct {
	ctx context.Context

	services  *bootstrap.Services
	clipboard ports.Clipboard
	bootErr   error

	// emit defaults to the Wails runtime; tests replace it.
	emit func(name string, data ...any)
}

func NewApp() *App {
	a := &App{clipboard: &wailsClipboard{}}
	a.emit = func(name string, data ...any) {
		runtime.EventsEmit(a.ctx, name, data...)
	}
	return a
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services

	if err := services.Start(ctx); err != nil {
		a.bootErr = err
		services.Logger.Error("coordinator start failed", "error", err)
	}
}

func (a *App) shutdown(_ context.Context) {
	if a.services == nil {
		return
	}
	if err := a.services.Close(); err != nil {
		a.services.Logger.Warn("shutdown incomplete", "error", err)
	}
}

// GetSnapshot returns the current session, status, logs and devices.
func (a *App) GetSnapshot() domain.Snapshot {
	if a.services == nil {
		snapshot := domain.Snapshot{
			Session: domain.RecordingSession{Mode: domain.SessionModeIdle, Phase: domain.SessionPhaseIdle},
			Reason:  domain.SessionReasonReady,
		}
		if a.bootErr != nil {
			snapshot.Status = a.bootErr.Error()
		}
		return snapshot
	}
	return a.services.Coordinator.Snapshot()
}

// RefreshDevices reloads the device list from the backend.
func (a *App) RefreshDevices() ([]domain.AudioDevice, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	if err := a.services.Coordinator.RefreshDevices(a.ctx); err != nil {
		return nil, err
	}
	return a.services.Coordinator.Snapshot().Devices, nil
}

// SelectDevice sets the device used by the next recording.
func (a *App) SelectDevice(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Coordinator.SelectDevice(id)
}

// StartFixedRecording records one clip from the selected device.
func (a *App) StartFixedRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Coordinator.StartFixedRecording(a.ctx)
}

// StartContinuousRecording records clips back to back until stopped.
func (a *App) StartContinuousRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Coordinator.StartContinuousRecording(a.ctx)
}

func (a *App) StopContinuousRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Coordinator.StopContinuousRecording(a.ctx)
}

// RefreshTranscripts asks for a reconcile outside the poll schedule.
func (a *App) RefreshTranscripts() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Coordinator.RefreshTranscripts()
}

// CheckHealth pings the transcription service when the remote backend is configured.
func (a *App) CheckHealth() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.services.Health(a.ctx)
	if errors.Is(err, bootstrap.ErrNoHealthCheck) {
		return nil
	}
	return err
}

// CopyTranscript writes the source or target log to the clipboard.
func (a *App) CopyTranscript(language string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	text := a.services.Coordinator.Snapshot().Logs.For(domain.Language(strings.ToLower(language)))
	if strings.TrimSpace(text) == "" {
		return ErrNothingToCopy
	}
	if err := a.clipboard.SetText(a.ctx, text); err != nil {
		a.SessionError(domain.ErrorCodeClipboard, err.Error())
		return err
	}
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":        cfg.Backend.Kind,
		"transcriptsDir": cfg.Transcripts.Dir,
		"recordingsDir":  cfg.Audio.OutputDir,
		"rulesFile":      cfg.Rules.Path,
		"labelFormat":    cfg.Transcripts.LabelFormat,
		"configFile":     cfg.File,
		"pollInterval":   cfg.Transcripts.PollInterval.String(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionChanged emits session snapshots to the frontend.
func (a *App) SessionChanged(snapshot domain.Snapshot) {
	if a.ctx == nil {
		return
	}
	a.emit(eventSession, snapshot)
}

// TranscriptsUpdated emits the rebuilt display logs.
func (a *App) TranscriptsUpdated(logs domain.DisplayLogs) {
	if a.ctx == nil {
		return
	}
	a.emit(eventTranscripts, logs)
}

func (a *App) DevicesUpdated(devices []domain.AudioDevice, selected string) {
	if a.ctx == nil {
		return
	}
	if devices == nil {
		devices = []domain.AudioDevice{}
	}
	a.emit(eventDevices, map[string]any{
		"devices":  devices,
		"selected": selected,
	})
}

// SessionError emits errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	a.emit(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeGuardViolation:
		return "Request rejected"
	case domain.ErrorCodeBackendCall:
		return "Backend request failed"
	case domain.ErrorCodeBackendReported:
		return "Recording error"
	case domain.ErrorCodeSubscriptionSetup:
		return "Could not subscribe to backend events"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
