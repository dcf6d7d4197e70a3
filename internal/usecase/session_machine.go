package usecase

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"workx/internal/domain"
)

var (
	ErrAlreadyActive    = errors.New("a recording session is already active")
	ErrNoDeviceSelected = errors.New("no audio device selected")
	ErrNotRecording     = errors.New("no continuous recording in progress")
)

// IsGuardViolation reports whether err was produced by the session guard.
func IsGuardViolation(err error) bool {
	return errors.Is(err, ErrAlreadyActive) ||
		errors.Is(err, ErrNoDeviceSelected) ||
		errors.Is(err, ErrNotRecording)
}

type transition struct {
	changed bool
	reason  domain.SessionStateReason
	failure string
}

// sessionMachine owns the one recording session. Every transition happens under mu.
type sessionMachine struct {
	mu      sync.Mutex
	session domain.RecordingSession
	newID   func() string
}

func newSessionMachine() *sessionMachine {
	return &sessionMachine{
		session: domain.RecordingSession{Mode: domain.SessionModeIdle, Phase: domain.SessionPhaseIdle},
		newID:   uuid.NewString,
	}
}

func (m *sessionMachine) current() domain.RecordingSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// begin moves Idle -> Starting(mode). It never touches the backend.
func (m *sessionMachine) begin(mode domain.SessionMode, deviceID string) (domain.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.session.Idle() {
		return domain.RecordingSession{}, ErrAlreadyActive
	}
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.RecordingSession{}, ErrNoDeviceSelected
	}

	m.session = domain.RecordingSession{
		ID:       m.newID(),
		Mode:     mode,
		Phase:    domain.SessionPhaseStarting,
		DeviceID: deviceID,
	}
	return m.session, nil
}

// abortStart returns a session whose start call failed to Idle.
func (m *sessionMachine) abortStart(id string, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.ID != id || m.session.Phase != domain.SessionPhaseStarting {
		return false
	}
	m.session.LastError = message
	m.settle()
	return true
}

// beginStop moves Active(Continuous) -> Stopping.
func (m *sessionMachine) beginStop() (domain.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.Mode != domain.SessionModeContinuous || m.session.Phase != domain.SessionPhaseActive {
		return domain.RecordingSession{}, ErrNotRecording
	}
	m.session.Phase = domain.SessionPhaseStopping
	return m.session, nil
}

// revertStop puts a session back to Active when the stop call was rejected.
func (m *sessionMachine) revertStop(id string, message string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.ID != id || m.session.Phase != domain.SessionPhaseStopping {
		return false
	}
	m.session.Phase = domain.SessionPhaseActive
	m.session.LastError = message
	return true
}

// apply folds one backend notification into the session.
func (m *sessionMachine) apply(event domain.Event) transition {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &m.session
	fixed := s.Mode == domain.SessionModeFixed && !s.Idle()
	continuous := s.Mode == domain.SessionModeContinuous && !s.Idle()

	switch e := event.(type) {
	case domain.RecordingStarted:
		if fixed && s.Phase == domain.SessionPhaseStarting {
			s.Phase = domain.SessionPhaseActive
			return transition{changed: true, reason: domain.SessionReasonFixedStarted}
		}

	case domain.RecordingProgress:
		if fixed {
			s.Progress = clampPercent(e.Percent)
			return transition{changed: true, reason: domain.SessionReasonFixedProgress}
		}
		if continuous {
			s.Progress = clampPercent(e.Percent)
			return transition{changed: true, reason: domain.SessionReasonContinuousProgress}
		}

	case domain.RecordingFinished:
		if fixed {
			s.LastArtifact = e.Artifact
			s.Progress = 100
			m.settle()
			return transition{changed: true, reason: domain.SessionReasonFixedFinished}
		}
		if continuous {
			// one clip of the continuous run
			s.LastArtifact = e.Artifact
			return transition{changed: true, reason: domain.SessionReasonClipFinished}
		}

	case domain.RecordingFailed:
		if fixed {
			s.LastError = e.Message
			m.settle()
			return transition{changed: true, reason: domain.SessionReasonRecordingFailed, failure: e.Message}
		}
		if continuous {
			// the continuous run reports its own terminal error
			s.LastError = e.Message
			return transition{changed: true, reason: domain.SessionReasonRecordingFailed, failure: e.Message}
		}

	case domain.ContinuousStarted:
		if continuous && s.Phase == domain.SessionPhaseStarting {
			s.Phase = domain.SessionPhaseActive
			return transition{changed: true, reason: domain.SessionReasonContinuousStarted}
		}

	case domain.ContinuousProgress:
		if continuous {
			if e.Count > s.FilesGenerated {
				s.FilesGenerated = e.Count
			}
			return transition{changed: true, reason: domain.SessionReasonContinuousProgress}
		}

	case domain.ContinuousStopped:
		if continuous {
			if e.FinalCount > s.FilesGenerated {
				s.FilesGenerated = e.FinalCount
			}
			m.settle()
			return transition{changed: true, reason: domain.SessionReasonContinuousStopped}
		}

	case domain.ContinuousFailed:
		if continuous {
			s.LastError = e.Message
			m.settle()
			return transition{changed: true, reason: domain.SessionReasonRecordingFailed, failure: e.Message}
		}
	}

	return transition{}
}

// settle returns to Idle but keeps the last artifact, count and error for display.
func (m *sessionMachine) settle() {
	m.session.Mode = domain.SessionModeIdle
	m.session.Phase = domain.SessionPhaseIdle
}

func clampPercent(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}
