package domain

// SessionMode is the kind of recording a session performs.
type SessionMode string

const (
	SessionModeIdle       SessionMode = "idle"
	SessionModeFixed      SessionMode = "fixed"
	SessionModeContinuous SessionMode = "continuous"
)

// SessionPhase tracks where a session is in its lifecycle.
type SessionPhase string

const (
	SessionPhaseIdle     SessionPhase = "idle"
	SessionPhaseStarting SessionPhase = "starting"
	SessionPhaseActive   SessionPhase = "active"
	SessionPhaseStopping SessionPhase = "stopping"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonFixedRequested      SessionStateReason = "fixed_requested"
	SessionReasonFixedStarted        SessionStateReason = "fixed_started"
	SessionReasonFixedProgress       SessionStateReason = "fixed_progress"
	SessionReasonFixedFinished       SessionStateReason = "fixed_finished"
	SessionReasonContinuousRequested SessionStateReason = "continuous_requested"
	SessionReasonContinuousStarted   SessionStateReason = "continuous_started"
	SessionReasonContinuousProgress  SessionStateReason = "continuous_progress"
	SessionReasonContinuousStopping  SessionStateReason = "continuous_stopping"
	SessionReasonContinuousStopped   SessionStateReason = "continuous_stopped"
	SessionReasonClipFinished        SessionStateReason = "clip_finished"
	SessionReasonRecordingFailed     SessionStateReason = "recording_failed"
	SessionReasonStartFailed         SessionStateReason = "start_failed"
	SessionReasonStopFailed          SessionStateReason = "stop_failed"
	SessionReasonGuardRejected       SessionStateReason = "guard_rejected"
	SessionReasonDevicesUnavailable  SessionStateReason = "devices_unavailable"
)

// ErrorCode identifies the class of a failure surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodeGuardViolation    ErrorCode = "guard_violation"
	ErrorCodeBackendCall       ErrorCode = "backend_call"
	ErrorCodeBackendReported   ErrorCode = "backend_reported"
	ErrorCodeSubscriptionSetup ErrorCode = "subscription_setup"
	ErrorCodeClipboard         ErrorCode = "clipboard"
)

// RecordingSession is the single recording the coordinator may own at a time.
type RecordingSession struct {
	ID             string       `json:"id,omitempty"`
	Mode           SessionMode  `json:"mode"`
	Phase          SessionPhase `json:"phase"`
	DeviceID       string       `json:"deviceId,omitempty"`
	FilesGenerated int          `json:"filesGenerated"`
	Progress       float64      `json:"progress"`
	LastArtifact   string       `json:"lastArtifact,omitempty"`
	LastError      string       `json:"lastError,omitempty"`
}

// Idle reports whether no recording is pending or running.
func (s RecordingSession) Idle() bool {
	return s.Phase == SessionPhaseIdle
}

// AudioDevice is a capture device as reported by the backend.
type AudioDevice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Language tags which transcript stream a file belongs to.
type Language string

const (
	LanguageSource Language = "source"
	LanguageTarget Language = "target"
)

// TranscriptFile is a backend-addressable transcript handle.
type TranscriptFile struct {
	Path     string   `json:"path"`
	Language Language `json:"language"`
}

// TranscriptListing is the backend view of transcript files, in backend order.
// Backends without language separation put every handle in Source.
type TranscriptListing struct {
	Source []string `json:"source"`
	Target []string `json:"target"`
}

// Files flattens the listing, source first.
func (l TranscriptListing) Files() []TranscriptFile {
	out := make([]TranscriptFile, 0, len(l.Source)+len(l.Target))
	for _, path := range l.Source {
		out = append(out, TranscriptFile{Path: path, Language: LanguageSource})
	}
	for _, path := range l.Target {
		out = append(out, TranscriptFile{Path: path, Language: LanguageTarget})
	}
	return out
}

// TranscriptEntry is one labelled block of transcript text.
type TranscriptEntry struct {
	Path  string `json:"path"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// DisplayLogs holds the rendered transcript text per language.
type DisplayLogs struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// For returns the log for the given language.
func (l DisplayLogs) For(language Language) string {
	if language == LanguageTarget {
		return l.Target
	}
	return l.Source
}

// Snapshot is the read-only view the UI renders.
type Snapshot struct {
	Session        RecordingSession   `json:"session"`
	Reason         SessionStateReason `json:"reason"`
	Status         string             `json:"status"`
	Logs           DisplayLogs        `json:"logs"`
	Devices        []AudioDevice      `json:"devices"`
	SelectedDevice string             `json:"selectedDevice"`
}
