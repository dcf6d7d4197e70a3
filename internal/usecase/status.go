package usecase

import (
	"fmt"
	"math"

	"workx/internal/domain"
)

func statusMessage(reason domain.SessionStateReason, session domain.RecordingSession, detail string) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonFixedRequested:
		return "Starting recording..."
	case domain.SessionReasonFixedStarted:
		return "Recording clip"
	case domain.SessionReasonFixedProgress:
		return fmt.Sprintf("Recording clip: %d%%", int(math.Round(session.Progress)))
	case domain.SessionReasonFixedFinished:
		return "Recording saved: " + baseName(session.LastArtifact)
	case domain.SessionReasonContinuousRequested:
		return "Starting continuous recording..."
	case domain.SessionReasonContinuousStarted:
		return "Continuous recording active"
	case domain.SessionReasonContinuousProgress:
		return fmt.Sprintf("Continuous recording: %d files generated", session.FilesGenerated)
	case domain.SessionReasonContinuousStopping:
		return "Stopping continuous recording..."
	case domain.SessionReasonContinuousStopped:
		return fmt.Sprintf("Continuous recording stopped after %d files", session.FilesGenerated)
	case domain.SessionReasonClipFinished:
		return fmt.Sprintf("Continuous recording: saved %s", baseName(session.LastArtifact))
	case domain.SessionReasonRecordingFailed:
		return "Recording failed: " + detail
	case domain.SessionReasonStartFailed:
		return "Could not start recording: " + detail
	case domain.SessionReasonStopFailed:
		return "Could not stop recording: " + detail
	case domain.SessionReasonGuardRejected:
		return "Request rejected: " + detail
	case domain.SessionReasonDevicesUnavailable:
		return "Audio devices unavailable: " + detail
	default:
		return ""
	}
}
