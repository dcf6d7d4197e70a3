package domain

// EventName is the wire name of a backend notification.
type EventName string

const (
	EventRecordingStarted   EventName = "recording_started"
	EventRecordingProgress  EventName = "recording_progress"
	EventRecordingFinished  EventName = "recording_finished"
	EventRecordingError     EventName = "recording_error"
	EventContinuousStarted  EventName = "continuous_recording_started"
	EventContinuousProgress EventName = "continuous_recording_progress"
	EventContinuousStopped  EventName = "continuous_recording_stopped"
	EventContinuousError    EventName = "continuous_recording_error"
)

// BackendEventNames lists every notification the coordinator listens to.
var BackendEventNames = []EventName{
	EventRecordingStarted,
	EventRecordingProgress,
	EventRecordingFinished,
	EventRecordingError,
	EventContinuousStarted,
	EventContinuousProgress,
	EventContinuousStopped,
	EventContinuousError,
}

// Event is a decoded backend notification. The set of implementations is closed.
type Event interface {
	Name() EventName
	isEvent()
}

type RecordingStarted struct{}

type RecordingProgress struct {
	Percent float64
}

type RecordingFinished struct {
	Artifact string
}

type RecordingFailed struct {
	Message string
}

type ContinuousStarted struct{}

type ContinuousProgress struct {
	Count int
}

type ContinuousStopped struct {
	FinalCount int
}

type ContinuousFailed struct {
	Message string
}

func (RecordingStarted) Name() EventName   { return EventRecordingStarted }
func (RecordingProgress) Name() EventName  { return EventRecordingProgress }
func (RecordingFinished) Name() EventName  { return EventRecordingFinished }
func (RecordingFailed) Name() EventName    { return EventRecordingError }
func (ContinuousStarted) Name() EventName  { return EventContinuousStarted }
func (ContinuousProgress) Name() EventName { return EventContinuousProgress }
func (ContinuousStopped) Name() EventName  { return EventContinuousStopped }
func (ContinuousFailed) Name() EventName   { return EventContinuousError }

func (RecordingStarted) isEvent()   {}
func (RecordingProgress) isEvent()  {}
func (RecordingFinished) isEvent()  {}
func (RecordingFailed) isEvent()    {}
func (ContinuousStarted) isEvent()  {}
func (ContinuousProgress) isEvent() {}
func (ContinuousStopped) isEvent()  {}
func (ContinuousFailed) isEvent()   {}
