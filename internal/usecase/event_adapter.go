package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"workx/internal/domain"
	"workx/internal/ports"
)

// subscribeBackendEvents listens to every backend notification and forwards decoded events
// to handle. On failure every subscription acquired so far is released before returning.
// The returned release func unsubscribes each listener exactly once.
func subscribeBackendEvents(bus ports.EventBus, logger *slog.Logger, handle func(domain.Event)) (func(), error) {
	unsubscribers := make([]func(), 0, len(domain.BackendEventNames))
	var once sync.Once
	release := func() {
		once.Do(func() {
			for i := len(unsubscribers) - 1; i >= 0; i-- {
				unsubscribers[i]()
			}
		})
	}

	for _, name := range domain.BackendEventNames {
		name := name
		unsubscribe, err := bus.Subscribe(string(name), func(payload ...any) {
			event, err := decodeEvent(name, payload)
			if err != nil {
				logger.Warn("dropping undecodable backend event", "event", name, "error", err)
				return
			}
			handle(event)
		})
		if err != nil {
			release()
			return nil, fmt.Errorf("subscribe to %s: %w", name, err)
		}
		if unsubscribe != nil {
			unsubscribers = append(unsubscribers, unsubscribe)
		}
	}

	return release, nil
}

func decodeEvent(name domain.EventName, payload []any) (domain.Event, error) {
	switch name {
	case domain.EventRecordingStarted:
		return domain.RecordingStarted{}, nil
	case domain.EventRecordingProgress:
		value, err := numberArg(payload)
		if err != nil {
			return nil, err
		}
		return domain.RecordingProgress{Percent: value}, nil
	case domain.EventRecordingFinished:
		artifact, err := stringArg(payload)
		if err != nil {
			return nil, err
		}
		return domain.RecordingFinished{Artifact: artifact}, nil
	case domain.EventRecordingError:
		return domain.RecordingFailed{Message: messageArg(payload)}, nil
	case domain.EventContinuousStarted:
		return domain.ContinuousStarted{}, nil
	case domain.EventContinuousProgress:
		count, err := countArg(payload)
		if err != nil {
			return nil, err
		}
		return domain.ContinuousProgress{Count: count}, nil
	case domain.EventContinuousStopped:
		count, err := countArg(payload)
		if err != nil {
			return nil, err
		}
		return domain.ContinuousStopped{FinalCount: count}, nil
	case domain.EventContinuousError:
		return domain.ContinuousFailed{Message: messageArg(payload)}, nil
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
}

// reconcileAfter reports whether an event marks a point where new transcripts may exist.
func reconcileAfter(event domain.Event) bool {
	switch event.(type) {
	case domain.RecordingProgress, domain.RecordingFinished,
		domain.ContinuousProgress, domain.ContinuousStopped:
		return true
	default:
		return false
	}
}

func numberArg(payload []any) (float64, error) {
	if len(payload) == 0 {
		return 0, errors.New("missing numeric payload")
	}

	var value float64
	switch v := payload[0].(type) {
	case float64:
		value = v
	case float32:
		value = float64(v)
	case int:
		value = float64(v)
	case int32:
		value = float64(v)
	case int64:
		value = float64(v)
	case uint:
		value = float64(v)
	case uint32:
		value = float64(v)
	case uint64:
		value = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid numeric payload %q: %w", v, err)
		}
		value = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid numeric payload %q: %w", v, err)
		}
		value = parsed
	default:
		return 0, fmt.Errorf("unsupported numeric payload type %T", payload[0])
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("numeric payload is not finite")
	}
	return value, nil
}

func countArg(payload []any) (int, error) {
	value, err := numberArg(payload)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative count %v", value)
	}
	return int(math.Round(value)), nil
}

func stringArg(payload []any) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("missing string payload")
	}
	value, ok := payload[0].(string)
	if !ok {
		return "", fmt.Errorf("unsupported string payload type %T", payload[0])
	}
	return value, nil
}

func messageArg(payload []any) string {
	if len(payload) > 0 && payload[0] != nil {
		if message := strings.TrimSpace(fmt.Sprint(payload[0])); message != "" {
			return message
		}
	}
	return "backend reported an unknown error"
}
