package audio

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"workx/internal/domain"
)

// PactlLister enumerates PulseAudio/PipeWire capture sources.
type PactlLister struct {
	command string
}

func NewPactlLister(command string) *PactlLister {
	if command == "" {
		command = "pactl"
	}
	return &PactlLister{command: command}
}

// ListDevices runs `pactl list sources` and returns one device per source, monitors included.
func (l *PactlLister) ListDevices(ctx context.Context) ([]domain.AudioDevice, error) {
	cmd := exec.CommandContext(ctx, l.command, "list", "sources")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list audio sources: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parsePactlSources(bytes.NewReader(out))
}

// parsePactlSources reads the Name and Description of every "Source #N" block.
// A source without a description is named after its id.
func parsePactlSources(r io.Reader) ([]domain.AudioDevice, error) {
	var (
		devices []domain.AudioDevice
		current *domain.AudioDevice
	)
	flush := func() {
		if current != nil && current.ID != "" {
			if current.Name == "" {
				current.Name = current.ID
			}
			devices = append(devices, *current)
		}
		current = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "Source #"):
			flush()
			current = &domain.AudioDevice{}
		case current == nil:
		case strings.HasPrefix(line, "Name:") && current.ID == "":
			current.ID = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "Description:") && current.Name == "":
			current.Name = strings.TrimSpace(strings.TrimPrefix(line, "Description:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse pactl output: %w", err)
	}
	flush()
	return devices, nil
}
