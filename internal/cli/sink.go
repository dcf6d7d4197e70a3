package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"workx/internal/domain"
)

// consoleSink prints coordinator output as plain lines.
type consoleSink struct {
	out    io.Writer
	errOut io.Writer

	// follow prints transcript text as it arrives.
	follow bool

	mu         sync.Mutex
	lastStatus string
	printed    domain.DisplayLogs
}

func newConsoleSink(out io.Writer, errOut io.Writer, follow bool) *consoleSink {
	return &consoleSink{out: out, errOut: errOut, follow: follow}
}

func (s *consoleSink) SessionChanged(snapshot domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Status == "" || snapshot.Status == s.lastStatus {
		return
	}
	s.lastStatus = snapshot.Status
	fmt.Fprintf(s.out, "status: %s\n", snapshot.Status)
}

func (s *consoleSink) TranscriptsUpdated(logs domain.DisplayLogs) {
	if !s.follow {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printDelta("source", s.printed.Source, logs.Source)
	s.printDelta("target", s.printed.Target, logs.Target)
	s.printed = logs
}

func (s *consoleSink) DevicesUpdated([]domain.AudioDevice, string) {}

func (s *consoleSink) SessionError(code domain.ErrorCode, detail string) {
	fmt.Fprintf(s.errOut, "error [%s]: %s\n", code, detail)
}

// printDelta prints only what was appended since the last update. A rewritten log is printed whole.
func (s *consoleSink) printDelta(language string, before string, after string) {
	if after == before || after == "" {
		return
	}
	added := after
	if before != "" && strings.HasPrefix(after, before) {
		added = strings.TrimLeft(after[len(before):], "\n")
	}
	for _, block := range strings.Split(added, "\n\n") {
		if block = strings.TrimSpace(block); block != "" {
			fmt.Fprintf(s.out, "%s %s\n", language, block)
		}
	}
}
