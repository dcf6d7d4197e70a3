package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"workx/internal/domain"
)

func TestReconcileBuildsLogsInListingOrder(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143032_EN.txt", "second")
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143022_EN.txt", "first\n")
	backend.addTranscript(domain.LanguageTarget, "/t/record_20240115_143022.txt", "primero")

	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	result, err := reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.Changed || result.NewFiles != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}

	logs := reconciler.Logs()
	if logs.Source != "[14:30:32] second\n\n[14:30:22] first" {
		t.Fatalf("unexpected source log: %q", logs.Source)
	}
	if logs.Target != "[14:30:22] primero" {
		t.Fatalf("unexpected target log: %q", logs.Target)
	}
}

func TestReconcileIsIdempotentWithoutNewFiles(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/meeting_20240115_143022.txt", "hello")

	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	logsBefore := reconciler.Logs()
	knownBefore := reconciler.Known()
	readsBefore := len(backend.snapshotReads())

	result, err := reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if result.Changed || result.NewFiles != 0 {
		t.Fatalf("expected no-op, got %+v", result)
	}
	if reconciler.Logs() != logsBefore {
		t.Fatalf("logs changed on no-op cycle")
	}
	if !reflect.DeepEqual(reconciler.Known(), knownBefore) {
		t.Fatalf("known set changed on no-op cycle")
	}
	if got := len(backend.snapshotReads()); got != readsBefore {
		t.Fatalf("expected no reads on no-op cycle, got %d new", got-readsBefore)
	}
}

func TestReconcileSkipsSentinel(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/contexto.txt", "glossary")
	backend.addTranscript(domain.LanguageSource, `C:\t\contexto.txt`, "glossary")
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143022_EN.txt", "hello")

	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	for _, path := range backend.snapshotReads() {
		if baseName(path) == DefaultSentinelName {
			t.Fatalf("sentinel was read: %s", path)
		}
	}
	if known := reconciler.Known(); !reflect.DeepEqual(known, []string{"/t/record_20240115_143022_EN.txt"}) {
		t.Fatalf("unexpected known set: %v", known)
	}
	if strings.Contains(reconciler.Logs().Source, "glossary") {
		t.Fatalf("sentinel content leaked into logs")
	}
}

func TestReconcileRetriesFailedReads(t *testing.T) {
	t.Parallel()

	const (
		good = "/t/record_20240115_143022.txt"
		bad  = "/t/record_20240115_143032.txt"
	)
	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageTarget, good, "uno")
	backend.addTranscript(domain.LanguageTarget, bad, "dos")
	backend.setReadErr(bad, errors.New("file locked"))

	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	result, err := reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !reflect.DeepEqual(result.Failed, []string{bad}) {
		t.Fatalf("unexpected failed handles: %v", result.Failed)
	}
	if known := reconciler.Known(); !reflect.DeepEqual(known, []string{good}) {
		t.Fatalf("unexpected known set: %v", known)
	}

	backend.setReadErr(bad, nil)
	readsBefore := len(backend.snapshotReads())
	result, err = reconciler.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("retry reconcile failed: %v", err)
	}
	if !result.Changed || result.NewFiles != 1 {
		t.Fatalf("unexpected retry result: %+v", result)
	}
	reads := backend.snapshotReads()[readsBefore:]
	if !reflect.DeepEqual(reads, []string{bad}) {
		t.Fatalf("expected only the failed handle to be re-read, got %v", reads)
	}
	if got := reconciler.Logs().Target; got != "[14:30:22] uno\n\n[14:30:32] dos" {
		t.Fatalf("unexpected target log: %q", got)
	}
}

func TestReconcileListingFailureKeepsState(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143022.txt", "hello")
	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	listErr := errors.New("backend offline")
	backend.setListErr(listErr)
	_, err := reconciler.Reconcile(context.Background())
	if !errors.Is(err, listErr) {
		t.Fatalf("expected listing error, got %v", err)
	}
	if reconciler.Logs().Source != "[14:30:22] hello" {
		t.Fatalf("logs changed after listing failure: %q", reconciler.Logs().Source)
	}
	if len(reconciler.Known()) != 1 {
		t.Fatalf("known set changed after listing failure")
	}
}

func TestReconcileAppliesFilterAndDateTimeLabels(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143022.txt", "  ehh hola  ")
	filter := fakeFilter{replace: map[string]string{"  ehh hola  ": " hola "}}

	reconciler := newTestReconciler(backend, filter, ReconcilerConfig{LabelFormat: LabelFormatDateTime})
	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if got := reconciler.Logs().Source; got != "[2024-01-15 14:30:22] hola" {
		t.Fatalf("unexpected log: %q", got)
	}
}

func TestReconcileDropsVanishedHandlesOnNextChange(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/a_20240115_143022.txt", "a")
	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{})
	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	backend.mu.Lock()
	backend.listing.Source = nil
	backend.mu.Unlock()
	backend.addTranscript(domain.LanguageSource, "/t/b_20240115_143032.txt", "b")

	if _, err := reconciler.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if known := reconciler.Known(); !reflect.DeepEqual(known, []string{"/t/b_20240115_143032.txt"}) {
		t.Fatalf("unexpected known set: %v", known)
	}
	if got := reconciler.Logs().Source; got != "[14:30:32] b" {
		t.Fatalf("unexpected log: %q", got)
	}
}

func TestTranscriptLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		path   string
		format LabelFormat
		want   string
	}{
		{name: "time", path: "meeting_20240115_143022.txt", format: LabelFormatTime, want: "14:30:22"},
		{name: "datetime", path: "meeting_20240115_143022.txt", format: LabelFormatDateTime, want: "2024-01-15 14:30:22"},
		{name: "unix dir", path: "/srv/t/record_20231231_235959_EN.txt", format: LabelFormatTime, want: "23:59:59"},
		{name: "windows dir", path: `C:\t\record_20240115_080000.txt`, format: LabelFormatTime, want: "08:00:00"},
		{name: "no stamp", path: "/t/notes.txt", format: LabelFormatTime, want: "notes.txt"},
		{name: "invalid date", path: "/t/record_20241345_250000.txt", format: LabelFormatTime, want: "record_20241345_250000.txt"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := transcriptLabel(tc.path, tc.format); got != tc.want {
				t.Fatalf("transcriptLabel(%q) = %q, want %q", tc.path, got, tc.want)
			}
		})
	}
}

func TestReconcileCancelledSkipsReads(t *testing.T) {
	t.Parallel()

	backend := newFakeBackend()
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143022.txt", "hello")
	backend.addTranscript(domain.LanguageSource, "/t/record_20240115_143032.txt", "again")
	reconciler := newTestReconciler(backend, nil, ReconcilerConfig{ReadConcurrency: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := reconciler.Reconcile(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reads := backend.snapshotReads(); len(reads) != 0 {
		t.Fatalf("expected no reads after cancel, got %v", reads)
	}
	if len(reconciler.Known()) != 0 || reconciler.Logs().Source != "" {
		t.Fatalf("cancelled cycle changed state")
	}
}
