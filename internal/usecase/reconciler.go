package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"workx/internal/domain"
	"workx/internal/metrics"
	"workx/internal/ports"
)

// DefaultSentinelName is the context file the transcriber keeps next to transcripts.
const DefaultSentinelName = "contexto.txt"

// ReconcilerConfig controls transcript reconciliation.
type ReconcilerConfig struct {
	SentinelName    string
	LabelFormat     LabelFormat
	ReadConcurrency int
}

// ReconcileResult summarizes one reconciliation cycle.
type ReconcileResult struct {
	Changed  bool
	NewFiles int
	Failed   []string
}

// Reconciler folds the backend transcript listing into per-language display logs.
// Only handles that are not yet known are read; a handle whose read fails stays unknown
// and is read again on the next cycle.
type Reconciler struct {
	backend ports.Backend
	filter  ports.TextFilter
	logger  *slog.Logger
	metrics *metrics.Metrics
	cfg     ReconcilerConfig

	mu      sync.Mutex
	known   map[string]struct{}
	entries map[string]domain.TranscriptEntry
	logs    domain.DisplayLogs
}

func NewReconciler(backend ports.Backend, filter ports.TextFilter, logger *slog.Logger, m *metrics.Metrics, cfg ReconcilerConfig) *Reconciler {
	if strings.TrimSpace(cfg.SentinelName) == "" {
		cfg.SentinelName = DefaultSentinelName
	}
	if cfg.LabelFormat != LabelFormatDateTime {
		cfg.LabelFormat = LabelFormatTime
	}
	if cfg.ReadConcurrency <= 0 {
		cfg.ReadConcurrency = 4
	}
	return &Reconciler{
		backend: backend,
		filter:  filter,
		logger:  logger,
		metrics: m,
		cfg:     cfg,
		known:   make(map[string]struct{}),
		entries: make(map[string]domain.TranscriptEntry),
	}
}

// Reconcile runs one cycle. With no unknown handles it is a no-op and reads nothing.
func (r *Reconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, err := r.backend.ListTranscriptFiles(ctx)
	if err != nil {
		r.metrics.ReconcileRuns.WithLabelValues("list_failed").Inc()
		return ReconcileResult{}, fmt.Errorf("list transcript files: %w", err)
	}

	files := lo.UniqBy(
		lo.Filter(listing.Files(), func(file domain.TranscriptFile, _ int) bool {
			return baseName(file.Path) != r.cfg.SentinelName
		}),
		func(file domain.TranscriptFile) string { return file.Path },
	)
	fresh := lo.Filter(files, func(file domain.TranscriptFile, _ int) bool {
		_, ok := r.known[file.Path]
		return !ok
	})
	if len(fresh) == 0 {
		r.metrics.ReconcileRuns.WithLabelValues("noop").Inc()
		return ReconcileResult{}, nil
	}

	read, failed := r.readAll(ctx, fresh)
	if err := ctx.Err(); err != nil {
		return ReconcileResult{}, err
	}

	for path, entry := range read {
		r.entries[path] = entry
	}

	known := make(map[string]struct{}, len(files))
	for _, file := range files {
		if _, ok := r.entries[file.Path]; ok {
			known[file.Path] = struct{}{}
		}
	}
	for path := range r.entries {
		if _, ok := known[path]; !ok {
			delete(r.entries, path)
		}
	}

	logs := domain.DisplayLogs{
		Source: r.render(files, domain.LanguageSource),
		Target: r.render(files, domain.LanguageTarget),
	}
	changed := logs != r.logs || len(known) != len(r.known)
	r.known = known
	r.logs = logs

	r.metrics.ReconcileRuns.WithLabelValues("updated").Inc()
	r.metrics.KnownTranscripts.Set(float64(len(known)))
	r.logger.Debug("transcripts reconciled", "listed", len(files), "new", len(read), "failed", len(failed))

	return ReconcileResult{Changed: changed, NewFiles: len(read), Failed: failed}, nil
}

// Logs returns the current display logs.
func (r *Reconciler) Logs() domain.DisplayLogs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs
}

// Known returns the incorporated handles, sorted.
func (r *Reconciler) Known() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := lo.Keys(r.known)
	sort.Strings(out)
	return out
}

type readResult struct {
	text string
	err  error
}

func (r *Reconciler) readAll(ctx context.Context, files []domain.TranscriptFile) (map[string]domain.TranscriptEntry, []string) {
	results := make([]readResult, len(files))

	var group errgroup.Group
	group.SetLimit(r.cfg.ReadConcurrency)
	for i, file := range files {
		i, file := i, file
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = readResult{err: err}
				return err
			}
			text, err := r.backend.ReadTranscriptFile(ctx, file.Path)
			results[i] = readResult{text: text, err: err}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		r.logger.Debug("transcript reads cut short", "error", err)
	}

	read := make(map[string]domain.TranscriptEntry, len(files))
	var failed []string
	for i, file := range files {
		if err := results[i].err; err != nil {
			r.metrics.TranscriptReads.WithLabelValues("failed").Inc()
			r.logger.Warn("transcript read failed; retrying next cycle", "path", file.Path, "error", err)
			failed = append(failed, file.Path)
			continue
		}
		r.metrics.TranscriptReads.WithLabelValues("ok").Inc()

		text := results[i].text
		if r.filter != nil {
			text = r.filter.Apply(text)
		}
		read[file.Path] = domain.TranscriptEntry{
			Path:  file.Path,
			Label: transcriptLabel(file.Path, r.cfg.LabelFormat),
			Text:  strings.TrimSpace(text),
		}
	}
	return read, failed
}

func (r *Reconciler) render(files []domain.TranscriptFile, language domain.Language) string {
	blocks := make([]string, 0, len(files))
	for _, file := range files {
		if file.Language != language {
			continue
		}
		entry, ok := r.entries[file.Path]
		if !ok {
			continue
		}
		blocks = append(blocks, "["+entry.Label+"] "+entry.Text)
	}
	return strings.Join(blocks, "\n\n")
}
