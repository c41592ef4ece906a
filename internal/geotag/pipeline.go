package geotag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aeroview/geotag/internal/telemetry"
)

// ProgressSink receives progress percentages and log lines from a
// running pipeline. Implementations must tolerate concurrent calls.
type ProgressSink interface {
	Progress(percent int)
	Log(message string)
}

// RunRecorder persists the artifacts of a pipeline run. Recording
// failures are logged, never fatal.
type RunRecorder interface {
	RecordTelemetry(ctx context.Context, samples []telemetry.Sample) error
	RecordMatches(ctx context.Context, matches []Match) error
	RecordRejections(ctx context.Context, rejections []Rejection, phase string) error
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) func(*Pipeline) {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgressSink sets the progress/log event receiver.
func WithProgressSink(sink ProgressSink) func(*Pipeline) {
	return func(p *Pipeline) {
		p.sink = sink
	}
}

// WithRecorder sets the run recorder.
func WithRecorder(rec RunRecorder) func(*Pipeline) {
	return func(p *Pipeline) {
		p.recorder = rec
	}
}

// WithTolerance sets the correlation tolerance.
func WithTolerance(d time.Duration) func(*Pipeline) {
	return func(p *Pipeline) {
		p.tolerance = d
	}
}

// WithFixedOffset sets the capture-time correction applied when the
// offset is enabled for a run.
func WithFixedOffset(d time.Duration) func(*Pipeline) {
	return func(p *Pipeline) {
		p.fixedOffset = d
	}
}

// WithWorkers bounds the correlation/injection worker pool.
func WithWorkers(n int) func(*Pipeline) {
	return func(p *Pipeline) {
		p.workers = n
	}
}

// Pipeline sequences validation, correlation and injection for one
// image set against one flight's telemetry.
type Pipeline struct {
	tolerance   time.Duration
	fixedOffset time.Duration
	workers     int

	logger   *slog.Logger
	sink     ProgressSink
	recorder RunRecorder
}

// New creates a Pipeline with documented defaults: 3 s tolerance,
// 8 h fixed offset, one worker per CPU.
func New(options ...func(*Pipeline)) *Pipeline {
	p := Pipeline{
		tolerance:   DefaultTolerance,
		fixedOffset: DefaultFixedOffset,
		workers:     runtime.NumCPU(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}
	if p.sink == nil {
		p.sink = &slogSink{logger: p.logger}
	}

	return &p
}

// Run executes the full pipeline. The returned slice enumerates every
// rejected image with its reason; an empty result means every image
// was geotagged. A non-nil error means a fatal precondition failed
// and nothing was written.
//
// Any phase-1 validation rejection aborts the whole run before
// telemetry is loaded or any file written: partially geotagging a set
// the operator expects to be complete is worse than an early, total
// failure. Correlation and injection failures after that gate are
// per-image only.
func (p *Pipeline) Run(ctx context.Context, imageDir string, source telemetry.Source, outputDir string, applyOffset bool) ([]Rejection, error) {
	names, err := ListImages(imageDir)
	if err != nil {
		return nil, err
	}

	p.logf("validating %d images", len(names))
	records, rejections := p.validatePhase(imageDir, names)
	if len(rejections) > 0 {
		p.logf("validation failed, %d image(s) rejected", len(rejections))
		p.record(ctx, nil, nil, rejections, "validation")
		return rejections, nil
	}

	positions, orientations, err := source.Samples(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading telemetry: %w", err)
	}
	table, err := telemetry.Normalize(positions, orientations)
	if err != nil {
		return nil, err
	}

	start, end := table.Window()
	p.logger.Info("telemetry normalized",
		slog.Int("samples", table.Len()),
		slog.Time("flightStart", time.UnixMicro(start).UTC()),
		slog.Time("flightEnd", time.UnixMicro(end).UTC()),
	)

	var offset time.Duration
	if applyOffset {
		offset = p.fixedOffset
	}
	correlator := NewCorrelator(table, offset, p.tolerance)

	p.logf("correlating %d images", len(records))
	matches, correlationRejections := p.correlatePhase(ctx, correlator, records)
	rejections = append(rejections, correlationRejections...)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	p.logf("injecting metadata into %d images", len(matches))
	injectionRejections := p.injectPhase(ctx, NewInjector(imageDir, outputDir), matches)
	rejections = append(rejections, injectionRejections...)

	sort.Slice(rejections, func(i, j int) bool { return rejections[i].FileName < rejections[j].FileName })

	p.record(ctx, table.Samples(), matches, correlationRejections, "correlation")
	p.record(ctx, nil, nil, injectionRejections, "injection")
	p.logf("done: %d geotagged, %d rejected", len(matches)-len(injectionRejections), len(rejections))

	if err := ctx.Err(); err != nil {
		return rejections, err
	}
	return rejections, nil
}

// validatePhase runs sequentially so the report keeps directory scan
// order.
func (p *Pipeline) validatePhase(imageDir string, names []string) ([]ImageRecord, []Rejection) {
	var records []ImageRecord
	var rejections []Rejection

	for _, name := range names {
		rec := Validate(imageDir, name)
		if rec.Status == StatusRejected {
			rejections = append(rejections, Rejection{FileName: rec.FileName, Reason: rec.Reason})
			continue
		}
		records = append(records, rec)
	}

	return records, rejections
}

func (p *Pipeline) correlatePhase(ctx context.Context, correlator *Correlator, records []ImageRecord) ([]Match, []Rejection) {
	type outcome struct {
		match     *Match
		rejection *Rejection
	}

	results := make(chan outcome, len(records))
	progress := p.newProgressTracker(0, 50, len(records))

	p.forEach(ctx, len(records), func(i int) {
		match, rejection := correlator.Correlate(records[i])
		results <- outcome{match: match, rejection: rejection}
		progress.step()
	})
	close(results)

	var matches []Match
	var rejections []Rejection
	for r := range results {
		if r.match != nil {
			matches = append(matches, *r.match)
		} else {
			rejections = append(rejections, *r.rejection)
		}
	}

	// Workers complete out of order; keep downstream work and reports
	// deterministic.
	sort.Slice(matches, func(i, j int) bool { return matches[i].FileName < matches[j].FileName })
	sort.Slice(rejections, func(i, j int) bool { return rejections[i].FileName < rejections[j].FileName })

	return matches, rejections
}

func (p *Pipeline) injectPhase(ctx context.Context, injector *Injector, matches []Match) []Rejection {
	results := make(chan Rejection, len(matches))
	progress := p.newProgressTracker(50, 50, len(matches))

	p.forEach(ctx, len(matches), func(i int) {
		m := &matches[i]
		n, err := injector.Inject(m)
		if err != nil {
			p.logger.Error("injection failed", slog.String("file", m.FileName), slog.String("error", err.Error()))
			results <- Rejection{FileName: m.FileName, Reason: fmt.Sprintf("Injection failed: %s", err)}
		} else {
			p.logger.Info("geotagged",
				slog.String("file", m.FileName),
				slog.String("size", humanize.Bytes(uint64(n))),
				slog.Float64("lat", m.Sample.Lat),
				slog.Float64("lon", m.Sample.Lon),
				slog.Float64("alt", m.Sample.AltM),
			)
		}
		progress.step()
	})
	close(results)

	var rejections []Rejection
	for r := range results {
		rejections = append(rejections, r)
	}
	sort.Slice(rejections, func(i, j int) bool { return rejections[i].FileName < rejections[j].FileName })
	return rejections
}

// forEach fans n jobs out over the worker pool and waits for them.
// Cancellation stops submission; in-flight jobs run to completion.
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(i int)) {
	workers := p.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, n)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

submit:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break submit
		}
	}
	close(jobs)
	wg.Wait()
}

func (p *Pipeline) record(ctx context.Context, samples []telemetry.Sample, matches []Match, rejections []Rejection, phase string) {
	if p.recorder == nil {
		return
	}

	if len(samples) > 0 {
		if err := p.recorder.RecordTelemetry(ctx, samples); err != nil {
			p.logger.Error("recording telemetry", slog.String("error", err.Error()))
		}
	}
	if len(matches) > 0 {
		if err := p.recorder.RecordMatches(ctx, matches); err != nil {
			p.logger.Error("recording matches", slog.String("error", err.Error()))
		}
	}
	if len(rejections) > 0 {
		if err := p.recorder.RecordRejections(ctx, rejections, phase); err != nil {
			p.logger.Error("recording rejections", slog.String("error", err.Error()))
		}
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	p.sink.Log(fmt.Sprintf(format, args...))
}

// progressTracker maps completed-job counts onto a percentage band.
// Emission is serialized so reported percentages never decrease, and
// every completed job emits exactly one event.
type progressTracker struct {
	base, span, total int

	mu   sync.Mutex
	done int
	last int
	sink ProgressSink
}

func (p *Pipeline) newProgressTracker(base, span, total int) *progressTracker {
	return &progressTracker{base: base, span: span, total: total, last: base, sink: p.sink}
}

func (t *progressTracker) step() {
	if t.total == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.done++
	percent := t.base + t.done*t.span/t.total
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	t.sink.Progress(percent)
}

// slogSink is the default ProgressSink, forwarding events to the
// pipeline logger.
type slogSink struct {
	logger *slog.Logger
}

func (s *slogSink) Progress(percent int) {
	s.logger.Debug("progress", slog.Int("percent", percent))
}

func (s *slogSink) Log(message string) {
	s.logger.Info(message)
}
