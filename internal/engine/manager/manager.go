package manager

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"TraceSpectra/internal/config"
	_ "TraceSpectra/internal/engine/flowaggregator"  // Registers flow-completion mode
	"TraceSpectra/internal/engine/parser"
	_ "TraceSpectra/internal/engine/queueaggregator" // Registers queue-length mode
	"TraceSpectra/internal/factory"
	"TraceSpectra/internal/metrics"
	"TraceSpectra/internal/model"
	"TraceSpectra/pkg/tracefile"
)

// LineError locates a fatal error in an input file.
type LineError struct {
	Path string
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// RunStats summarizes what a run has read so far.
type RunStats struct {
	Files        int
	Lines        int
	Events       int
	Malformed    int
	Unrecognized int
	Filtered     int
	// MaxGap is the largest time difference between consecutive events of a file.
	MaxGap   float64
	LastTime float64
	Counters model.EventCounters
}

// add folds the stats of a later file into s.
func (s *RunStats) add(o RunStats) {
	s.Files += o.Files
	s.Lines += o.Lines
	s.Events += o.Events
	s.Malformed += o.Malformed
	s.Unrecognized += o.Unrecognized
	s.Filtered += o.Filtered
	s.Counters.Add(o.Counters)
	if o.MaxGap > s.MaxGap {
		s.MaxGap = o.MaxGap
	}
	if o.Events > 0 {
		s.LastTime = o.LastTime
	}
}

// Manager drives trace files through the parser into the accumulator of one
// analysis mode.
type Manager struct {
	cfg     *config.Config
	mode    string
	parser  *parser.Parser
	acc     model.Accumulator
	metrics *metrics.Recorder
	stats   RunStats
}

// NewManager creates a Manager for cfg.Runner.Mode. rec may be nil.
func NewManager(cfg *config.Config, rec *metrics.Recorder) (*Manager, error) {
	p, err := parser.New(cfg.Parser)
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}
	acc, err := factory.Create(cfg.Runner.Mode, cfg)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = metrics.NewRecorder()
	}
	return &Manager{
		cfg:     cfg,
		mode:    cfg.Runner.Mode,
		parser:  p,
		acc:     acc,
		metrics: rec,
	}, nil
}

// Accumulator returns the accumulator holding the run's state.
func (m *Manager) Accumulator() model.Accumulator {
	return m.acc
}

// Stats returns the counts accumulated over all processed files.
func (m *Manager) Stats() RunStats {
	return m.stats
}

// Metrics returns the run's metrics recorder.
func (m *Manager) Metrics() *metrics.Recorder {
	return m.metrics
}

// Restore seeds the accumulator with a previously saved snapshot.
func (m *Manager) Restore(snapshot interface{}) error {
	if err := m.acc.Restore(snapshot); err != nil {
		return fmt.Errorf("failed to restore %s state: %w", m.mode, err)
	}
	m.updateEntities(m.acc)
	return nil
}

// ProcessFile reads one trace file into the accumulator.
func (m *Manager) ProcessFile(path string) error {
	return m.ProcessFiles([]string{path})
}

// ProcessReader reads a trace stream into the accumulator; name is used in
// errors and log messages.
func (m *Manager) ProcessReader(name string, r io.Reader) error {
	run := m.newFileRun(name, m.acc)
	if err := tracefile.ScanLines(r, run.handleLine); err != nil {
		return run.wrap(err)
	}
	m.finish(run)
	return nil
}

// ProcessFiles reads the files in order into the accumulator. With more than
// one configured worker, files are parsed concurrently into partial
// accumulators which are merged in the given order. When the partials cannot
// be merged into what a sequential run produces, the files are read again
// sequentially.
func (m *Manager) ProcessFiles(paths []string) error {
	if m.cfg.Runner.NumWorkers > 1 && len(paths) > 1 {
		return m.processParallel(paths)
	}
	return m.processSequential(paths)
}

func (m *Manager) processSequential(paths []string) error {
	for _, path := range paths {
		run := m.newFileRun(path, m.acc)
		if err := run.readFile(); err != nil {
			return err
		}
		m.finish(run)
	}
	return nil
}

type partialResult struct {
	path string
	run  *fileRun
	err  error
}

func (m *Manager) processParallel(paths []string) error {
	results := make([]partialResult, len(paths))
	jobs := make(chan int)

	numWorkers := m.cfg.Runner.NumWorkers
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}
	log.Infof("Processing %d files with %d workers.", len(paths), numWorkers)

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				res := partialResult{path: paths[idx]}
				partial, err := factory.Create(m.mode, m.cfg)
				if err != nil {
					res.err = err
				} else {
					res.run = m.newFileRun(paths[idx], partial)
					res.err = res.run.readFile()
				}
				results[idx] = res
			}
		}()
	}
	for idx := range paths {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if reason := m.mergeConflict(results); reason != "" {
		log.Warnf("Partial results cannot be merged (%s), reading %d files sequentially.", reason, len(paths))
		return m.processSequential(paths)
	}
	for _, res := range results {
		if err := m.acc.Merge(res.run.acc); err != nil {
			return fmt.Errorf("failed to merge partial state of '%s': %w", res.run.name, err)
		}
		m.finish(res.run)
	}
	return nil
}

// mergeConflict returns why the partials differ from a sequential run, or ""
// when merging them in order is exact. A file that fails on its own may have
// depended on an earlier file, and an order-dependent key shared by two
// inputs would restart from empty state in the later one.
func (m *Manager) mergeConflict(results []partialResult) string {
	for _, res := range results {
		if res.err != nil {
			return fmt.Sprintf("'%s' failed on its own: %v", res.path, res.err)
		}
	}
	owners := make(map[string]string)
	if od, ok := m.acc.(model.OrderDependent); ok {
		for _, key := range od.OrderDependentKeys() {
			owners[key] = "the existing state"
		}
	}
	for _, res := range results {
		od, ok := res.run.acc.(model.OrderDependent)
		if !ok {
			continue
		}
		name := fmt.Sprintf("'%s'", res.path)
		for _, key := range od.OrderDependentKeys() {
			if prev, dup := owners[key]; dup {
				return fmt.Sprintf("%s occurs in %s and %s", key, prev, name)
			}
			owners[key] = name
		}
	}
	return ""
}

func (m *Manager) finish(run *fileRun) {
	run.stats.Files = 1
	m.stats.add(run.stats)
	m.metrics.IncFiles()
	m.metrics.AddLines(run.stats.Lines, run.stats.Malformed, run.stats.Unrecognized, run.stats.Filtered)
	m.metrics.AddEvents(run.stats.Counters, run.stats.LastTime)
	m.updateEntities(m.acc)
	log.Infof("Finished '%s': %d lines, %d events, %d malformed, %d unrecognized, %d filtered.",
		run.name, run.stats.Lines, run.stats.Events, run.stats.Malformed, run.stats.Unrecognized, run.stats.Filtered)
}

func (m *Manager) updateEntities(acc model.Accumulator) {
	switch snap := acc.Snapshot().(type) {
	case model.FlowSnapshot:
		m.metrics.SetEntities(m.mode, len(snap.Records))
	case model.QueueSnapshot:
		m.metrics.SetEntities(m.mode, len(snap.Series))
	}
}

// fileRun processes the lines of a single input into one accumulator.
type fileRun struct {
	m       *Manager
	name    string
	acc     model.Accumulator
	stats   RunStats
	hasTime bool
	lineNo  int
}

func (m *Manager) newFileRun(name string, acc model.Accumulator) *fileRun {
	return &fileRun{m: m, name: name, acc: acc}
}

func (r *fileRun) readFile() error {
	reader, err := tracefile.NewReader(r.name)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := reader.ReadLines(r.handleLine); err != nil {
		return r.wrap(err)
	}
	return nil
}

func (r *fileRun) wrap(err error) error {
	var le *LineError
	if errors.As(err, &le) {
		return le
	}
	return fmt.Errorf("failed to process '%s': %w", r.name, err)
}

func (r *fileRun) handleLine(lineNo int, line string) error {
	r.lineNo = lineNo
	r.stats.Lines++
	defer r.progress()

	ev, err := r.m.parser.Parse(line)
	switch {
	case err == nil:
	case errors.Is(err, parser.ErrFiltered):
		r.stats.Filtered++
		return nil
	case errors.Is(err, parser.ErrUnrecognizedMarker):
		r.stats.Unrecognized++
		if r.m.cfg.Runner.UnknownMarker == "fail" {
			return &LineError{Path: r.name, Line: lineNo, Err: err}
		}
		log.Warnf("%s:%d: skipping line: %v", r.name, lineNo, err)
		return nil
	case errors.Is(err, parser.ErrMalformedLine):
		r.stats.Malformed++
		log.Debugf("%s:%d: %v", r.name, lineNo, err)
		return nil
	default:
		return &LineError{Path: r.name, Line: lineNo, Err: err}
	}

	if err := r.acc.Process(ev); err != nil {
		return &LineError{Path: r.name, Line: lineNo, Err: err}
	}
	r.stats.Events++
	r.stats.Counters.Count(ev.Type)
	if r.hasTime {
		if gap := ev.Time - r.stats.LastTime; gap > r.stats.MaxGap {
			r.stats.MaxGap = gap
		}
	}
	r.stats.LastTime = ev.Time
	r.hasTime = true
	return nil
}

func (r *fileRun) progress() {
	every := r.m.cfg.Runner.ProgressEvery
	if every <= 0 || r.lineNo%every != 0 {
		return
	}
	c := r.acc.Counters()
	log.Infof("%s: line %d, enqueued %d, dequeued %d, dropped %d, received %d, max gap %v, last t=%v",
		r.name, r.lineNo, c.Enqueued, c.Dequeued, c.Dropped, c.Received, r.stats.MaxGap, r.stats.LastTime)
}
