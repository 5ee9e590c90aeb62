package tailer

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kumarabd/gokit/logger"
	cache_pkg "github.com/patrickmn/go-cache"

	"github.com/edgefleet/logship/internal/metrics"
	"github.com/edgefleet/logship/pkg/logtypes"
	"github.com/edgefleet/logship/pkg/parser"
	"github.com/edgefleet/logship/pkg/policy"
)

// Config contains configuration for the file tailer.
type Config struct {
	QueueSize    int           `json:"queue_size" yaml:"queue_size" default:"1000"`        // Shared record queue capacity
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" default:"1s"`    // Fallback scan interval
	ErrorWindow  time.Duration `json:"error_window" yaml:"error_window" default:"30s"`     // Repeat I/O error log suppression
}

// Tailer watches a set of append-only log files and turns file growth
// into sampled records on the shared queue. Each file gets its own
// goroutine: on first encounter the whole current content is replayed
// from offset 0 (logs written before the agent started are not lost,
// at the price of duplicate delivery across restarts), then the tailer
// follows appends via fsnotify write events with a polling ticker as
// backstop for files that are missing or unwatchable.
type Tailer struct {
	cfg     *Config
	paths   []string
	sampler *policy.Sampler
	queue   chan<- *logtypes.Record
	metric  *metrics.Handler
	log     *logger.Handler

	// Suppresses repeat per-file I/O error logging; the error itself is
	// always counted and the file retried on the next tick.
	errSeen *cache_pkg.Cache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a tailer pushing kept records onto queue.
func New(cfg *Config, paths []string, sampler *policy.Sampler, queue chan<- *logtypes.Record, metric *metrics.Handler, log *logger.Handler) *Tailer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tailer{
		cfg:     cfg,
		paths:   paths,
		sampler: sampler,
		queue:   queue,
		metric:  metric,
		log:     log,
		errSeen: cache_pkg.New(cfg.ErrorWindow, 2*cfg.ErrorWindow),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches one tail loop per watched path.
func (t *Tailer) Start() {
	for _, path := range t.paths {
		t.wg.Add(1)
		go t.runFile(path)
	}
	t.log.Info().Int("files", len(t.paths)).Msg("tailer started")
}

// Stop terminates all tail loops and waits for them to exit.
func (t *Tailer) Stop() {
	t.cancel()
	t.wg.Wait()
	t.log.Info().Msg("tailer stopped")
}

func (t *Tailer) runFile(path string) {
	defer t.wg.Done()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn().Err(err).Str("path", path).Msg("fsnotify unavailable, falling back to polling")
		watcher = nil
	} else {
		defer watcher.Close()
	}
	watched := false

	// Replay the entire current content before following appends.
	offset := t.drain(path, 0)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	var events chan fsnotify.Event
	var errs chan error
	if watcher != nil {
		events = watcher.Events
		errs = watcher.Errors
	}

	for {
		if watcher != nil && !watched {
			if err := watcher.Add(path); err != nil {
				t.reportError(path, err)
			} else {
				watched = true
			}
		}

		select {
		case <-t.ctx.Done():
			return
		case ev := <-events:
			if ev.Op&fsnotify.Write == fsnotify.Write {
				offset = t.drain(path, offset)
			}
		case err := <-errs:
			t.reportError(path, err)
		case <-ticker.C:
			// Backstop for missed notifications and late-appearing files.
			offset = t.drain(path, offset)
		}
	}
}

// drain reads everything appended past offset, emits the complete lines
// and returns the new offset. The offset only advances past the last
// newline: a partial trailing line stays unconsumed and is re-read once
// its remainder has been written.
func (t *Tailer) drain(path string, offset int64) int64 {
	file, err := os.Open(path)
	if err != nil {
		t.reportError(path, err)
		return offset
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		t.reportError(path, err)
		return offset
	}

	data, err := io.ReadAll(file)
	if err != nil {
		t.reportError(path, err)
		return offset
	}

	lastNL := bytes.LastIndexByte(data, '\n')
	if lastNL < 0 {
		return offset
	}

	for _, line := range bytes.Split(data[:lastNL], []byte{'\n'}) {
		t.handleLine(string(line), path)
	}
	return offset + int64(lastNL) + 1
}

func (t *Tailer) handleLine(line, source string) {
	rec := parser.Parse(line, source)
	if rec == nil {
		return
	}
	t.metric.IncLogsProcessed()

	if !t.sampler.ShouldKeep(rec.Level, rec.Message) {
		return
	}
	t.metric.IncLogsSampled()

	// Never block the notification loop on a slow consumer: a full
	// queue drops the record and counts it.
	select {
	case t.queue <- rec:
	default:
		t.metric.IncQueueDropped()
	}
}

func (t *Tailer) reportError(path string, err error) {
	if os.IsNotExist(err) {
		// Missing files are retried every tick; logging each attempt
		// would bury real errors.
		return
	}
	if _, seen := t.errSeen.Get(path); seen {
		return
	}
	t.errSeen.Set(path, struct{}{}, cache_pkg.DefaultExpiration)
	t.log.Warn().Err(err).Str("path", path).Msg("file tail error, skipping this tick")
}
