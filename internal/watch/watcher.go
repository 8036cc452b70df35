// Package watch turns a drop directory into a stream of ingestion requests.
// Grid files dropped into the directory are uploaded; request files (YAML or
// JSON) are dispatched as written and renamed to .done or .failed.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/repair"
	"github.com/MarlonSantos/geonode-cloud/internal/schema"
)

// DispatchFunc runs one request.
type DispatchFunc func(ctx context.Context, req *model.IngestionRequest) error

const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

var requestExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Options tune a Watcher.
type Options struct {
	// Debounce is how long a file must stay quiet before it is picked up.
	Debounce time.Duration
	// Workers bounds concurrent dispatches.
	Workers int
	// Principal is set on requests built from dropped grid files.
	Principal string
}

// Watcher dispatches files dropped into a directory.
type Watcher struct {
	dir      string
	dispatch DispatchFunc
	opts     Options
	log      zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]bool
}

// New returns a Watcher over dir.
func New(dir string, dispatch DispatchFunc, opts Options, log zerolog.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Watcher{
		dir:      dir,
		dispatch: dispatch,
		opts:     opts,
		log:      log.With().Str("component", "watch").Str("dir", dir).Logger(),
		timers:   make(map[string]*time.Timer),
		seen:     make(map[string]bool),
	}
}

// Run watches until ctx is cancelled, then waits for in-flight dispatches.
// Files already present when Run starts are picked up too.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "watch %s", w.dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	ready := make(chan string, 64)
	stop := make(chan struct{})
	defer close(stop)

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errors.Wrapf(err, "scan %s", w.dir)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(filepath.Join(w.dir, e.Name()), ready, stop)
		}
	}

	w.log.Info().Int("workers", w.opts.Workers).Msg("watching drop directory")
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			werr := g.Wait()
			w.log.Info().Msg("watcher stopped")
			return werr

		case ev, ok := <-fw.Events:
			if !ok {
				return g.Wait()
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.schedule(ev.Name, ready, stop)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return g.Wait()
			}
			w.log.Warn().Err(err).Msg("watcher error")

		case path := <-ready:
			if !w.claim(path) {
				continue
			}
			g.Go(func() error {
				w.handle(gctx, path)
				return nil
			})
		}
	}
}

// Accepts reports whether a file name is something the watcher acts on.
func Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	if requestExtensions[ext] {
		return true
	}
	if !slices.Contains(handler.NetCDFExtensions, handler.Extension(base)) {
		return false
	}
	// Repaired copies are written next to their source.
	return !strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), repair.RepairedSuffix)
}

func (w *Watcher) schedule(path string, ready chan<- string, stop <-chan struct{}) {
	if !Accepts(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[path] {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.opts.Debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.opts.Debounce, func() {
		select {
		case ready <- path:
		case <-stop:
		}
	})
}

// claim marks path as dispatched. It returns false if it already was.
func (w *Watcher) claim(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.timers, path)
	if w.seen[path] {
		return false
	}
	w.seen[path] = true
	return true
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	log := w.log.With().Str("file", filepath.Base(path)).Logger()
	ext := strings.ToLower(filepath.Ext(path))

	if !requestExtensions[ext] {
		req := &model.IngestionRequest{
			Action:    model.ActionUpload,
			Files:     map[string]string{model.FileKeyBase: path},
			Principal: w.opts.Principal,
		}
		if err := w.dispatch(ctx, req); err != nil {
			log.Error().Err(err).Msg("dropped grid failed")
			return
		}
		log.Info().Msg("dropped grid ingested")
		return
	}

	req, err := schema.LoadRequest(path)
	if err == nil {
		w.resolveFiles(req)
		err = w.dispatch(ctx, req)
	}
	suffix := DoneSuffix
	if err != nil {
		suffix = FailedSuffix
		log.Error().Err(err).Msg("request failed")
	} else {
		log.Info().Str("action", string(req.Action)).Msg("request dispatched")
	}
	if rerr := os.Rename(path, path+suffix); rerr != nil {
		log.Warn().Err(rerr).Msg("failed to mark request file")
	}
}

// resolveFiles makes relative file paths relative to the drop directory.
func (w *Watcher) resolveFiles(req *model.IngestionRequest) {
	for k, p := range req.Files {
		if p != "" && !filepath.IsAbs(p) {
			req.Files[k] = filepath.Join(w.dir, p)
		}
	}
}
