package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Sink receives the lines of each file picked up by a Watcher.
type Sink func(path string, lines []string)

// Watcher loads every regular file that appears in a spool directory.
//
// Files already in the directory when the watcher starts are loaded once.
// After that a file is loaded when it is created in (or renamed into) the
// directory. Names starting with "." are ignored so producers can write a
// hidden temporary file and rename it into place when it is complete.
type Watcher struct {
	dir  string
	sink Sink

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	seen  map[string]bool
	seenM sync.Mutex
}

// Watch starts watching dir and feeding files to sink.
func Watch(dir string, sink Sink) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		dir:     dir,
		sink:    sink,
		watcher: fw,
		cancel:  cancel,
		seen:    map[string]bool{},
	}

	w.wg.Add(1)
	go w.run(ctx)

	return w, nil
}

// Close stops the watcher and waits for any in-flight load to finish.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	w.loadExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) {
				w.load(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			glog.Errorf("spool watcher error on %s: %v", w.dir, err)
		}
	}
}

func (w *Watcher) loadExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		glog.Errorf("couldn't list spool directory %s: %v", w.dir, err)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		w.load(ctx, filepath.Join(w.dir, name))
	}
}

func (w *Watcher) load(ctx context.Context, path string) {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}

	// a file can show up in both the initial listing and an event
	w.seenM.Lock()
	if w.seen[path] {
		w.seenM.Unlock()
		return
	}
	w.seen[path] = true
	w.seenM.Unlock()

	lines, err := ReadLines(ctx, path)
	if err != nil {
		glog.Errorf("couldn't load spooled file: %v", err)
		return
	}

	w.sink(path, lines)
}
