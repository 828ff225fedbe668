package index

import (
	"io/fs"
	"sync"
	"time"

	"github.com/tliron/commonlog"
)

// Watcher polls the indexer's root and keeps the index in step with the
// files on disk.
type Watcher struct {
	ix           *Indexer
	stopCh       chan struct{}
	doneCh       chan struct{}
	pollInterval time.Duration
	modTimes     map[string]time.Time
	log          commonlog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

func NewWatcher(ix *Indexer, pollInterval time.Duration) *Watcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Watcher{
		ix:           ix,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		pollInterval: pollInterval,
		modTimes:     make(map[string]time.Time),
		log:          commonlog.GetLogger("yal.index.watcher"),
	}
}

// Start begins polling. It does nothing once the watcher was started or
// stopped.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.run()
}

// Stop ends polling and waits for the current scan to finish. It may be
// called more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopCh)
	w.mu.Unlock()

	if started {
		<-w.doneCh
	}
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.scan()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

// scan indexes new and modified files and drops deleted ones. It returns
// the number of files indexed and removed.
func (w *Watcher) scan() (indexed, removed int) {
	current := make(map[string]bool)

	err := walk(w.ix.Root(), func(path string, info fs.FileInfo) {
		current[path] = true

		lastMod, known := w.modTimes[path]
		if known && !info.ModTime().After(lastMod) {
			return
		}
		if err := w.ix.IndexFile(path); err != nil {
			w.log.Errorf("%s", err)
			return
		}
		// Failed files stay unknown and are retried on the next scan.
		w.modTimes[path] = info.ModTime()
		indexed++
	})
	if err != nil {
		w.log.Errorf("scan %s: %s", w.ix.Root(), err)
	}

	for path := range w.modTimes {
		if current[path] {
			continue
		}
		delete(w.modTimes, path)
		if err := w.ix.RemoveFile(path); err != nil {
			w.log.Errorf("%s", err)
			continue
		}
		removed++
	}
	if indexed+removed > 0 {
		w.log.Infof("index updated: %d indexed, %d removed", indexed, removed)
	}
	return indexed, removed
}
