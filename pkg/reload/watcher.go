package reload

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const watchedOps = fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove

// Watcher reports changes to a fixed set of files. The parent directories
// are watched rather than the files themselves so that editors and tools
// which replace a file by renaming over it keep being observed.
type Watcher struct {
	fs    *fsnotify.Watcher
	files map[string]struct{}
	log   zerolog.Logger
}

// NewWatcher starts watching files
func NewWatcher(files []string, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{fs: fsw, files: make(map[string]struct{}, len(files)), log: log}
	dirs := make(map[string]struct{})

	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", file, err)
		}
		w.files[abs] = struct{}{}

		dir := filepath.Dir(abs)
		if _, seen := dirs[dir]; seen {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = struct{}{}
	}

	return w, nil
}

// Run calls onChange for every relevant event until ctx is done, then
// releases the underlying watcher.
func (w *Watcher) Run(ctx context.Context, onChange func(path string)) {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if e.Op&watchedOps == 0 {
				continue
			}
			if _, watched := w.files[filepath.Clean(e.Name)]; !watched {
				continue
			}
			w.log.Debug().Str("file", e.Name).Str("op", e.Op.String()).Msg("Watched file changed")
			onChange(e.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("File watcher error")
		}
	}
}

// Close releases the watcher without running it
func (w *Watcher) Close() error {
	return w.fs.Close()
}
