package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SkillWatcher watches a skills directory and signals whenever a
// markdown skill definition is added, written, or removed, so a long
// running process can pick up edits without a restart.
type SkillWatcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

// WatchSkills starts watching dir for .md changes. The returned
// channel receives the changed file's name (debounced per file) until
// ctx is cancelled, at which point it is closed.
func WatchSkills(ctx context.Context, dir string) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating skill watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching skills dir %s: %w", dir, err)
	}

	ch := make(chan string, 8)
	sw := &SkillWatcher{dir: dir, watcher: watcher}
	go sw.loop(ctx, ch)
	return ch, nil
}

func (w *SkillWatcher) loop(ctx context.Context, ch chan<- string) {
	defer close(ch)
	defer w.watcher.Close()

	debounce := make(map[string]*time.Timer)
	const debounceDelay = 150 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			for _, t := range debounce {
				t.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".md" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if t, pending := debounce[name]; pending {
				t.Stop()
			}
			debounce[name] = time.AfterFunc(debounceDelay, func() {
				select {
				case ch <- name:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("skill watcher error", "error", err)
		}
	}
}
