package watcher

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const sourceBuffer = 16

// Source turns write and create notifications in one directory into Events. The directory
// is not watched recursively.
type Source struct {
	dir     string
	watcher *fsnotify.Watcher
	events  chan Event
	logger  *zap.Logger
}

func NewSource(dir string, logger *zap.Logger) (*Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Source{
		dir:     dir,
		watcher: w,
		events:  make(chan Event, sourceBuffer),
		logger:  logger,
	}, nil
}

func (s *Source) Events() <-chan Event {
	return s.events
}

// Run forwards notifications until ctx ends or the underlying watcher closes, then closes
// the events channel.
func (s *Source) Run(ctx context.Context) {
	defer close(s.events)
	defer func() {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("cannot close fs watcher", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			out := Event{Path: ev.Name}
			if info, err := os.Stat(ev.Name); err == nil {
				if info.IsDir() {
					continue
				}
				out.ModTime = info.ModTime()
			}
			select {
			case s.events <- out:
			case <-ctx.Done():
				return
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("fs watcher error", zap.String("path", s.dir), zap.Error(err))
		}
	}
}
