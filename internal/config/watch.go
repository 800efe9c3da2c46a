package config

import (
	"context"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watch blocks watching the config file's directory and invokes
// onChange after each change to the file, until ctx is cancelled.
// Watching the directory rather than the file survives the
// rename-and-replace writes editors and config mounts do.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapIf(err, "failed to create watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return errors.WrapIf(err, "failed to watch config directory")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("could not retrieve event")
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			log.WithField("event", event.Op.String()).Info("config file changed")
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("could not retrieve error")
			}
			return err
		}
	}
}
