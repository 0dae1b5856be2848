package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads cfg.File whenever it changes and passes the new settings to
// onChange. Reloads that fail to parse or validate are logged and skipped.
// The file's directory is watched so editors that replace the file by
// rename are seen. Watch blocks until ctx is done.
func Watch(ctx context.Context, cfg Config, log *slog.Logger, onChange func(Config)) error {
	if cfg.File == "" {
		return fmt.Errorf("config: watch: no config file")
	}
	if log == nil {
		log = slog.Default()
	}

	path, err := filepath.Abs(cfg.File)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(path), err)
	}

	log.DebugContext(ctx, "config.watch.start", slog.String("file", path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			next, err := LoadFile(cfg.File, cfg)
			if err == nil {
				err = next.Validate()
			}
			if err != nil {
				log.WarnContext(ctx, "config.reload.fail", slog.String("err", err.Error()))
				continue
			}
			log.InfoContext(ctx, "config.reload.ok", slog.String("file", path))
			onChange(next)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.DebugContext(ctx, "config.watch.error", slog.String("err", err.Error()))
		}
	}
}
