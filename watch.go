// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFiles regenerates each bundle in fls when it is written, until
// interrupted. The directories are watched, since editors often replace
// files rather than write them in place.
func watchFiles(fls []string, opts Options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := map[string]string{}
	dirs := map[string]bool{}
	for _, fn := range fls {
		abs, err := filepath.Abs(fn)
		if err != nil {
			return err
		}
		watched[abs] = fn
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	slog.Info("watching", "bundles", len(watched))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			fn, has := watched[ev.Name]
			if !has {
				continue
			}
			if err := processFile(fn, opts); err != nil {
				slog.Error("generation failed", "bundle", fn, "err", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("watch", "err", err)
		}
	}
}
