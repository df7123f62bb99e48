// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"goki.dev/synsl/slbackend"
)

// flags
var (
	outDir      = flag.String("out", "generated", "output directory for kernel source and manifests, relative to where synsl is invoked")
	backendName = flag.String("backend", "cuda", "kernel backend when no profile is given: cuda or opencl")
	profileFile = flag.String("profile", "", "toml device profile, used instead of any profile.toml in the bundles")
	precision   = flag.String("precision", "", "scalar precision, float or double, overriding the model and the profile")
	show        = flag.Bool("show", false, "print the highlighted kernel source to stdout")
	watch       = flag.Bool("watch", false, "regenerate bundles when they change")
	verbose     = flag.Bool("v", false, "debug logging, including strategy selection")
)

var (
	inFiles    []string            // list of all bundles processed
	filesProcd = map[string]bool{} // prevent redundancies
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: synsl [flags] [path ...]\n")
	flag.PrintDefaults()
}

func isBundle(f fs.DirEntry) bool {
	name := f.Name()
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".txtar") && !f.IsDir()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(synslMain())
}

func addFile(fn string) bool {
	if _, has := filesProcd[fn]; has {
		return false
	}
	inFiles = append(inFiles, fn)
	filesProcd[fn] = true
	return true
}

// synslOptions returns the generation options given by the flags
func synslOptions() (Options, error) {
	opts := Options{Precision: *precision}
	k, err := slbackend.ParseKind(*backendName)
	if err != nil {
		return opts, err
	}
	opts.Backend = k
	if *profileFile == "" {
		return opts, nil
	}
	fn, err := homedir.Expand(*profileFile)
	if err != nil {
		return opts, err
	}
	data, err := os.ReadFile(fn)
	if err != nil {
		return opts, err
	}
	opts.Profile, err = slbackend.DecodeProfile(data)
	return opts, err
}

func synslMain() int {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "at least one bundle or directory must be passed\n")
		return 2
	}
	opts, err := synslOptions()
	if err != nil {
		slog.Error("invalid options", "err", err)
		return 2
	}
	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0755); err != nil {
			slog.Error("creating output directory", "err", err)
			return 1
		}
	}

	for _, arg := range args {
		switch info, err := os.Stat(arg); {
		case err != nil:
			slog.Error("skipping", "path", arg, "err", err)
		case !info.IsDir():
			addFile(arg)
		default:
			// directories are walked for bundles
			err := filepath.WalkDir(arg, func(path string, f fs.DirEntry, err error) error {
				if err != nil || !isBundle(f) {
					return err
				}
				addFile(path)
				return nil
			})
			if err != nil {
				slog.Error("walking", "path", arg, "err", err)
			}
		}
	}

	nerr := processFiles(inFiles, opts)
	if *watch {
		if err := watchFiles(inFiles, opts); err != nil {
			slog.Error("watching", "err", err)
			return 1
		}
		return 0
	}
	if nerr > 0 {
		return 1
	}
	return 0
}
