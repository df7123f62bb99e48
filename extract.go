// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
)

var (
	regionKey   = []byte("//synsl: ")
	regionStart = []byte("start")
	regionCode  = []byte("code")
	regionEnd   = []byte("end")
)

// ExtractRegions extracts the comment-directive tagged code regions of
// file fn into regions, keyed by <Model>.<field>. A region is either
//
//	//synsl: start LIF.sim
//	$(V) += $(Isyn);
//	//synsl: end
//
// or a code region whose lines are commented out in the host file:
//
//	//synsl: code LIF.sim
//	// $(V) += $(Isyn);
//	//synsl: end
//
// Regions of the same name are concatenated in order. The Go spellings
// in regions of Go files are rewritten by slEdits.
func ExtractRegions(regions map[string]string, fn string, src []byte) error {
	lines := bytes.Split(src, []byte("\n"))
	inReg := false
	inCode := false
	var outLns []string
	slFn := ""
	stLine := 0
	for li, ln := range lines {
		tln := bytes.TrimSpace(ln)
		isKey := bytes.HasPrefix(tln, regionKey)
		var keyStr []byte
		if isKey {
			keyStr = bytes.TrimSpace(tln[len(regionKey):])
		}
		switch {
		case isKey && bytes.HasPrefix(keyStr, regionEnd):
			if !inReg {
				return errors.Errorf("%s:%d: region end without start", fn, li+1)
			}
			body := strings.Join(outLns, "\n")
			if isGoRegion(fn) {
				body = string(slEdits([]byte(body)))
			}
			if prev, has := regions[slFn]; has {
				body = prev + "\n" + body
			}
			regions[slFn] = body
			inReg = false
			inCode = false
			outLns = nil
		case isKey && (bytes.HasPrefix(keyStr, regionStart) || bytes.HasPrefix(keyStr, regionCode)):
			if inReg {
				return errors.Errorf("%s:%d: region %s started inside region %s", fn, li+1, keyStr, slFn)
			}
			inCode = bytes.HasPrefix(keyStr, regionCode)
			dir := regionStart
			if inCode {
				dir = regionCode
			}
			slFn = string(bytes.TrimSpace(keyStr[len(dir):]))
			if slFn == "" || !strings.Contains(slFn, ".") {
				return errors.Errorf("%s:%d: region name must be <Model>.<field>, got %q", fn, li+1, slFn)
			}
			inReg = true
			stLine = li + 1
		case inReg && inCode:
			switch {
			case bytes.HasPrefix(tln, []byte("/*")) || bytes.HasPrefix(tln, []byte("*/")):
				// skip
			case bytes.HasPrefix(tln, []byte("// ")):
				outLns = append(outLns, string(tln[3:]))
			case bytes.Equal(tln, []byte("//")):
				outLns = append(outLns, "")
			default:
				outLns = append(outLns, string(ln))
			}
		case inReg:
			outLns = append(outLns, string(ln))
		}
	}
	if inReg {
		return errors.Errorf("%s:%d: region %s not terminated", fn, stLine, slFn)
	}
	return nil
}
