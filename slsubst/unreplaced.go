// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsubst

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// placeholders match $(identifier). Positional template slots such as
// $(0) start with a digit and are not matched.
var placeholderRe = regexp.MustCompile(`\$\(([A-Za-z_]\w*)\)`)

// UnreplacedVariables returns the names of all placeholders left in code
func UnreplacedVariables(code string) []string {
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(code, -1) {
		names = append(names, m[1])
	}
	return names
}

// CheckUnreplaced returns an ErrUnresolved error naming every
// placeholder still present in code, with label identifying the code
// fragment.
func CheckUnreplaced(code, label string) error {
	names := UnreplacedVariables(code)
	if len(names) == 0 {
		return nil
	}
	vars := "variable " + names[0] + " was"
	if len(names) > 1 {
		vars = "variables " + strings.Join(names, ", ") + " were"
	}
	return errors.Wrapf(ErrUnresolved, "the %s undefined in code %s", vars, label)
}
