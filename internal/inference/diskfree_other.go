// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

//go:build !unix && !windows

package inference

import (
	"errors"
	"runtime"
)

func freeBytes(string) (uint64, error) {
	return 0, errors.New("free space check not supported on " + runtime.GOOS)
}
