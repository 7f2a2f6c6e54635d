// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

package inference

import (
	"fmt"
	"os"
	"path/filepath"

	odlyerr "github.com/odly-dev/odly/pkg/errors"
)

// Diagnostics describes where a model was expected and how much room the
// filesystem holding it has. It is attached to every model load error.
type Diagnostics struct {
	ModelPath     string
	Exists        bool
	IsDir         bool
	SizeBytes     int64
	FreeBytes     uint64
	RequiredBytes uint64
	FreeErr       error
}

// Diagnose inspects path without loading it. minFree of 0 means the model
// file size is used as the free-space hint.
func Diagnose(path string, minFree uint64) Diagnostics {
	d := Diagnostics{ModelPath: path, RequiredBytes: minFree}
	if path == "" {
		return d
	}

	if info, err := os.Stat(path); err == nil {
		d.Exists = true
		d.IsDir = info.IsDir()
		d.SizeBytes = info.Size()
		if d.RequiredBytes == 0 && info.Size() > 0 {
			d.RequiredBytes = uint64(info.Size())
		}
	}

	d.FreeBytes, d.FreeErr = FreeBytes(filepath.Dir(path))
	return d
}

// Check fails when the model cannot possibly load: no path, missing file, a
// directory, or less free space than an explicit minimum.
func (d Diagnostics) Check(minFree uint64) error {
	switch {
	case d.ModelPath == "":
		return d.Err(fmt.Errorf("no model path configured"))
	case !d.Exists:
		return d.Err(fmt.Errorf("model file not found"))
	case d.IsDir:
		return d.Err(fmt.Errorf("model path is a directory"))
	case minFree > 0 && d.FreeErr == nil && d.FreeBytes < minFree:
		return d.Err(fmt.Errorf("insufficient free space"))
	}
	return nil
}

// Hint is the operator-facing remedy line.
func (d Diagnostics) Hint() string {
	path := d.ModelPath
	if path == "" {
		path = "<model.path>"
	}
	hint := fmt.Sprintf("expected model at %s", path)
	if d.RequiredBytes > 0 {
		hint += fmt.Sprintf("; keep at least %s free", FormatBytes(d.RequiredBytes))
	}
	if d.FreeErr == nil && d.ModelPath != "" {
		hint += fmt.Sprintf(" (%s available)", FormatBytes(d.FreeBytes))
	}
	return hint
}

// Err builds a ModelLoadError for cause carrying these diagnostics.
func (d Diagnostics) Err(cause error) error {
	return odlyerr.Relabel(cause, odlyerr.CodeInferenceModelLoadFailure,
		"loading model: "+d.Hint(),
		odlyerr.FieldModelPath(d.ModelPath),
		odlyerr.Field("free_bytes", d.FreeBytes),
		odlyerr.Field("required_bytes", d.RequiredBytes),
	)
}

// FreeBytes reports the space available to unprivileged users on the
// filesystem holding dir, walking up to the nearest existing ancestor.
func FreeBytes(dir string) (uint64, error) {
	for {
		if _, err := os.Stat(dir); err == nil {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return freeBytes(dir)
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
