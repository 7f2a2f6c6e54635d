// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Odly Contributors

//go:build windows

package inference

import "golang.org/x/sys/windows"

func freeBytes(dir string) (uint64, error) {
	path, err := windows.UTF16PtrFromString(dir)
	if err != nil {
		return 0, err
	}
	var avail, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(path, &avail, &total, &totalFree); err != nil {
		return 0, err
	}
	return avail, nil
}
