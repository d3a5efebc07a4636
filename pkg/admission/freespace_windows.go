//go:build windows

package admission

import "golang.org/x/sys/windows"

// FreeSpace returns the bytes available to the calling user on the volume
// containing path.
func FreeSpace(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	var freeAvailable, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(p, &freeAvailable, &total, &totalFree); err != nil {
		return 0, err
	}
	return freeAvailable, nil
}
