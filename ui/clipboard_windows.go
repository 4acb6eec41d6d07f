//go:build windows
// +build windows

package ui

import (
	"fmt"
	"image"
	"syscall"
	"unsafe"

	"askforge-client/utils"
)

var (
	user32                     = syscall.NewLazyDLL("user32.dll")
	openClipboard              = user32.NewProc("OpenClipboard")
	closeClipboard             = user32.NewProc("CloseClipboard")
	getClipboardData           = user32.NewProc("GetClipboardData")
	isClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")

	kernel32     = syscall.NewLazyDLL("kernel32.dll")
	globalLock   = kernel32.NewProc("GlobalLock")
	globalUnlock = kernel32.NewProc("GlobalUnlock")
	globalSize   = kernel32.NewProc("GlobalSize")

	shell32       = syscall.NewLazyDLL("shell32.dll")
	dragQueryFile = shell32.NewProc("DragQueryFileW")
)

const (
	cfDIB   = 8  // Device Independent Bitmap
	cfHDROP = 15 // File drop format
)

// getClipboardFiles returns the paths of files copied in Explorer.
func getClipboardFiles() ([]string, error) {
	ret, _, _ := openClipboard.Call(0)
	if ret == 0 {
		return nil, nil
	}
	defer closeClipboard.Call()

	ret, _, _ = isClipboardFormatAvailable.Call(cfHDROP)
	if ret == 0 {
		return nil, nil
	}

	hDrop, _, _ := getClipboardData.Call(cfHDROP)
	if hDrop == 0 {
		return nil, nil
	}
	pDrop, _, _ := globalLock.Call(hDrop)
	if pDrop == 0 {
		return nil, nil
	}
	defer globalUnlock.Call(hDrop)

	fileCount, _, _ := dragQueryFile.Call(pDrop, 0xFFFFFFFF, 0, 0)
	files := make([]string, 0, fileCount)
	for i := uintptr(0); i < fileCount; i++ {
		bufSize, _, _ := dragQueryFile.Call(pDrop, i, 0, 0)
		if bufSize == 0 {
			continue
		}
		buf := make([]uint16, bufSize+1)
		ret, _, _ := dragQueryFile.Call(pDrop, i, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		if ret > 0 {
			files = append(files, syscall.UTF16ToString(buf))
		}
	}
	return files, nil
}

// getClipboardImage returns the CF_DIB image on the clipboard, as placed
// there by Print Screen and snipping tools, or nil when there is none.
func getClipboardImage() (image.Image, error) {
	ret, _, _ := openClipboard.Call(0)
	if ret == 0 {
		return nil, fmt.Errorf("failed to open clipboard")
	}
	defer closeClipboard.Call()

	ret, _, _ = isClipboardFormatAvailable.Call(cfDIB)
	if ret == 0 {
		return nil, nil
	}

	hMem, _, _ := getClipboardData.Call(cfDIB)
	if hMem == 0 {
		return nil, fmt.Errorf("failed to get clipboard data")
	}
	pMem, _, _ := globalLock.Call(hMem)
	if pMem == 0 {
		return nil, fmt.Errorf("failed to lock memory")
	}
	defer globalUnlock.Call(hMem)

	size, _, _ := globalSize.Call(hMem)
	if size == 0 {
		return nil, fmt.Errorf("empty clipboard data")
	}

	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(pMem)), size))
	return utils.DecodeDIB(data)
}
