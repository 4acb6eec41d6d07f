//go:build !windows
// +build !windows

package ui

import "image"

// Only the Windows clipboard exposes images and files; elsewhere paste
// falls back to text.
func getClipboardFiles() ([]string, error) {
	return nil, nil
}

func getClipboardImage() (image.Image, error) {
	return nil, nil
}
