//go:build windows

package main

import "syscall"

const utf8CodePage = 65001

// Portuguese status text is echoed to the console alongside the log file.
func init() {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	kernel32.NewProc("SetConsoleOutputCP").Call(utf8CodePage)
	kernel32.NewProc("SetConsoleCP").Call(utf8CodePage)
}
