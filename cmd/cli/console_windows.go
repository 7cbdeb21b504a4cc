//go:build windows

package main

import (
	"os"

	"golang.org/x/sys/windows"
)

const codePageUTF8 = 65001

// prepareConsole switches console output to UTF-8 and enables ANSI
// escape handling on stdout and stderr when they are attached to a
// console. Redirected streams are left alone.
func prepareConsole() {
	_ = windows.SetConsoleOutputCP(codePageUTF8)

	for _, f := range []*os.File{os.Stdout, os.Stderr} {
		h := windows.Handle(f.Fd())
		var mode uint32
		if err := windows.GetConsoleMode(h, &mode); err != nil {
			continue
		}
		_ = windows.SetConsoleMode(h, mode|windows.ENABLE_PROCESSED_OUTPUT|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
