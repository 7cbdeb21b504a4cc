//go:build !windows

package main

// prepareConsole is a no-op outside Windows; terminals already speak
// UTF-8 and ANSI.
func prepareConsole() {}
