//go:build !linux && !darwin && !windows

package foreground

func platformTitler() Titler { return Unsupported{} }
