//go:build linux

package foreground

// xdotool covers X11 sessions, kdotool covers KDE on Wayland. Other
// compositors report no title.
func platformTitler() Titler {
	return firstOf{
		commandTitler{name: "xdotool", args: []string{"getactivewindow", "getwindowname"}},
		commandTitler{name: "kdotool", args: []string{"getactivewindow", "getwindowname"}},
	}
}
