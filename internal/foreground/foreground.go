// Package foreground looks up the title of the focused desktop window.
//
// Each platform contributes a Titler through a build-tagged file; hosts
// without a known mechanism get Unsupported. Lookups are best effort and
// never return an error: no title and no window look the same.
package foreground

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Titler returns the focused window title, or ok=false when unknown.
type Titler interface {
	Title() (title string, ok bool)
}

// TitlerFunc adapts a function to Titler.
type TitlerFunc func() (string, bool)

// Title implements Titler.
func (f TitlerFunc) Title() (string, bool) { return f() }

// Unsupported never knows the title.
type Unsupported struct{}

// Title implements Titler.
func (Unsupported) Title() (string, bool) { return "", false }

// Default returns the Titler for the running platform.
func Default() Titler { return platformTitler() }

const lookupTimeout = 500 * time.Millisecond

// commandTitler shells out to a helper that prints the title on stdout.
type commandTitler struct {
	name string
	args []string
}

var runCommand = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (c commandTitler) Title() (string, bool) {
	if _, err := exec.LookPath(c.name); err != nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	out, err := runCommand(ctx, c.name, c.args...)
	if err != nil {
		return "", false
	}
	title := strings.TrimSpace(string(out))
	if title == "" {
		return "", false
	}
	return title, true
}

// firstOf tries each Titler in order and returns the first hit.
type firstOf []Titler

func (f firstOf) Title() (string, bool) {
	for _, t := range f {
		if title, ok := t.Title(); ok {
			return title, true
		}
	}
	return "", false
}
