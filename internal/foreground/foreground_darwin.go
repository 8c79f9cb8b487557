//go:build darwin

package foreground

const frontWindowScript = `tell application "System Events"
	set frontApp to first application process whose frontmost is true
	try
		return name of front window of frontApp
	on error
		return name of frontApp
	end try
end tell`

func platformTitler() Titler {
	return commandTitler{name: "osascript", args: []string{"-e", frontWindowScript}}
}
