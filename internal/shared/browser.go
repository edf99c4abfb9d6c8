package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser starts the platform's URL opener on authURL so the user can approve access
// during `auth login`. It returns once the opener has started; the login flow keeps waiting
// on the callback server either way, so a failure here only means the URL must be opened by hand.
func OpenBrowser(authURL string) error {
	cmd, err := browserCommand(runtime.GOOS, authURL)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// browserCommand builds the opener for goos without starting it.
func browserCommand(goos, authURL string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", authURL), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", authURL), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", authURL), nil
	default:
		return nil, fmt.Errorf("cannot open a browser on %s, visit the login URL manually", goos)
	}
}
