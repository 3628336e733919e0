package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Opener opens a URL in the user's browser.
type Opener interface {
	Open(url string) error
}

// SystemOpener uses the platform's "open this URL" command.
type SystemOpener struct{}

func (SystemOpener) Open(url string) error {
	cmd := command(runtime.GOOS, url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", url, err)
	}
	// don't block the chat on the browser process
	go cmd.Wait()
	return nil
}

func command(goos, url string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(url string) error

func (f OpenerFunc) Open(url string) error { return f(url) }

// Nop never opens anything.
var Nop Opener = OpenerFunc(func(string) error { return nil })
