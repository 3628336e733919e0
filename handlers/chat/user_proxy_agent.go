package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"multimodalchat/core"

	"github.com/charmbracelet/lipgloss"
)

const separator = "--------------------------------------------------------------------------------"

// UserProxyAgent stands in for the human at the terminal. It never answers on
// its own: every turn is read from input.
type UserProxyAgent struct {
	config UserProxyConfig
	in     io.Reader
	out    io.Writer
	logger *core.Logger

	headerStyle lipgloss.Style
	dimStyle    lipgloss.Style

	once  sync.Once
	lines chan string
	mu    sync.Mutex
}

func NewUserProxyAgent(config UserProxyConfig, in io.Reader, out io.Writer, logger *core.Logger) *UserProxyAgent {
	if logger == nil {
		logger = core.GetLogger()
	}
	// plain text unless out is a color terminal
	renderer := lipgloss.NewRenderer(out)
	return &UserProxyAgent{
		config:      config,
		in:          in,
		out:         out,
		logger:      logger.With(map[string]any{"component": "user_proxy"}),
		headerStyle: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		dimStyle:    renderer.NewStyle().Faint(true),
	}
}

func (u *UserProxyAgent) Name() string {
	return u.config.Name
}

// Receive prints the incoming message.
func (u *UserProxyAgent) Receive(ctx context.Context, msg Message, sender Agent) error {
	u.printMessage(sender.Name(), u.Name(), msg)
	return nil
}

// Send prints msg and delivers it to recipient.
func (u *UserProxyAgent) Send(ctx context.Context, msg Message, recipient Agent) error {
	u.printMessage(u.Name(), recipient.Name(), msg)
	return recipient.Receive(ctx, msg, u)
}

// Println writes a line to the terminal.
func (u *UserProxyAgent) Println(a ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintln(u.out, a...)
}

func (u *UserProxyAgent) printMessage(from, to string, msg Message) {
	u.mu.Lock()
	defer u.mu.Unlock()
	header := u.headerStyle.Render(fmt.Sprintf("%s (to %s):", from, to))
	fmt.Fprintf(u.out, "%s\n\n%s\n", header, msg.Content)
	if msg.ImageFile != "" {
		fmt.Fprintln(u.out, u.dimStyle.Render("[image: "+msg.ImageFile+"]"))
	}
	if msg.AudioFile != "" {
		fmt.Fprintln(u.out, u.dimStyle.Render("[audio: "+msg.AudioFile+"]"))
	}
	fmt.Fprintf(u.out, "\n%s\n", u.dimStyle.Render(separator))
}

// GetHumanInput prompts for the next turn. ok is false when the human ended
// the conversation (exit word, empty line or EOF) or ctx was cancelled.
func (u *UserProxyAgent) GetHumanInput(ctx context.Context) (text string, ok bool) {
	u.once.Do(u.startReader)

	u.mu.Lock()
	fmt.Fprint(u.out, u.config.Prompt)
	u.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", false
	case line, open := <-u.lines:
		if !open {
			u.logger.Debug("input closed")
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false
		}
		for _, w := range u.config.ExitWords {
			if strings.EqualFold(line, w) {
				return "", false
			}
		}
		return line, true
	}
}

// startReader scans input on its own goroutine so a blocked read never
// outlives a cancelled context from the caller's point of view.
func (u *UserProxyAgent) startReader() {
	u.lines = make(chan string)
	go func() {
		defer close(u.lines)
		scanner := bufio.NewScanner(u.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			u.lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			u.logger.Warn("input read failed", "error", err)
		}
	}()
}
