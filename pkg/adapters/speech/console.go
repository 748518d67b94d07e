package speech

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/voiceloop/internal/logging"
	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Console emulates a speech service on a terminal: typed lines are recognized
// utterances and a line that does not arrive in time is a no-input.
//
// While nothing is being listened for, an empty line sends the start signal.
// End of input closes the event stream.
type Console struct {
	out    *termenv.Output
	events chan domain.Event
	logger *slog.Logger

	mu        sync.Mutex
	closed    bool
	listening bool
	listenSeq int
	timer     *time.Timer
	timeout   time.Duration
	fixed     bool
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithNoInputTimeout overrides the timeout received in the speech settings.
func WithNoInputTimeout(d time.Duration) ConsoleOption {
	return func(c *Console) {
		c.timeout = d
		c.fixed = true
	}
}

// WithConsoleLogger configures the structured logger.
func WithConsoleLogger(logger *slog.Logger) ConsoleOption {
	return func(c *Console) {
		c.logger = logger
	}
}

// NewConsole starts reading lines from in. Colors are only used when out is a terminal.
func NewConsole(in io.Reader, out io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{
		out:     newOutput(out),
		events:  make(chan domain.Event, 64),
		logger:  logging.NewNop(),
		timeout: domain.DefaultSpeechSettings().NoInputTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.read(in)
	return c
}

func newOutput(w io.Writer) *termenv.Output {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return termenv.NewOutput(w)
	}
	return termenv.NewOutput(w, termenv.WithProfile(termenv.Ascii))
}

func (c *Console) Prepare(ctx context.Context, settings domain.SpeechSettings) error {
	c.mu.Lock()
	if !c.fixed && settings.NoInputTimeout > 0 {
		c.timeout = settings.NoInputTimeout
	}
	c.mu.Unlock()

	c.println(c.out.String(fmt.Sprintf("[speech ready: %s, %s]", settings.Locale, settings.Voice)).Faint().String())
	c.println(c.out.String("Press Enter to start.").Faint().String())
	c.emit(domain.Ready())
	return nil
}

func (c *Console) Listen(ctx context.Context) error {
	c.mu.Lock()
	c.listening = true
	c.listenSeq++
	seq := c.listenSeq
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.timeout > 0 {
		c.timer = time.AfterFunc(c.timeout, func() { c.expire(seq) })
	}
	c.mu.Unlock()

	fmt.Fprint(c.out, c.out.String("> ").Foreground(c.out.Color("#a78bfa")).String())
	return nil
}

func (c *Console) Speak(ctx context.Context, text string) error {
	c.println(c.out.String(text).Foreground(c.out.Color("#818cf8")).Bold().String())
	c.emit(domain.SpeakComplete())
	return nil
}

func (c *Console) Events() <-chan domain.Event {
	return c.events
}

func (c *Console) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.line(strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		c.logger.Error("console input failed", "err", err)
	}
	c.close()
}

func (c *Console) line(text string) {
	c.mu.Lock()
	listening := c.listening
	if listening {
		c.stopListening()
	}
	c.mu.Unlock()

	switch {
	case listening && text == "":
		c.emit(domain.NoInput())
	case listening:
		c.emit(domain.Recognized(text))
	case text == "":
		c.emit(domain.Start())
	default:
		c.logger.Debug("ignoring input while not listening", "text", text)
	}
}

func (c *Console) expire(seq int) {
	c.mu.Lock()
	if !c.listening || seq != c.listenSeq {
		c.mu.Unlock()
		return
	}
	c.stopListening()
	c.mu.Unlock()

	c.println("")
	c.emit(domain.NoInput())
}

// stopListening must be called with mu held.
func (c *Console) stopListening() {
	c.listening = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Console) emit(ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("console event dropped", "event", ev.Type)
	}
}

func (c *Console) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.events)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.out, s)
}
