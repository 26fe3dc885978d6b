// Package ui is the line-oriented terminal front end for a session.
package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"clipdeck/internal/app"
	"clipdeck/internal/catalog"
	"clipdeck/internal/player"
)

// Session is what the terminal drives
type Session interface {
	Snapshot() (app.Snapshot, error)
	SelectIndex(index int) error
	TogglePlay() error
	Seek(dir player.Direction) error
	ToggleMute() error
	Download() error
	Reload() error
}

const helpText = `Commands:
  <n>  select item n
  p    play / pause
  f    seek forward 10s
  b    seek backward 10s
  m    mute / unmute
  d    download the current file
  r    reload the catalog
  l    list the catalog
  s    show playback status
  h    this help
  q    quit
`

// REPL reads commands from in and writes to a Console
type REPL struct {
	session Session
	in      io.Reader
	out     *Console
}

// New creates a REPL
func New(session Session, in io.Reader, out *Console) *REPL {
	return &REPL{
		session: session,
		in:      in,
		out:     out,
	}
}

// Run reads commands until q, end of input or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	r.out.Printf("%s", helpText)
	r.prompt()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := r.Execute(line); quit {
				return nil
			}
			r.prompt()
		}
	}
}

func (r *REPL) prompt() {
	r.out.Printf("> ")
}

// Execute runs one command line and reports whether the user asked to quit
func (r *REPL) Execute(line string) bool {
	cmd := strings.ToLower(strings.TrimSpace(line))
	if cmd == "" {
		return false
	}

	if n, err := strconv.Atoi(cmd); err == nil {
		r.report(r.session.SelectIndex(n - 1))
		return false
	}

	switch cmd {
	case "q", "quit", "exit":
		return true
	case "h", "help", "?":
		r.out.Printf("%s", helpText)
	case "l", "ls", "list":
		r.list()
	case "s", "status":
		r.status()
	case "p":
		r.report(r.session.TogglePlay())
	case "f":
		r.report(r.session.Seek(player.Forward))
	case "b":
		r.report(r.session.Seek(player.Backward))
	case "m":
		r.report(r.session.ToggleMute())
	case "d":
		if err := r.session.Download(); err != nil {
			r.report(err)
		} else {
			r.out.Printf("downloading...\n")
		}
	case "r":
		if err := r.session.Reload(); err != nil {
			r.report(err)
		} else {
			r.out.Printf("reloading...\n")
		}
	default:
		r.out.Printf("unknown command %q, h for help\n", cmd)
	}

	return false
}

// report prints the outcome of an intent followed by the transport line
func (r *REPL) report(err error) {
	switch {
	case err == nil:
		r.status()
	case errors.Is(err, player.ErrControlDisabled):
		r.out.Printf("unavailable\n")
	case errors.Is(err, app.ErrUnknownAsset):
		r.out.Printf("no such item\n")
	case errors.Is(err, catalog.ErrAlreadyLoaded):
		r.out.Printf("catalog already loaded\n")
	default:
		r.out.Printf("error: %v\n", err)
	}
}

func (r *REPL) list() {
	snap, err := r.session.Snapshot()
	if err != nil {
		r.report(err)
		return
	}
	r.out.With(func(w io.Writer) { RenderGrid(w, snap) })
}

func (r *REPL) status() {
	snap, err := r.session.Snapshot()
	if err != nil {
		r.out.Printf("error: %v\n", err)
		return
	}
	r.out.With(func(w io.Writer) { RenderTransport(w, snap) })
}

// RenderGrid writes the catalog as a table
func RenderGrid(w io.Writer, snap app.Snapshot) {
	switch {
	case snap.LoadError != "":
		fmt.Fprintf(w, "catalog unavailable: %s\n", snap.LoadError)
		return
	case !snap.Loaded:
		fmt.Fprintln(w, "loading...")
		return
	case len(snap.Assets) == 0:
		fmt.Fprintln(w, "no media")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\t#\tNAME\tMODIFIED\tSIZE")
	for _, a := range snap.Assets {
		marker := ""
		if a.Selected {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", marker, a.Index+1, a.Name, a.Modified, a.Size)
	}
	tw.Flush()
}

// RenderTransport writes one line of playback state and enabled controls
func RenderTransport(w io.Writer, snap app.Snapshot) {
	pb := snap.Playback
	if pb.Src == "" {
		fmt.Fprintln(w, "[idle] nothing selected")
		return
	}

	sound := "sound"
	if pb.Muted {
		sound = "muted"
	}
	if !pb.HasAudioTrack {
		sound = "no audio"
	}

	var controls []string
	c := snap.Controls
	if c.PlayPause {
		controls = append(controls, "p")
	}
	if c.Seek {
		controls = append(controls, "f", "b")
	}
	if c.Mute {
		controls = append(controls, "m")
	}
	if c.Download {
		controls = append(controls, "d")
	}

	fmt.Fprintf(w, "[%s] %s  %s  %s  (%s)\n", pb.Status, pb.Name, pb.Position, sound, strings.Join(controls, " "))
	if pb.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", pb.Error)
	}
}

// Console serializes terminal output from the REPL and from
// asynchronous warnings
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole wraps w
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// With runs fn with exclusive access to the underlying writer
func (c *Console) With(fn func(w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.w)
}

// Notifier prints warnings to the console
type Notifier struct {
	out *Console
}

func NewNotifier(out *Console) *Notifier {
	return &Notifier{out: out}
}

func (n *Notifier) Warn(msg string) {
	n.out.Printf("\n! %s\n", msg)
}
