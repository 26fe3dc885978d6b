// Package mpv runs an mpv process in idle mode and drives it over its JSON
// IPC socket.
package mpv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"clipdeck/internal/player"
)

var (
	ErrNotAvailable = errors.New("mpv not found in PATH")
	ErrStartTimeout = errors.New("mpv IPC socket did not come up")
)

var _ player.Handle = (*Handle)(nil)

// dialTimeout is how long Start waits for mpv to create its socket
const dialTimeout = 5 * time.Second

// Options configures a launched mpv instance
type Options struct {
	// Path is the mpv binary; defaults to "mpv"
	Path string

	// Socket is the IPC socket path; defaults to a fresh file in the temp dir
	Socket string

	Title string

	// Headers are sent with every HTTP request mpv makes, e.g. "Cookie: token=..."
	Headers []string

	// Resolve turns a source path into a URL mpv can open
	Resolve func(src string) string

	Logger *slog.Logger
}

// Available reports whether the mpv binary can be found
func Available(path string) bool {
	if path == "" {
		path = "mpv"
	}
	_, err := exec.LookPath(path)
	return err == nil
}

// Player is a running mpv process together with its Handle
type Player struct {
	*Handle

	cmd    *exec.Cmd
	socket string
	exited chan struct{}
}

// Start launches mpv and connects to its IPC socket
func Start(ctx context.Context, opts Options) (*Player, error) {
	if opts.Path == "" {
		opts.Path = "mpv"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if !Available(opts.Path) {
		return nil, ErrNotAvailable
	}
	if opts.Socket == "" {
		opts.Socket = filepath.Join(os.TempDir(), fmt.Sprintf("clipdeck-mpv-%d.sock", os.Getpid()))
	}
	os.Remove(opts.Socket)

	cmd := exec.Command(opts.Path, buildArgs(opts)...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error launching mpv: %w", err)
	}

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	conn, err := dialSocket(ctx, opts.Socket, exited)
	if err != nil {
		cmd.Process.Kill()
		<-exited
		return nil, err
	}

	handle, err := NewHandle(conn, opts.Resolve, opts.Logger)
	if err != nil {
		cmd.Process.Kill()
		<-exited
		return nil, err
	}

	opts.Logger.Info("mpv started", "pid", cmd.Process.Pid, "socket", opts.Socket)

	return &Player{
		Handle: handle,
		cmd:    cmd,
		socket: opts.Socket,
		exited: exited,
	}, nil
}

// Exited is closed when the mpv process ends, e.g. the user closed its window
func (p *Player) Exited() <-chan struct{} {
	return p.exited
}

// Close asks mpv to quit, kills it if it does not, and removes the socket
func (p *Player) Close() error {
	p.command("quit")
	p.Handle.Close()

	select {
	case <-p.exited:
	case <-time.After(2 * time.Second):
		p.cmd.Process.Kill()
		<-p.exited
	}

	os.Remove(p.socket)
	return nil
}

func buildArgs(opts Options) []string {
	args := []string{
		"--idle=yes",
		"--keep-open=yes",
		"--force-window=yes",
		"--terminal=no",
		"--input-ipc-server=" + opts.Socket,
	}
	if opts.Title != "" {
		args = append(args, "--title="+opts.Title)
	}
	if len(opts.Headers) > 0 {
		args = append(args, "--http-header-fields="+strings.Join(opts.Headers, ","))
	}
	return args
}

func dialSocket(ctx context.Context, socket string, exited <-chan struct{}) (net.Conn, error) {
	deadline := time.After(dialTimeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		conn, err := net.Dial("unix", socket)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-exited:
			return nil, fmt.Errorf("mpv exited before its IPC socket was ready: %w", err)
		case <-deadline:
			return nil, fmt.Errorf("%w: %v", ErrStartTimeout, err)
		case <-ticker.C:
		}
	}
}
