package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// CommandType represents the type of CLI command
type CommandType int

const (
	CommandHelp CommandType = iota
	CommandVersion
	CommandPlay
	CommandServe
	CommandList
	CommandDownload
	CommandLogin
	CommandLogout
	CommandPasswd
)

// Command represents a parsed CLI command
type Command struct {
	Type CommandType

	// Control and Port enable the local control API; Port 0 keeps the
	// configured port
	Control bool
	Port    int

	Name string

	Username       string
	Password       string
	NewPassword    string
	RepeatPassword string
}

// String returns a string representation of the command
func (c *Command) String() string {
	switch c.Type {
	case CommandHelp:
		return "help"
	case CommandVersion:
		return "version"
	case CommandPlay:
		if c.Control && c.Port != 0 {
			return fmt.Sprintf("play (control port: %d)", c.Port)
		}
		if c.Control {
			return "play (control)"
		}
		return "play"
	case CommandServe:
		if c.Port != 0 {
			return fmt.Sprintf("serve (port: %d)", c.Port)
		}
		return "serve"
	case CommandList:
		return "list"
	case CommandDownload:
		return fmt.Sprintf("download (name: %s)", c.Name)
	case CommandLogin:
		return fmt.Sprintf("login (user: %s)", c.Username)
	case CommandLogout:
		return "logout"
	case CommandPasswd:
		return "passwd"
	default:
		return "unknown"
	}
}

// CLI represents the command-line interface
type CLI struct {
	version string
}

// NewCLI creates a new CLI instance
func NewCLI(version string) *CLI {
	return &CLI{
		version: version,
	}
}

// ParseCommand parses command-line arguments and returns a Command
func (c *CLI) ParseCommand(args []string) (*Command, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command specified")
	}

	// Check for global flags first
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		return &Command{Type: CommandHelp}, nil
	}

	if args[0] == "-v" || args[0] == "--version" || args[0] == "version" {
		return &Command{Type: CommandVersion}, nil
	}

	switch args[0] {
	case "play":
		return c.parsePlayCommand(args[1:])
	case "serve":
		return c.parseServeCommand(args[1:])
	case "list":
		return c.parseBareCommand("list", CommandList, args[1:])
	case "download":
		return c.parseDownloadCommand(args[1:])
	case "login":
		return c.parseLoginCommand(args[1:])
	case "logout":
		return c.parseBareCommand("logout", CommandLogout, args[1:])
	case "passwd":
		return c.parsePasswdCommand(args[1:])
	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (c *CLI) parsePlayCommand(args []string) (*Command, error) {
	fs := newFlagSet("play")
	control := fs.Bool("control", false, "Serve the local control API while playing")
	port := fs.Int("port", 0, "Control API port (implies -control)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Command{
		Type:    CommandPlay,
		Control: *control || *port != 0,
		Port:    *port,
	}, nil
}

func (c *CLI) parseServeCommand(args []string) (*Command, error) {
	fs := newFlagSet("serve")
	port := fs.Int("port", 0, "Control API port")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Command{
		Type:    CommandServe,
		Control: true,
		Port:    *port,
	}, nil
}

func (c *CLI) parseBareCommand(name string, t CommandType, args []string) (*Command, error) {
	fs := newFlagSet(name)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%s takes no arguments", name)
	}
	return &Command{Type: t}, nil
}

func (c *CLI) parseDownloadCommand(args []string) (*Command, error) {
	fs := newFlagSet("download")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("download needs exactly one file name")
	}

	return &Command{
		Type: CommandDownload,
		Name: fs.Arg(0),
	}, nil
}

func (c *CLI) parseLoginCommand(args []string) (*Command, error) {
	fs := newFlagSet("login")
	user := fs.String("user", "", "Username")
	password := fs.String("password", "", "Password")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Command{
		Type:     CommandLogin,
		Username: *user,
		Password: *password,
	}, nil
}

func (c *CLI) parsePasswdCommand(args []string) (*Command, error) {
	fs := newFlagSet("passwd")
	password := fs.String("password", "", "Current password")
	newPassword := fs.String("new", "", "New password")
	repeat := fs.String("repeat", "", "New password again")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Command{
		Type:           CommandPasswd,
		Password:       *password,
		NewPassword:    *newPassword,
		RepeatPassword: *repeat,
	}, nil
}

// PrintHelp prints the help message
func (c *CLI) PrintHelp(w io.Writer) {
	help := `clipdeck - terminal client for a personal media server

Usage:
  clipdeck [command] [flags]

Available Commands:
  play        Browse the media list and play it through mpv
  serve       Play with the local control API only, no prompt
  list        Print the media list and exit
  download    Save one file from the server into the downloads folder
  login       Log in and remember the session
  logout      Log out and forget the session
  passwd      Change the account password
  version     Print version information
  help        Print this help message

Play Flags:
  -control    Also serve the local control API
  -port int   Control API port (implies -control)

Serve Flags:
  -port int   Control API port (default: from config, 9797)

Login Flags:
  -user string       Username
  -password string   Password

Passwd Flags:
  -password string   Current password
  -new string        New password
  -repeat string     New password again

Environment:
  CLIPDECK_SERVER_URL, CLIPDECK_DOWNLOAD_DIR, CLIPDECK_MPV_PATH,
  CLIPDECK_CONTROL_PORT, LOGS=true (debug logging). Read from .env.local
  and .env as well.

Examples:
  clipdeck login -user admin -password secret
  clipdeck play
  clipdeck play -port 9797
  clipdeck list
  clipdeck download holiday.mp4
  clipdeck passwd -password old -new fresh -repeat fresh
`
	fmt.Fprint(w, help)
}

// PrintVersion prints the version information
func (c *CLI) PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "clipdeck version %s\n", c.version)
}

// Run handles the commands that need nothing but the CLI itself and
// returns the exit code. Every other command is left to the caller.
func (c *CLI) Run(args []string) int {
	cmd, err := c.ParseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		c.PrintHelp(os.Stderr)
		return 1
	}

	switch cmd.Type {
	case CommandHelp:
		c.PrintHelp(os.Stdout)
		return 0
	case CommandVersion:
		c.PrintVersion(os.Stdout)
		return 0
	default:
		// Other commands will be handled by the main function
		return 0
	}
}
