package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"github.com/wkalt/dapd/client"
)

const (
	prompt  = "dapd # "
	artwork = `
     __                 __
 ___/ /__ ____  ___/ /
/ _  / _ ` + "`" + `/ _ \/ _  /
\_,_/\_,_/ .__/\_,_/
        /_/
`
)

var errQuit = errors.New("quit")

// nolint:gochecknoglobals
var shellHelp = map[string]string{
	"": `The dapd shell browses the datasets on a dapd server.

The supported slash commands are:

  \l                      list datasets
  \dds name [vars...]     print a dataset's structure
  \das name               print a dataset's attributes
  \get name [vars...]     print a dataset's values as text
  \json name [vars...]    print a dataset's values as JSON
  \h [topic]              print help text
  \q                      quit

Any input that does not start with a backslash is treated as \get.

Available help topics are:
  names: Explain dataset names and versions.
  projection: Explain variable lists.`,

	"names": `Datasets are addressed by name, for example "sample". Every import creates
a new version; a bare name refers to the latest. A specific version is
addressed as name/version, for example "sample/2".`,

	"projection": `Commands that accept variables return only those variables. Variables
are dot-qualified paths such as site.lat, and may be separated by spaces or
commas. Selecting a member of a structure keeps the structure with only the
selected members. Selecting a grid's array or maps keeps the grid if all of
its parts are selected, and otherwise returns a structure of the parts.`,
}

type shell struct {
	c *client.Client
}

func (s *shell) execute(ctx context.Context, w io.Writer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	command, args := fields[0], fields[1:]
	if !strings.HasPrefix(command, "\\") {
		command, args = "\\get", fields
	}
	switch command {
	case "\\q":
		return errQuit
	case "\\h":
		topic := strings.Join(args, " ")
		text, ok := shellHelp[topic]
		if !ok {
			return fmt.Errorf("no help for %q", topic)
		}
		fmt.Fprintln(w, text)
		return nil
	case "\\l":
		entries, err := s.c.List(ctx)
		if err != nil {
			return err
		}
		renderEntries(w, entries)
		return nil
	case "\\dds", "\\das", "\\get", "\\json":
		if len(args) == 0 {
			return errors.New("not enough arguments")
		}
		ext := map[string]string{
			"\\dds":  "dds",
			"\\das":  "das",
			"\\get":  "asc",
			"\\json": "json",
		}[command]
		projection := splitProjection(args[1:])
		if ext == "das" && len(projection) > 0 {
			return errors.New("\\das does not accept variables")
		}
		return s.c.Get(ctx, w, args[0], ext, projection...)
	default:
		return fmt.Errorf("unrecognized command: %s", command)
	}
}

func runShell() error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	l, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(home, ".dapd_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer l.Close()
	l.CaptureExitSignal()
	log.SetOutput(l.Stderr())

	fmt.Print(artwork)
	fmt.Printf("Connected to %s. Type \\h for help.\n\n", serverURL)

	s := &shell{c: newClient()}
	ctx := context.Background()
	for {
		line, err := l.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := s.execute(ctx, l.Stdout(), strings.TrimSpace(line)); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			printError(err)
		}
	}
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Browse datasets interactively",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runShell(); err != nil {
			bailf("shell error: %s", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
