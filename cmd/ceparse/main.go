// Command ceparse decodes Clausewitz game-data files, text or binary, plain or
// zipped, and reports diagnostics or re-emits them as canonical text.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"

	"github.com/FocuswithJustin/ceparser/core/binary"
	"github.com/FocuswithJustin/ceparser/core/document"
	"github.com/FocuswithJustin/ceparser/core/store"
	"github.com/FocuswithJustin/ceparser/internal/logging"
)

const version = "0.1.0"

// defaultConfig is read, when present, before the command line.
const defaultConfig = "~/.ceparse.json"

// logOutput receives structured logs; stdout is reserved for results.
var logOutput io.Writer = os.Stderr

// Globals are flags shared by every command. They can also be set in the JSON
// configuration file, keyed by flag name.
type Globals struct {
	Config         kong.ConfigFlag `help:"Load flag defaults from a JSON file"`
	LogLevel       string          `name:"log-level" help:"Log level" default:"warn" enum:"debug,info,warn,error"`
	LogFormat      string          `name:"log-format" help:"Log format" default:"text" enum:"json,text"`
	Game           string          `help:"Game identifier for binary files (default: from file header)"`
	Encoding       string          `help:"Character encoding" default:"windows-1252"`
	Dictionaries   string          `help:"Directory holding <game>bin.csv dictionaries" default:"." type:"path"`
	Strict         bool            `help:"Report excess closing braces"`
	LegacySeverity bool            `name:"legacy-severity" help:"Score every unknown token diagnostic as 1"`
	Store          string          `help:"SQLite result store" type:"path"`

	out      io.Writer
	registry *binary.Registry
}

// CLI defines the command-line interface for ceparse.
type CLI struct {
	Globals

	Parse   ParseCmd   `cmd:"" help:"Parse files and print diagnostics"`
	Export  ExportCmd  `cmd:"" help:"Write canonical text"`
	Sniff   SniffCmd   `cmd:"" help:"Detect container and encoding"`
	Query   QueryCmd   `cmd:"" help:"Print the nodes at a path"`
	Cache   CacheGroup `cmd:"" help:"Result store operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func (g *Globals) options() document.Options {
	return document.Options{
		Game:           g.Game,
		Encoding:       g.Encoding,
		DictionaryDir:  g.Dictionaries,
		Dictionaries:   g.registry,
		Strict:         g.Strict,
		LegacySeverity: g.LegacySeverity,
	}
}

func (g *Globals) openStore() (*store.Store, error) {
	if g.Store == "" {
		return nil, nil
	}
	return store.Open(g.Store)
}

func (g *Globals) initLogging() error {
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(g.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLoggerTo(logOutput, level, format)
	return nil
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.out, format, args...)
}

// run parses args and executes the selected command, writing results to out.
func run(ctx context.Context, args []string, out io.Writer, configPaths ...string) error {
	runID := uuid.NewString()
	ctx = logging.WithJobID(ctx, runID)

	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("ceparse"),
		kong.Description("Clausewitz game-data decoder"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Configuration(kong.JSON, configPaths...),
		kong.Writers(out, os.Stderr),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cli.out = out
	cli.registry = binary.NewDirRegistry(cli.Dictionaries)
	if err := cli.initLogging(); err != nil {
		return err
	}
	logging.Debug("command started", "command", kctx.Command(), "run_id", runID,
		"dictionaries", cli.Dictionaries, "store", cli.Store)
	return kctx.Run(&cli.Globals)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, defaultConfig); err != nil {
		logging.Error("ceparse failed", "error", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("ceparse version %s\n", version)
	return nil
}
