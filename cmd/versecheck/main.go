// Command versecheck runs check-and-fix rules over scripture projects,
// manages the check catalog and ignore lists, and serves the REST API.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/darren8c/biblica-paratext-translator-plugin/core/errors"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/app"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/config"
	"github.com/darren8c/biblica-paratext-translator-plugin/internal/logging"
)

var version = "0.1.0"

// Globals are flags shared by every command. Set flags override the config
// file and environment.
type Globals struct {
	Config    string `short:"c" help:"Config file (JSON with comments)" type:"path"`
	DataDir   string `name:"data-dir" help:"Directory for stored results and the catalog" type:"path"`
	Store     string `help:"Storage backend (memory, file, sqlite, postgres)"`
	Workers   int    `help:"Worker pool size"`
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)"`
	LogFormat string `name:"log-format" help:"Log format (text, json)"`
	Verbose   bool   `short:"v" help:"Shorthand for --log-level=debug"`

	stdout  io.Writer `kong:"-"`
	stderr  io.Writer `kong:"-"`
	workDir string    `kong:"-"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Run     RunCmd       `cmd:"" help:"Run catalog checks over a project directory"`
	Refs    RefsCmd      `cmd:"" help:"List scripture references found in text"`
	Checks  ChecksGroup  `cmd:"" help:"Check catalog operations"`
	Ignore  IgnoreGroup  `cmd:"" help:"Ignore list operations"`
	Results ResultsGroup `cmd:"" help:"Stored result operations"`
	Serve   ServeCmd     `cmd:"" help:"Start the REST API server"`
	Version VersionCmd   `cmd:"" help:"Print version information"`
}

func (g *Globals) load() (config.Config, error) {
	cfg, _, err := config.Load(config.LoadOptions{
		WorkDir: g.workDir,
		Path:    g.Config,
		Overrides: func(c *config.Config) {
			if g.DataDir != "" {
				c.DataDir = g.DataDir
			}
			if g.Store != "" {
				c.Store = g.Store
			}
			if g.Workers > 0 {
				c.Workers = g.Workers
			}
			if g.LogLevel != "" {
				c.LogLevel = g.LogLevel
			}
			if g.Verbose {
				c.LogLevel = "debug"
			}
			if g.LogFormat != "" {
				c.LogFormat = g.LogFormat
			}
		},
	})
	return cfg, err
}

func (g *Globals) logger(cfg config.Config) *slog.Logger {
	// Both were checked by config.Validate.
	level, _ := logging.ParseLevel(cfg.LogLevel)
	format, _ := logging.ParseFormat(cfg.LogFormat)
	return logging.New(logging.Options{Level: level, Format: format, Writer: g.stderr})
}

// open loads the configuration and opens the shared services.
func (g *Globals) open(ctx context.Context) (*app.App, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return app.Open(ctx, cfg, g.logger(cfg))
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.stdout, format, args...)
}

// execute parses args and runs the selected command.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, workDir string) error {
	var cli CLI
	cli.stdout, cli.stderr, cli.workDir = stdout, stderr, workDir

	parser, err := kong.New(&cli,
		kong.Name("versecheck"),
		kong.Description("Scripture check-and-fix engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&cli.Globals)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, "."); err != nil {
		fmt.Fprintf(os.Stderr, "versecheck: %v\n", err)
		stop()
		os.Exit(errors.ExitCode(err))
	}
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	g.printf("versecheck %s\n", version)
	return nil
}
