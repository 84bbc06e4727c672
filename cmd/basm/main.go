// Command basm is the cross-assembler's CLI entry point: read a source
// file, run it through the parser/driver pipeline, and write the
// requested output format. It uses the standard flag package rather than
// a CLI framework, matching the teacher's own main.go convention — CLI
// argument parsing is explicitly out of this spec's core scope (§1), so
// this file stays a thin driver over the library packages.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/retrocpc/basm/config"
	"github.com/retrocpc/basm/driver"
	"github.com/retrocpc/basm/listing"
	"github.com/retrocpc/basm/output"
	"github.com/retrocpc/basm/parse"
	"github.com/retrocpc/basm/source"
)

// Version information, overridable at build time with
// -ldflags "-X main.Version=v1.2.3", matching the teacher's convention.
var (
	Version = "dev"
	Commit  = "unknown"
)

type includeRoots []string

func (r *includeRoots) String() string { return strings.Join(*r, ",") }
func (r *includeRoots) Set(v string) error {
	*r = append(*r, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("basm", flag.ContinueOnError)

	var (
		showVersion   = fs.Bool("version", false, "Show version information")
		outPath       = fs.String("o", "", "Output file path (default: input path with a trailing .asm replaced by the output format's extension)")
		format        = fs.String("format", "raw", "Output format: raw, amsdos_bin, amsdos_bas, ascii, sna")
		listingPath   = fs.String("listing", "", "Write an assembly listing to this path")
		symbolsPath   = fs.String("symbols", "", "Write a symbol dump to this path")
		symbolFormat  = fs.String("symbol-format", "basm", "Symbol dump format: basm, winape")
		caseSensitive = fs.Bool("case-sensitive", false, "Treat identifiers as case-sensitive")
		maxPasses     = fs.Int("max-passes", 0, "Maximum assembler passes (0 => package default)")
		configPath    = fs.String("config", "", "Load settings from this TOML config file")
		snaVersion    = fs.Int("sna-version", 3, "SNA snapshot version (used with -format sna)")
	)
	var roots includeRoots
	fs.Var(&roots, "I", "Include search root (may be given multiple times)")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("basm %s (%s)\n", Version, Commit)
		return 0
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: basm [flags] <source-file>")
		fs.SetOutput(os.Stderr)
		fs.PrintDefaults()
		return 2
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadFrom(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "basm: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	srcPath := fs.Arg(0)
	if err := assemble(srcPath, *outPath, *format, *listingPath, *symbolsPath, *symbolFormat,
		*caseSensitive, *maxPasses, *snaVersion, roots, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "basm: %v\n", err)
		return 1
	}
	return 0
}

func assemble(srcPath, outPath, format, listingPath, symbolsPath, symbolFormat string,
	caseSensitive bool, maxPasses, snaVersion int, roots includeRoots, cfg *config.Config) error {

	text, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading %q: %w", srcPath, err)
	}

	store := source.New()
	unit := store.Add(srcPath, string(text))

	resolver := source.NewFileResolver(roots...)

	p, err := parse.New(store, unit.ID)
	if err != nil {
		return fmt.Errorf("%q: %w", srcPath, err)
	}
	p.SetResolver(resolver)

	program, err := p.ParseProgram()
	if err != nil {
		return fmt.Errorf("%q: %w", srcPath, err)
	}

	opts := driver.Options{
		CaseSensitive: caseSensitive,
		MaxPasses:     maxPasses,
		FillByte:      byte(cfg.Assembler.FillByte),
		Protect:       cfg.Assembler.Protect,
		Resolver:      resolver,
	}
	drv := driver.New(store, opts)

	lw := listing.NewWriter(store)
	if cfg.Listing.BytesPerLine > 0 {
		lw.BytesPerLine = cfg.Listing.BytesPerLine
	}
	drv.SetRecorder(lw)

	result, err := drv.Assemble(program)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Span, w.Message)
	}
	for _, m := range result.Messages {
		fmt.Println(m)
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(srcPath, ".asm") + binExtension(format)
	}
	if err := writeMainOutput(outPath, format, result, snaVersion); err != nil {
		return err
	}

	if len(result.Saves) > 0 {
		if err := output.ResolveSaves(result.Saves, output.Writers{}); err != nil {
			return err
		}
	}

	if listingPath != "" {
		if err := os.WriteFile(listingPath, []byte(lw.Render()), 0644); err != nil {
			return fmt.Errorf("writing listing %q: %w", listingPath, err)
		}
	}

	if symbolsPath != "" {
		fmtKind := listing.FormatBASM
		if strings.EqualFold(symbolFormat, "winape") {
			fmtKind = listing.FormatWinape
		}
		dump := listing.DumpSymbols(result.Symbols, fmtKind, nil, nil)
		if err := os.WriteFile(symbolsPath, []byte(dump), 0644); err != nil {
			return fmt.Errorf("writing symbols %q: %w", symbolsPath, err)
		}
	}

	return nil
}

func binExtension(format string) string {
	switch format {
	case "sna":
		return ".sna"
	case "amsdos_bas", "amsdos_bin":
		return ".bin"
	case "ascii":
		return ".txt"
	default:
		return ".bin"
	}
}

func writeMainOutput(path, format string, result *driver.Result, snaVersion int) error {
	switch format {
	case "raw", "ascii":
		return os.WriteFile(path, output.RawBinary(result.Memory), 0644)
	case "amsdos_bin", "amsdos_bas":
		data := output.RawBinary(result.Memory)
		fileType := output.AmsdosBinary
		if format == "amsdos_bas" {
			fileType = output.AmsdosBasic
		}
		load := result.Memory.StartAddress
		exec := load
		if result.RunAddr != nil {
			exec = *result.RunAddr
		}
		out, err := output.WrapAmsdos(data, output.AmsdosHeader{
			Filename: strings.TrimSuffix(path, ".bin"), Type: fileType, LoadAddr: load, ExecAddr: exec,
		})
		if err != nil {
			return err
		}
		return os.WriteFile(path, out, 0644)
	case "sna":
		snap := output.NewSnapshot(snaVersion)
		if result.RunAddr != nil {
			snap.SetFlag(output.FlagZ80PC, int32(*result.RunAddr))
		}
		data, err := snap.Build(result.Memory, false)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
