// Command seglate prepares structured XML for translation and rebuilds it
// afterwards. It extracts translatable segments with placeholder-encoded
// inline markup, hands them off as JSON or minimal XML, merges translated
// segments back into the document skeleton, and validates that the round
// trip preserved the markup structure.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/seglate/seglate/core/validate"
	"github.com/seglate/seglate/internal/bundle"
	"github.com/seglate/seglate/internal/config"
	"github.com/seglate/seglate/internal/logging"
	"github.com/seglate/seglate/internal/pipeline"
)

const version = "0.2.0"

// CLI defines the command-line interface for seglate.
var CLI struct {
	// Global flags
	Config          string `help:"Path to TOML config file" type:"path"`
	IntermediateDir string `name:"intermediate-dir" short:"i" default:"intermediate" help:"Directory for pipeline artifacts"`
	OutputDir       string `name:"output-dir" short:"o" default:"target" help:"Directory for reconstructed documents"`
	LogLevel        string `name:"log-level" help:"Log verbosity (DEBUG, INFO, WARN, ERROR)"`
	LogJSON         bool   `name:"log-json" help:"Emit JSON logs"`
	LogFile         string `name:"log-file" help:"Append logs to a file instead of stderr" type:"path"`

	Extract  ExtractCmd   `cmd:"" help:"Extract segments and skeleton from a document"`
	Dummy    DummyCmd     `cmd:"" help:"Generate a dummy translation from extracted segments"`
	Merge    MergeCmd     `cmd:"" help:"Merge translated segments back into the document"`
	Minimal  MinimalGroup `cmd:"" help:"Minimal XML surface for translators (export, import)"`
	Validate ValidateCmd  `cmd:"" help:"Validate a reconstructed document against its source"`
	Bundle   BundleGroup  `cmd:"" help:"Translator handoff bundles (pack, unpack)"`
	Version  VersionCmd   `cmd:"" help:"Print version information"`
}

// MinimalGroup contains minimal-XML bridge operations.
type MinimalGroup struct {
	Export MinimalExportCmd `cmd:"" help:"Export extracted segments as minimal XML"`
	Import MinimalImportCmd `cmd:"" help:"Merge a translated minimal XML file back"`
}

// BundleGroup contains handoff archive operations.
type BundleGroup struct {
	Pack   BundlePackCmd   `cmd:"" help:"Pack a run's artifacts into an archive"`
	Unpack BundleUnpackCmd `cmd:"" help:"Unpack a returned archive into the intermediate directory"`
}

// newPipeline loads configuration, initializes logging, and builds the
// pipeline from the global flags.
func newPipeline() (*pipeline.Pipeline, error) {
	var cfg *config.Config
	var err error
	if CLI.Config != "" {
		cfg, err = config.Load(CLI.Config)
	} else {
		cfg, err = config.Discover()
	}
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if CLI.LogLevel != "" {
		level = CLI.LogLevel
	}
	format := logging.FormatText
	if CLI.LogJSON {
		format = logging.FormatJSON
	}
	if CLI.LogFile != "" {
		f, err := os.OpenFile(CLI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logging.InitLoggerWriter(f, logging.ParseLevel(level), format)
	} else {
		logging.InitLogger(logging.ParseLevel(level), format)
	}

	return pipeline.New(cfg, CLI.IntermediateDir, CLI.OutputDir), nil
}

func printReport(report *validate.Report) {
	if report.Passed {
		fmt.Println("Validation: PASSED")
	} else {
		fmt.Printf("Validation: FAILED (%d mismatches)\n", len(report.Mismatches))
		for _, m := range report.Mismatches {
			fmt.Printf("  %s at %s: %s\n", m.Kind, m.Path, m.Detail)
		}
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

// ExtractCmd extracts segments and skeleton from a source document.
type ExtractCmd struct {
	Source string `arg:"" help:"Source XML document" type:"existingfile"`
}

func (c *ExtractCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	res, err := p.Extract(context.Background(), c.Source)
	if err != nil {
		return err
	}
	paths := pipeline.ArtifactsFor(CLI.IntermediateDir, c.Source)
	fmt.Printf("Extracted: %s\n", c.Source)
	fmt.Printf("  Segments: %d\n", len(res.Segments))
	fmt.Printf("  Placeholder tokens: %d\n", len(res.TagMapping.Tags))
	fmt.Printf("  Protected elements: %d\n", len(res.DNTMap))
	fmt.Printf("  Artifacts: %s\n", paths.Manifest())
	return nil
}

// DummyCmd generates a placeholder translation for workflow testing.
type DummyCmd struct {
	Source string `arg:"" help:"Source XML document" type:"existingfile"`
}

func (c *DummyCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	path, err := p.GenerateDummy(context.Background(), c.Source)
	if err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", path)
	return nil
}

// MergeCmd merges a translated-segments file back into the document.
type MergeCmd struct {
	Source     string `arg:"" help:"Source XML document" type:"existingfile"`
	Translated string `help:"Translated segments file (default: <base>.translated.json)" type:"path"`
}

func (c *MergeCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	translated := c.Translated
	if translated == "" {
		translated = pipeline.ArtifactsFor(CLI.IntermediateDir, c.Source).Translated()
	}
	report, err := p.Merge(context.Background(), c.Source, translated)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// MinimalExportCmd writes the minimal XML surface for a document.
type MinimalExportCmd struct {
	Source string `arg:"" help:"Source XML document" type:"existingfile"`
}

func (c *MinimalExportCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	path, err := p.ExportMinimal(context.Background(), c.Source)
	if err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", path)
	return nil
}

// MinimalImportCmd merges a translated minimal XML file back.
type MinimalImportCmd struct {
	Source  string `arg:"" help:"Source XML document" type:"existingfile"`
	Minimal string `help:"Translated minimal XML file (default: <base>.minimal.xml)" type:"path"`
}

func (c *MinimalImportCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	minimalPath := c.Minimal
	if minimalPath == "" {
		minimalPath = pipeline.ArtifactsFor(CLI.IntermediateDir, c.Source).Minimal()
	}
	report, err := p.MergeMinimal(context.Background(), c.Source, minimalPath)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// ValidateCmd compares a reconstructed document against its source.
type ValidateCmd struct {
	Source  string `arg:"" help:"Source XML document" type:"existingfile"`
	Rebuilt string `arg:"" help:"Reconstructed XML document" type:"existingfile"`
}

func (c *ValidateCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	report, err := p.Validate(context.Background(), c.Source, c.Rebuilt)
	if err != nil {
		return err
	}
	printReport(report)
	return nil
}

// BundlePackCmd archives a run's artifacts for translator handoff.
type BundlePackCmd struct {
	Source      string `arg:"" help:"Source XML document" type:"existingfile"`
	Out         string `arg:"" help:"Archive path to create" type:"path"`
	Compression string `default:"xz" enum:"gzip,xz" help:"Archive compression (gzip or xz)"`
}

func (c *BundlePackCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	if err := p.PackBundle(context.Background(), c.Source, c.Out, bundle.Compression(c.Compression)); err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", c.Out)
	return nil
}

// BundleUnpackCmd extracts a returned archive.
type BundleUnpackCmd struct {
	Archive string `arg:"" help:"Archive to unpack" type:"existingfile"`
}

func (c *BundleUnpackCmd) Run() error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	names, err := p.UnpackBundle(context.Background(), c.Archive)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Printf("Extracted: %s\n", name)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("seglate version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("seglate"),
		kong.Description("Structure-preserving XML translation pipeline"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
