package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/internal/bundle"
	"github.com/seglate/seglate/internal/config"
)

const sampleSource = `<?xml version="1.0" encoding="UTF-8"?>
<topic id="t1">
  <title>Getting started</title>
  <body>
    <p>Press <b>Start</b> to begin.</p>
    <p>Run <codeblock>make all</codeblock> first.</p>
    <p>See <xref href="guide.xml"/> and <i>notes</i>.</p>
  </body>
</topic>`

const sampleConfig = `INLINE_TAGS = ["b", "i", "xref"]
DO_NOT_TRANSLATE = ["codeblock"]
ID_LENGTH = 8
SOURCE_LANG = "en-US"
TARGET_LANG = "de-DE"
`

func newTestPipeline(t *testing.T) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, "config.toml")
	if err := os.WriteFile(cfgPath, []byte(sampleConfig), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}

	srcPath := filepath.Join(root, "source", "topic.xml")
	if err := os.MkdirAll(filepath.Dir(srcPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(srcPath, []byte(sampleSource), 0644); err != nil {
		t.Fatal(err)
	}

	p := New(cfg, filepath.Join(root, "intermediate"), filepath.Join(root, "target"))
	return p, srcPath
}

func TestArtifactsFor(t *testing.T) {
	a := ArtifactsFor("/tmp/work", "/data/source/topic.xml")
	if a.Segments() != "/tmp/work/topic.segments.json" {
		t.Errorf("Segments() = %s", a.Segments())
	}
	if a.Manifest() != "/tmp/work/topic.manifest.json" {
		t.Errorf("Manifest() = %s", a.Manifest())
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	res, err := p.Extract(ctx, srcPath)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(res.Segments) == 0 {
		t.Fatal("no segments extracted")
	}
	paths := ArtifactsFor(p.intermediateDir, srcPath)
	for _, f := range []string{paths.Source(), paths.Segments(), paths.Skeleton(), paths.TagMap(), paths.DNT(), paths.Manifest()} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}

	translatedPath, err := p.GenerateDummy(ctx, srcPath)
	if err != nil {
		t.Fatalf("GenerateDummy failed: %v", err)
	}
	data, err := os.ReadFile(translatedPath)
	if err != nil {
		t.Fatal(err)
	}
	translated, err := segment.DecodeFile(data)
	if err != nil {
		t.Fatal(err)
	}
	if translated.Lang != "de-DE" {
		t.Errorf("translated lang = %s, want de-DE", translated.Lang)
	}
	if !strings.HasPrefix(translated.Segments[0].Text, "[de-DE_1] ") {
		t.Errorf("dummy text = %q", translated.Segments[0].Text)
	}

	report, err := p.Merge(ctx, srcPath, translatedPath)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("merge output failed validation: %+v", report.Mismatches)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("dummy translation flagged as untranslated: %v", report.Warnings)
	}

	out, err := os.ReadFile(filepath.Join(p.outputDir, "topic.xml"))
	if err != nil {
		t.Fatalf("output document missing: %v", err)
	}
	if !strings.Contains(string(out), "<codeblock>make all</codeblock>") {
		t.Errorf("protected content lost in output:\n%s", out)
	}
	if !strings.Contains(string(out), "[de-DE_1] ") {
		t.Errorf("translated text missing from output:\n%s", out)
	}
	if _, err := os.Stat(paths.Report()); err != nil {
		t.Errorf("report artifact missing: %v", err)
	}
}

func TestPipelineMergeReorderedInline(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	paths := ArtifactsFor(p.intermediateDir, srcPath)
	segData, err := os.ReadFile(paths.Segments())
	if err != nil {
		t.Fatal(err)
	}
	segFile, err := segment.DecodeFile(segData)
	if err != nil {
		t.Fatal(err)
	}

	// A translator may move inline markup around for target-language
	// grammar; the token multiset is unchanged.
	translated := &segment.File{Lang: "de-DE"}
	for _, s := range segFile.Segments {
		text := s.Text
		if strings.Contains(text, "{3}") {
			text = "{3}Notizen{/3} und {2/} sehen."
		}
		translated.Segments = append(translated.Segments, segment.Segment{ID: s.ID, Text: text, Order: s.Order})
	}
	data, err := segment.EncodeFile(translated)
	if err != nil {
		t.Fatal(err)
	}
	trPath := filepath.Join(p.intermediateDir, "reordered.translated.json")
	if err := os.WriteFile(trPath, data, 0644); err != nil {
		t.Fatal(err)
	}

	report, err := p.Merge(ctx, srcPath, trPath)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("reordered inline markup failed validation: %+v", report.Mismatches)
	}
	out, err := os.ReadFile(filepath.Join(p.outputDir, "topic.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `<i>Notizen</i> und <xref href="guide.xml"/> sehen.`) {
		t.Errorf("reordered markup missing from output:\n%s", out)
	}
}

func TestPipelineMinimalPath(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	minimalPath, err := p.ExportMinimal(ctx, srcPath)
	if err != nil {
		t.Fatalf("ExportMinimal failed: %v", err)
	}

	// Merging the untouched export is a no-op translation round trip.
	report, err := p.MergeMinimal(ctx, srcPath, minimalPath)
	if err != nil {
		t.Fatalf("MergeMinimal failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("round trip failed validation: %+v", report.Mismatches)
	}
	if len(report.Warnings) == 0 {
		t.Error("no untranslated warnings for an untouched translation")
	}

	out, err := os.ReadFile(filepath.Join(p.outputDir, "topic.xml"))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != sampleSource {
		t.Errorf("no-op round trip diverged:\n%s", out)
	}
}

func TestPipelineRejectsTamperedSkeleton(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	translatedPath, err := p.GenerateDummy(ctx, srcPath)
	if err != nil {
		t.Fatalf("GenerateDummy failed: %v", err)
	}

	paths := ArtifactsFor(p.intermediateDir, srcPath)
	skel, err := os.ReadFile(paths.Skeleton())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(paths.Skeleton(), append(skel, ' '), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Merge(ctx, srcPath, translatedPath); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
	if _, err := os.Stat(filepath.Join(p.outputDir, "topic.xml")); err == nil {
		t.Error("output written despite failed verification")
	}
}

func TestPipelineBundleRoundTrip(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := p.ExportMinimal(ctx, srcPath); err != nil {
		t.Fatalf("ExportMinimal failed: %v", err)
	}

	archive := filepath.Join(t.TempDir(), "handoff.tar.xz")
	if err := p.PackBundle(ctx, srcPath, archive, bundle.CompressionXZ); err != nil {
		t.Fatalf("PackBundle failed: %v", err)
	}

	// A second pipeline on a fresh machine unpacks the bundle and merges.
	p2 := New(p.cfg, filepath.Join(t.TempDir(), "intermediate"), filepath.Join(t.TempDir(), "target"))
	names, err := p2.UnpackBundle(ctx, archive)
	if err != nil {
		t.Fatalf("UnpackBundle failed: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("bundle was empty")
	}

	translatedPath, err := p2.GenerateDummy(ctx, srcPath)
	if err != nil {
		t.Fatalf("GenerateDummy after unpack failed: %v", err)
	}
	report, err := p2.Merge(ctx, srcPath, translatedPath)
	if err != nil {
		t.Fatalf("Merge after unpack failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("merge after unpack failed validation: %+v", report.Mismatches)
	}
}

func TestPipelineMergesFromSnapshot(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	translatedPath, err := p.GenerateDummy(ctx, srcPath)
	if err != nil {
		t.Fatal(err)
	}

	// Later stages validate against the snapshot taken at extraction, so
	// the merge still works after the original file is gone.
	if err := os.Remove(srcPath); err != nil {
		t.Fatal(err)
	}

	report, err := p.Merge(ctx, srcPath, translatedPath)
	if err != nil {
		t.Fatalf("Merge failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("merge failed validation: %+v", report.Mismatches)
	}
}

func TestPipelineMalformedSource(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	if err := os.WriteFile(srcPath, []byte("<topic><unclosed></topic>"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Extract(context.Background(), srcPath); !errors.Is(err, errors.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestPipelineMergeWithoutExtract(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	_, err := p.Merge(context.Background(), srcPath, "missing.translated.json")
	if err == nil {
		t.Error("expected error when artifacts are missing")
	}
}

func TestPipelineValidateStage(t *testing.T) {
	p, srcPath := newTestPipeline(t)
	ctx := context.Background()

	if _, err := p.Extract(ctx, srcPath); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	translatedPath, err := p.GenerateDummy(ctx, srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Merge(ctx, srcPath, translatedPath); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	report, err := p.Validate(ctx, srcPath, filepath.Join(p.outputDir, "topic.xml"))
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !report.Passed {
		t.Errorf("standalone validation failed: %+v", report.Mismatches)
	}
}
