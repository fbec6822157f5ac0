package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func createTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// setupCLI points the global flag struct at temp directories and an isolated
// config, and restores it when the test ends.
func setupCLI(t *testing.T) string {
	t.Helper()
	saved := CLI
	t.Cleanup(func() { CLI = saved })

	dir := t.TempDir()
	CLI.Config = createTestFile(t, dir, "config.toml",
		"INLINE_TAGS = [\"b\", \"i\"]\nDO_NOT_TRANSLATE = [\"codeblock\"]\n")
	CLI.IntermediateDir = filepath.Join(dir, "intermediate")
	CLI.OutputDir = filepath.Join(dir, "target")
	CLI.LogLevel = "ERROR"
	return dir
}

func TestWorkflowCommands(t *testing.T) {
	dir := setupCLI(t)
	source := createTestFile(t, dir, "topic.xml",
		`<topic><title>T</title><body><p>Press <b>Start</b>.</p><codeblock>make</codeblock></body></topic>`)

	extract := &ExtractCmd{Source: source}
	if err := extract.Run(); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(CLI.IntermediateDir, "topic.segments.json")); err != nil {
		t.Fatalf("segments artifact missing: %v", err)
	}

	dummy := &DummyCmd{Source: source}
	if err := dummy.Run(); err != nil {
		t.Fatalf("dummy failed: %v", err)
	}

	merge := &MergeCmd{Source: source}
	if err := merge.Run(); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	out, err := os.ReadFile(filepath.Join(CLI.OutputDir, "topic.xml"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if !strings.Contains(string(out), "<codeblock>make</codeblock>") {
		t.Errorf("protected content lost:\n%s", out)
	}

	validate := &ValidateCmd{Source: source, Rebuilt: filepath.Join(CLI.OutputDir, "topic.xml")}
	if err := validate.Run(); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
}

func TestMinimalCommands(t *testing.T) {
	dir := setupCLI(t)
	source := createTestFile(t, dir, "topic.xml",
		`<topic><body><p><b>Alpha</b> and <i>Beta</i></p></body></topic>`)

	if err := (&ExtractCmd{Source: source}).Run(); err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if err := (&MinimalExportCmd{Source: source}).Run(); err != nil {
		t.Fatalf("minimal export failed: %v", err)
	}
	minimalPath := filepath.Join(CLI.IntermediateDir, "topic.minimal.xml")
	if _, err := os.Stat(minimalPath); err != nil {
		t.Fatalf("minimal artifact missing: %v", err)
	}
	if err := (&MinimalImportCmd{Source: source}).Run(); err != nil {
		t.Fatalf("minimal import failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(CLI.OutputDir, "topic.xml")); err != nil {
		t.Errorf("output missing after minimal import: %v", err)
	}
}

func TestBundleCommands(t *testing.T) {
	dir := setupCLI(t)
	source := createTestFile(t, dir, "topic.xml",
		`<topic><body><p>text</p></body></topic>`)

	if err := (&ExtractCmd{Source: source}).Run(); err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	archive := filepath.Join(dir, "handoff.tar.gz")
	pack := &BundlePackCmd{Source: source, Out: archive, Compression: "gzip"}
	if err := pack.Run(); err != nil {
		t.Fatalf("bundle pack failed: %v", err)
	}

	// Unpack into a fresh intermediate directory.
	CLI.IntermediateDir = filepath.Join(dir, "returned")
	if err := (&BundleUnpackCmd{Archive: archive}).Run(); err != nil {
		t.Fatalf("bundle unpack failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(CLI.IntermediateDir, "topic.manifest.json")); err != nil {
		t.Errorf("manifest missing after unpack: %v", err)
	}
}

func TestMergeWithoutExtract(t *testing.T) {
	dir := setupCLI(t)
	source := createTestFile(t, dir, "topic.xml", `<topic/>`)

	if err := (&MergeCmd{Source: source}).Run(); err == nil {
		t.Error("expected merge to fail without extracted artifacts")
	}
}

func TestVersionCmd(t *testing.T) {
	if err := (&VersionCmd{}).Run(); err != nil {
		t.Errorf("version failed: %v", err)
	}
}
