// Package pipeline runs the document workflow end to end: extract segments
// and skeleton from a source document, hand the segments off for translation,
// merge the translation back, and validate the reconstruction.
//
// Each stage reads and writes named artifact files next to each other in an
// intermediate directory, so a run can stop at any stage boundary and resume
// later, possibly on another machine. All artifact writes are atomic; a
// failed stage never leaves a truncated file behind.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seglate/seglate/core/errors"
	"github.com/seglate/seglate/core/extract"
	"github.com/seglate/seglate/core/merge"
	"github.com/seglate/seglate/core/minimal"
	"github.com/seglate/seglate/core/segment"
	"github.com/seglate/seglate/core/validate"
	"github.com/seglate/seglate/core/xmltree"
	"github.com/seglate/seglate/internal/artifact"
	"github.com/seglate/seglate/internal/bundle"
	"github.com/seglate/seglate/internal/config"
	"github.com/seglate/seglate/internal/fileutil"
	"github.com/seglate/seglate/internal/ident"
	"github.com/seglate/seglate/internal/logging"
)

// Artifacts derives the artifact file paths for one source document. All
// artifacts share the document's base name and live flat in one directory.
type Artifacts struct {
	Dir  string
	Base string
}

// ArtifactsFor returns the artifact layout for a source document.
func ArtifactsFor(dir, sourcePath string) Artifacts {
	name := filepath.Base(sourcePath)
	return Artifacts{Dir: dir, Base: strings.TrimSuffix(name, filepath.Ext(name))}
}

func (a Artifacts) path(suffix string) string {
	return filepath.Join(a.Dir, a.Base+suffix)
}

// Artifact path accessors.
func (a Artifacts) Source() string     { return a.path(".source.xml") }
func (a Artifacts) Segments() string   { return a.path(".segments.json") }
func (a Artifacts) Skeleton() string   { return a.path(".skeleton.xml") }
func (a Artifacts) TagMap() string     { return a.path(".tagmap.json") }
func (a Artifacts) DNT() string        { return a.path(".dnt.json") }
func (a Artifacts) Minimal() string    { return a.path(".minimal.xml") }
func (a Artifacts) Translated() string { return a.path(".translated.json") }
func (a Artifacts) Manifest() string   { return a.path(".manifest.json") }
func (a Artifacts) Report() string     { return a.path(".report.json") }

// Pipeline wires configuration and directory layout for document runs.
type Pipeline struct {
	cfg             *config.Config
	intermediateDir string
	outputDir       string
}

// New returns a pipeline writing intermediate artifacts and reconstructed
// documents to the given directories.
func New(cfg *config.Config, intermediateDir, outputDir string) *Pipeline {
	return &Pipeline{cfg: cfg, intermediateDir: intermediateDir, outputDir: outputDir}
}

// Extract parses the source document, extracts segments, and writes the
// segments, skeleton, tag mapping, DNT map, and manifest artifacts.
func (p *Pipeline) Extract(ctx context.Context, sourcePath string) (*extract.Result, error) {
	start := time.Now()
	runID := ident.NewRunID()
	ctx = logging.WithRunID(ctx, runID)

	doc, err := xmltree.ParseFile(sourcePath)
	if err != nil {
		return nil, err
	}

	res, err := extract.Extract(doc, extract.Options{
		IsInline:    p.cfg.IsInline,
		IsProtected: p.cfg.IsProtected,
		IDs:         ident.NewGenerator(p.cfg.IDLength),
	})
	if err != nil {
		return nil, errors.Wrap(err, "extraction of %s failed", sourcePath)
	}

	if err := os.MkdirAll(p.intermediateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create intermediate directory: %w", err)
	}
	paths := ArtifactsFor(p.intermediateDir, sourcePath)
	manifest := artifact.New(runID, sourcePath, p.cfg.SourceLang, p.cfg.TargetLang)

	// Snapshot the source next to the artifacts. Later stages validate
	// against the snapshot, so a bundle stays mergeable after moving to a
	// machine where the original path does not exist.
	if err := fileutil.CopyFile(sourcePath, paths.Source()); err != nil {
		return nil, err
	}
	srcData, err := os.ReadFile(paths.Source())
	if err != nil {
		return nil, fmt.Errorf("failed to read source snapshot: %w", err)
	}
	manifest.Record(artifact.KindSource, paths.Source(), srcData)

	segFile := &segment.File{Lang: p.cfg.SourceLang, Segments: res.Segments}
	segData, err := segment.EncodeFile(segFile)
	if err != nil {
		return nil, err
	}
	tagData, err := segment.EncodeTagMapping(res.TagMapping)
	if err != nil {
		return nil, err
	}
	dntData, err := segment.EncodeDNTMap(res.DNTMap)
	if err != nil {
		return nil, err
	}
	skelData := res.Skeleton.Serialize()

	files := []struct {
		kind string
		path string
		data []byte
	}{
		{artifact.KindSegments, paths.Segments(), segData},
		{artifact.KindSkeleton, paths.Skeleton(), skelData},
		{artifact.KindTagMap, paths.TagMap(), tagData},
		{artifact.KindDNT, paths.DNT(), dntData},
	}
	for _, f := range files {
		if err := fileutil.WriteFileAtomic(f.path, f.data, 0644); err != nil {
			return nil, err
		}
		manifest.Record(f.kind, f.path, f.data)
	}
	if err := manifest.Write(paths.Manifest()); err != nil {
		return nil, err
	}

	logging.Stage(ctx, "extract", sourcePath, time.Since(start),
		"segments", len(res.Segments),
		"tokens", len(res.TagMapping.Tags),
		"dnt_entries", len(res.DNTMap),
		"encoding", doc.Encoding())
	return res, nil
}

// ExportMinimal renders the extracted segments as a minimal XML file for
// translators who edit XML directly, and records it in the manifest.
func (p *Pipeline) ExportMinimal(ctx context.Context, sourcePath string) (string, error) {
	start := time.Now()
	paths := ArtifactsFor(p.intermediateDir, sourcePath)

	manifest, ctx, err := p.openRun(ctx, paths, artifact.KindSegments, artifact.KindTagMap)
	if err != nil {
		return "", err
	}
	segFile, tags, _, err := p.loadArtifacts(paths, false)
	if err != nil {
		return "", err
	}

	data, err := minimal.ToMinimal(segFile, tags)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(paths.Minimal(), data, 0644); err != nil {
		return "", err
	}
	manifest.Record(artifact.KindMinimal, paths.Minimal(), data)
	if err := manifest.Write(paths.Manifest()); err != nil {
		return "", err
	}

	logging.Stage(ctx, "minimal_export", sourcePath, time.Since(start), "segments", len(segFile.Segments))
	return paths.Minimal(), nil
}

// GenerateDummy derives a translated-segments artifact from the source
// segments, prefixing every text with a target-language marker. It exists so
// the whole workflow can be exercised without a translation provider.
func (p *Pipeline) GenerateDummy(ctx context.Context, sourcePath string) (string, error) {
	start := time.Now()
	paths := ArtifactsFor(p.intermediateDir, sourcePath)

	_, ctx, err := p.openRun(ctx, paths, artifact.KindSegments)
	if err != nil {
		return "", err
	}
	segFile, _, _, err := p.loadArtifacts(paths, false)
	if err != nil {
		return "", err
	}

	translated := &segment.File{Lang: p.cfg.TargetLang, Segments: make([]segment.Segment, len(segFile.Segments))}
	for i, s := range segFile.Segments {
		translated.Segments[i] = segment.Segment{
			ID:    s.ID,
			Text:  fmt.Sprintf("[%s_%d] %s", p.cfg.TargetLang, i+1, s.Text),
			Order: s.Order,
		}
	}
	data, err := segment.EncodeFile(translated)
	if err != nil {
		return "", err
	}
	if err := fileutil.WriteFileAtomic(paths.Translated(), data, 0644); err != nil {
		return "", err
	}

	logging.Stage(ctx, "dummy", sourcePath, time.Since(start), "segments", len(translated.Segments))
	return paths.Translated(), nil
}

// Merge reconstructs the document from the skeleton and a translated-segments
// file, validates the result against the source, writes the output document
// and the report, and returns the report. The output file is only written
// when the merge fully succeeds.
func (p *Pipeline) Merge(ctx context.Context, sourcePath, translatedPath string) (*validate.Report, error) {
	data, err := os.ReadFile(translatedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translated segments: %w", err)
	}
	translated, err := segment.DecodeFile(data)
	if err != nil {
		return nil, err
	}
	return p.reconstruct(ctx, sourcePath, "merge", translated.ToTranslations())
}

// MergeMinimal reconstructs the document from a translated minimal XML file.
// The reconstruction path is shared with Merge, so the two surfaces produce
// identical output for equivalent content.
func (p *Pipeline) MergeMinimal(ctx context.Context, sourcePath, minimalPath string) (*validate.Report, error) {
	paths := ArtifactsFor(p.intermediateDir, sourcePath)
	tagData, err := os.ReadFile(paths.TagMap())
	if err != nil {
		return nil, fmt.Errorf("failed to read tag mapping: %w", err)
	}
	tags, err := segment.DecodeTagMapping(tagData)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(minimalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read minimal document: %w", err)
	}
	translated, err := minimal.FromMinimal(data, tags)
	if err != nil {
		return nil, err
	}
	return p.reconstruct(ctx, sourcePath, "merge_minimal", translated.ToTranslations())
}

// Validate compares the source document against an already-reconstructed one
// and writes the report artifact.
func (p *Pipeline) Validate(ctx context.Context, sourcePath, rebuiltPath string) (*validate.Report, error) {
	start := time.Now()
	src, err := xmltree.ParseFile(sourcePath)
	if err != nil {
		return nil, err
	}
	rebuilt, err := xmltree.ParseFile(rebuiltPath)
	if err != nil {
		return nil, err
	}

	report := validate.Validate(src, rebuilt, validate.Options{IsInline: p.cfg.IsInline})
	paths := ArtifactsFor(p.intermediateDir, sourcePath)
	if err := p.writeReport(paths, report); err != nil {
		return nil, err
	}

	logging.Stage(ctx, "validate", sourcePath, time.Since(start),
		"passed", report.Passed, "mismatches", len(report.Mismatches))
	return report, nil
}

// PackBundle archives every artifact the manifest records, plus the manifest
// itself, into a translator handoff bundle.
func (p *Pipeline) PackBundle(ctx context.Context, sourcePath, archivePath string, compression bundle.Compression) error {
	start := time.Now()
	paths := ArtifactsFor(p.intermediateDir, sourcePath)
	manifest, ctx, err := p.openRun(ctx, paths)
	if err != nil {
		return err
	}

	names := []string{filepath.Base(paths.Manifest())}
	for _, entry := range manifest.Artifacts {
		names = append(names, entry.Path)
	}
	if err := bundle.Pack(archivePath, p.intermediateDir, names, compression); err != nil {
		return err
	}

	logging.Stage(ctx, "bundle_pack", sourcePath, time.Since(start),
		"archive", archivePath, "files", len(names))
	return nil
}

// UnpackBundle extracts a returned bundle into the intermediate directory.
func (p *Pipeline) UnpackBundle(ctx context.Context, archivePath string) ([]string, error) {
	start := time.Now()
	names, err := bundle.Unpack(archivePath, p.intermediateDir)
	if err != nil {
		return nil, err
	}
	logging.Stage(ctx, "bundle_unpack", archivePath, time.Since(start), "files", len(names))
	return names, nil
}

// reconstruct is the shared merge path: verify artifacts, merge, validate,
// write output and report.
func (p *Pipeline) reconstruct(ctx context.Context, sourcePath, stage string, translations segment.Translations) (*validate.Report, error) {
	start := time.Now()
	paths := ArtifactsFor(p.intermediateDir, sourcePath)

	_, ctx, err := p.openRun(ctx, paths, artifact.KindSource,
		artifact.KindSegments, artifact.KindSkeleton, artifact.KindTagMap, artifact.KindDNT)
	if err != nil {
		return nil, err
	}
	segFile, tags, dnt, err := p.loadArtifacts(paths, true)
	if err != nil {
		return nil, err
	}
	skeleton, err := xmltree.ParseFile(paths.Skeleton())
	if err != nil {
		return nil, err
	}

	rebuilt, err := merge.Merge(skeleton, translations, tags, dnt)
	if err != nil {
		return nil, err
	}

	src, err := xmltree.ParseFile(paths.Source())
	if err != nil {
		return nil, err
	}
	report := validate.Validate(src, rebuilt, validate.Options{IsInline: p.cfg.IsInline})
	report.Warnings = validate.Untranslated(segFile.Segments, translations)
	for _, w := range report.Warnings {
		logging.LoggerFromContext(ctx).Warn(w, "document", sourcePath)
	}

	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	outPath := filepath.Join(p.outputDir, filepath.Base(sourcePath))
	if err := fileutil.WriteFileAtomic(outPath, rebuilt.Serialize(), 0644); err != nil {
		return nil, err
	}
	if err := p.writeReport(paths, report); err != nil {
		return nil, err
	}

	logging.Stage(ctx, stage, sourcePath, time.Since(start),
		"output", outPath, "passed", report.Passed, "mismatches", len(report.Mismatches))
	return report, nil
}

// openRun loads the manifest, verifies the named artifact kinds, and tags the
// context with the recorded run ID.
func (p *Pipeline) openRun(ctx context.Context, paths Artifacts, kinds ...string) (*artifact.Manifest, context.Context, error) {
	manifest, err := artifact.Load(paths.Manifest())
	if err != nil {
		return nil, ctx, err
	}
	if err := manifest.Verify(paths.Dir, kinds...); err != nil {
		return nil, ctx, err
	}
	return manifest, logging.WithRunID(ctx, manifest.RunID), nil
}

// loadArtifacts reads the segments artifact and, when withMappings is set,
// the tag mapping and DNT map.
func (p *Pipeline) loadArtifacts(paths Artifacts, withMappings bool) (*segment.File, *segment.TagMapping, segment.DNTMap, error) {
	segData, err := os.ReadFile(paths.Segments())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read segments: %w", err)
	}
	segFile, err := segment.DecodeFile(segData)
	if err != nil {
		return nil, nil, nil, err
	}

	tagData, err := os.ReadFile(paths.TagMap())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read tag mapping: %w", err)
	}
	tags, err := segment.DecodeTagMapping(tagData)
	if err != nil {
		return nil, nil, nil, err
	}

	if !withMappings {
		return segFile, tags, nil, nil
	}

	dntData, err := os.ReadFile(paths.DNT())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read dnt map: %w", err)
	}
	dnt, err := segment.DecodeDNTMap(dntData)
	if err != nil {
		return nil, nil, nil, err
	}
	return segFile, tags, dnt, nil
}

// writeReport writes the report artifact atomically.
func (p *Pipeline) writeReport(paths Artifacts, report *validate.Report) error {
	data, err := validate.EncodeReport(report)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(paths.Report(), data, 0644)
}
