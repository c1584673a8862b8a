package passes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"grimoire/internal/artifacts"
	"grimoire/internal/logging"
	"grimoire/internal/pipeline"
	"grimoire/internal/progress"
	"grimoire/internal/vectorstore"
)

const segmentsDir = "text_segments"

// NewBuiltinSet returns handlers for all six passes. The vector store receives
// one document per extracted chunk; pass nil to skip vector writes entirely.
func NewBuiltinSet(vectors vectorstore.Store, logger *slog.Logger) pipeline.PassSet {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &builtin{
		vectors: vectors,
		logger:  logger.With(logging.String(logging.FieldComponent, "passes")),
	}
	return pipeline.PassSet{
		progress.PassTOCParse:         b.tocParse,
		progress.PassLogicalSplit:     b.logicalSplit,
		progress.PassExtraction:       b.extraction,
		progress.PassVectorEnrichment: b.vectorEnrichment,
		progress.PassGraphBuild:       b.graphBuild,
		progress.PassFinalize:         b.finalize,
	}
}

type builtin struct {
	vectors vectorstore.Store
	logger  *slog.Logger
}

func failed(errType, format string, args ...any) pipeline.PassResult {
	return pipeline.PassResult{ErrorMessage: fmt.Sprintf(format, args...), ErrorType: errType}
}

// tocParse scans the source for markdown-style headings and writes the table
// of contents alongside the other artifacts.
func (b *builtin) tocParse(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	data, err := os.ReadFile(req.SourcePath)
	if err != nil {
		return failed("io", "read source: %v", err)
	}

	type tocEntry struct {
		Title string `json:"title"`
		Line  int    `json:"line"`
		Depth int    `json:"depth"`
	}
	var entries []tocEntry
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			continue
		}
		depth := len(trimmed) - len(strings.TrimLeft(trimmed, "#"))
		entries = append(entries, tocEntry{
			Title: strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
			Line:  i + 1,
			Depth: depth,
		})
	}

	if err := writeJSON(filepath.Join(req.ArtifactsPath, "toc.json"), entries); err != nil {
		return failed("io", "write toc: %v", err)
	}
	return pipeline.PassResult{Success: true, TOCEntries: len(entries)}
}

// logicalSplit breaks the source into paragraph segments, one file each under
// text_segments/.
func (b *builtin) logicalSplit(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	segments, err := splitSegments(req.SourcePath)
	if err != nil {
		return failed("io", "split source: %v", err)
	}
	if len(segments) == 0 {
		return failed("empty_source", "source %s has no content to split", req.SourcePath)
	}

	dir := filepath.Join(req.ArtifactsPath, segmentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return failed("io", "create segments dir: %v", err)
	}
	for i, segment := range segments {
		name := filepath.Join(dir, fmt.Sprintf("segment_%04d.txt", i))
		if err := os.WriteFile(name, []byte(segment), 0o644); err != nil {
			return failed("io", "write segment %d: %v", i, err)
		}
	}
	return pipeline.PassResult{Success: true, Metadata: map[string]any{"segments": len(segments)}}
}

// extraction turns the segments into chunks, writes the four required artifact
// files, and stores one vector document per chunk.
func (b *builtin) extraction(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	segments, err := splitSegments(req.SourcePath)
	if err != nil {
		return failed("io", "read source: %v", err)
	}

	hash, err := pipeline.SourceFingerprint(req.SourcePath)
	if err != nil {
		return failed("io", "fingerprint source: %v", err)
	}

	type chunk struct {
		Index      int    `json:"index"`
		SourceHash string `json:"source_hash"`
		Content    string `json:"content"`
	}
	chunks := make([]chunk, 0, len(segments))
	docs := make([]vectorstore.Document, 0, len(segments))
	for i, segment := range segments {
		chunks = append(chunks, chunk{Index: i, SourceHash: hash, Content: segment})
		docs = append(docs, vectorstore.Document{
			SourceHash: hash,
			ChunkIndex: i,
			Content:    segment,
			Embedding:  placeholderEmbedding(segment),
		})
	}

	outputs := map[string]any{
		"extracted_content.json": map[string]any{
			"source_path": req.SourcePath,
			"source_hash": hash,
			"segments":    len(segments),
		},
		"chunks.json": chunks,
		"metadata.json": map[string]any{
			"job_id":       req.JobID,
			"environment":  req.Environment,
			"chunk_count":  len(chunks),
			"extracted_at": time.Now().UTC().Format(time.RFC3339),
		},
		"manifest.json": map[string]any{
			"files":  artifacts.RequiredFiles,
			"chunks": len(chunks),
		},
	}
	for name, payload := range outputs {
		if err := writeJSON(filepath.Join(req.ArtifactsPath, name), payload); err != nil {
			return failed("io", "write %s: %v", name, err)
		}
	}

	if b.vectors != nil {
		if err := b.vectors.UpsertDocuments(ctx, docs); err != nil {
			return failed("vector_store", "store chunks: %v", err)
		}
	}
	return pipeline.PassResult{Success: true, ChunksCreated: len(chunks)}
}

// vectorEnrichment verifies the backend holds every chunk extraction produced.
func (b *builtin) vectorEnrichment(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	if b.vectors == nil {
		return pipeline.PassResult{Success: true}
	}
	hash, err := pipeline.SourceFingerprint(req.SourcePath)
	if err != nil {
		return failed("io", "fingerprint source: %v", err)
	}
	count, err := b.vectors.CountDocumentsForSource(ctx, hash)
	if err != nil {
		return failed("vector_store", "count chunks: %v", err)
	}
	if count == 0 {
		return failed("vector_store", "no chunks found for source %s", hash)
	}
	return pipeline.PassResult{Success: true, VectorsCreated: count}
}

// graphBuild links adjacent chunks into a simple sequence graph.
func (b *builtin) graphBuild(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	data, err := os.ReadFile(filepath.Join(req.ArtifactsPath, "chunks.json"))
	if err != nil {
		return failed("io", "read chunks: %v", err)
	}
	var chunks []json.RawMessage
	if err := json.Unmarshal(data, &chunks); err != nil {
		return failed("parse", "decode chunks: %v", err)
	}
	if len(chunks) == 0 {
		return failed("empty_source", "no chunks to link")
	}

	type edge struct {
		From int    `json:"from"`
		To   int    `json:"to"`
		Kind string `json:"kind"`
	}
	edges := make([]edge, 0, len(chunks)-1)
	for i := 1; i < len(chunks); i++ {
		edges = append(edges, edge{From: i - 1, To: i, Kind: "follows"})
	}
	graph := map[string]any{"nodes": len(chunks), "edges": edges}
	if err := writeJSON(filepath.Join(req.ArtifactsPath, "graph.json"), graph); err != nil {
		return failed("io", "write graph: %v", err)
	}
	return pipeline.PassResult{Success: true, NodesCreated: len(chunks), EdgesCreated: len(edges)}
}

// finalize confirms the artifact directory is complete.
func (b *builtin) finalize(ctx context.Context, req pipeline.PassRequest) pipeline.PassResult {
	manager := artifacts.NewManager(b.logger)
	present := manager.ValidateRequiredArtifacts(req.ArtifactsPath)
	var missing []string
	for _, name := range artifacts.RequiredFiles {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return failed("incomplete_artifacts", "missing required artifacts: %v", missing)
	}
	return pipeline.PassResult{Success: true, Metadata: map[string]any{"validated": len(present)}}
}

func splitSegments(sourcePath string) ([]string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	var segments []string
	for _, block := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n\n") {
		trimmed := strings.TrimSpace(block)
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments, nil
}

// placeholderEmbedding produces a tiny deterministic vector from the content
// so the index has something to store until a real embedder is wired in.
func placeholderEmbedding(content string) []float64 {
	var sum float64
	for _, r := range content {
		sum += float64(r)
	}
	length := float64(len(content))
	if length == 0 {
		length = 1
	}
	return []float64{length, sum / length}
}

func writeJSON(path string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
