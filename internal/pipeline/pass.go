package pipeline

import (
	"context"

	"grimoire/internal/progress"
)

// PassRequest is the input handed to every pass handler.
type PassRequest struct {
	JobID         string
	SourcePath    string
	ArtifactsPath string
	Environment   string
}

// PassResult is a handler's typed outcome. Counters that do not apply to a
// pass stay zero; Metadata carries anything pass-specific.
type PassResult struct {
	Success        bool
	ErrorMessage   string
	ErrorType      string
	TOCEntries     int
	ChunksCreated  int
	VectorsCreated int
	NodesCreated   int
	EdgesCreated   int
	Metadata       map[string]any
}

// metrics flattens the result into the metric map PassProgress.Complete
// understands.
func (r PassResult) metrics() map[string]any {
	out := make(map[string]any)
	if r.TOCEntries > 0 {
		out[progress.MetricTOCEntries] = r.TOCEntries
	}
	if r.ChunksCreated > 0 {
		out[progress.MetricChunksProcessed] = r.ChunksCreated
	}
	if r.VectorsCreated > 0 {
		out[progress.MetricVectorsCreated] = r.VectorsCreated
	}
	if r.NodesCreated > 0 {
		out[progress.MetricGraphNodes] = r.NodesCreated
	}
	if r.EdgesCreated > 0 {
		out[progress.MetricGraphEdges] = r.EdgesCreated
	}
	for key, value := range r.Metadata {
		out[key] = value
	}
	return out
}

// PassFunc executes one pass over a source.
type PassFunc func(ctx context.Context, req PassRequest) PassResult

// PassSet maps each pass to its handler. The orchestrator refuses to run a
// job when a pass has no handler.
type PassSet map[progress.PassType]PassFunc
