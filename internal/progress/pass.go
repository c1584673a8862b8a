package progress

import (
	"strings"
	"time"
)

// PassType identifies one of the six fixed, ordered ingestion passes.
type PassType string

const (
	PassTOCParse         PassType = "toc_parse"
	PassLogicalSplit     PassType = "logical_split"
	PassExtraction       PassType = "extraction"
	PassVectorEnrichment PassType = "vector_enrichment"
	PassGraphBuild       PassType = "graph_build"
	PassFinalize         PassType = "finalize"
)

// passOrder is the fixed execution order. passWeights are the fractional
// contributions of each pass to overall job progress and sum to 100.
var passOrder = []PassType{
	PassTOCParse,
	PassLogicalSplit,
	PassExtraction,
	PassVectorEnrichment,
	PassGraphBuild,
	PassFinalize,
}

var passWeights = map[PassType]int{
	PassTOCParse:         10,
	PassLogicalSplit:     15,
	PassExtraction:       30,
	PassVectorEnrichment: 25,
	PassGraphBuild:       15,
	PassFinalize:         5,
}

// AllPasses returns the six passes in execution order.
func AllPasses() []PassType {
	cp := make([]PassType, len(passOrder))
	copy(cp, passOrder)
	return cp
}

// Weight returns the pass's contribution to overall job progress, out of 100.
func (p PassType) Weight() int {
	return passWeights[p]
}

// Label returns a human-readable name for the pass.
func (p PassType) Label() string {
	return strings.ReplaceAll(string(p), "_", " ")
}

// ParsePassType converts a string into a known PassType.
func ParsePassType(value string) (PassType, bool) {
	normalized := PassType(strings.ToLower(strings.TrimSpace(value)))
	_, ok := passWeights[normalized]
	return normalized, ok
}

// PassStatus represents the lifecycle of a single pass.
type PassStatus string

const (
	PassStarting   PassStatus = "starting"
	PassInProgress PassStatus = "in_progress"
	PassCompleted  PassStatus = "completed"
	PassFailed     PassStatus = "failed"
	PassSkipped    PassStatus = "skipped"
)

// IsTerminal reports whether the status ends a pass.
func (s PassStatus) IsTerminal() bool {
	switch s {
	case PassCompleted, PassFailed, PassSkipped:
		return true
	default:
		return false
	}
}

// Counter metric keys recognized by PassProgress.Complete. Anything else lands
// in the metadata map.
const (
	MetricTOCEntries      = "toc_entries"
	MetricChunksProcessed = "chunks_processed"
	MetricVectorsCreated  = "vectors_created"
	MetricGraphNodes      = "graph_nodes"
	MetricGraphEdges      = "graph_edges"
)

// PassProgress tracks a single pass through its lifecycle. EndTime and
// DurationMillis are set exactly when the status becomes terminal.
type PassProgress struct {
	Type            PassType       `json:"pass_type"`
	Status          PassStatus     `json:"status"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	DurationMillis  *int64         `json:"duration_ms,omitempty"`
	TOCEntries      int            `json:"toc_entries,omitempty"`
	ChunksProcessed int            `json:"chunks_processed,omitempty"`
	VectorsCreated  int            `json:"vectors_created,omitempty"`
	GraphNodes      int            `json:"graph_nodes,omitempty"`
	GraphEdges      int            `json:"graph_edges,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ErrorType       string         `json:"error_type,omitempty"`
	BypassReason    string         `json:"bypass_reason,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewPassProgress creates a pass in the starting state with the clock running.
func NewPassProgress(passType PassType) *PassProgress {
	return &PassProgress{
		Type:      passType,
		Status:    PassStarting,
		StartTime: time.Now().UTC(),
	}
}

// Begin moves a starting pass into in_progress.
func (p *PassProgress) Begin() {
	if p.Status == PassStarting {
		p.Status = PassInProgress
	}
}

// Complete marks the pass completed and routes metrics: keys matching a known
// counter set that counter, everything else goes into the metadata map.
func (p *PassProgress) Complete(metrics map[string]any) {
	p.Status = PassCompleted
	p.stamp()
	for key, value := range metrics {
		switch key {
		case MetricTOCEntries:
			p.TOCEntries = toInt(value)
		case MetricChunksProcessed:
			p.ChunksProcessed = toInt(value)
		case MetricVectorsCreated:
			p.VectorsCreated = toInt(value)
		case MetricGraphNodes:
			p.GraphNodes = toInt(value)
		case MetricGraphEdges:
			p.GraphEdges = toInt(value)
		default:
			if p.Metadata == nil {
				p.Metadata = make(map[string]any)
			}
			p.Metadata[key] = value
		}
	}
}

// Fail marks the pass failed with the given message and classification.
func (p *PassProgress) Fail(message, errorType string) {
	p.Status = PassFailed
	p.stamp()
	p.ErrorMessage = message
	p.ErrorType = errorType
}

// Clone returns a deep copy that shares no mutable state with the original.
func (p *PassProgress) Clone() *PassProgress {
	cp := *p
	if p.EndTime != nil {
		end := *p.EndTime
		cp.EndTime = &end
	}
	if p.DurationMillis != nil {
		millis := *p.DurationMillis
		cp.DurationMillis = &millis
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]any, len(p.Metadata))
		for key, value := range p.Metadata {
			cp.Metadata[key] = value
		}
	}
	return &cp
}

func (p *PassProgress) stamp() {
	now := time.Now().UTC()
	p.EndTime = &now
	millis := now.Sub(p.StartTime).Milliseconds()
	p.DurationMillis = &millis
}

func toInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
