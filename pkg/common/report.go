package common

// DropRecord names an extracted item that never reached the graph.
type DropRecord struct {
	Item   string `json:"item"`
	Reason string `json:"reason"`
}

// PropertyConflict records an incoming property value that lost against an
// already stored non-null value.
type PropertyConflict struct {
	Target   string `json:"target"`
	Property string `json:"property"`
	Existing any    `json:"existing"`
	Incoming any    `json:"incoming"`
}

// MergeOutcome is what the graph store reports for a single merge.
// Before holds the properties stored prior to the merge; it is empty when the
// node or edge was created.
type MergeOutcome struct {
	Created bool
	Before  map[string]any
}

// UpsertReport summarizes one upsert call.
type UpsertReport struct {
	EntitiesAdded   int                `json:"entities_added"`
	EntitiesMerged  int                `json:"entities_merged"`
	RelationsAdded  int                `json:"relations_added"`
	RelationsMerged int                `json:"relations_merged"`
	Dropped         []DropRecord       `json:"dropped,omitempty"`
	Conflicts       []PropertyConflict `json:"conflicts,omitempty"`
}

// Add folds o into r.
func (r *UpsertReport) Add(o UpsertReport) {
	r.EntitiesAdded += o.EntitiesAdded
	r.EntitiesMerged += o.EntitiesMerged
	r.RelationsAdded += o.RelationsAdded
	r.RelationsMerged += o.RelationsMerged
	r.Dropped = append(r.Dropped, o.Dropped...)
	r.Conflicts = append(r.Conflicts, o.Conflicts...)
}

// ItemError is a failure of a single item inside an otherwise successful call.
type ItemError struct {
	Item  string `json:"item"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

// IngestReport is the outcome of ingesting one text.
type IngestReport struct {
	UpsertReport
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []ItemError `json:"errors,omitempty"`
}

// BatchItem is the per-text outcome of a batch ingestion.
type BatchItem struct {
	Index  int           `json:"index"`
	OK     bool          `json:"ok"`
	Report *IngestReport `json:"report,omitempty"`
	Kind   string        `json:"kind,omitempty"`
	Error  string        `json:"error,omitempty"`
}

// BatchReport is the outcome of a batch ingestion.
type BatchReport struct {
	Items     []BatchItem  `json:"items"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Totals    UpsertReport `json:"totals"`
}

// GraphStats counts nodes per label and edges per type.
type GraphStats struct {
	Nodes map[string]int64 `json:"nodes"`
	Edges map[string]int64 `json:"edges"`
}

// GraphExport is a full dump of the graph.
type GraphExport struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

