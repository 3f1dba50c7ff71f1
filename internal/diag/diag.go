// Package diag is the Error Reporter spec.md §4.8/§7 describes: an
// accumulator that never aborts a pass, collecting structured,
// JSON-serializable diagnostics tagged by phase and error code. Grounded in
// the teacher's internal/errors package (Report/ReportError/ErrorRegistry),
// generalized from AILANG's phase taxonomy to this compiler's five-pass
// orchestrator.
package diag

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Span is a source location, absolute within one file.
type Span struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// Phase identifies which orchestrator pass produced a diagnostic.
type Phase string

const (
	PhaseParse      Phase = "parse"
	PhasePopulate   Phase = "populate"
	PhasePreprocess Phase = "preprocess"
	PhaseInherit    Phase = "inherit"
	PhaseTypecheck  Phase = "typecheck"
	PhaseEmit       Phase = "emit"
)

// Code enumerates the taxonomy of errors this compiler can report, grouped
// by the pass that raises them (mirroring the teacher's PAR###/MOD###/
// LDR### families, renamed to this spec's component names).
type Code string

const (
	CodeParseError            Code = "PAR001"
	CodeUnresolvedImport       Code = "POP001"
	CodeInvalidAnnotation      Code = "PRE001"
	CodeAnnotatedFuncNoBody    Code = "PRE002"
	CodeNativeOutsideNative    Code = "PRE003"
	CodeNonStaticOnStruct      Code = "PRE004"
	CodeFinalWithoutBodyNotNative Code = "PRE005"
	CodeBodyOnNative           Code = "PRE006"
	CodeAddFieldWithoutAnnotation Code = "PRE007"
	CodeUnsupportedIfAnnotation  Code = "PRE008"
	CodeAmbiguousBaseMethod    Code = "INH001"
	CodeUnimplementedMethod    Code = "INH002"
	CodeExtendsFinalClass      Code = "INH003"
	CodeTypeMismatch           Code = "TYP001"
	CodeUnboundName            Code = "TYP002"
	CodeAmbiguousOverload      Code = "TYP003"
	CodeUnresolvedAnnotationTarget Code = "PRE009"
)

// Report is the canonical structured diagnostic record, JSON-serializable
// for host tooling to consume (spec.md §7).
type Report struct {
	Schema  string         `json:"schema"`
	Code    Code           `json:"code"`
	Phase   Phase          `json:"phase"`
	Message string         `json:"message"`
	Span    *Span          `json:"span,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

const schemaVersion = "emberc.diag/v1"

// New builds a Report for phase/code/message, ready to append to a Reporter.
func New(phase Phase, code Code, message string) *Report {
	return &Report{Schema: schemaVersion, Code: code, Phase: phase, Message: message}
}

// WithSpan attaches a source span and returns r for chaining.
func (r *Report) WithSpan(span Span) *Report {
	r.Span = &span
	return r
}

// WithData attaches one structured data key and returns r for chaining.
func (r *Report) WithData(key string, value any) *Report {
	if r.Data == nil {
		r.Data = make(map[string]any)
	}
	r.Data[key] = value
	return r
}

// ToJSON serializes the report, deterministically (encoding/json sorts map
// keys), matching the corpus's Report.ToJSON convention.
func (r *Report) ToJSON(compact bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if compact {
		data, err = json.Marshal(r)
	} else {
		data, err = json.MarshalIndent(r, "", "  ")
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Reporter accumulates diagnostics across passes without ever aborting the
// compile (spec.md §4.5: "Parse errors are fatal for that file but other
// files continue"; every later pass follows the same accumulate-and-continue
// discipline). Per-file fatality is modeled by the caller simply choosing
// not to proceed with that one file's later passes, not by Reporter itself
// panicking or returning early.
type Reporter struct {
	reports []*Report
	// buildID identifies this one compile run, not persisted to the bundle
	// itself (SPEC_FULL.md DOMAIN STACK: google/uuid) — it exists purely to
	// correlate a run's diagnostics across log aggregation when the CLI is
	// invoked repeatedly in CI, the way the corpus's request/trace-ID fields
	// do for a single HTTP call.
	buildID string
}

// NewReporter creates an empty accumulator, minting a fresh build ID.
func NewReporter() *Reporter {
	return &Reporter{buildID: uuid.New().String()}
}

// BuildID returns the random identifier minted for this compile run.
func (rep *Reporter) BuildID() string {
	return rep.buildID
}

// Add appends r to the accumulated diagnostics.
func (rep *Reporter) Add(r *Report) {
	rep.reports = append(rep.reports, r)
}

// HasErrors reports whether any diagnostic has been recorded.
func (rep *Reporter) HasErrors() bool {
	return len(rep.reports) > 0
}

// All returns every accumulated report, in the order they were added.
func (rep *Reporter) All() []*Report {
	out := make([]*Report, len(rep.reports))
	copy(out, rep.reports)
	return out
}

// ForPhase filters accumulated reports down to one phase, preserving order.
// The CLI does not call it; its dump `--phase` flag is parsed and ignored.
func (rep *Reporter) ForPhase(phase Phase) []*Report {
	var out []*Report
	for _, r := range rep.reports {
		if r.Phase == phase {
			out = append(out, r)
		}
	}
	return out
}
