package diag

import (
	"strings"
	"testing"
)

func TestReporterNeverAbortsAccumulates(t *testing.T) {
	r := NewReporter()
	r.Add(New(PhaseParse, CodeParseError, "unexpected token"))
	r.Add(New(PhasePreprocess, CodeInvalidAnnotation, "invalid annotation"))

	if !r.HasErrors() {
		t.Fatalf("expected accumulated errors")
	}
	if len(r.All()) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(r.All()))
	}
}

func TestForPhaseFilters(t *testing.T) {
	r := NewReporter()
	r.Add(New(PhaseParse, CodeParseError, "a"))
	r.Add(New(PhaseInherit, CodeAmbiguousBaseMethod, "b"))
	r.Add(New(PhaseParse, CodeParseError, "c"))

	parseOnly := r.ForPhase(PhaseParse)
	if len(parseOnly) != 2 {
		t.Fatalf("expected 2 parse-phase reports, got %d", len(parseOnly))
	}
}

func TestReportJSONIsDeterministic(t *testing.T) {
	r := New(PhaseInherit, CodeUnimplementedMethod, "missing method Foo").
		WithData("class", "Bar").
		WithData("method", "Foo")

	out, err := r.ToJSON(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"code":"INH002"`) {
		t.Fatalf("expected code in output: %s", out)
	}
	if !strings.Contains(out, `"class":"Bar"`) {
		t.Fatalf("expected data fields in output: %s", out)
	}
}
