package ldraw

import "fmt"

// Report is a structured warning or error record delivered to external
// callbacks: recoverable issues keep a defined fallback and continue;
// errors are reported but do not abort a whole-file parse.
type Report struct {
	Message string
	Line    int    // 1-based source line number, 0 when not line-bound
	PartID  string // identity of the part type in progress
}

// String formats the report for logging.
func (r Report) String() string {
	if r.Line > 0 {
		return fmt.Sprintf("%s (line %d, part %q)", r.Message, r.Line, r.PartID)
	}
	if r.PartID != "" {
		return fmt.Sprintf("%s (part %q)", r.Message, r.PartID)
	}
	return r.Message
}

// ReportFunc receives warning or error reports.
type ReportFunc func(Report)
