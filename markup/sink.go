package markup

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Sink collects the diagnostics of a single conversion. Adapters create one
// per Convert call and Close it on every exit path.
type Sink struct {
	mu        sync.Mutex
	threshold Severity
	suppress  bool
	stream    bool
	logger    zerolog.Logger
	reported  []Diagnostic
	closed    bool
}

// NewSink creates a sink applying the diagnostic settings of s.
func NewSink(kind string, s Settings) *Sink {
	return &Sink{
		threshold: Severity(s.Int(SettingMinimumReportSeverity)),
		suppress:  s.Bool(SettingSuppressDiagnostics),
		stream:    s.Bool(SettingWarningStream),
		logger:    s.logger().With().Str("kind", kind).Logger(),
	}
}

// Report records d. Reports after Close are dropped.
func (s *Sink) Report(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.reported = append(s.reported, d)

	if !s.stream || (!d.External && !s.reportable(d)) {
		return
	}
	event := s.logger.Warn()
	if d.Severity >= SeverityError {
		event = s.logger.Error()
	} else if d.Severity < SeverityWarning {
		event = s.logger.Info()
	}
	event.
		Str("severity", d.Severity.String()).
		Str("source", d.Source).
		Int("line", d.Line).
		Bool("external", d.External).
		Msg(d.Message)
}

// Reportable reports whether d may appear inline in a document body.
func (s *Sink) Reportable(d Diagnostic) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportable(d)
}

func (s *Sink) reportable(d Diagnostic) bool {
	if d.External || s.suppress {
		return false
	}
	return d.Severity >= s.threshold
}

// Inline renders every reportable diagnostic recorded so far.
func (s *Sink) Inline() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sb strings.Builder
	for _, d := range s.reported {
		if s.reportable(d) {
			sb.WriteString(RenderDiagnostic(d))
		}
	}
	return sb.String()
}

// Diagnostics returns a copy of everything reported.
func (s *Sink) Diagnostics() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Diagnostic(nil), s.reported...)
}

// Threshold returns the effective minimum severity for inline diagnostics.
func (s *Sink) Threshold() Severity {
	if s.suppress {
		return SeverityNone
	}
	return s.threshold
}

// Close releases the sink. It is safe to call more than once.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
