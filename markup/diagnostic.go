package markup

import (
	"fmt"
	"html"
	"strings"
)

// Severity is the level of a converter diagnostic.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeveritySevere
	// SeverityNone is above every reportable level; used as a threshold it
	// suppresses all diagnostics.
	SeverityNone
)

var severityNames = [...]string{"DEBUG", "INFO", "WARNING", "ERROR", "SEVERE", "NONE"}

func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityNone {
		return fmt.Sprintf("LEVEL%d", int(s))
	}
	return severityNames[s]
}

// ParseSeverity resolves a level name such as "WARNING" or "warn".
func ParseSeverity(name string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return SeverityDebug, true
	case "INFO":
		return SeverityInfo, true
	case "WARNING", "WARN":
		return SeverityWarning, true
	case "ERROR":
		return SeverityError, true
	case "SEVERE", "FATAL":
		return SeveritySevere, true
	}
	return 0, false
}

// Diagnostic is a non-fatal note about the converted source.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
	// External marks failures of collaborating tools rather than problems
	// with the source text. They are never rendered inline.
	External bool `json:"external,omitempty"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.Source != "" {
		sb.WriteString(d.Source)
		sb.WriteString(":")
	}
	if d.Line > 0 {
		fmt.Fprintf(&sb, "%d:", d.Line)
	}
	if sb.Len() > 0 {
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "(%s/%d) %s", d.Severity, int(d.Severity), d.Message)
	return sb.String()
}

// RenderDiagnostic renders d as an inline system message block.
func RenderDiagnostic(d Diagnostic) string {
	var sb strings.Builder
	sb.WriteString(`<div class="system-message">`)
	sb.WriteString("\n")
	fmt.Fprintf(&sb, `<p class="system-message-title">System Message: %s/%d`, d.Severity, int(d.Severity))
	if d.Source != "" || d.Line > 0 {
		sb.WriteString(" (")
		if d.Source != "" {
			sb.WriteString(`<code class="docutils">`)
			sb.WriteString(html.EscapeString(d.Source))
			sb.WriteString(`</code>`)
		}
		if d.Line > 0 {
			if d.Source != "" {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "line %d", d.Line)
		}
		sb.WriteString(")")
	}
	sb.WriteString("</p>\n<p>")
	sb.WriteString(html.EscapeString(d.Message))
	sb.WriteString("</p>\n</div>\n")
	return sb.String()
}
