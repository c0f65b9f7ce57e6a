// Package markup defines the conversion contract shared by every markup
// language adapter.
//
// A Kind describes one language: its file extensions, the settings it
// accepts and whether its converter is installed. A Registry maps names and
// file names to kinds and builds Adapters. An Adapter turns source text into
// a Document with four parts: body, title, stylesheet and javascript.
//
// Only configuration problems are returned as errors, always from adapter
// construction. Problems with the converted text are rendered inline in the
// body as system messages, filtered by the minimum_report_severity and
// suppress_diagnostics settings.
package markup
