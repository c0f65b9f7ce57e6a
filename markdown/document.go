package markdown

import (
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/rgonek/markups/graphviz"
	"github.com/rgonek/markups/internal/diagram"
	"github.com/rgonek/markups/markup"
)

var (
	KindDiagram       = ast.NewNodeKind("Diagram")
	KindInlineDiagram = ast.NewNodeKind("InlineDiagram")
	KindSystemMessage = ast.NewNodeKind("SystemMessage")
)

// DiagramNode is a rendered diagram standing as its own block.
type DiagramNode struct {
	ast.BaseBlock
	Ref string
	Alt string
}

func (n *DiagramNode) Kind() ast.NodeKind {
	return KindDiagram
}

func (n *DiagramNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Ref": n.Ref, "Alt": n.Alt}, nil)
}

// InlineDiagramNode is a rendered diagram inside running text.
type InlineDiagramNode struct {
	ast.BaseInline
	Ref string
	Alt string
}

func (n *InlineDiagramNode) Kind() ast.NodeKind {
	return KindInlineDiagram
}

func (n *InlineDiagramNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Ref": n.Ref, "Alt": n.Alt}, nil)
}

// SystemMessageNode renders a diagnostic in place.
type SystemMessageNode struct {
	ast.BaseBlock
	Diagnostic markup.Diagnostic
}

func (n *SystemMessageNode) Kind() ast.NodeKind {
	return KindSystemMessage
}

func (n *SystemMessageNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Diagnostic": n.Diagnostic.String()}, nil)
}

// DiagramLanguages are the fenced code languages rendered as diagrams.
var DiagramLanguages = []string{"dot", "graphviz", "digraph"}

// DiagramFileExtensions are the image targets rendered as diagrams.
var DiagramFileExtensions = []string{".dot", ".gv"}

func isDiagramLanguage(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, candidate := range DiagramLanguages {
		if lang == candidate {
			return true
		}
	}
	return false
}

func isDiagramFile(dest string) bool {
	if strings.Contains(dest, "://") {
		return false
	}
	ext := strings.ToLower(path.Ext(dest))
	for _, candidate := range DiagramFileExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

type documentTransformer struct{}

func (documentTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	c := conversionFrom(pc)
	if c == nil {
		return
	}
	source := reader.Source()
	if c.diagrams.Enabled {
		c.transformDiagrams(doc, source)
	}
	if c.titleFromHeading && c.title == "" {
		c.promoteHeading(doc, source)
	}
}

func (c *conversion) transformDiagrams(doc *ast.Document, source []byte) {
	var fenced []*ast.FencedCodeBlock
	var images []*ast.Image
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock:
			if isDiagramLanguage(string(node.Language(source))) {
				fenced = append(fenced, node)
			}
		case *ast.Image:
			if isDiagramFile(string(node.Destination)) {
				images = append(images, node)
			}
		}
		return ast.WalkContinue, nil
	})

	for _, node := range fenced {
		c.replaceFenced(node, source)
	}
	for _, node := range images {
		c.replaceImage(node, source)
	}
}

func (c *conversion) replaceFenced(node *ast.FencedCodeBlock, source []byte) {
	var sb strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		sb.Write(segment.Value(source))
	}

	line := 0
	if node.Info != nil {
		line = c.line(source, node.Info.Segment.Start)
	}
	outcome := c.diagrams.Render(c.ctx, c.sink, sb.String(), "", line)
	c.replaceBlock(node, outcome, "")
}

func (c *conversion) replaceImage(node *ast.Image, source []byte) {
	alt := plainText(node, source)
	block := enclosingBlock(node)
	line := 0
	if block != nil && block.Lines().Len() > 0 {
		line = c.line(source, block.Lines().At(0).Start)
	}
	outcome := c.diagrams.RenderFile(c.ctx, c.sink, string(node.Destination), alt, line)

	if block != nil && node.Parent() == block && block.Kind() == ast.KindParagraph && block.ChildCount() == 1 {
		c.replaceBlock(block, outcome, alt)
		return
	}

	parent := node.Parent()
	if outcome.HTML != "" {
		c.artifacts = append(c.artifacts, outcome.Artifact)
		parent.ReplaceChild(parent, node, &InlineDiagramNode{Ref: outcome.Ref, Alt: alt})
		return
	}
	parent.RemoveChild(parent, node)
	if block != nil && outcome.Inline != nil && c.sink.Reportable(*outcome.Inline) {
		anchor := messageAnchor(block)
		anchor.Parent().InsertAfter(anchor.Parent(), anchor, &SystemMessageNode{Diagnostic: *outcome.Inline})
	}
}

// replaceBlock swaps a block for the diagram, for an inline diagnostic, or
// for nothing.
func (c *conversion) replaceBlock(node ast.Node, outcome diagram.Outcome, alt string) {
	parent := node.Parent()
	switch {
	case outcome.HTML != "":
		c.artifacts = append(c.artifacts, outcome.Artifact)
		parent.ReplaceChild(parent, node, &DiagramNode{Ref: outcome.Ref, Alt: alt})
	case outcome.Inline != nil && c.sink.Reportable(*outcome.Inline):
		parent.ReplaceChild(parent, node, &SystemMessageNode{Diagnostic: *outcome.Inline})
	default:
		parent.RemoveChild(parent, node)
	}
}

// promoteHeading turns a leading level one heading into the title when it
// is the only level one heading of the document.
func (c *conversion) promoteHeading(doc *ast.Document, source []byte) {
	first, ok := doc.FirstChild().(*ast.Heading)
	if !ok || first.Level != 1 {
		return
	}
	for n := first.NextSibling(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			return
		}
	}
	c.title = plainText(first, source)
	doc.RemoveChild(doc, first)
}

func enclosingBlock(n ast.Node) ast.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() == ast.TypeBlock {
			return p
		}
	}
	return nil
}

// messageAnchor returns the block a system message is inserted after. Table
// cells and rows cannot hold one, so the whole table is used.
func messageAnchor(block ast.Node) ast.Node {
	anchor := block
	for p := block; p != nil; p = p.Parent() {
		if p.Kind() == east.KindTable {
			anchor = p
		}
	}
	return anchor
}

func plainText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *MathNode:
			sb.WriteString(v.Content)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

type documentRenderer struct{}

func (r documentRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindDiagram, r.renderDiagram)
	reg.Register(KindInlineDiagram, r.renderInlineDiagram)
	reg.Register(KindSystemMessage, r.renderSystemMessage)
}

func (r documentRenderer) renderDiagram(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		node := n.(*DiagramNode)
		_, _ = w.WriteString(graphviz.Embed(node.Ref, node.Alt))
		_ = w.WriteByte('\n')
	}
	return ast.WalkSkipChildren, nil
}

func (r documentRenderer) renderInlineDiagram(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		node := n.(*InlineDiagramNode)
		_, _ = w.WriteString(graphviz.Object(node.Ref, node.Alt))
	}
	return ast.WalkSkipChildren, nil
}

func (r documentRenderer) renderSystemMessage(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString(markup.RenderDiagnostic(n.(*SystemMessageNode).Diagnostic))
	}
	return ast.WalkSkipChildren, nil
}

type documentExtension struct{}

func (documentExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithASTTransformers(util.Prioritized(documentTransformer{}, 100)))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(documentRenderer{}, 500)))
}
