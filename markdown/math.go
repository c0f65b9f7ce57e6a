package markdown

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	KindMath      = ast.NewNodeKind("Math")
	KindMathBlock = ast.NewNodeKind("MathBlock")
)

// MathNode is TeX between $ or $$ delimiters inside a paragraph.
type MathNode struct {
	ast.BaseInline
	Content string
	Display bool
}

func NewMathNode(content string, display bool) *MathNode {
	return &MathNode{Content: content, Display: display}
}

func (n *MathNode) Kind() ast.NodeKind {
	return KindMath
}

func (n *MathNode) Dump(source []byte, level int) {
	display := "false"
	if n.Display {
		display = "true"
	}
	ast.DumpHelper(n, source, level, map[string]string{
		"Content": n.Content,
		"Display": display,
	}, nil)
}

// MathBlockNode is TeX between lines holding only $$.
type MathBlockNode struct {
	ast.BaseBlock
}

func NewMathBlockNode() *MathBlockNode {
	return &MathBlockNode{}
}

func (n *MathBlockNode) Kind() ast.NodeKind {
	return KindMathBlock
}

func (n *MathBlockNode) IsRaw() bool {
	return true
}

func (n *MathBlockNode) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, nil, nil)
}

// MathParser parses $x$ and $$x$$ spans. A closing $ must follow a non-space
// character and must not be followed by a digit, so prices stay text.
type MathParser struct{}

func NewMathParser() parser.InlineParser {
	return &MathParser{}
}

func (p *MathParser) Trigger() []byte {
	return []byte{'$'}
}

func (p *MathParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if len(line) < 3 || line[0] != '$' {
		return nil
	}

	if line[1] == '$' {
		end := bytes.Index(line[2:], []byte("$$"))
		if end <= 0 || len(bytes.TrimSpace(line[2:2+end])) == 0 {
			return nil
		}
		block.Advance(end + 4)
		return NewMathNode(string(line[2:2+end]), true)
	}

	if isMathSpace(line[1]) {
		return nil
	}
	for idx := 2; idx < len(line); idx++ {
		switch line[idx] {
		case '\n', '\r':
			return nil
		case '\\':
			idx++
		case '$':
			if isMathSpace(line[idx-1]) {
				continue
			}
			if idx+1 < len(line) && line[idx+1] >= '0' && line[idx+1] <= '9' {
				continue
			}
			block.Advance(idx + 1)
			return NewMathNode(string(line[1:idx]), false)
		}
	}
	return nil
}

func isMathSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

// MathBlockParser parses display math fenced by $$ lines.
type MathBlockParser struct{}

func NewMathBlockParser() parser.BlockParser {
	return &MathBlockParser{}
}

func (p *MathBlockParser) Trigger() []byte {
	return []byte{'$'}
}

func (p *MathBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || !isMathFence(line[pos:]) {
		return nil, parser.NoChildren
	}
	advanceToEOL(reader, segment)
	return NewMathBlockNode(), parser.NoChildren
}

func advanceToEOL(reader text.Reader, segment text.Segment) {
	if n := segment.Len() - 1; n > 0 {
		reader.Advance(n)
	}
}

func (p *MathBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	line, segment := reader.PeekLine()
	if isMathFence(line) {
		advanceToEOL(reader, segment)
		return parser.Close
	}
	node.Lines().Append(segment)
	advanceToEOL(reader, segment)
	return parser.Continue | parser.NoChildren
}

func (p *MathBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *MathBlockParser) CanInterruptParagraph() bool {
	return true
}

func (p *MathBlockParser) CanAcceptIndentedLine() bool {
	return false
}

func isMathFence(line []byte) bool {
	return string(bytes.TrimSpace(line)) == "$$"
}

type mathRenderer struct{}

func (r mathRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMath, r.renderMath)
	reg.Register(KindMathBlock, r.renderMathBlock)
}

func (r mathRenderer) renderMath(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	node := n.(*MathNode)
	if node.Display {
		_, _ = w.WriteString(`<span class="math display">\[`)
		_, _ = w.WriteString(html.EscapeString(node.Content))
		_, _ = w.WriteString(`\]</span>`)
	} else {
		_, _ = w.WriteString(`<span class="math">\(`)
		_, _ = w.WriteString(html.EscapeString(node.Content))
		_, _ = w.WriteString(`\)</span>`)
	}
	return ast.WalkSkipChildren, nil
}

func (r mathRenderer) renderMathBlock(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	_, _ = w.WriteString("<div class=\"math\">\n\\[")
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		_, _ = w.WriteString(html.EscapeString(string(segment.Value(source))))
	}
	_, _ = w.WriteString("\\]\n</div>\n")
	return ast.WalkSkipChildren, nil
}

type mathExtension struct{}

func (mathExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(NewMathBlockParser(), 150)),
		parser.WithInlineParsers(util.Prioritized(NewMathParser(), 150)),
	)
	m.Renderer().AddOptions(renderer.WithNodeRenderers(util.Prioritized(mathRenderer{}, 500)))
}
