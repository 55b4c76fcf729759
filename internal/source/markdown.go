package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"docrag/internal/chunker"
	"docrag/internal/errs"
)

// MarkdownOptions configures a MarkdownSource.
type MarkdownOptions struct {
	ParagraphSize int // Target piece length in runes, defaults to chunker.DefaultParagraphSize
}

// MarkdownSource ingests Markdown notes. Each heading section is split
// into paragraph-sized pieces prefixed with its heading path.
type MarkdownSource struct {
	base
	parser        goldmark.Markdown
	paragraphSize int
}

// NewMarkdownSource creates a Markdown source rooted at root.
func NewMarkdownSource(root string, opts MarkdownOptions) (*MarkdownSource, error) {
	b, err := newBase(KindMarkdown, root, []string{".md", ".markdown"}, contentHashFingerprint)
	if err != nil {
		return nil, err
	}
	if opts.ParagraphSize < 0 {
		return nil, &errs.ValidationError{Field: "paragraph_size", Message: "must not be negative"}
	}
	size := opts.ParagraphSize
	if size == 0 {
		size = chunker.DefaultParagraphSize
	}
	return &MarkdownSource{
		base: b,
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
		paragraphSize: size,
	}, nil
}

// ExtractChunks parses the note and splits every heading section.
func (s *MarkdownSource) ExtractChunks(ctx context.Context, doc Descriptor) ([]Draft, error) {
	content, err := os.ReadFile(doc.Path)
	if err != nil {
		return nil, errs.NewDocumentError(errs.ErrSourceUnreadable, s.id, doc.DocumentID, err)
	}

	var pieces []string
	for _, sec := range s.sections(content, doc.DocumentID) {
		for _, p := range chunker.SplitParagraphs(sec.text.String(), s.bodySize(sec.headingPath)) {
			pieces = append(pieces, sec.headingPath+"\n"+p)
		}
	}
	return drafts(pieces), nil
}

// bodySize is the piece budget left once the heading path and its newline
// are prefixed. Heading paths longer than three quarters of paragraphSize
// keep a quarter for the body, so those chunks run over.
func (s *MarkdownSource) bodySize(headingPath string) int {
	budget := s.paragraphSize - utf8.RuneCountInString(headingPath) - 1
	return max(budget, s.paragraphSize/4, 1)
}

type section struct {
	headingPath string
	text        strings.Builder
}

// headingInfo tracks heading level and text for building heading paths.
type headingInfo struct {
	level int
	text  string
}

// sections walks the AST and groups block text under the heading
// hierarchy. Text before the first heading is filed under the title
// derived from the file name.
func (s *MarkdownSource) sections(content []byte, filename string) []*section {
	doc := s.parser.Parser().Parse(text.NewReader(content))

	var out []*section
	var cur *section
	var stack []headingInfo

	current := func() *section {
		if cur == nil {
			cur = &section{headingPath: "# " + titleFromFilename(filename)}
			out = append(out, cur)
		}
		return cur
	}
	breakBlock := func() {
		if cur != nil && cur.text.Len() > 0 {
			cur.text.WriteString("\n\n")
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			for len(stack) > 0 && stack[len(stack)-1].level >= node.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingInfo{level: node.Level, text: nodeText(node, content)})
			cur = &section{headingPath: headingPath(stack)}
			out = append(out, cur)
			return ast.WalkSkipChildren, nil

		case *ast.Paragraph, *ast.ListItem, *ast.Blockquote:
			breakBlock()

		case *ast.Text:
			sec := current()
			sec.text.Write(node.Segment.Value(content))
			if node.SoftLineBreak() {
				sec.text.WriteByte(' ')
			}
			if node.HardLineBreak() {
				sec.text.WriteByte('\n')
			}

		case *ast.String:
			current().text.Write(node.Value)

		case *ast.CodeBlock, *ast.FencedCodeBlock:
			breakBlock()
			sec := current()
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sec.text.Write(line.Value(content))
			}
			return ast.WalkSkipChildren, nil

		case *east.TableHeader, *east.TableRow:
			sec := current()
			sec.text.WriteString(tableRowText(n, content))
			sec.text.WriteByte('\n')
			return ast.WalkSkipChildren, nil

		case *east.Table:
			breakBlock()

		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return out
}

// headingPath builds "# Heading1 > ## Heading2" from the heading stack.
func headingPath(stack []headingInfo) string {
	parts := make([]string, len(stack))
	for i, h := range stack {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", h.level), h.text)
	}
	return strings.Join(parts, " > ")
}

// nodeText extracts text content from a node and its children.
func nodeText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// tableRowText formats the cells of a table row separated by pipes.
func tableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, nodeText(c, content))
	}
	return strings.Join(cells, " | ")
}

// titleFromFilename removes the extension and capitalizes each word.
func titleFromFilename(filename string) string {
	name := filepath.Base(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	for i, word := range words {
		runes := []rune(word)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
