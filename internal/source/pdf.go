package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"docrag/internal/chunker"
	"docrag/internal/contextutil"
	"docrag/internal/errs"
)

// PDFOptions configures a PDFSource.
type PDFOptions struct {
	ParagraphSize int // Target piece length in runes, defaults to chunker.DefaultParagraphSize
}

// pdfConverter is the external tool plain conversion shells out to.
const pdfConverter = "pdftotext"

var lookPath = exec.LookPath

// PDFSource ingests PDF files. Versions are SHA-256 digests of the file
// bytes because PDF metadata timestamps are unreliable.
type PDFSource struct {
	base
	paragraphSize int
	converter     bool
}

// NewPDFSource creates a PDF source rooted at root.
func NewPDFSource(root string, opts PDFOptions) (*PDFSource, error) {
	b, err := newBase(KindPDF, root, []string{".pdf"}, contentHashFingerprint)
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
	_, lookErr := lookPath(pdfConverter)
	return &PDFSource{base: b, paragraphSize: size, converter: lookErr == nil}, nil
}

// ExtractChunks decodes each page into layout blocks and splits the page
// text into paragraph-sized pieces.
func (s *PDFSource) ExtractChunks(ctx context.Context, doc Descriptor) ([]Draft, error) {
	if _, statErr := os.Stat(doc.Path); statErr != nil {
		return nil, errs.NewDocumentError(errs.ErrSourceUnreadable, s.id, doc.DocumentID, statErr)
	}

	pages, err := s.readPages(ctx, doc)
	if err != nil {
		return nil, err
	}

	var pieces []string
	for _, text := range pages {
		pieces = append(pieces, chunker.SplitParagraphs(text, s.paragraphSize)...)
	}

	if len(pages) == 0 {
		text, err := s.convert(ctx, doc)
		if err != nil {
			return nil, err
		}
		pieces = chunker.SplitParagraphs(text, s.paragraphSize)
	}

	return drafts(pieces), nil
}

// readPages returns the text of every page that has glyphs.
func (s *PDFSource) readPages(ctx context.Context, doc Descriptor) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.NewDocumentError(errs.ErrExtraction, s.id, doc.DocumentID, fmt.Errorf("pdf decoder panic: %v", r))
		}
	}()

	f, r, err := pdf.Open(doc.Path)
	if err != nil {
		return nil, errs.NewDocumentError(errs.ErrExtraction, s.id, doc.DocumentID, err)
	}
	defer func() {
		_ = f.Close()
	}()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		content := page.Content()
		glyphs := make([]glyph, 0, len(content.Text))
		for _, t := range content.Text {
			glyphs = append(glyphs, glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
		}

		text := pageText(glyphs)
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// convert extracts plain text with docconv for documents whose pages carry
// no positioned glyphs. Without pdftotext on the PATH the document yields
// no text, so it is still recorded and later passes see it as unchanged.
func (s *PDFSource) convert(ctx context.Context, doc Descriptor) (string, error) {
	logger := contextutil.LoggerFromContext(ctx)
	if !s.converter {
		logger.WarnContext(ctx, "no positioned text and converter unavailable, recording without chunks",
			"source_id", s.id,
			"document_id", doc.DocumentID,
			"converter", pdfConverter,
		)
		return "", nil
	}

	logger.DebugContext(ctx, "no positioned text, falling back to plain conversion",
		"source_id", s.id,
		"document_id", doc.DocumentID,
	)

	f, err := os.Open(doc.Path)
	if err != nil {
		return "", errs.NewDocumentError(errs.ErrSourceUnreadable, s.id, doc.DocumentID, err)
	}
	defer func() {
		_ = f.Close()
	}()

	body, _, err := docconv.ConvertPDF(f)
	if errors.Is(err, exec.ErrNotFound) {
		logger.WarnContext(ctx, "converter not found, recording without chunks",
			"source_id", s.id,
			"document_id", doc.DocumentID,
			"error", err,
		)
		return "", nil
	}
	if err != nil {
		return "", errs.NewDocumentError(errs.ErrExtraction, s.id, doc.DocumentID, err)
	}
	return body, nil
}

func contentHashFingerprint(path string, _ fs.FileInfo) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
