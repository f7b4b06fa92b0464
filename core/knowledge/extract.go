package knowledge

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/net/html"
)

var (
	errUnsupportedType = errors.New("unsupported file type")
	errNotUTF8         = errors.New("document is not valid UTF-8 text")

	allowedTypes = []string{TypeHTML, TypeCSV, TypeJSON, TypePlain}

	markdownExts = map[string]bool{".md": true, ".markdown": true}

	markdownSeparators = []string{"\n# ", "\n## ", "\n### ", "\n#### ", "\n\n", "\n", " ", ""}

	// elements whose text is never displayed
	skippedElements = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}
)

// detectType sniffs the content type of data, refining plain text to markdown from the file extension.
func detectType(data []byte, filename string) (contentType, ext string, err error) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, allowed := range allowedTypes {
			if !m.Is(allowed) {
				continue
			}
			ext = strings.ToLower(filepath.Ext(filename))
			if allowed == TypePlain && markdownExts[ext] {
				return TypeMarkdown, ext, nil
			}
			if ext == "" {
				ext = m.Extension()
			}
			return allowed, ext, nil
		}
	}
	return "", "", errUnsupportedType
}

// extractText returns the readable text of a document.
func extractText(contentType string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errNotUTF8
	}
	if contentType == TypeHTML {
		return htmlText(bytes.NewReader(data))
	}
	return string(data), nil
}

// htmlText collects the text nodes of an HTML document, one block per line.
func htmlText(r io.Reader) (string, error) {
	var (
		sb   strings.Builder
		skip int
	)
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", errors.Wrap(err, "tokenizing html")
			}
			return strings.TrimSpace(sb.String()), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.Join(strings.Fields(string(z.Text())), " "); text != "" {
				sb.WriteString(text)
				sb.WriteByte('\n')
			}
		}
	}
}

func newSplitter(contentType string, size, overlap int) textsplitter.TextSplitter {
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	}
	if contentType == TypeMarkdown {
		opts = append(opts, textsplitter.WithSeparators(markdownSeparators))
	}
	return textsplitter.NewRecursiveCharacter(opts...)
}

// split cuts text into non-blank chunks.
func split(splitter textsplitter.TextSplitter, text string) ([]string, error) {
	parts, err := splitter.SplitText(text)
	if err != nil {
		return nil, errors.Wrap(err, "splitting text")
	}
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}
