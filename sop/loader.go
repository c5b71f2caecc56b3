package sop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// corpusGlob matches the file formats a corpus directory may contain.
const corpusGlob = "**/*.{yaml,yml,md,html}"

// LoadDir loads SOP documents from a corpus directory.
//
// YAML files hold document lists, markdown files become one document each,
// and HTML files are converted to markdown first. The result is sorted by
// path so repeated loads produce documents in a stable order.
func LoadDir(dir string) ([]Document, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, corpusGlob)
	if err != nil {
		return nil, fmt.Errorf("glob corpus dir %s: %w", dir, err)
	}

	var docs []Document
	for _, rel := range matches {
		path := filepath.Join(dir, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus file %s: %w", path, err)
		}

		loaded, err := parseCorpusFile(rel, data)
		if err != nil {
			return nil, fmt.Errorf("parse corpus file %s: %w", path, err)
		}
		docs = append(docs, loaded...)
	}

	return docs, nil
}

// parseCorpusFile dispatches on the file extension.
func parseCorpusFile(rel string, data []byte) ([]Document, error) {
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".yaml", ".yml":
		return parseYAMLDocs(data)
	case ".md":
		return []Document{markdownDoc(rel, string(data))}, nil
	case ".html":
		converter := md.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(string(data))
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		return []Document{markdownDoc(rel, markdown)}, nil
	default:
		return nil, nil
	}
}

// parseYAMLDocs decodes a YAML document list. Each entry must carry an ID
// and content; section and error code are optional citation metadata.
func parseYAMLDocs(data []byte) ([]Document, error) {
	var docs []Document
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	for n, d := range docs {
		if d.ID == "" {
			return nil, fmt.Errorf("document %d: missing id", n)
		}
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("document %q: empty content", d.ID)
		}
	}
	return docs, nil
}

// markdownDoc wraps a standalone markdown file as a single document. The
// first heading, if any, becomes the section; the filename is the source.
func markdownDoc(rel, content string) Document {
	base := filepath.Base(rel)
	id := strings.TrimSuffix(base, filepath.Ext(base))

	var section string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			section = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			break
		}
	}

	return Document{
		ID:      id,
		Source:  base,
		Section: section,
		Content: strings.TrimSpace(content),
	}
}
