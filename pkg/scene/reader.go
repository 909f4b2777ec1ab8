// Package scene reads Unity scene and prefab files, which are multi-document YAML streams
// with one serialized object per document.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidScene reports a document that is not valid YAML.
var ErrInvalidScene = errors.New("invalid scene document")

// objectHeader matches "--- !u!<class> &<file id>" with an optional "stripped" marker.
// Unity declares the !u! handle once for the whole stream, which strict YAML only
// allows for the first document, so headers are parsed here and dropped before decoding.
var objectHeader = regexp.MustCompile(`^---\s+!u!(\d+)\s+&(-?\d+)(\s+stripped)?\s*$`)

// Document is one serialized object.
type Document struct {
	// ClassID is the Unity class id from the header (1 GameObject, 4 Transform, ...).
	// Zero for plain YAML documents.
	ClassID int `json:"class_id,omitempty"`
	// FileID is the object's local id within the file.
	FileID int64 `json:"file_id,omitempty"`
	// Stripped marks prefab instance stubs.
	Stripped bool  `json:"stripped,omitempty"`
	Root     Value `json:"root"`
}

// Section returns the document's single top-level key, such as "GameObject".
func (d Document) Section() string {
	if d.Root.Kind != KindMapping || len(d.Root.Mapping) == 0 {
		return ""
	}

	keys := make([]string, 0, len(d.Root.Mapping))
	for key := range d.Root.Mapping {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	return keys[0]
}

// Name returns the section's m_Name, when it has one.
func (d Document) Name() string {
	name, ok := d.Root.Get(d.Section(), "m_Name")
	if !ok || name.Kind != KindScalar {
		return ""
	}

	return name.Scalar
}

// ReadDocument reads a scene file and merges the top-level entries of every document
// whose root is a mapping. A key seen again in a later document replaces the earlier value.
func ReadDocument(path string) (map[string]Value, error) {
	//nolint:gosec // The path is supplied by the user on purpose.
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer file.Close()

	docs, err := ReadDocuments(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return Merge(docs), nil
}

// Merge flattens the top-level entries of mapping documents, later keys winning.
func Merge(docs []Document) map[string]Value {
	merged := make(map[string]Value)

	for _, doc := range docs {
		if doc.Root.Kind != KindMapping {
			continue
		}

		for key, value := range doc.Root.Mapping {
			merged[key] = value
		}
	}

	return merged
}

// ReadDocuments decodes every non-empty document of the stream in order.
func ReadDocuments(r io.Reader) ([]Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}

	var (
		docs    []Document
		current Document
		body    bytes.Buffer
	)

	flush := func() error {
		if strings.TrimSpace(body.String()) == "" {
			body.Reset()

			return nil
		}

		var nd yaml.Node

		if decodeErr := yaml.Unmarshal(body.Bytes(), &nd); decodeErr != nil {
			return fmt.Errorf("%w: document %d: %w", ErrInvalidScene, len(docs)+1, decodeErr)
		}

		root, convErr := fromNode(&nd)
		if convErr != nil {
			return fmt.Errorf("document %d: %w", len(docs)+1, convErr)
		}

		current.Root = root
		docs = append(docs, current)
		body.Reset()

		return nil
	}

	for line := range strings.SplitSeq(string(data), "\n") {
		trimmed := strings.TrimRight(line, "\r")

		switch {
		case strings.HasPrefix(trimmed, "%"):
			continue
		case trimmed == "...":
			continue
		case trimmed == "---" || strings.HasPrefix(trimmed, "--- "):
			if err := flush(); err != nil {
				return nil, err
			}

			current = parseHeader(trimmed)

			if current.ClassID == 0 {
				// A plain separator may carry inline content.
				body.WriteString(strings.TrimPrefix(strings.TrimPrefix(trimmed, "---"), " "))
				body.WriteByte('\n')
			}
		default:
			body.WriteString(trimmed)
			body.WriteByte('\n')
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return docs, nil
}

func parseHeader(line string) Document {
	match := objectHeader.FindStringSubmatch(line)
	if match == nil {
		return Document{}
	}

	classID, err := strconv.Atoi(match[1])
	if err != nil {
		return Document{}
	}

	fileID, err := strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return Document{}
	}

	return Document{ClassID: classID, FileID: fileID, Stripped: match[3] != ""}
}

// SectionCount is the number of documents per top-level section.
type SectionCount struct {
	Section string `json:"section"`
	Count   int    `json:"count"`
}

// Summarize counts documents per section, most frequent first, ties by name.
func Summarize(docs []Document) []SectionCount {
	counts := make(map[string]int)

	for _, doc := range docs {
		if section := doc.Section(); section != "" {
			counts[section]++
		}
	}

	out := make([]SectionCount, 0, len(counts))
	for section, count := range counts {
		out = append(out, SectionCount{Section: section, Count: count})
	}

	slices.SortFunc(out, func(a, b SectionCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}

		return strings.Compare(a.Section, b.Section)
	})

	return out
}
