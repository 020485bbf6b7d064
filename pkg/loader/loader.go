// Package loader discovers and parses corpus documents into bundles for the
// graph builder. Malformed documents are logged and skipped; no failure in
// this stage is fatal to the load.
package loader

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"raven/internal/util"
	"raven/pkg/logger"
	"raven/pkg/stix"

	"github.com/kaptinlin/jsonrepair"
)

// Document is one successfully parsed corpus document together with the
// source it was discovered at.
type Document struct {
	Source string
	Bundle stix.Bundle
}

// CorpusLoader resolves a path to candidate JSON documents and reads their
// raw contents. Implementations may load from the local filesystem, object
// storage, or other sources.
type CorpusLoader interface {
	// List returns the candidate document sources for the given path, in
	// discovery order. A path with no JSON candidates yields an empty slice.
	List(ctx context.Context, path string) ([]string, error)

	// Read returns the raw bytes of one candidate source.
	Read(ctx context.Context, source string) ([]byte, error)
}

// IsJSONCandidate reports whether a file or object name is considered a
// corpus document.
func IsJSONCandidate(name string) bool {
	return strings.HasSuffix(name, ".json")
}

// Load discovers candidates under path via the loader and parses each as a
// UTF-8 JSON bundle, preserving discovery order. Candidates that cannot be
// read or decoded are logged and excluded; the returned slice may be empty.
//
// When LOADER_REPAIR_JSON is set, a failed decode is retried once through a
// JSON repairer before the document is given up on.
func Load(ctx context.Context, l CorpusLoader, path string) ([]Document, error) {
	sources, err := l.List(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		logger.Warn("No JSON documents found", "path", path)
		return []Document{}, nil
	}

	repairEnabled := util.GetEnvBool("LOADER_REPAIR_JSON", false)

	docs := make([]Document, 0, len(sources))
	for _, source := range sources {
		raw, err := l.Read(ctx, source)
		if err != nil {
			logger.Warn("Skipping unreadable file", "file", source, "err", err)
			continue
		}

		bundle, err := decodeBundle(raw, repairEnabled)
		if err != nil {
			logger.Warn("Skipping invalid JSON file", "file", source, "err", err)
			continue
		}

		docs = append(docs, Document{Source: source, Bundle: *bundle})
	}

	logger.Info("Corpus loaded", "path", path, "documents", len(docs), "skipped", len(sources)-len(docs))
	return docs, nil
}

// Bundles strips the source metadata and returns the parsed bundles in load
// order, the shape the graph builder consumes.
func Bundles(docs []Document) []stix.Bundle {
	out := make([]stix.Bundle, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.Bundle)
	}
	return out
}

func decodeBundle(raw []byte, repairEnabled bool) (*stix.Bundle, error) {
	if !utf8.Valid(raw) {
		return nil, errNotUTF8
	}

	var bundle stix.Bundle
	err := json.Unmarshal(raw, &bundle)
	if err == nil {
		return &bundle, nil
	}
	if !repairEnabled {
		return nil, err
	}

	repaired, repairErr := jsonrepair.JSONRepair(string(raw))
	if repairErr != nil {
		return nil, err
	}
	if unmarshalErr := json.Unmarshal([]byte(repaired), &bundle); unmarshalErr != nil {
		return nil, err
	}
	logger.Debug("Recovered document via JSON repair")
	return &bundle, nil
}
