package graph

import (
	"raven/pkg/logger"
	"raven/pkg/stix"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var kindForType = map[string]NodeKind{
	stix.TypeAttackPattern: NodeKindTechnique,
	stix.TypeMalware:       NodeKindMalware,
	stix.TypeTool:          NodeKindTool,
}

// Builder turns parsed bundles into a knowledge graph.
//
// A Builder should be created using NewBuilder.
type Builder struct {
	synthesizeUnknownKeys bool
}

// NewBuilderParams contains configuration for creating a Builder.
type NewBuilderParams struct {
	// SynthesizeUnknownKeys controls what happens to entity objects with no
	// usable identity. When false (the default), they all collapse onto the
	// "unknown" key, last write wins. When true, each occurrence gets a
	// unique synthesized key so no data is silently dropped.
	SynthesizeUnknownKeys bool
}

// NewBuilder creates a graph builder with the given configuration.
func NewBuilder(params NewBuilderParams) *Builder {
	return &Builder{
		synthesizeUnknownKeys: params.SynthesizeUnknownKeys,
	}
}

// Build constructs a directed graph from the bundles, in document order and
// object order within each document.
//
// attack-pattern, malware, and tool objects upsert a node keyed by their
// identity key; the upsert overwrites label and kind on repeat keys.
// relationship objects carrying both endpoint refs upsert a directed edge;
// endpoint refs never implicitly create nodes. All other object types are
// ignored.
func (b *Builder) Build(bundles []stix.Bundle) *Graph {
	g := New()

	for i := range bundles {
		bundle := &bundles[i]
		for j := range bundle.Objects {
			obj := &bundle.Objects[j]
			switch {
			case obj.IsEntity():
				key := obj.IdentityKey()
				if key == stix.UnknownKey && b.synthesizeUnknownKeys {
					key = synthesizeKey()
				}
				g.UpsertNode(key, obj.Label(), kindForType[obj.Type])
			case obj.Type == stix.TypeRelationship:
				if obj.SourceRef == "" || obj.TargetRef == "" {
					logger.Debug(
						"Relationship skipped, missing endpoint",
						"source_ref", obj.SourceRef,
						"target_ref", obj.TargetRef,
					)
					continue
				}
				g.UpsertEdge(obj.SourceRef, obj.TargetRef, obj.RelationshipType)
			}
		}
	}

	logger.Info("Graph built", "nodes", g.NodeCount(), "edges", g.EdgeCount())
	return g
}

func synthesizeKey() string {
	id, err := gonanoid.New()
	if err != nil {
		// nanoid only fails when the system entropy source does; fall back
		// to the collapsing key rather than aborting the build.
		return stix.UnknownKey
	}
	return stix.UnknownKey + "-" + id
}
