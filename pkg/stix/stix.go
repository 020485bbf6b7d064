package stix

import (
	"encoding/json"
)

// Object type tags recognized by the graph pipeline. Objects carrying any
// other type are passed through untouched by the decoder and ignored by the
// graph builder.
const (
	TypeAttackPattern = "attack-pattern"
	TypeMalware       = "malware"
	TypeTool          = "tool"
	TypeRelationship  = "relationship"
)

// UnknownKey is the identity key assigned to entity objects that carry
// neither an id nor an external id. Multiple such objects collapse onto the
// same key unless the builder is configured to synthesize keys.
const UnknownKey = "unknown"

// Bundle is one parsed ATT&CK JSON document. Only the fields the pipeline
// touches are modeled; everything else survives inside each object's raw
// payload.
type Bundle struct {
	Type        string   `json:"type,omitempty"`
	ID          string   `json:"id,omitempty"`
	SpecVersion string   `json:"spec_version,omitempty"`
	Objects     []Object `json:"objects"`
}

// ExternalReference is a pointer into an external catalog, e.g. the
// mitre-attack technique numbering.
type ExternalReference struct {
	SourceName string `json:"source_name,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Object is a single entry of a bundle's objects sequence, decoded into
// explicit optional fields. The original JSON payload is retained so the
// filter tooling can re-emit objects without losing unmodeled fields.
type Object struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	// Relationship fields, set only for type == "relationship".
	SourceRef        string `json:"source_ref,omitempty"`
	TargetRef        string `json:"target_ref,omitempty"`
	RelationshipType string `json:"relationship_type,omitempty"`

	ExternalID         string              `json:"external_id,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
	Platforms          []string            `json:"x_mitre_platforms,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON decodes the modeled fields and keeps the raw payload.
func (o *Object) UnmarshalJSON(data []byte) error {
	type alias Object
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*o = Object(a)
	o.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original payload when present, so objects round
// trip through the filter without dropping unmodeled fields.
func (o Object) MarshalJSON() ([]byte, error) {
	if o.raw != nil {
		return o.raw, nil
	}
	type alias Object
	return json.Marshal(alias(o))
}

// IsEntity reports whether the object becomes a graph node.
func (o *Object) IsEntity() bool {
	switch o.Type {
	case TypeAttackPattern, TypeMalware, TypeTool:
		return true
	}
	return false
}

// IdentityKey returns the stable key used to deduplicate and reference the
// object in the graph: id, else external id, else "unknown".
func (o *Object) IdentityKey() string {
	if o.ID != "" {
		return o.ID
	}
	if o.ExternalID != "" {
		return o.ExternalID
	}
	for _, ref := range o.ExternalReferences {
		if ref.ExternalID != "" {
			return ref.ExternalID
		}
	}
	return UnknownKey
}

// Label returns the display label for the object: name, else id, else "Unnamed".
func (o *Object) Label() string {
	if o.Name != "" {
		return o.Name
	}
	if o.ID != "" {
		return o.ID
	}
	return "Unnamed"
}
