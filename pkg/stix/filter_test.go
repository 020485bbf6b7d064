package stix

import (
	"testing"
)

func technique(name string, platforms ...string) Object {
	return Object{
		Type:      TypeAttackPattern,
		Name:      name,
		Platforms: platforms,
	}
}

func TestFilterPlatform(t *testing.T) {
	tests := []struct {
		name      string
		bundle    Bundle
		platform  string
		wantNames []string
	}{
		{
			name: "exact platform match",
			bundle: Bundle{Objects: []Object{
				technique("A", "Windows", "Linux"),
				technique("B", "macOS"),
			}},
			platform:  "linux",
			wantNames: []string{"A"},
		},
		{
			name: "containers alias covers runtimes",
			bundle: Bundle{Objects: []Object{
				technique("A", "Docker"),
				technique("B", "Kubernetes"),
				technique("C", "Windows"),
				technique("D", "Containers"),
			}},
			platform:  "containers",
			wantNames: []string{"A", "B", "D"},
		},
		{
			name: "target platform case insensitive",
			bundle: Bundle{Objects: []Object{
				technique("A", "podman"),
			}},
			platform:  "Containers",
			wantNames: []string{"A"},
		},
		{
			name: "non technique objects dropped",
			bundle: Bundle{Objects: []Object{
				technique("A", "Windows"),
				{Type: TypeMalware, Name: "M", Platforms: []string{"Windows"}},
				{Type: TypeRelationship, SourceRef: "a", TargetRef: "b"},
			}},
			platform:  "windows",
			wantNames: []string{"A"},
		},
		{
			name: "technique without platforms excluded",
			bundle: Bundle{Objects: []Object{
				technique("A"),
				technique("B", "Windows"),
			}},
			platform:  "windows",
			wantNames: []string{"B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FilterPlatform(&tt.bundle, tt.platform)
			if out == nil {
				t.Fatal("expected a filtered bundle, got nil")
			}
			got := make([]string, 0, len(out.Objects))
			for _, obj := range out.Objects {
				got = append(got, obj.Name)
			}
			if len(got) != len(tt.wantNames) {
				t.Fatalf("expected %v, got %v", tt.wantNames, got)
			}
			for i := range got {
				if got[i] != tt.wantNames[i] {
					t.Fatalf("expected %v, got %v", tt.wantNames, got)
				}
			}
		})
	}
}

func TestFilterPlatformNoMatch(t *testing.T) {
	bundle := Bundle{Objects: []Object{
		technique("A", "Windows"),
	}}
	if out := FilterPlatform(&bundle, "linux"); out != nil {
		t.Fatalf("expected nil, got %+v", out)
	}
}

func TestFilterPlatformDefaultsTopLevelFields(t *testing.T) {
	bundle := Bundle{Objects: []Object{
		technique("A", "Windows"),
	}}
	out := FilterPlatform(&bundle, "windows")
	if out == nil {
		t.Fatal("expected a filtered bundle, got nil")
	}
	if out.Type != "Unknown" || out.ID != "Unknown" || out.SpecVersion != "Unknown" {
		t.Fatalf("expected Unknown defaults, got type=%q id=%q spec_version=%q", out.Type, out.ID, out.SpecVersion)
	}

	withMeta := Bundle{
		Type:        "bundle",
		ID:          "bundle--1",
		SpecVersion: "2.0",
		Objects:     []Object{technique("A", "Windows")},
	}
	out = FilterPlatform(&withMeta, "windows")
	if out == nil {
		t.Fatal("expected a filtered bundle, got nil")
	}
	if out.Type != "bundle" || out.ID != "bundle--1" || out.SpecVersion != "2.0" {
		t.Fatalf("top-level fields not preserved: %+v", out)
	}
}
