package stix

import (
	"strings"

	"raven/pkg/logger"
)

// platformAliases expands a target platform into the set of platform names
// that count as a match. ATT&CK data is inconsistent about container
// runtimes, so "containers" matches all of them.
var platformAliases = map[string][]string{
	"containers": {"container", "containers", "docker", "podman", "kubernetes"},
}

func normalizePlatform(platform string) string {
	return strings.ToLower(platform)
}

func expandedPlatforms(target string) []string {
	if aliases, ok := platformAliases[target]; ok {
		return aliases
	}
	return []string{target}
}

func matchesPlatform(obj *Object, target string) bool {
	if len(obj.Platforms) == 0 {
		logger.Debug("Technique excluded, no platforms listed", "name", obj.Label())
		return false
	}

	for _, expanded := range expandedPlatforms(normalizePlatform(target)) {
		for _, platform := range obj.Platforms {
			if normalizePlatform(platform) == normalizePlatform(expanded) {
				logger.Debug("Technique retained", "name", obj.Label(), "platform", expanded)
				return true
			}
		}
	}

	logger.Debug("Technique excluded, no platform match", "name", obj.Label())
	return false
}

// FilterPlatform returns a copy of the bundle containing only the
// attack-pattern objects whose platforms match the target platform.
// Top-level bundle fields are preserved, defaulting to "Unknown" when absent.
// Returns nil when no technique matches.
func FilterPlatform(bundle *Bundle, platform string) *Bundle {
	filtered := make([]Object, 0)
	for i := range bundle.Objects {
		obj := &bundle.Objects[i]
		if obj.Type == TypeAttackPattern && matchesPlatform(obj, platform) {
			filtered = append(filtered, *obj)
		}
	}

	if len(filtered) == 0 {
		logger.Warn("No relevant techniques found", "platform", platform)
		return nil
	}

	out := &Bundle{
		Type:        bundle.Type,
		ID:          bundle.ID,
		SpecVersion: bundle.SpecVersion,
		Objects:     filtered,
	}
	if out.Type == "" {
		out.Type = "Unknown"
	}
	if out.ID == "" {
		out.ID = "Unknown"
	}
	if out.SpecVersion == "" {
		out.SpecVersion = "Unknown"
	}
	return out
}
