package recorder

import (
	"path/filepath"
	"strings"
)

// ResolveDestination returns the output path for name. A ".wav" extension is
// appended if missing, and a bare file name is placed in dir.
func ResolveDestination(name, dir string) string {
	name = strings.TrimSpace(name)
	if !strings.HasSuffix(name, ".wav") {
		name += ".wav"
	}
	if dir != "" && !filepath.IsAbs(name) && filepath.Dir(name) == "." {
		return filepath.Join(dir, name)
	}
	return name
}

// cleanFileName sanitizes a recording name
// Allows: letters, numbers, spaces, hyphens, underscores and dots
func cleanFileName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == ' ' || r == '-' || r == '_' || r == '.' {
			result.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(result.String()), " ", "_")
}

// SafeName turns a user supplied recording name into a bare file name, for
// callers such as the HTTP server that must not write outside the output
// directory
func SafeName(name string) string {
	cleaned := strings.TrimLeft(cleanFileName(filepath.Base(name)), ".")
	if cleaned == "" || cleaned == ".wav" {
		return ""
	}
	return cleaned
}
