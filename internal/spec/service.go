package spec

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ServiceNameFromPath derives a service name from a document file name:
// "CityService.openapi.json" becomes "city". URLs use their last path segment.
func ServiceNameFromPath(p string) string {
	base := filepath.Base(p)
	if u, err := url.Parse(p); err == nil && u.Scheme != "" && u.Host != "" {
		base = path.Base(u.Path)
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSuffix(name, ".openapi")
	name = strings.TrimSuffix(name, ".swagger")
	name = strings.TrimSuffix(name, "Service")
	return strings.ToLower(name)
}
