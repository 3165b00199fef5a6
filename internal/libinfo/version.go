/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo provides information about the library build, e.g. its version for metrics labels.
package libinfo

import (
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/acronis/go-ttlcache"

// PrometheusLibVersionLabel is a constant label added to all cache metrics.
const PrometheusLibVersionLabel = "go_ttlcache_version"

const unknownVersion = "v0.0.0"

var moduleVersion = sync.OnceValue(func() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return unknownVersion
	}
	if v := extractLibVersion(buildInfo, moduleName); v != "" {
		return v
	}
	return unknownVersion
})

// GetLibVersion returns the version of the module the binary was built with or "v0.0.0" if it's unknown.
func GetLibVersion() string {
	return moduleVersion()
}

// AddPrometheusLibVersionLabel returns a copy of labels with the library version label added.
func AddPrometheusLibVersionLabel(labels prometheus.Labels) prometheus.Labels {
	res := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		res[k] = v
	}
	res[PrometheusLibVersionLabel] = GetLibVersion()
	return res
}

// extractLibVersion looks for modName (optionally with a "/vN" major version suffix)
// among dependencies and then in the main module.
func extractLibVersion(buildInfo *debug.BuildInfo, modName string) string {
	if buildInfo == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	for _, dep := range buildInfo.Deps {
		if re.MatchString(dep.Path) {
			if dep.Replace != nil && dep.Replace.Version != "" {
				return dep.Replace.Version
			}
			return dep.Version
		}
	}
	if re.MatchString(buildInfo.Main.Path) && buildInfo.Main.Version != "(devel)" {
		return buildInfo.Main.Version
	}
	return ""
}
