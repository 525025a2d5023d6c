package resolver

import (
	"os"
	"sort"
	"strings"
)

// pendingArtifacts lists violation artifacts in dir carrying the given
// prefix that are not yet in the processed set, oldest name first. The
// directory acts as the work queue between the video process and the
// plate pipeline.
func pendingArtifacts(dir, prefix string, processed map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(strings.ToLower(name), ".jpg") {
			continue
		}
		if processed[name] {
			continue
		}
		pending = append(pending, name)
	}
	sort.Strings(pending)
	return pending, nil
}
