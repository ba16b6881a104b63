package bundle

import "sort"

// AssignStyles decides which chunk aggregates each style file. A file
// imported by several entries belongs to the first entry in name order.
// With allChunks, style files not reached from any entry are appended to
// defaultChunk in path order; partials and files listed in reached (pulled
// in by another style file) are left to their importer.
func AssignStyles(imported map[string][]string, discovered []string, reached map[string]bool, defaultChunk string, allChunks bool) map[string][]string {
	names := make([]string, 0, len(imported))
	for name := range imported {
		names = append(names, name)
	}
	sort.Strings(names)

	claimed := make(map[string]bool)
	chunks := make(map[string][]string)
	for _, name := range names {
		for _, rel := range imported[name] {
			if claimed[rel] {
				continue
			}
			claimed[rel] = true
			chunks[name] = append(chunks[name], rel)
		}
	}

	if allChunks && defaultChunk != "" {
		orphans := make([]string, 0)
		for _, rel := range discovered {
			if claimed[rel] || reached[rel] || isPartial(rel) {
				continue
			}
			claimed[rel] = true
			orphans = append(orphans, rel)
		}
		sort.Strings(orphans)
		chunks[defaultChunk] = append(chunks[defaultChunk], orphans...)
	}

	for name, members := range chunks {
		if len(members) == 0 {
			delete(chunks, name)
		}
	}
	return chunks
}
