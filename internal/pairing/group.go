// Package pairing clusters a catalog snapshot into duplicate-candidate groups
// and enumerates every pair within those groups in a fixed order.
package pairing

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/eargollo/dupview/internal/catalog"
)

// copySuffix matches the " (N)" that file managers and cameras append to copies.
var copySuffix = regexp.MustCompile(`^(.*?) \([0-9]+\)$`)

// NormalizeKey derives the grouping key for a file name: the stem without
// its extension, lower-cased, with one trailing " (N)" removed.
//
//	"IMG_0001 (1).JPG" -> "img_0001"
func NormalizeKey(name string) string {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if m := copySuffix.FindStringSubmatch(stem); m != nil {
		stem = m[1]
	}
	return strings.ToLower(stem)
}

// Group is a set of records sharing a normalized key. Members keep scan order.
type Group struct {
	Key     string
	Members []catalog.FileRecord
}

// GroupRecords buckets records by normalized key. Groups come out in order of
// first occurrence and only groups with at least two members are kept.
// Callers pass the records of a single folder, which scopes grouping to it.
func GroupRecords(records []catalog.FileRecord) []Group {
	var groups []Group
	pos := make(map[string]int)
	for _, rec := range records {
		key := NormalizeKey(rec.Name)
		i, ok := pos[key]
		if !ok {
			i = len(groups)
			pos[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Members = append(groups[i].Members, rec)
	}

	kept := groups[:0]
	for _, g := range groups {
		if len(g.Members) >= 2 {
			kept = append(kept, g)
		}
	}
	return kept
}
