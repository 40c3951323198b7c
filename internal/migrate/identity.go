package migrate

import (
	"fmt"
	"strings"
)

// MarkerToken is the link text of the provenance marker.
const MarkerToken = "GitLab"

// headerDateLayout renders dates as "March 04 2021".
const headerDateLayout = "January 02 2006"

// IdentityMap maps source sequence numbers to destination numbers within a pass.
type IdentityMap map[int]int

// Add records src -> dest unless src is already mapped. It reports whether the
// entry was added.
func (m IdentityMap) Add(src, dest int) bool {
	if _, ok := m[src]; ok {
		return false
	}
	m[src] = dest
	return true
}

// Lookup returns the destination number for src.
func (m IdentityMap) Lookup(src int) (int, bool) {
	dest, ok := m[src]
	return dest, ok
}

// Marker returns the provenance marker for a source web URL.
func Marker(webURL string) string {
	return "[" + MarkerToken + "](" + webURL + ")"
}

// Header returns the provenance header that opens every migrated body.
func Header(item SourceItem) string {
	return fmt.Sprintf("Originally filed %s by %s on %s\n\n",
		item.CreatedAt.Format(headerDateLayout), item.AuthorName, Marker(item.WebURL))
}

// FindExisting returns the first destination item whose body carries the
// provenance marker of item, or nil.
func FindExisting(item SourceItem, dest []DestinationItem) *DestinationItem {
	marker := Marker(item.WebURL)
	for i := range dest {
		if dest[i].Body != "" && strings.Contains(dest[i].Body, marker) {
			return &dest[i]
		}
	}
	return nil
}

// buildBody renders the full destination body for a source item.
func buildBody(item SourceItem, rw *Rewriter, ids IdentityMap) string {
	header := Header(item)
	if item.Description == "" {
		return header
	}
	return header + rw.Rewrite(item.Description, ids)
}
