package migrate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var crossRefPattern = regexp.MustCompile(`#(\d+)`)

// Rewriter converts source-platform markdown into destination-platform form.
// It rewrites user mentions, issue cross-references and root-relative upload
// links. A Rewriter performs no I/O and is safe to reuse across items.
type Rewriter struct {
	users        map[string]string
	mentions     *regexp.Regexp // nil when there are no user renames
	issueBaseURL string
	repoURL      string
}

// NewRewriter builds a Rewriter.
//
// issueBaseURL is the prefix for links to unmapped source issues
// (<issueBaseURL>/<n>). repoURL is the source project URL that root-relative
// uploads are resolved against.
//
// Handles are matched longest first in a single scan, so a handle that is a
// prefix of another never double-replaces and the result does not depend on
// the order of users. When the same source handle appears twice the first
// entry wins.
func NewRewriter(users []Rename, issueBaseURL, repoURL string) *Rewriter {
	r := &Rewriter{
		users:        make(map[string]string, len(users)),
		issueBaseURL: strings.TrimSuffix(issueBaseURL, "/"),
		repoURL:      strings.TrimSuffix(repoURL, "/"),
	}
	handles := make([]string, 0, len(users))
	for _, u := range users {
		if u.From == "" {
			continue
		}
		if _, dup := r.users[u.From]; dup {
			continue
		}
		r.users[u.From] = u.To
		handles = append(handles, u.From)
	}
	if len(handles) > 0 {
		sort.Slice(handles, func(i, j int) bool {
			if len(handles[i]) != len(handles[j]) {
				return len(handles[i]) > len(handles[j])
			}
			return handles[i] < handles[j]
		})
		quoted := make([]string, len(handles))
		for i, h := range handles {
			quoted[i] = regexp.QuoteMeta(h)
		}
		r.mentions = regexp.MustCompile(`@(` + strings.Join(quoted, "|") + `)`)
	}
	return r
}

// Rewrite applies mention, cross-reference and upload rewriting, in that order.
func (r *Rewriter) Rewrite(markdown string, ids IdentityMap) string {
	out := r.rewriteMentions(markdown)
	out = r.rewriteCrossRefs(out, ids)
	return r.rewriteUploads(out)
}

func (r *Rewriter) rewriteMentions(s string) string {
	if r.mentions == nil {
		return s
	}
	return r.mentions.ReplaceAllStringFunc(s, func(m string) string {
		return "@" + r.users[m[1:]]
	})
}

func (r *Rewriter) rewriteCrossRefs(s string, ids IdentityMap) string {
	return crossRefPattern.ReplaceAllStringFunc(s, func(m string) string {
		digits := m[1:]
		if n, err := strconv.Atoi(digits); err == nil {
			if dest, ok := ids.Lookup(n); ok {
				return "#" + strconv.Itoa(dest)
			}
		}
		return "[" + m + "](" + r.issueBaseURL + "/" + digits + ")"
	})
}

func (r *Rewriter) rewriteUploads(s string) string {
	return strings.ReplaceAll(s, "](/uploads", "]("+r.repoURL+"/uploads")
}

// Rewrite is a convenience wrapper for one-off rewriting.
func Rewrite(markdown string, users []Rename, ids IdentityMap, issueBaseURL, repoURL string) string {
	return NewRewriter(users, issueBaseURL, repoURL).Rewrite(markdown, ids)
}

// issueBaseURL derives the link prefix for source issues: the first issue's
// web URL without its final path segment, falling back to the project's
// issue listing.
func issueBaseURL(issues []SourceItem, project Project) string {
	if len(issues) > 0 {
		if i := strings.LastIndex(issues[0].WebURL, "/"); i > 0 {
			return issues[0].WebURL[:i]
		}
	}
	return strings.TrimSuffix(project.WebURL, "/") + "/-/issues"
}
