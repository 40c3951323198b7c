// Package timeparsing parses the loosely formatted dates trackers attach to
// milestones.
//
// Layers are tried in order:
//  1. Absolute (date-only, RFC3339 and a few common layouts)
//  2. Compact offset (+2w, -1d, 3m) relative to now
//  3. Natural language (next friday, in two weeks) via olebedev/when
//
// The GitLab API always reports due dates as YYYY-MM-DD, which the absolute
// layer resolves without looking at now. The relative layers only fire for
// hand-edited or imported values, and their result moves with now.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var absoluteLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"January 2 2006",
	"Jan 2 2006",
}

var offsetRe = regexp.MustCompile(`^([+-]?)(\d+)([dwmy])$`)

var nlp = newNLP()

func newNLP() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDueDate parses s. Date-only inputs resolve to midnight UTC of that day
// and ignore now; offsets and natural language are resolved against now.
func ParseDueDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, ok := parseAbsolute(s); ok {
		return t, nil
	}
	if t, ok := parseOffset(s, now); ok {
		return t, nil
	}
	r, err := nlp.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return r.Time, nil
}

func parseAbsolute(s string) (time.Time, bool) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseOffset(s string, now time.Time) (time.Time, bool) {
	m := offsetRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return time.Time{}, false
	}
	if m[1] == "-" {
		n = -n
	}
	switch m[3] {
	case "d":
		return now.AddDate(0, 0, n), true
	case "w":
		return now.AddDate(0, 0, 7*n), true
	case "m":
		return now.AddDate(0, n, 0), true
	default:
		return now.AddDate(n, 0, 0), true
	}
}
