package view

import (
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// ShortHash abbreviates a hash to 10 characters.
func ShortHash(h object.Hash) string {
	return h.Short()
}

// AuthorName extracts the name from "Name <email>", or returns the input
// when it has no angle-bracketed address.
func AuthorName(sig string) string {
	sig = strings.TrimSpace(sig)
	if !strings.HasSuffix(sig, ">") {
		return sig
	}
	i := strings.Index(sig, "<")
	if i < 0 {
		return sig
	}
	return strings.TrimSpace(sig[:i])
}

// Subpath is one breadcrumb: the last component and the path up to it.
type Subpath struct {
	Name string
	Path string
}

// Subpaths lists every prefix of p: "a/b" gives {a, a} and {b, a/b}.
func Subpaths(p string) []Subpath {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]Subpath, len(parts))
	for i, part := range parts {
		out[i] = Subpath{Name: part, Path: strings.Join(parts[:i+1], "/")}
	}
	return out
}

type timeUnit struct {
	name      string
	seconds   int64
	breakHere bool
}

var timeUnits = []timeUnit{
	{"year", 365 * 24 * 60 * 60, false},
	{"month", 30 * 24 * 60 * 60, false},
	{"week", 7 * 24 * 60 * 60, false},
	{"day", 24 * 60 * 60, true},
	{"hour", 60 * 60, false},
	{"minute", 60, true},
	{"second", 1, false},
}

type timePart struct {
	n    int64
	unit string
}

// TimeSince describes how long before now when was, using at most two
// adjacent units: "3 days", "2 hours, 5 minutes", "1 year, 2 months".
// Anything under a second is "just now".
func TimeSince(when, now time.Time) string {
	delta := int64(now.Sub(when) / time.Second)
	var parts []timePart
	started := false
	for _, u := range timeUnits {
		if delta > u.seconds {
			n := delta / u.seconds
			delta -= n * u.seconds
			parts = append(parts, timePart{n, u.name})
			if u.breakHere {
				break
			}
			if !started {
				started = true
				continue
			}
		}
		if started {
			break
		}
	}

	if len(parts) > 1 {
		first := parts[0]
		switch {
		case first.unit == "month" && first.n == 1:
			parts = []timePart{{parts[1].n + 4, "week"}}
		case first.unit == "month":
			parts = parts[:1]
		case first.unit == "hour" && first.n > 5:
			parts = parts[:1]
		}
	}
	if len(parts) == 0 {
		return "just now"
	}

	out := make([]string, 0, 2)
	for _, p := range parts {
		if len(out) == 2 {
			break
		}
		s := fmt.Sprintf("%d %s", p.n, p.unit)
		if p.n != 1 {
			s += "s"
		}
		out = append(out, s)
	}
	return strings.Join(out, ", ")
}
