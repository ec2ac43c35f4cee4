package etag

import "strings"

type ReadDecision int

const (
	ServeFresh ReadDecision = iota
	ServeNotModified
)

type WriteDecision int

const (
	Proceed WriteDecision = iota
	Reject
)

// HandleConditionalRead evaluates If-None-Match. A match means the caller
// answers 304 with no body.
func HandleConditionalRead(ifNoneMatch, current string) ReadDecision {
	if Matches(ifNoneMatch, current) {
		return ServeNotModified
	}
	return ServeFresh
}

// ValidateConditionalWrite evaluates If-Match. An absent header proceeds:
// conditional writes are optional for clients.
func ValidateConditionalWrite(ifMatch, current string) WriteDecision {
	if strings.TrimSpace(ifMatch) == "" {
		return Proceed
	}
	if Matches(ifMatch, current) {
		return Proceed
	}
	return Reject
}

// Matches reports whether any tag in a header list equals current. Tags are
// opaque: only quotes and the weak prefix are stripped before comparing.
func Matches(header, current string) bool {
	header = strings.TrimSpace(header)
	if header == "" || current == "" {
		return false
	}

	want := normalize(current)
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if candidate != "" && strings.EqualFold(normalize(candidate), want) {
			return true
		}
	}
	return false
}

func normalize(tag string) string {
	tag = strings.TrimSpace(tag)
	if len(tag) >= 2 && (tag[:2] == "W/" || tag[:2] == "w/") {
		tag = tag[2:]
	}
	return strings.Trim(tag, `"`)
}
