// Package template renders campaign message templates and measures SMS
// segment usage.
package template

import (
	"strings"
	"unicode/utf8"

	"github.com/WaltBox/compliance-notice-sub000/internal/recipients"
)

const (
	// singleSegmentLimit is the capacity of a one-part SMS.
	singleSegmentLimit = 160
	// multiSegmentLimit is the per-part capacity once the concatenation
	// header eats into each segment.
	multiSegmentLimit = 153
)

// Personalize substitutes the named placeholders with the recipient's
// values. Substitution is literal and case-sensitive; placeholders that are
// not recognized pass through untouched.
func Personalize(tmpl string, r recipients.Record) string {
	out := strings.ReplaceAll(tmpl, "{{firstName}}", r.FirstName)
	out = strings.ReplaceAll(out, "{{lastName}}", r.LastName)
	out = strings.ReplaceAll(out, "{{fullName}}", r.FullName())
	return out
}

type Measurement struct {
	CharCount           int  `json:"char_count"`
	SegmentCount        int  `json:"segment_count"`
	WithinSingleSegment bool `json:"within_single_segment"`
}

// Measure reports how many SMS segments a message occupies. Used for UI
// feedback only; long messages are still dispatched.
func Measure(message string) Measurement {
	count := utf8.RuneCountInString(message)
	segments := 1
	if count > singleSegmentLimit {
		segments = (count + multiSegmentLimit - 1) / multiSegmentLimit
	}
	return Measurement{
		CharCount:           count,
		SegmentCount:        segments,
		WithinSingleSegment: count <= singleSegmentLimit,
	}
}
