package mailbox

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// NoSubject is shown for messages without a subject.
const NoSubject = "(No subject)"

// RelativeTime renders t relative to now, e.g. "5 minutes ago".
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Recently"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// FullTime renders t as an absolute local time.
func FullTime(t time.Time) string {
	if t.IsZero() {
		return "Date unknown"
	}
	return t.Local().Format("Jan 2, 2006, 3:04:05 PM")
}

// SubjectOrPlaceholder returns subject or NoSubject when it is blank.
func SubjectOrPlaceholder(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return NoSubject
	}
	return subject
}

// SenderInitial returns the upper-cased first letter of the sender, or "?".
func SenderInitial(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return "?"
	}
	r, _ := utf8.DecodeRuneInString(from)
	return string(unicode.ToUpper(r))
}

// ReplySubject returns the subject of a reply to subject.
func ReplySubject(subject string) string {
	return "Re: " + subject
}
