package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "Recently", RelativeTime(time.Time{}, now))
	assert.Equal(t, "5 minutes ago", RelativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "2 hours ago", RelativeTime(now.Add(-2*time.Hour), now))
}

func TestFullTime(t *testing.T) {
	assert.Equal(t, "Date unknown", FullTime(time.Time{}))
	assert.NotEqual(t, "Date unknown", FullTime(time.UnixMilli(1700000000000)))
}

func TestSubjectOrPlaceholder(t *testing.T) {
	assert.Equal(t, "(No subject)", SubjectOrPlaceholder(""))
	assert.Equal(t, "(No subject)", SubjectOrPlaceholder("  "))
	assert.Equal(t, "Hi", SubjectOrPlaceholder("Hi"))
}

func TestSenderInitial(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{"alice@example.com", "A"},
		{"  bob@example.com", "B"},
		{"émile@example.com", "É"},
		{"", "?"},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, SenderInitial(tt.from))
		})
	}
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Lunch?", ReplySubject("Lunch?"))
	assert.Equal(t, "Re: ", ReplySubject(""))
}
