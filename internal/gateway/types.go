package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// PageSize is the fixed number of messages requested per listing.
const PageSize = 50

// ID is a provider identifier. The provider sends ids as JSON strings or
// numbers; both decode without loss of precision.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	*id = ID(data)
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Timestamp is a point in time encoded by the provider as milliseconds since
// the epoch, either as a JSON string or number. Anything else decodes to the
// zero time.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	ts.Time = time.UnixMilli(ms)
	return nil
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + strconv.FormatInt(ts.UnixMilli(), 10) + `"`), nil
}

// Credentials identify the caller towards the provider.
type Credentials struct {
	AccessToken string
	AccountID   string
}

// Account is a provider mail account.
type Account struct {
	AccountID           ID     `json:"accountId"`
	PrimaryEmailAddress string `json:"primaryEmailAddress"`
	DisplayName         string `json:"displayName,omitempty"`
}

// FolderType classifies a folder.
type FolderType string

const (
	FolderInbox  FolderType = "Inbox"
	FolderSent   FolderType = "Sent"
	FolderDrafts FolderType = "Drafts"
	FolderTrash  FolderType = "Trash"
	FolderOther  FolderType = "Other"
)

// ParseFolderType maps a provider folder type case-insensitively. Unknown
// values map to FolderOther.
func ParseFolderType(s string) FolderType {
	for _, ft := range []FolderType{FolderInbox, FolderSent, FolderDrafts, FolderTrash} {
		if strings.EqualFold(s, string(ft)) {
			return ft
		}
	}
	return FolderOther
}

func (ft *FolderType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*ft = FolderOther
		return nil
	}
	*ft = ParseFolderType(s)
	return nil
}

// Folder is a mail folder.
type Folder struct {
	FolderID   ID         `json:"folderId"`
	FolderName string     `json:"folderName"`
	FolderType FolderType `json:"folderType"`
}

// MessageSummary is one entry of a message listing.
type MessageSummary struct {
	MessageID    ID        `json:"messageId"`
	FolderID     ID        `json:"folderId,omitempty"`
	Subject      string    `json:"subject"`
	FromAddress  string    `json:"fromAddress"`
	Summary      string    `json:"summary"`
	ReceivedTime Timestamp `json:"receivedTime"`
}

// MessageDetail is a message with its HTML content.
type MessageDetail struct {
	MessageSummary
	Content string `json:"content"`
}

// OutgoingMessage is a message to send.
type OutgoingMessage struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Subject     string `json:"subject"`
	Content     string `json:"content"`
}

// SentMessage is the provider acknowledgement of a send request. Acceptance
// does not imply delivery.
type SentMessage struct {
	MessageID ID     `json:"messageId,omitempty"`
	Subject   string `json:"subject,omitempty"`
	ToAddress string `json:"toAddress,omitempty"`
}

// Payload carries the provider response unchanged in Raw and its decoded
// data field in Data.
type Payload[T any] struct {
	Raw  json.RawMessage
	Data T
}
