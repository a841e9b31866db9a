package plugin

import (
	"encoding/json"
	"strconv"
)

// flexInt decodes a JSON number or numeric string into an int64, matching
// §6's "typed as integer or integer-string, both accepted".
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// Sender is the opportunistic name-cache input an event may carry.
type Sender struct {
	UserID   flexInt `json:"user_id"`
	Nickname string  `json:"nickname"`
	Card     string  `json:"card"`
}

// File describes a file notice's attachment.
type File struct {
	Name  string  `json:"name"`
	Size  int64   `json:"size"`
	URL   string  `json:"url"`
	ID    string  `json:"id"`
	BusID flexInt `json:"busid"`
}

// Event is the decoded inbound payload posted to the ingestion endpoint.
type Event struct {
	PostType string `json:"post_type"`

	UserID  flexInt `json:"user_id"`
	GroupID flexInt `json:"group_id"`

	RawMessage string `json:"raw_message"`
	MessageID  flexInt `json:"message_id"`
	Sender     Sender  `json:"sender"`

	RequestType string `json:"request_type"`
	Comment     string `json:"comment"`
	Flag        string `json:"flag"`
	SubType     string `json:"sub_type"`

	NoticeType string `json:"notice_type"`
	File       File   `json:"file"`
}

// Context returns the conversation a message/notice/request belongs to: a
// positive user id for a private conversation, or the negated group id for
// a group conversation.
func (e *Event) Context() int64 {
	if e.GroupID != 0 {
		return -int64(e.GroupID)
	}
	return int64(e.UserID)
}

// SenderID returns the originating user id, independent of context sign.
func (e *Event) SenderID() int64 {
	return int64(e.UserID)
}

const (
	PostTypeMessage = "message"
	PostTypeRequest = "request"
	PostTypeMeta    = "meta_event"
	PostTypeNotice  = "notice"

	RequestTypeFriend = "friend"
	RequestTypeGroup  = "group"

	NoticeFriendRecall = "friend_recall"
	NoticeGroupRecall  = "group_recall"
	NoticeOfflineFile  = "offline_file"
	NoticeGroupUpload  = "group_upload"
)

// Decode parses a raw JSON event body.
func Decode(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
