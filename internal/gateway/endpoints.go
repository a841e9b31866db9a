package gateway

import "context"

// Friend is one entry of get_friend_list.
type Friend struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

// GetFriendList fetches the full friend list, used to populate the name
// cache for a positive context.
func (c *Client) GetFriendList(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	if err := c.Call(ctx, "get_friend_list", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// GroupInfo is the response of get_group_info.
type GroupInfo struct {
	GroupID   int64  `json:"group_id"`
	GroupName string `json:"group_name"`
}

// GetGroupInfo fetches display info for a group.
func (c *Client) GetGroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error) {
	var info GroupInfo
	if err := c.Call(ctx, "get_group_info", map[string]any{"group_id": groupID}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GroupMemberInfo is the response of get_group_member_info.
type GroupMemberInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

// DisplayName returns the member's group card if set, else their nickname.
func (m *GroupMemberInfo) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

// GetGroupMemberInfo fetches one member's card/nickname within a group.
func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (*GroupMemberInfo, error) {
	var info GroupMemberInfo
	if err := c.Call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Message is the response of get_msg, used on message-recall notices to
// fetch the original text before it disappeared.
type Message struct {
	MessageID int64  `json:"message_id"`
	Message   string `json:"message"`
}

// GetMsg fetches a previously sent message by id.
func (c *Client) GetMsg(ctx context.Context, messageID int64) (*Message, error) {
	var msg Message
	if err := c.Call(ctx, "get_msg", map[string]any{"message_id": messageID}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// GetGroupFileURL resolves a group file notice's id/busid pair to a
// downloadable URL.
func (c *Client) GetGroupFileURL(ctx context.Context, groupID int64, fileID string, busID int64) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.Call(ctx, "get_group_file_url", map[string]any{
		"group_id": groupID,
		"file_id":  fileID,
		"busid":    busID,
	}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// SetFriendAddRequest approves or rejects a pending friend request,
// identified by the opaque flag the original request event carried.
func (c *Client) SetFriendAddRequest(ctx context.Context, flag string, approve bool) error {
	return c.Call(ctx, "set_friend_add_request", map[string]any{
		"flag":    flag,
		"approve": approve,
	}, nil)
}

// SetGroupAddRequest approves or rejects a pending group join/invite
// request.
func (c *Client) SetGroupAddRequest(ctx context.Context, flag string, subType string, approve bool) error {
	return c.Call(ctx, "set_group_add_request", map[string]any{
		"flag":     flag,
		"sub_type": subType,
		"approve":  approve,
	}, nil)
}
