package ws

import (
	"strconv"

	"github.com/jwkoh/maeul-market/internal/chat"
)

// Topic names. A connection is auto-subscribed to its own user topic; room
// and community-post topics are joined explicitly by the client.
func RoomTopic(roomID int64) string {
	return "room:" + strconv.FormatInt(roomID, 10)
}

func UserTopic(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10)
}

func CommunityPostTopic(postID int64) string {
	return "community_post:" + strconv.FormatInt(postID, 10)
}

const (
	EventNewMessage      = "new_message"
	EventChatListUpdated = "chat_list_updated"
	EventSendResult      = "send_result"
	EventHello           = "hello"
)

type ServerEvent struct {
	Type    string        `json:"type"`
	RoomID  int64         `json:"roomId,omitempty"`
	Message *chat.Message `json:"message,omitempty"`
}

// SendResult acknowledges a send_message frame back to its sender only. On
// failure Message carries the machine-readable reason.
type SendResult struct {
	Type      string `json:"type"`
	OK        bool   `json:"ok"`
	MessageID int64  `json:"messageId,omitempty"`
	Message   string `json:"message,omitempty"`
}
