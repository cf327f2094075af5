package ws

import (
	"encoding/json"

	"github.com/jwkoh/maeul-market/internal/chat"
	"github.com/jwkoh/maeul-market/internal/ws/hub"
)

// Broadcaster adapts the hub to the chat service's notifier: stored rows go
// to the room topic, list nudges to each member's user topic.
type Broadcaster struct {
	hub *hub.Hub
}

func NewBroadcaster(h *hub.Hub) *Broadcaster {
	return &Broadcaster{hub: h}
}

func (b *Broadcaster) NewMessage(roomID int64, msg chat.Message) {
	payload, err := json.Marshal(ServerEvent{
		Type:    EventNewMessage,
		RoomID:  roomID,
		Message: &msg,
	})
	if err != nil {
		return
	}
	b.hub.Broadcast(RoomTopic(roomID), payload)
}

func (b *Broadcaster) ChatListUpdated(userIDs ...int64) {
	payload, err := json.Marshal(ServerEvent{Type: EventChatListUpdated})
	if err != nil {
		return
	}
	for _, userID := range userIDs {
		b.hub.Broadcast(UserTopic(userID), payload)
	}
}
