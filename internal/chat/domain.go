package chat

import (
	"encoding/json"
	"time"
)

// Message types stored in chat_messages.message_type. Anything else is
// normalized to text before it reaches storage.
const (
	TypeText        = "text"
	TypeImage       = "image"
	TypeAppointment = "appointment"
)

const (
	// MessagesDefaultLimit and MessagesMaxLimit bound a single history page.
	MessagesDefaultLimit = 50
	MessagesMaxLimit     = 100
)

// NormalizeType maps an arbitrary client-supplied type to a storable one.
func NormalizeType(t string) string {
	switch t {
	case TypeImage, TypeAppointment:
		return t
	default:
		return TypeText
	}
}

// Message is one entry of a room's append-only log. ID defines the total
// order within a room; pagination and unread accounting compare IDs only.
type Message struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	Nickname    string    `json:"nickname" db:"nickname"`
	Content     string    `json:"content" db:"content"`
	MessageType string    `json:"messageType" db:"message_type"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// RoomSummary is one row of a user's chat list: the counterpart, a snapshot
// of the listing, the latest message and the unread count for the caller.
type RoomSummary struct {
	RoomID        int64      `json:"roomId"`
	PostID        int64      `json:"postId"`
	PostTitle     string     `json:"postTitle"`
	PostImageURL  *string    `json:"postImageUrl"`
	PostPrice     *int64     `json:"postPrice"`
	PostStatus    string     `json:"postStatus"`
	OtherUserID   int64      `json:"otherUserId"`
	OtherNickname string     `json:"otherNickname"`
	LastMessage   *string    `json:"lastMessage"`
	LastAt        *time.Time `json:"lastAt"`
	UnreadCount   int64      `json:"unreadCount"`
}

// PostRoomSummary is a room on one listing, as shown to the listing owner
// (all conversations) or to a buyer (their own conversation only).
type PostRoomSummary struct {
	RoomID        int64      `json:"roomId"`
	OtherUserID   int64      `json:"otherUserId"`
	OtherNickname string     `json:"otherNickname"`
	LastMessage   *string    `json:"lastMessage"`
	LastAt        *time.Time `json:"lastAt"`
}

type RoomDetail struct {
	RoomID        int64   `json:"roomId"`
	PostID        int64   `json:"postId"`
	PostTitle     string  `json:"postTitle"`
	PostImageURL  *string `json:"postImageUrl"`
	PostPrice     *int64  `json:"postPrice"`
	PostStatus    string  `json:"postStatus"`
	PostOwnerID   int64   `json:"-"`
	OtherUserID   int64   `json:"otherUserId"`
	OtherNickname string  `json:"otherNickname"`
	IsPostAuthor  bool    `json:"isPostAuthor"`
}

// Appointment is the structured payload serialized into an
// appointment-typed message's content.
type Appointment struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Place string `json:"place"`
}

func (a Appointment) Encode() (string, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func DecodeAppointment(content string) (Appointment, error) {
	var a Appointment
	if err := json.Unmarshal([]byte(content), &a); err != nil {
		return Appointment{}, err
	}
	return a, nil
}
