package chatservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwkoh/maeul-market/internal/chat"
)

// Rooms is the storage surface the service needs. *chatrepo.Repo satisfies it;
// tests swap in nothing - they run against the real repo on sqlite.
type Rooms interface {
	FindRoomByPostAndMembers(ctx context.Context, postID, userID1, userID2 int64) (int64, bool, error)
	CreateRoomWithMembers(ctx context.Context, postID int64, userIDs ...int64) (int64, error)
	RoomExists(ctx context.Context, roomID int64) (bool, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	MemberUserIDs(ctx context.Context, roomID int64) ([]int64, error)
	RemoveMember(ctx context.Context, roomID, userID int64) error
	RoomsForUser(ctx context.Context, userID int64) ([]chat.RoomSummary, error)
	RoomsForPostOwner(ctx context.Context, postID, ownerID int64) ([]chat.PostRoomSummary, error)
	PostRoomByID(ctx context.Context, roomID, callerID int64) (chat.PostRoomSummary, error)
	RoomDetail(ctx context.Context, roomID, userID int64) (chat.RoomDetail, error)
	Messages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]chat.Message, error)
	InsertMessage(ctx context.Context, roomID, userID int64, content, messageType string) (int64, error)
	MessageByID(ctx context.Context, messageID int64) (chat.Message, error)
	MarkRoomRead(ctx context.Context, roomID, userID int64) (int64, error)
	CountRoomsWithNews(ctx context.Context, userID int64) (int64, error)
}

// PostOwners resolves the seller behind a listing.
type PostOwners interface {
	OwnerID(ctx context.Context, postID int64) (int64, bool, error)
}

// Notifier pushes live events after a write commits. The websocket hub
// implements it; delivery is best effort and never fails the operation.
type Notifier interface {
	NewMessage(roomID int64, msg chat.Message)
	ChatListUpdated(userIDs ...int64)
}

type Service struct {
	rooms    Rooms
	posts    PostOwners
	notifier Notifier
}

func New(rooms Rooms, posts PostOwners, notifier Notifier) *Service {
	return &Service{rooms: rooms, posts: posts, notifier: notifier}
}

// GetOrCreateRoom returns the one room for (post, caller, seller), creating it
// on first contact. Repeated calls with the same pair are idempotent.
func (s *Service) GetOrCreateRoom(ctx context.Context, postID, callerID int64) (int64, bool, error) {
	const op = "chat.service.GetOrCreateRoom"

	ownerID, ok, err := s.posts.OwnerID(ctx, postID)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return 0, false, chat.ErrPostNotFound
	}
	if ownerID == callerID {
		return 0, false, chat.ErrOwnPost
	}

	roomID, found, err := s.rooms.FindRoomByPostAndMembers(ctx, postID, callerID, ownerID)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}
	if found {
		return roomID, false, nil
	}

	roomID, err = s.rooms.CreateRoomWithMembers(ctx, postID, callerID, ownerID)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return roomID, true, nil
}

func (s *Service) ListRooms(ctx context.Context, userID int64) ([]chat.RoomSummary, error) {
	return s.rooms.RoomsForUser(ctx, userID)
}

// ListRoomsForPost shows the seller every conversation on their listing and a
// buyer only their own (empty list when they never opened one).
func (s *Service) ListRoomsForPost(ctx context.Context, postID, callerID int64) ([]chat.PostRoomSummary, error) {
	const op = "chat.service.ListRoomsForPost"

	ownerID, ok, err := s.posts.OwnerID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, chat.ErrPostNotFound
	}

	if ownerID == callerID {
		return s.rooms.RoomsForPostOwner(ctx, postID, ownerID)
	}

	roomID, found, err := s.rooms.FindRoomByPostAndMembers(ctx, postID, callerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return []chat.PostRoomSummary{}, nil
	}

	summary, err := s.rooms.PostRoomByID(ctx, roomID, callerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return []chat.PostRoomSummary{summary}, nil
}

func (s *Service) RoomDetail(ctx context.Context, roomID, callerID int64) (chat.RoomDetail, error) {
	const op = "chat.service.RoomDetail"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return chat.RoomDetail{}, err
	}

	detail, err := s.rooms.RoomDetail(ctx, roomID, callerID)
	if err != nil {
		return chat.RoomDetail{}, fmt.Errorf("%s: %w", op, err)
	}

	return detail, nil
}

// Messages returns one page of history ascending by id. limit is clamped to
// [1, MessagesMaxLimit], zero meaning the default page size; beforeID zero
// means the most recent page.
func (s *Service) Messages(ctx context.Context, roomID, callerID int64, limit int, beforeID int64) ([]chat.Message, error) {
	const op = "chat.service.Messages"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = chat.MessagesDefaultLimit
	}
	if limit > chat.MessagesMaxLimit {
		limit = chat.MessagesMaxLimit
	}

	msgs, err := s.rooms.Messages(ctx, roomID, limit, beforeID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return msgs, nil
}

// SendMessage appends to the room log and fans the stored row out to the room
// topic plus a chat-list nudge to every member.
func (s *Service) SendMessage(ctx context.Context, roomID, callerID int64, content, messageType string) (chat.Message, error) {
	const op = "chat.service.SendMessage"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return chat.Message{}, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return chat.Message{}, chat.ErrEmptyContent
	}

	return s.appendMessage(ctx, op, roomID, callerID, content, chat.NormalizeType(messageType))
}

// CreateAppointment stores a structured appointment message. Only the listing
// owner may do this; a plain member gets ErrNotPostOwner, not ErrNotMember.
func (s *Service) CreateAppointment(ctx context.Context, roomID, callerID int64, appt chat.Appointment) (chat.Message, error) {
	const op = "chat.service.CreateAppointment"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return chat.Message{}, err
	}

	appt.Date = strings.TrimSpace(appt.Date)
	appt.Time = strings.TrimSpace(appt.Time)
	appt.Place = strings.TrimSpace(appt.Place)
	if appt.Date == "" || appt.Time == "" || appt.Place == "" {
		return chat.Message{}, chat.ErrInvalidAppointment
	}

	detail, err := s.rooms.RoomDetail(ctx, roomID, callerID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: %w", op, err)
	}
	if detail.PostOwnerID != callerID {
		return chat.Message{}, chat.ErrNotPostOwner
	}

	content, err := appt.Encode()
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: encode: %w", op, err)
	}

	return s.appendMessage(ctx, op, roomID, callerID, content, chat.TypeAppointment)
}

func (s *Service) appendMessage(ctx context.Context, op string, roomID, callerID int64, content, messageType string) (chat.Message, error) {
	id, err := s.rooms.InsertMessage(ctx, roomID, callerID, content, messageType)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	msg, err := s.rooms.MessageByID(ctx, id)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	s.notifier.NewMessage(roomID, msg)
	if memberIDs, err := s.rooms.MemberUserIDs(ctx, roomID); err == nil {
		s.notifier.ChatListUpdated(memberIDs...)
	}

	return msg, nil
}

// MarkRoomRead moves the caller's watermark to the newest message in the room
// and returns it. Only the caller's own chat list is nudged.
func (s *Service) MarkRoomRead(ctx context.Context, roomID, callerID int64) (int64, error) {
	const op = "chat.service.MarkRoomRead"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return 0, err
	}

	watermark, err := s.rooms.MarkRoomRead(ctx, roomID, callerID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.notifier.ChatListUpdated(callerID)

	return watermark, nil
}

// LeaveRoom drops only the caller's membership. The counterpart is not
// notified and keeps the room with its full history.
func (s *Service) LeaveRoom(ctx context.Context, roomID, callerID int64) error {
	const op = "chat.service.LeaveRoom"

	if err := s.requireMember(ctx, roomID, callerID); err != nil {
		return err
	}

	if err := s.rooms.RemoveMember(ctx, roomID, callerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.notifier.ChatListUpdated(callerID)

	return nil
}

// CountRoomsWithNews backs the chat tab badge: rooms whose newest message is
// from the counterpart and unread by the caller.
func (s *Service) CountRoomsWithNews(ctx context.Context, userID int64) (int64, error) {
	return s.rooms.CountRoomsWithNews(ctx, userID)
}

// IsMember is the admission check the websocket layer runs before letting a
// connection join a room topic.
func (s *Service) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	return s.rooms.IsMember(ctx, roomID, userID)
}

// requireMember distinguishes a missing room from a room the caller cannot
// see: ErrRoomNotFound for the former, ErrNotMember for the latter.
func (s *Service) requireMember(ctx context.Context, roomID, callerID int64) error {
	const op = "chat.service.requireMember"

	member, err := s.rooms.IsMember(ctx, roomID, callerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if member {
		return nil
	}

	exists, err := s.rooms.RoomExists(ctx, roomID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return chat.ErrRoomNotFound
	}

	return chat.ErrNotMember
}
