package chat

import "errors"

var (
	// ErrPostNotFound: the listing a room was requested for does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrOwnPost: a user tried to open a room on their own listing.
	ErrOwnPost = errors.New("cannot open a chat on your own post")

	// ErrRoomNotFound: the room id resolves to nothing.
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotMember: the caller is authenticated but not a member of the room.
	ErrNotMember = errors.New("not a member of this room")

	// ErrNotPostOwner: a member without the listing-owner role attempted an
	// owner-only action. Distinct from ErrNotMember on purpose.
	ErrNotPostOwner = errors.New("only the post owner can do this")

	// ErrEmptyContent: message content is empty after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrInvalidAppointment: date, time or place missing.
	ErrInvalidAppointment = errors.New("appointment needs date, time and place")
)
