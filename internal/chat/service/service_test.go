package chatservice

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/jwkoh/maeul-market/internal/chat"
	chatrepo "github.com/jwkoh/maeul-market/internal/chat/repo"
	"github.com/jwkoh/maeul-market/internal/posts"
	"github.com/jwkoh/maeul-market/internal/storage/sqlite"
)

// recordingNotifier captures fanout calls instead of pushing to a socket.
type recordingNotifier struct {
	newMessages []chat.Message
	listUpdates [][]int64
}

func (n *recordingNotifier) NewMessage(roomID int64, msg chat.Message) {
	n.newMessages = append(n.newMessages, msg)
}

func (n *recordingNotifier) ChatListUpdated(userIDs ...int64) {
	n.listUpdates = append(n.listUpdates, userIDs)
}

func newTestService(t *testing.T) (*Service, *recordingNotifier, *sqlx.DB) {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "service_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	notifier := &recordingNotifier{}
	svc := New(chatrepo.New(context.Background(), db), posts.NewRepo(db), notifier)
	return svc, notifier, db
}

func createUser(t *testing.T, db *sqlx.DB, nickname string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(`INSERT INTO users (nickname) VALUES (?) RETURNING id`, nickname).Scan(&id)
	require.NoError(t, err)
	return id
}

func createPost(t *testing.T, db *sqlx.DB, userID int64, title string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRow(
		`INSERT INTO posts (user_id, title) VALUES (?, ?) RETURNING id`,
		userID, title,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestService_GetOrCreateRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "bike")

	roomID, created, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)
	req.True(created)
	req.Positive(roomID)

	// Second call lands in the same room.
	again, created, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)
	req.False(created)
	req.Equal(roomID, again)

	_, _, err = svc.GetOrCreateRoom(ctx, post+1000, buyer)
	req.ErrorIs(err, chat.ErrPostNotFound)

	_, _, err = svc.GetOrCreateRoom(ctx, post, seller)
	req.ErrorIs(err, chat.ErrOwnPost)
}

func TestService_SendMessage(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, notifier, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	outsider := createUser(t, db, "outsider")
	post := createPost(t, db, seller, "speaker")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	_, err = svc.SendMessage(ctx, roomID, outsider, "let me in", chat.TypeText)
	req.ErrorIs(err, chat.ErrNotMember)

	_, err = svc.SendMessage(ctx, roomID+1000, buyer, "void", chat.TypeText)
	req.ErrorIs(err, chat.ErrRoomNotFound)

	_, err = svc.SendMessage(ctx, roomID, buyer, "   ", chat.TypeText)
	req.ErrorIs(err, chat.ErrEmptyContent)
	req.Empty(notifier.newMessages)

	msg, err := svc.SendMessage(ctx, roomID, buyer, "  does it work?  ", "bogus-type")
	req.NoError(err)
	req.Equal("does it work?", msg.Content)
	req.Equal(chat.TypeText, msg.MessageType)
	req.Equal("buyer", msg.Nickname)

	req.Len(notifier.newMessages, 1)
	req.Equal(msg.ID, notifier.newMessages[0].ID)
	req.Len(notifier.listUpdates, 1)
	req.ElementsMatch([]int64{buyer, seller}, notifier.listUpdates[0])
}

func TestService_Messages_LimitClamp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "fan")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	for i := 0; i < chat.MessagesDefaultLimit+10; i++ {
		_, err := svc.SendMessage(ctx, roomID, buyer, "m", chat.TypeText)
		req.NoError(err)
	}

	msgs, err := svc.Messages(ctx, roomID, buyer, 0, 0)
	req.NoError(err)
	req.Len(msgs, chat.MessagesDefaultLimit)

	msgs, err = svc.Messages(ctx, roomID, buyer, chat.MessagesMaxLimit+500, 0)
	req.NoError(err)
	req.Len(msgs, chat.MessagesDefaultLimit+10)

	_, err = svc.Messages(ctx, roomID, seller+buyer+1000, 10, 0)
	req.Error(err)
}

func TestService_ListRoomsForPost(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyerA := createUser(t, db, "buyer-a")
	buyerB := createUser(t, db, "buyer-b")
	post := createPost(t, db, seller, "guitar")

	roomA, _, err := svc.GetOrCreateRoom(ctx, post, buyerA)
	req.NoError(err)
	_, _, err = svc.GetOrCreateRoom(ctx, post, buyerB)
	req.NoError(err)

	// Owner sees every conversation.
	rooms, err := svc.ListRoomsForPost(ctx, post, seller)
	req.NoError(err)
	req.Len(rooms, 2)

	// A buyer sees only their own.
	rooms, err = svc.ListRoomsForPost(ctx, post, buyerA)
	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(roomA, rooms[0].RoomID)
	req.Equal("seller", rooms[0].OtherNickname)

	// A stranger sees nothing, not an error.
	stranger := createUser(t, db, "stranger")
	rooms, err = svc.ListRoomsForPost(ctx, post, stranger)
	req.NoError(err)
	req.Empty(rooms)

	_, err = svc.ListRoomsForPost(ctx, post+1000, seller)
	req.ErrorIs(err, chat.ErrPostNotFound)
}

func TestService_CreateAppointment(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, notifier, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "camera")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	appt := chat.Appointment{Date: "2026-09-01", Time: "18:30", Place: "station exit 3"}

	// A plain member is rejected with the owner-specific error.
	_, err = svc.CreateAppointment(ctx, roomID, buyer, appt)
	req.ErrorIs(err, chat.ErrNotPostOwner)

	_, err = svc.CreateAppointment(ctx, roomID, seller, chat.Appointment{Date: "2026-09-01"})
	req.ErrorIs(err, chat.ErrInvalidAppointment)

	msg, err := svc.CreateAppointment(ctx, roomID, seller, appt)
	req.NoError(err)
	req.Equal(chat.TypeAppointment, msg.MessageType)

	decoded, err := chat.DecodeAppointment(msg.Content)
	req.NoError(err)
	req.Equal(appt, decoded)

	req.Len(notifier.newMessages, 1)
}

func TestService_MarkRoomRead(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, notifier, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "printer")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	msg, err := svc.SendMessage(ctx, roomID, buyer, "ping", chat.TypeText)
	req.NoError(err)

	wm, err := svc.MarkRoomRead(ctx, roomID, seller)
	req.NoError(err)
	req.Equal(msg.ID, wm)

	// The read receipt nudges only the reader's own list.
	last := notifier.listUpdates[len(notifier.listUpdates)-1]
	req.Equal([]int64{seller}, last)

	outsider := createUser(t, db, "outsider")
	_, err = svc.MarkRoomRead(ctx, roomID, outsider)
	req.ErrorIs(err, chat.ErrNotMember)

	_, err = svc.MarkRoomRead(ctx, roomID+1000, seller)
	req.ErrorIs(err, chat.ErrRoomNotFound)
}

func TestService_LeaveRoom(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, notifier, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "heater")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)
	_, err = svc.SendMessage(ctx, roomID, buyer, "bye", chat.TypeText)
	req.NoError(err)

	updatesBefore := len(notifier.listUpdates)
	req.NoError(svc.LeaveRoom(ctx, roomID, buyer))

	// Only the leaver is nudged; the counterpart hears nothing.
	req.Len(notifier.listUpdates, updatesBefore+1)
	req.Equal([]int64{buyer}, notifier.listUpdates[updatesBefore])

	req.ErrorIs(svc.LeaveRoom(ctx, roomID, buyer), chat.ErrNotMember)

	// The counterpart still reads the full history.
	msgs, err := svc.Messages(ctx, roomID, seller, 0, 0)
	req.NoError(err)
	req.Len(msgs, 1)
}

func TestService_RoomDetail_ForbiddenVsMissing(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	outsider := createUser(t, db, "outsider")
	post := createPost(t, db, seller, "drill")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	detail, err := svc.RoomDetail(ctx, roomID, buyer)
	req.NoError(err)
	req.False(detail.IsPostAuthor)

	detail, err = svc.RoomDetail(ctx, roomID, seller)
	req.NoError(err)
	req.True(detail.IsPostAuthor)

	_, err = svc.RoomDetail(ctx, roomID, outsider)
	req.ErrorIs(err, chat.ErrNotMember)

	_, err = svc.RoomDetail(ctx, roomID+1000, outsider)
	req.ErrorIs(err, chat.ErrRoomNotFound)
}

func TestService_CountRoomsWithNews(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, _, db := newTestService(t)

	seller := createUser(t, db, "seller")
	buyer := createUser(t, db, "buyer")
	post := createPost(t, db, seller, "tent")

	roomID, _, err := svc.GetOrCreateRoom(ctx, post, buyer)
	req.NoError(err)

	count, err := svc.CountRoomsWithNews(ctx, seller)
	req.NoError(err)
	req.Zero(count)

	_, err = svc.SendMessage(ctx, roomID, buyer, "hello", chat.TypeText)
	req.NoError(err)

	count, err = svc.CountRoomsWithNews(ctx, seller)
	req.NoError(err)
	req.EqualValues(1, count)

	_, err = svc.MarkRoomRead(ctx, roomID, seller)
	req.NoError(err)

	count, err = svc.CountRoomsWithNews(ctx, seller)
	req.NoError(err)
	req.Zero(count)
}
