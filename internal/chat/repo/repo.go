package chatrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwkoh/maeul-market/internal/chat"
)

// Repo owns the chat_rooms, chat_room_members and chat_messages tables.
// Queries are written with `?` placeholders and rebound per driver, so the
// same code runs on postgres and on the sqlite backend used by tests.
type Repo struct {
	db *sqlx.DB

	// hasTypeColumn caches the startup probe for chat_messages.message_type.
	// When the column is absent, reads report "text" and writes drop the type.
	hasTypeColumn bool
}

func New(ctx context.Context, db *sqlx.DB) *Repo {
	r := &Repo{db: db}
	r.hasTypeColumn = r.probeTypeColumn(ctx)
	return r
}

func (r *Repo) probeTypeColumn(ctx context.Context) bool {
	rows, err := r.db.QueryContext(ctx, `SELECT message_type FROM chat_messages WHERE 1 = 0`)
	if err != nil {
		return false
	}
	_ = rows.Close()
	return true
}

func (r *Repo) FindRoomByPostAndMembers(ctx context.Context, postID, userID1, userID2 int64) (int64, bool, error) {
	const op = "chat.repo.FindRoomByPostAndMembers"

	var roomID int64
	err := r.db.GetContext(ctx, &roomID, r.db.Rebind(`
		SELECT r.id
		FROM chat_rooms r
		JOIN chat_room_members m1 ON m1.room_id = r.id AND m1.user_id = ?
		JOIN chat_room_members m2 ON m2.room_id = r.id AND m2.user_id = ?
		WHERE r.post_id = ?
		LIMIT 1
	`), userID1, userID2, postID)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return roomID, true, nil
}

// CreateRoomWithMembers inserts the room and both membership rows in one
// transaction; a room must never exist with a partial member set.
func (r *Repo) CreateRoomWithMembers(ctx context.Context, postID int64, userIDs ...int64) (int64, error) {
	const op = "chat.repo.CreateRoomWithMembers"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var roomID int64
	err = tx.QueryRowContext(
		ctx,
		r.db.Rebind(`INSERT INTO chat_rooms (post_id) VALUES (?) RETURNING id`),
		postID,
	).Scan(&roomID)
	if err != nil {
		return 0, fmt.Errorf("%s: insert room: %w", op, err)
	}

	for _, userID := range userIDs {
		if _, err := tx.ExecContext(
			ctx,
			r.db.Rebind(`INSERT INTO chat_room_members (room_id, user_id) VALUES (?, ?)`),
			roomID, userID,
		); err != nil {
			return 0, fmt.Errorf("%s: insert member %d: %w", op, userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return roomID, nil
}

func (r *Repo) RoomExists(ctx context.Context, roomID int64) (bool, error) {
	const op = "chat.repo.RoomExists"

	var one int
	err := r.db.GetContext(ctx, &one, r.db.Rebind(`
		SELECT 1 FROM chat_rooms WHERE id = ? LIMIT 1
	`), roomID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (r *Repo) IsMember(ctx context.Context, roomID, userID int64) (bool, error) {
	const op = "chat.repo.IsMember"

	var one int
	err := r.db.GetContext(ctx, &one, r.db.Rebind(`
		SELECT 1 FROM chat_room_members WHERE room_id = ? AND user_id = ? LIMIT 1
	`), roomID, userID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}

func (r *Repo) MemberUserIDs(ctx context.Context, roomID int64) ([]int64, error) {
	const op = "chat.repo.MemberUserIDs"

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(`
		SELECT user_id FROM chat_room_members WHERE room_id = ? ORDER BY user_id
	`), roomID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ids, nil
}

// RemoveMember deletes only the given member's row; the room, the message log
// and the other member's row stay untouched.
func (r *Repo) RemoveMember(ctx context.Context, roomID, userID int64) error {
	const op = "chat.repo.RemoveMember"

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		DELETE FROM chat_room_members WHERE room_id = ? AND user_id = ?
	`), roomID, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

type roomSummaryRow struct {
	RoomID        int64          `db:"room_id"`
	PostID        int64          `db:"post_id"`
	PostTitle     string         `db:"post_title"`
	PostImageURLs sql.NullString `db:"post_image_urls"`
	PostPrice     sql.NullInt64  `db:"post_price"`
	PostStatus    string         `db:"post_status"`
	OtherUserID   int64          `db:"other_user_id"`
	OtherNickname string         `db:"other_nickname"`
	LastContent   sql.NullString `db:"last_content"`
	LastAt        sql.NullTime   `db:"last_at"`
	UnreadCount   int64          `db:"unread_count"`
}

// RoomsForUser returns every room the user belongs to, newest conversation
// first, rooms without messages last (room id descending among themselves).
func (r *Repo) RoomsForUser(ctx context.Context, userID int64) ([]chat.RoomSummary, error) {
	const op = "chat.repo.RoomsForUser"

	var rows []roomSummaryRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT r.id          AS room_id,
		       r.post_id     AS post_id,
		       p.title       AS post_title,
		       p.image_urls  AS post_image_urls,
		       p.price       AS post_price,
		       p.status      AS post_status,
		       u.id          AS other_user_id,
		       u.nickname    AS other_nickname,
		       lm.content    AS last_content,
		       lm.created_at AS last_at,
		       (SELECT COUNT(*)
		        FROM chat_messages m
		        WHERE m.room_id = r.id
		          AND m.user_id <> me.user_id
		          AND m.id > COALESCE(me.last_read_message_id, 0)) AS unread_count
		FROM chat_rooms r
		JOIN chat_room_members me ON me.room_id = r.id AND me.user_id = ?
		JOIN chat_room_members other ON other.room_id = r.id AND other.user_id <> ?
		JOIN users u ON u.id = other.user_id
		JOIN posts p ON p.id = r.post_id
		LEFT JOIN chat_messages lm
		       ON lm.room_id = r.id
		      AND lm.id = (SELECT MAX(id) FROM chat_messages m2 WHERE m2.room_id = r.id)
		ORDER BY CASE WHEN lm.id IS NULL THEN 1 ELSE 0 END,
		         lm.created_at DESC,
		         r.id DESC
	`), userID, userID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	summaries := make([]chat.RoomSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, chat.RoomSummary{
			RoomID:        row.RoomID,
			PostID:        row.PostID,
			PostTitle:     row.PostTitle,
			PostImageURL:  firstImageURL(row.PostImageURLs),
			PostPrice:     nullInt(row.PostPrice),
			PostStatus:    row.PostStatus,
			OtherUserID:   row.OtherUserID,
			OtherNickname: row.OtherNickname,
			LastMessage:   nullString(row.LastContent),
			LastAt:        nullTime(row.LastAt),
			UnreadCount:   row.UnreadCount,
		})
	}

	return summaries, nil
}

type postRoomRow struct {
	RoomID        int64          `db:"room_id"`
	OtherUserID   int64          `db:"other_user_id"`
	OtherNickname string         `db:"other_nickname"`
	LastContent   sql.NullString `db:"last_content"`
	LastAt        sql.NullTime   `db:"last_at"`
}

// RoomsForPostOwner lists every conversation on a listing, counterpart being
// whichever member is not the owner.
func (r *Repo) RoomsForPostOwner(ctx context.Context, postID, ownerID int64) ([]chat.PostRoomSummary, error) {
	const op = "chat.repo.RoomsForPostOwner"

	var rows []postRoomRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT r.id          AS room_id,
		       u.id          AS other_user_id,
		       u.nickname    AS other_nickname,
		       lm.content    AS last_content,
		       lm.created_at AS last_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id AND m.user_id <> ?
		JOIN users u ON u.id = m.user_id
		LEFT JOIN chat_messages lm
		       ON lm.room_id = r.id
		      AND lm.id = (SELECT MAX(id) FROM chat_messages m2 WHERE m2.room_id = r.id)
		WHERE r.post_id = ?
		ORDER BY CASE WHEN lm.id IS NULL THEN 1 ELSE 0 END,
		         lm.created_at DESC,
		         r.id DESC
	`), ownerID, postID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return postRoomSummaries(rows), nil
}

// PostRoomByID returns the single post-room summary for one room, counterpart
// being the member other than callerID.
func (r *Repo) PostRoomByID(ctx context.Context, roomID, callerID int64) (chat.PostRoomSummary, error) {
	const op = "chat.repo.PostRoomByID"

	var row postRoomRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT r.id          AS room_id,
		       u.id          AS other_user_id,
		       u.nickname    AS other_nickname,
		       lm.content    AS last_content,
		       lm.created_at AS last_at
		FROM chat_rooms r
		JOIN chat_room_members m ON m.room_id = r.id AND m.user_id <> ?
		JOIN users u ON u.id = m.user_id
		LEFT JOIN chat_messages lm
		       ON lm.room_id = r.id
		      AND lm.id = (SELECT MAX(id) FROM chat_messages m2 WHERE m2.room_id = r.id)
		WHERE r.id = ?
		LIMIT 1
	`), callerID, roomID)

	if errors.Is(err, sql.ErrNoRows) {
		return chat.PostRoomSummary{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.PostRoomSummary{}, fmt.Errorf("%s: %w", op, err)
	}

	return postRoomSummaries([]postRoomRow{row})[0], nil
}

type roomDetailRow struct {
	RoomID        int64          `db:"room_id"`
	PostID        int64          `db:"post_id"`
	PostTitle     string         `db:"post_title"`
	PostImageURLs sql.NullString `db:"post_image_urls"`
	PostPrice     sql.NullInt64  `db:"post_price"`
	PostStatus    string         `db:"post_status"`
	PostOwnerID   int64          `db:"post_owner_id"`
	OtherUserID   int64          `db:"other_user_id"`
	OtherNickname string         `db:"other_nickname"`
}

// RoomDetail resolves a room the caller is a member of; chat.ErrRoomNotFound
// when the id matches nothing (the membership check lives in the service).
func (r *Repo) RoomDetail(ctx context.Context, roomID, userID int64) (chat.RoomDetail, error) {
	const op = "chat.repo.RoomDetail"

	var row roomDetailRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT r.id         AS room_id,
		       r.post_id    AS post_id,
		       p.title      AS post_title,
		       p.image_urls AS post_image_urls,
		       p.price      AS post_price,
		       p.status     AS post_status,
		       p.user_id    AS post_owner_id,
		       u.id         AS other_user_id,
		       u.nickname   AS other_nickname
		FROM chat_rooms r
		JOIN chat_room_members other ON other.room_id = r.id AND other.user_id <> ?
		JOIN users u ON u.id = other.user_id
		JOIN posts p ON p.id = r.post_id
		WHERE r.id = ?
		LIMIT 1
	`), userID, roomID)

	if errors.Is(err, sql.ErrNoRows) {
		return chat.RoomDetail{}, chat.ErrRoomNotFound
	}
	if err != nil {
		return chat.RoomDetail{}, fmt.Errorf("%s: %w", op, err)
	}

	return chat.RoomDetail{
		RoomID:        row.RoomID,
		PostID:        row.PostID,
		PostTitle:     row.PostTitle,
		PostImageURL:  firstImageURL(row.PostImageURLs),
		PostPrice:     nullInt(row.PostPrice),
		PostStatus:    row.PostStatus,
		PostOwnerID:   row.PostOwnerID,
		OtherUserID:   row.OtherUserID,
		OtherNickname: row.OtherNickname,
		IsPostAuthor:  row.PostOwnerID == userID,
	}, nil
}

// Messages returns up to limit messages with id < beforeID (beforeID 0 means
// "most recent page"), in ascending id order. The fetch runs descending with
// the limit applied, then reverses, so the page is the latest N before the
// cursor and stays stable under concurrent inserts.
func (r *Repo) Messages(ctx context.Context, roomID int64, limit int, beforeID int64) ([]chat.Message, error) {
	const op = "chat.repo.Messages"

	q := `
		SELECT m.id, m.user_id, u.nickname, m.content, ` + r.typeSelect() + `, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?`
	args := []interface{}{roomID}

	if beforeID > 0 {
		q += ` AND m.id < ?`
		args = append(args, beforeID)
	}

	q += ` ORDER BY m.id DESC LIMIT ?`
	args = append(args, limit)

	var msgs []chat.Message
	if err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}

func (r *Repo) typeSelect() string {
	if r.hasTypeColumn {
		return `m.message_type AS message_type`
	}
	return `'text' AS message_type`
}

func (r *Repo) InsertMessage(ctx context.Context, roomID, userID int64, content, messageType string) (int64, error) {
	const op = "chat.repo.InsertMessage"

	q := `INSERT INTO chat_messages (room_id, user_id, message_type, content) VALUES (?, ?, ?, ?) RETURNING id`
	args := []interface{}{roomID, userID, messageType, content}
	if !r.hasTypeColumn {
		q = `INSERT INTO chat_messages (room_id, user_id, content) VALUES (?, ?, ?) RETURNING id`
		args = []interface{}{roomID, userID, content}
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(q), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *Repo) MessageByID(ctx context.Context, messageID int64) (chat.Message, error) {
	const op = "chat.repo.MessageByID"

	var msg chat.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(`
		SELECT m.id, m.user_id, u.nickname, m.content, `+r.typeSelect()+`, m.created_at
		FROM chat_messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = ?
		LIMIT 1
	`), messageID)
	if err != nil {
		return chat.Message{}, fmt.Errorf("%s: %w", op, err)
	}

	return msg, nil
}

// MarkRoomRead moves the caller's watermark to the room's current max message
// id. The watermark never moves backwards; marking an empty room read leaves
// it at zero. Returns the stored watermark.
func (r *Repo) MarkRoomRead(ctx context.Context, roomID, userID int64) (int64, error) {
	const op = "chat.repo.MarkRoomRead"

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxID int64
	if err := tx.GetContext(ctx, &maxID, r.db.Rebind(`
		SELECT COALESCE(MAX(id), 0) FROM chat_messages WHERE room_id = ?
	`), roomID); err != nil {
		return 0, fmt.Errorf("%s: select max: %w", op, err)
	}

	res, err := tx.ExecContext(ctx, r.db.Rebind(`
		UPDATE chat_room_members
		SET last_read_message_id = CASE
			WHEN COALESCE(last_read_message_id, 0) < ? THEN ?
			ELSE last_read_message_id
		END
		WHERE room_id = ? AND user_id = ?
	`), maxID, maxID, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: update: %w", op, err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return 0, fmt.Errorf("%s: member not found (room_id=%d user_id=%d)", op, roomID, userID)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", op, err)
	}

	return maxID, nil
}

// CountRoomsWithNews counts rooms whose latest message was sent by the
// counterpart and sits above the caller's watermark. Feeds the badge on the
// chat tab; recomputed on every call.
func (r *Repo) CountRoomsWithNews(ctx context.Context, userID int64) (int64, error) {
	const op = "chat.repo.CountRoomsWithNews"

	var count int64
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(`
		SELECT COUNT(*)
		FROM chat_rooms r
		JOIN chat_room_members me ON me.room_id = r.id AND me.user_id = ?
		JOIN chat_messages lm
		  ON lm.room_id = r.id
		 AND lm.id = (SELECT MAX(id) FROM chat_messages m2 WHERE m2.room_id = r.id)
		WHERE lm.user_id <> me.user_id
		  AND lm.id > COALESCE(me.last_read_message_id, 0)
	`), userID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

func postRoomSummaries(rows []postRoomRow) []chat.PostRoomSummary {
	out := make([]chat.PostRoomSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, chat.PostRoomSummary{
			RoomID:        row.RoomID,
			OtherUserID:   row.OtherUserID,
			OtherNickname: row.OtherNickname,
			LastMessage:   nullString(row.LastContent),
			LastAt:        nullTime(row.LastAt),
		})
	}
	return out
}

// firstImageURL extracts the first entry of the JSON-encoded image list
// stored on a post; malformed payloads degrade to no image.
func firstImageURL(raw sql.NullString) *string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw.String), &urls); err != nil {
		return nil
	}
	if len(urls) == 0 || urls[0] == "" {
		return nil
	}
	return &urls[0]
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
