package postgres

const (
	queryCreateRoom = `
		INSERT INTO rooms (name, host_id, current_video_url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	queryGetRoom = `
		SELECT id, name, host_id, current_video_url, is_playing, video_timestamp, created_at
		FROM rooms
		WHERE id = $1`

	queryListRooms = `
		SELECT id, name, host_id, current_video_url, is_playing, video_timestamp, created_at
		FROM rooms
		WHERE ($1::timestamptz IS NULL OR created_at < $1
		       OR (created_at = $1 AND id < $2))
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	queryUpdateRoomVideo = `
		UPDATE rooms
		SET current_video_url = COALESCE(NULLIF($2, ''), current_video_url),
		    is_playing = $3,
		    video_timestamp = $4
		WHERE id = $1`

	queryDeleteRoomMessages = `DELETE FROM messages WHERE room_id = $1`
	queryDeleteRoom         = `DELETE FROM rooms WHERE id = $1`

	queryCreateMessage = `
		INSERT INTO messages (room_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	queryListMessages = `
		SELECT m.id, m.room_id, m.user_id, m.content, m.created_at,
		       u.id, u.name, u.avatar_url, u.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.user_id
		WHERE m.room_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	queryGetUser = `
		SELECT id, name, avatar_url, created_at
		FROM users
		WHERE id = $1`

	queryUpsertUser = `
		INSERT INTO users (id, name, avatar_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, avatar_url = EXCLUDED.avatar_url, updated_at = now()
		RETURNING created_at`
)
