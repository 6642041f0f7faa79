package store

// Schema is the base questioner schema, applied on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS questions (
	token TEXT PRIMARY KEY,
	group_id BIGINT NOT NULL,
	topic_id INTEGER NOT NULL,
	duty_userid BIGINT,
	employee_userid BIGINT NOT NULL,
	question_text TEXT,
	start_time DATETIME,
	end_time DATETIME,
	clever_link TEXT,
	quality_employee BOOLEAN,
	quality_duty BOOLEAN,
	status TEXT,
	allow_return BOOLEAN NOT NULL DEFAULT 1,
	activity_status_enabled BOOLEAN
);

CREATE TABLE IF NOT EXISTS messages_pairs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_chat_id BIGINT NOT NULL,
	user_message_id BIGINT NOT NULL,
	topic_chat_id BIGINT NOT NULL,
	topic_message_id BIGINT NOT NULL,
	topic_thread_id BIGINT,
	question_token TEXT NOT NULL,
	direction TEXT NOT NULL DEFAULT 'user_to_topic',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id BIGINT UNIQUE NOT NULL,
	values_json TEXT NOT NULL DEFAULT '{}',
	last_update DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
