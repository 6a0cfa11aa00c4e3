package store

// schema is applied once at startup inside a single transaction. It mirrors
// the entities and constraints of spec.md §3: FK cascade Session→Run→
// Segment, UNIQUE(run_id, sequence) on segments, UNIQUE(course_id,
// sequence) on course_actions, UNIQUE name on courses.
const schema = `
CREATE TABLE IF NOT EXISTS teams (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	age_group  TEXT,
	sport      TEXT,
	coach      TEXT,
	active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS athletes (
	id        TEXT PRIMARY KEY,
	team_id   TEXT NOT NULL REFERENCES teams(id),
	name      TEXT NOT NULL,
	jersey    TEXT,
	age       INTEGER,
	position  TEXT,
	deleted   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS courses (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	description   TEXT,
	type          TEXT,
	mode          TEXT NOT NULL,
	category      TEXT,
	total_devices INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS course_actions (
	course_id             TEXT NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
	sequence              INTEGER NOT NULL,
	device_id             TEXT NOT NULL,
	action                TEXT,
	action_type           TEXT,
	audio_clip            TEXT,
	min_time              REAL NOT NULL DEFAULT 0,
	max_time              REAL NOT NULL DEFAULT 0,
	triggers_next_athlete INTEGER NOT NULL DEFAULT 0,
	marks_run_complete    INTEGER NOT NULL DEFAULT 0,
	group_identifier      TEXT,
	behavior_config       TEXT, -- JSON blob
	PRIMARY KEY (course_id, sequence)
);

CREATE TABLE IF NOT EXISTS sessions (
	id              TEXT PRIMARY KEY,
	team_id         TEXT NOT NULL REFERENCES teams(id),
	course_id       TEXT NOT NULL REFERENCES courses(id),
	status          TEXT NOT NULL,
	created_at      TEXT NOT NULL,
	started_at      TEXT,
	completed_at    TEXT,
	audio_voice     TEXT,
	pattern_config  TEXT, -- JSON blob, nullable override
	notes           TEXT
);

CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	athlete_id     TEXT NOT NULL,
	athlete_name   TEXT NOT NULL,
	queue_position INTEGER NOT NULL,
	status         TEXT NOT NULL,
	started_at     TEXT,
	timer_start_at TEXT,
	completed_at   TEXT,
	total_time     REAL,
	UNIQUE (session_id, queue_position)
);

CREATE TABLE IF NOT EXISTS segments (
	id               TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	sequence         INTEGER NOT NULL,
	from_device      TEXT NOT NULL,
	to_device        TEXT NOT NULL,
	expected_min_time REAL NOT NULL DEFAULT 0,
	expected_max_time REAL NOT NULL DEFAULT 999,
	actual_time      REAL,
	cumulative_time  REAL,
	touch_detected   INTEGER NOT NULL DEFAULT 0,
	touch_timestamp  TEXT,
	alert_raised     INTEGER NOT NULL DEFAULT 0,
	alert_type       TEXT,
	UNIQUE (run_id, sequence)
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT
);

CREATE TABLE IF NOT EXISTS operator_log (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	level     TEXT NOT NULL,
	source    TEXT NOT NULL,
	node_id   TEXT,
	message   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id);
CREATE INDEX IF NOT EXISTS idx_segments_run ON segments(run_id);
CREATE INDEX IF NOT EXISTS idx_course_actions_course ON course_actions(course_id);
`
