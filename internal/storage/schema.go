package storage

// userSchema is applied to every per-user database, mirroring the
// inline-DDL-string idiom the knowledge store used for its own schema.
// Statements are all CREATE ... IF NOT EXISTS so opening an existing file is
// idempotent; there is no versioned migration table yet because the schema
// has never needed to change shape since the first release.
const userSchema = `
CREATE TABLE IF NOT EXISTS messages (
	user_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	thread_id TEXT NOT NULL,
	subject TEXT,
	sender TEXT,
	recipients_json TEXT,
	date DATETIME,
	year INTEGER,
	size_bytes INTEGER,
	has_attachments BOOLEAN,
	labels_json TEXT,
	snippet TEXT,
	archived BOOLEAN NOT NULL DEFAULT 0,
	archive_date DATETIME,
	archive_location TEXT,
	importance_score REAL,
	importance_level TEXT,
	matched_rule_ids_json TEXT,
	importance_confidence REAL,
	age_category TEXT,
	size_category TEXT,
	recency_score REAL,
	size_penalty REAL,
	gmail_category TEXT,
	spam_score REAL,
	promotional_score REAL,
	social_score REAL,
	indicators_json TEXT,
	analysis_version INTEGER NOT NULL DEFAULT 0,
	analysis_timestamp DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, message_id)
);
CREATE INDEX IF NOT EXISTS idx_messages_year ON messages(year);
CREATE INDEX IF NOT EXISTS idx_messages_importance ON messages(importance_level);
CREATE INDEX IF NOT EXISTS idx_messages_archived ON messages(archived);
CREATE INDEX IF NOT EXISTS idx_messages_gmail_category ON messages(gmail_category);

CREATE TABLE IF NOT EXISTS access_events (
	user_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	occurred_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_access_events_message ON access_events(user_id, message_id);

CREATE TABLE IF NOT EXISTS access_summaries (
	user_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	total_accesses INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME,
	search_appearances INTEGER NOT NULL DEFAULT 0,
	search_interactions INTEGER NOT NULL DEFAULT 0,
	access_score REAL NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, message_id)
);

CREATE TABLE IF NOT EXISTS cleanup_policies (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	priority INTEGER NOT NULL DEFAULT 0,
	criteria_json TEXT,
	action TEXT NOT NULL,
	method TEXT NOT NULL,
	safety_json TEXT,
	schedule_frequency TEXT,
	schedule_time TEXT,
	schedule_weekday INTEGER,
	schedule_day_of_month INTEGER,
	last_fired_at DATETIME,
	max_emails_per_run INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_policies_enabled ON cleanup_policies(enabled);

CREATE TABLE IF NOT EXISTS archive_rules (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	criteria_json TEXT,
	action TEXT NOT NULL,
	method TEXT NOT NULL,
	schedule_frequency TEXT,
	schedule_time TEXT,
	schedule_weekday INTEGER,
	schedule_day_of_month INTEGER,
	last_fired_at DATETIME,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS archive_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	rule_id TEXT,
	message_ids_json TEXT,
	method TEXT NOT NULL,
	location TEXT,
	size_bytes INTEGER,
	restorable BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archive_records_rule ON archive_records(rule_id);

CREATE TABLE IF NOT EXISTS saved_searches (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	criteria_json TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saved_searches_user ON saved_searches(user_id);

CREATE TABLE IF NOT EXISTS jobs (
	job_id INTEGER PRIMARY KEY,
	user_id TEXT,
	job_type TEXT NOT NULL,
	status TEXT NOT NULL,
	request_params BLOB,
	progress_processed INTEGER NOT NULL DEFAULT 0,
	progress_total INTEGER NOT NULL DEFAULT 0,
	results BLOB,
	error_details TEXT,
	created_at DATETIME NOT NULL,
	started_at DATETIME,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_jobs_user_status ON jobs(user_id, status);
CREATE INDEX IF NOT EXISTS idx_jobs_type_status ON jobs(job_type, status);

CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	file_path TEXT NOT NULL,
	original_filename TEXT,
	file_type TEXT,
	size_bytes INTEGER,
	sha256 TEXT,
	user_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_files_expires ON files(expires_at);

CREATE TABLE IF NOT EXISTS file_grants (
	file_id TEXT NOT NULL,
	principal TEXT NOT NULL,
	grant_kind TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (file_id, principal, grant_kind)
);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT,
	success BOOLEAN NOT NULL,
	reason TEXT,
	ip TEXT,
	agent TEXT,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_user_time ON audit_log(user_id, timestamp);
`

// systemSchema backs the single system.db shared by every user: the
// registry of users, their sessions, and audit entries not scoped to any
// one user's own database (login attempts, admin actions).
const systemSchema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	created DATETIME NOT NULL,
	expires DATETIME NOT NULL,
	last_accessed DATETIME NOT NULL,
	ip TEXT,
	agent TEXT,
	is_valid BOOLEAN NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	action TEXT NOT NULL,
	resource_type TEXT NOT NULL,
	resource_id TEXT,
	success BOOLEAN NOT NULL,
	reason TEXT,
	ip TEXT,
	agent TEXT,
	timestamp DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_system_audit_user_time ON audit_log(user_id, timestamp);
`

// legacyUserID is the synthetic owner assigned to rows that predate
// per-user attribution (a NULL user_id column from a pre-multi-user
// snapshot). It names the per-user database file Factory opens for an
// empty user id; no users-table row is created for it.
const legacyUserID = "legacy"
