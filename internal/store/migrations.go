package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create documents with FTS5",
		SQL: `
			CREATE TABLE documents (
				id          TEXT PRIMARY KEY,
				category    TEXT NOT NULL DEFAULT 'general',
				question    TEXT NOT NULL,
				answer      TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_documents_category ON documents (category);

			CREATE VIRTUAL TABLE documents_fts USING fts5(
				question,
				answer,
				content='documents',
				content_rowid='rowid'
			);

			CREATE TRIGGER documents_ai AFTER INSERT ON documents BEGIN
				INSERT INTO documents_fts(rowid, question, answer)
				VALUES (new.rowid, new.question, new.answer);
			END;

			CREATE TRIGGER documents_ad AFTER DELETE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, question, answer)
				VALUES ('delete', old.rowid, old.question, old.answer);
			END;

			CREATE TRIGGER documents_au AFTER UPDATE ON documents BEGIN
				INSERT INTO documents_fts(documents_fts, rowid, question, answer)
				VALUES ('delete', old.rowid, old.question, old.answer);
				INSERT INTO documents_fts(rowid, question, answer)
				VALUES (new.rowid, new.question, new.answer);
			END;
		`,
	},
	{
		Version: 2,
		Name:    "create appointments",
		SQL: `
			CREATE TABLE appointments (
				id            TEXT PRIMARY KEY,
				caller_name   TEXT NOT NULL,
				phone         TEXT NOT NULL DEFAULT '',
				date          TEXT NOT NULL,
				time          TEXT NOT NULL,
				reason        TEXT NOT NULL DEFAULT '',
				status        TEXT NOT NULL DEFAULT 'confirmed',
				session_id    TEXT NOT NULL DEFAULT '',
				created_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_appointments_date ON appointments (date, time);
			CREATE INDEX idx_appointments_phone ON appointments (phone);
		`,
	},
	{
		Version: 3,
		Name:    "create escalation tickets",
		SQL: `
			CREATE TABLE tickets (
				id          TEXT PRIMARY KEY,
				caller_name TEXT NOT NULL DEFAULT '',
				phone       TEXT NOT NULL DEFAULT '',
				reason      TEXT NOT NULL,
				transcript  TEXT NOT NULL DEFAULT '',
				status      TEXT NOT NULL DEFAULT 'open',
				session_id  TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_tickets_status ON tickets (status);
		`,
	},
}
