package store

// DDL for the two SQL backends. The schemas are kept in lockstep; only type
// spellings differ between dialects.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS enterprises (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
	display_name  TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS channels (
	id            TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
	name          TEXT NOT NULL,
	visibility    TEXT NOT NULL DEFAULT 'public',
	creator_id    TEXT NOT NULL,
	department_id TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (enterprise_id, name)
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id TEXT NOT NULL REFERENCES channels(id),
	account_id TEXT NOT NULL REFERENCES accounts(id),
	role       TEXT NOT NULL DEFAULT 'member',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (channel_id, account_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	channel_id     TEXT NOT NULL REFERENCES channels(id),
	sender_id      TEXT NOT NULL,
	content        TEXT NOT NULL,
	kind           TEXT NOT NULL DEFAULT 'text',
	attachment_ref TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_messages_channel_created
	ON messages (channel_id, created_at);

CREATE INDEX IF NOT EXISTS idx_members_account
	ON channel_members (account_id);
`

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS enterprises (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
	display_name  TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	created_at    TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
	id            TEXT PRIMARY KEY,
	enterprise_id TEXT NOT NULL REFERENCES enterprises(id),
	name          TEXT NOT NULL,
	visibility    TEXT NOT NULL DEFAULT 'public',
	creator_id    TEXT NOT NULL,
	department_id TEXT,
	created_at    TIMESTAMP NOT NULL,
	UNIQUE (enterprise_id, name)
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id TEXT NOT NULL REFERENCES channels(id),
	account_id TEXT NOT NULL REFERENCES accounts(id),
	role       TEXT NOT NULL DEFAULT 'member',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (channel_id, account_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id             TEXT PRIMARY KEY,
	channel_id     TEXT NOT NULL REFERENCES channels(id),
	sender_id      TEXT NOT NULL,
	content        TEXT NOT NULL,
	kind           TEXT NOT NULL DEFAULT 'text',
	attachment_ref TEXT,
	created_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_channel_created
	ON messages (channel_id, created_at);

CREATE INDEX IF NOT EXISTS idx_members_account
	ON channel_members (account_id);
`
