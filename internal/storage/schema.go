package storage

// schema is applied on connect; every statement is idempotent
const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id           BIGSERIAL PRIMARY KEY,
	round_id     BIGINT      NOT NULL,
	address      TEXT        NOT NULL,
	decision     TEXT        NOT NULL,
	tx_count     BIGINT      NOT NULL,
	programs     INTEGER     NOT NULL,
	interactors  INTEGER     NOT NULL,
	score        JSONB,
	detail       TEXT        NOT NULL DEFAULT '',
	evaluated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_address ON evaluations (address);
CREATE INDEX IF NOT EXISTS idx_evaluations_round ON evaluations (round_id);

CREATE TABLE IF NOT EXISTS grants (
	tx_hash     TEXT PRIMARY KEY,
	grant_id    BIGINT      NOT NULL,
	round_id    BIGINT      NOT NULL,
	recipient   TEXT        NOT NULL,
	amount      NUMERIC     NOT NULL,
	amount_wei  NUMERIC     NOT NULL,
	reason_hash TEXT        NOT NULL,
	block       BIGINT      NOT NULL,
	score       JSONB       NOT NULL,
	resolved    BOOLEAN     NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grants_recipient ON grants (recipient);
`
