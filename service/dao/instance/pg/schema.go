package pg

// Schema creates the tables used by the store.
const Schema = `
CREATE TABLE IF NOT EXISTS approval_instances (
	id TEXT PRIMARY KEY,
	template_id TEXT NOT NULL,
	status TEXT NOT NULL,
	version BIGINT NOT NULL,
	initiated_at TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_approval_instances_status ON approval_instances (status);

CREATE TABLE IF NOT EXISTS approval_step_actions (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL REFERENCES approval_instances (id),
	sequence BIGINT NOT NULL,
	data JSONB NOT NULL,
	CONSTRAINT approval_step_actions_sequence UNIQUE (instance_id, sequence)
);
`
