package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE flow_versions (
				id TEXT PRIMARY KEY,
				flow_id TEXT NOT NULL,
				schema_version TEXT,
				state VARCHAR(16) NOT NULL CHECK (state IN ('DRAFT', 'LOCKED')),
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_flow_versions_flow_id ON flow_versions(flow_id, created_at);
		`,
		2: `
			-- JSON, not JSONB: scopes keep their recording order
			CREATE TABLE run_journals (
				run_id TEXT PRIMARY KEY,
				document JSON NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
