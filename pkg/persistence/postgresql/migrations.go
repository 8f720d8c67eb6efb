package postgresql

// migrations maps schema versions to the DDL that introduces them.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				metadata JSONB NOT NULL DEFAULT '{}',
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS executions (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				current_node_id TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX IF NOT EXISTS idx_executions_workflow_id
				ON executions (workflow_id);

			CREATE TABLE IF NOT EXISTS variables (
				execution_id TEXT NOT NULL,
				name TEXT NOT NULL,
				value TEXT NOT NULL DEFAULT '',
				kind TEXT NOT NULL,
				created_by_node TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (execution_id, name)
			);

			CREATE TABLE IF NOT EXISTS execution_history (
				id TEXT PRIMARY KEY,
				execution_id TEXT NOT NULL,
				node_id TEXT NOT NULL,
				node_type TEXT NOT NULL,
				node_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				duration DOUBLE PRECISION NOT NULL DEFAULT 0,
				output TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				variables_snapshot JSONB,
				detail JSONB
			);

			CREATE INDEX IF NOT EXISTS idx_execution_history_execution_id
				ON execution_history (execution_id);
		`,
	}
}
