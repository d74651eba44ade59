package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE pipelines (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				graph JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_pipelines_created_at ON pipelines(created_at);
		`,
		2: `
			CREATE TABLE pipeline_components (
				pipeline_id VARCHAR(255) NOT NULL REFERENCES pipelines(id) ON DELETE CASCADE,
				node_id VARCHAR(255) NOT NULL,
				gem VARCHAR(255) NOT NULL,
				ports JSONB NOT NULL DEFAULT '{}',
				properties JSONB NOT NULL DEFAULT '{}',
				fingerprint VARCHAR(32) NOT NULL,
				PRIMARY KEY (pipeline_id, node_id)
			);

			CREATE INDEX idx_pipeline_components_gem ON pipeline_components(gem);
		`,
		3: `
			ALTER TABLE pipelines ADD COLUMN version BIGINT NOT NULL DEFAULT 1;
		`,
	}
}
