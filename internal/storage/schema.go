package storage

const schemaSQL = `
-- One row per finished crawl; times are unix milliseconds
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY NOT NULL,
    base_url TEXT NOT NULL,
    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    max_depth INTEGER NOT NULL,
    total_pages INTEGER NOT NULL,
    total_links INTEGER NOT NULL,
    broken_links INTEGER NOT NULL,
    redirects INTEGER NOT NULL,
    external_links INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_base_url ON runs(base_url, started_at);

-- found_on holds the JSON array of referring pages
CREATE TABLE IF NOT EXISTS broken_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    status INTEGER NOT NULL,
    found_on TEXT NOT NULL DEFAULT '[]',
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_broken_run ON broken_links(run_id, position);
CREATE INDEX IF NOT EXISTS idx_broken_url ON broken_links(url);

CREATE TABLE IF NOT EXISTS redirects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    target TEXT NOT NULL,
    found_on TEXT NOT NULL DEFAULT '[]',
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_redirects_run ON redirects(run_id, position);

-- Only the external links kept in the report (top by referrer count)
CREATE TABLE IF NOT EXISTS external_links (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    url TEXT NOT NULL,
    count INTEGER NOT NULL,
    UNIQUE(run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_external_run ON external_links(run_id, position);
`
