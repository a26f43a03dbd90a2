package sqlstore

// Dialect selects the few statements that differ between MySQL and SQLite.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

var schema = map[Dialect][]string{
	SQLite: {
		`CREATE TABLE IF NOT EXISTS tenants (
  business_id   TEXT PRIMARY KEY,
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE TABLE IF NOT EXISTS reviews (
  id          INTEGER PRIMARY KEY AUTOINCREMENT,
  tenant_id   TEXT NOT NULL,
  review_text TEXT NOT NULL,
  rating      INTEGER,
  review_date TEXT,
  source      TEXT,
  source_id   TEXT,
  sentiment   REAL,
  cluster_id  INTEGER,
  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_tenant ON reviews (tenant_id, id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_reviews_source ON reviews (tenant_id, source_id)`,
	},
	MySQL: {
		`CREATE TABLE IF NOT EXISTS tenants (
  business_id   VARCHAR(128) NOT NULL PRIMARY KEY,
  password_hash VARCHAR(255) NOT NULL,
  created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		"CREATE TABLE IF NOT EXISTS reviews (\n" +
			"  id          BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,\n" +
			"  tenant_id   VARCHAR(128) NOT NULL,\n" +
			"  review_text TEXT NOT NULL,\n" +
			"  rating      TINYINT NULL,\n" +
			"  review_date VARCHAR(10) NULL,\n" +
			"  source      VARCHAR(32) NULL,\n" +
			"  source_id   VARCHAR(191) NULL,\n" +
			"  sentiment   DOUBLE NULL,\n" +
			"  cluster_id  INT NULL,\n" +
			"  created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,\n" +
			"  KEY idx_reviews_tenant (tenant_id, id),\n" +
			"  UNIQUE KEY uq_reviews_source (tenant_id, source_id)\n" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
	},
}

// Rows sharing a provider source_id are silently ignored on insert.
var insertReviewsPrefix = map[Dialect]string{
	MySQL:  "INSERT IGNORE INTO reviews\n  (tenant_id, review_text, rating, review_date, source, source_id)\nVALUES ",
	SQLite: "INSERT OR IGNORE INTO reviews\n  (tenant_id, review_text, rating, review_date, source, source_id)\nVALUES ",
}

// insertBatch bounds placeholders per statement (6 per row).
const insertBatch = 500

const updateScoreSQL = `
UPDATE reviews SET sentiment = ?, cluster_id = ?
WHERE id = ? AND tenant_id = ?
`

const deleteReviewsSQL = `DELETE FROM reviews WHERE tenant_id = ?`

// -----------------------------------------------------------------------------
// READ QUERIES: every one is filtered by tenant_id.
// -----------------------------------------------------------------------------

const selectReviewColumns = `
SELECT id, tenant_id, review_text, rating, review_date, source, source_id, sentiment, cluster_id
FROM reviews
WHERE tenant_id = ?
`

const getReviewsSQL = selectReviewColumns + `ORDER BY id ASC`

const listReviewsSQL = selectReviewColumns + `ORDER BY id DESC
LIMIT ?`

const insertTenantSQL = `INSERT INTO tenants (business_id, password_hash) VALUES (?, ?)`

const getTenantSQL = `SELECT business_id, password_hash FROM tenants WHERE business_id = ?`
