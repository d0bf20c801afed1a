package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
)

const ddl = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS collections (
    name      TEXT PRIMARY KEY,
    dimension INTEGER NOT NULL DEFAULT 0,
    model     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS documents (
    pk         INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
    id         TEXT NOT NULL,
    document   TEXT NOT NULL,
    metadata   TEXT NOT NULL DEFAULT '{}',
    UNIQUE (collection, id)
);
`

// vecTable is the vec0 table holding a collection's embeddings, keyed by
// documents.pk. Names are validated before they reach here.
func vecTable(collection string) string {
	return "vec_" + collection
}

func createVecTable(ctx context.Context, tx *sql.Tx, collection string, dim int) error {
	stmt := fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %q USING vec0(
    doc_pk INTEGER PRIMARY KEY,
    embedding float[%d] distance_metric=cosine
)`, vecTable(collection), dim)
	_, err := tx.ExecContext(ctx, stmt)
	return err
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
