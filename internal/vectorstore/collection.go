package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// Metadata is the flat key/value map stored beside each document.
type Metadata map[string]any

// AddRequest carries parallel slices; IDs, Embeddings and Documents must
// have equal length. Metadatas may be nil.
type AddRequest struct {
	IDs        []string
	Embeddings [][]float32
	Documents  []string
	Metadatas  []Metadata
}

// QueryResult holds parallel slices ordered by ascending distance.
type QueryResult struct {
	IDs       []string
	Documents []string
	Metadatas []Metadata
	Distances []float64
}

// Len returns the number of hits.
func (r *QueryResult) Len() int { return len(r.IDs) }

// Collection is a named set of documents sharing one embedding dimension.
// The dimension is fixed by the first Add.
type Collection struct {
	db   *sql.DB
	name string
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Dimension returns the embedding length, or 0 before the first Add.
func (c *Collection) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := c.db.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", c.name).Scan(&dim)
	return dim, err
}

// Model returns the embedding model recorded for the collection, or "".
func (c *Collection) Model(ctx context.Context) (string, error) {
	var model string
	err := c.db.QueryRowContext(ctx, "SELECT model FROM collections WHERE name = ?", c.name).Scan(&model)
	return model, err
}

// SetModel records the embedding model the collection is built with.
func (c *Collection) SetModel(ctx context.Context, model string) error {
	_, err := c.db.ExecContext(ctx, "UPDATE collections SET model = ? WHERE name = ?", model, c.name)
	return err
}

// Add upserts documents by id. An existing id has its text, metadata and
// embedding replaced.
func (c *Collection) Add(ctx context.Context, req AddRequest) error {
	n := len(req.IDs)
	if len(req.Embeddings) != n || len(req.Documents) != n {
		return fmt.Errorf("add to %s: mismatched lengths (ids %d, embeddings %d, documents %d)",
			c.name, n, len(req.Embeddings), len(req.Documents))
	}
	if req.Metadatas != nil && len(req.Metadatas) != n {
		return fmt.Errorf("add to %s: mismatched lengths (ids %d, metadatas %d)", c.name, n, len(req.Metadatas))
	}
	if n == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dim, err := c.ensureDimension(ctx, tx, len(req.Embeddings[0]))
	if err != nil {
		return err
	}

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, id, document, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET document = excluded.document, metadata = excluded.metadata
		RETURNING pk`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	table := vecTable(c.name)
	delVec, err := tx.PrepareContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE doc_pk = ?", table))
	if err != nil {
		return err
	}
	defer delVec.Close()
	insVec, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %q (doc_pk, embedding) VALUES (?, ?)", table))
	if err != nil {
		return err
	}
	defer insVec.Close()

	for i, id := range req.IDs {
		if len(req.Embeddings[i]) != dim {
			return fmt.Errorf("add %s: %w (got %d, collection %s has %d)", id, ErrDimension, len(req.Embeddings[i]), c.name, dim)
		}
		var md Metadata
		if req.Metadatas != nil {
			md = req.Metadatas[i]
		}
		mdJSON, err := encodeMetadata(md)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", id, err)
		}

		var pk int64
		if err := upsert.QueryRowContext(ctx, c.name, id, req.Documents[i], mdJSON).Scan(&pk); err != nil {
			return fmt.Errorf("upsert document %s: %w", id, err)
		}
		blob, err := sqlite_vec.SerializeFloat32(req.Embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", id, err)
		}
		if _, err := delVec.ExecContext(ctx, pk); err != nil {
			return fmt.Errorf("replace embedding for %s: %w", id, err)
		}
		if _, err := insVec.ExecContext(ctx, pk, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// ensureDimension fixes the collection dimension on first use and creates
// the vec0 table.
func (c *Collection) ensureDimension(ctx context.Context, tx *sql.Tx, want int) (int, error) {
	var dim int
	if err := tx.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", c.name).Scan(&dim); err != nil {
		return 0, fmt.Errorf("read collection %s: %w", c.name, err)
	}
	if dim > 0 {
		return dim, nil
	}
	if want <= 0 {
		return 0, fmt.Errorf("add to %s: %w (empty embedding)", c.name, ErrDimension)
	}
	if err := createVecTable(ctx, tx, c.name, want); err != nil {
		return 0, fmt.Errorf("create vector table for %s: %w", c.name, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE collections SET dimension = ? WHERE name = ?", want, c.name); err != nil {
		return 0, err
	}
	return want, nil
}

// Query returns the k documents nearest to vector. A non-empty where
// restricts candidates to documents whose metadata values equal the given
// strings.
func (c *Collection) Query(ctx context.Context, vector []float32, k int, where map[string]string) (*QueryResult, error) {
	res := &QueryResult{}
	if k <= 0 {
		return res, nil
	}
	dim, err := c.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return res, nil
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("query %s: %w (got %d, want %d)", c.name, ErrDimension, len(vector), dim)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	var rows *sql.Rows
	table := vecTable(c.name)
	if len(where) == 0 {
		rows, err = c.db.QueryContext(ctx, fmt.Sprintf(`
			WITH knn AS (
				SELECT doc_pk, distance FROM %q
				WHERE embedding MATCH ? AND k = ?
			)
			SELECT d.id, d.document, d.metadata, knn.distance
			FROM knn JOIN documents d ON d.pk = knn.doc_pk
			ORDER BY knn.distance`, table), blob, k)
	} else {
		// vec0 KNN cannot filter on joined columns, so filtered queries
		// rank the matching subset exactly.
		filter, args := whereClause(where)
		args = append([]any{blob, c.name}, args...)
		args = append(args, k)
		rows, err = c.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT d.id, d.document, d.metadata, vec_distance_cosine(v.embedding, ?) AS distance
			FROM documents d JOIN %q v ON v.doc_pk = d.pk
			WHERE d.collection = ?%s
			ORDER BY distance
			LIMIT ?`, table, filter), args...)
	}
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c.name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, doc, mdJSON string
		var dist float64
		if err := rows.Scan(&id, &doc, &mdJSON, &dist); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(mdJSON)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, md)
		res.Distances = append(res.Distances, dist)
	}
	return res, rows.Err()
}

// Get returns the documents matching where, sorted by id. Distances is
// left nil.
func (c *Collection) Get(ctx context.Context, where map[string]string) (*QueryResult, error) {
	filter, args := whereClause(where)
	args = append([]any{c.name}, args...)
	rows, err := c.db.QueryContext(ctx,
		"SELECT d.id, d.document, d.metadata FROM documents d WHERE d.collection = ?"+filter+" ORDER BY d.id", args...)
	if err != nil {
		return nil, fmt.Errorf("get from %s: %w", c.name, err)
	}
	defer rows.Close()

	res := &QueryResult{}
	for rows.Next() {
		var id, doc, mdJSON string
		if err := rows.Scan(&id, &doc, &mdJSON); err != nil {
			return nil, err
		}
		md, err := decodeMetadata(mdJSON)
		if err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, doc)
		res.Metadatas = append(res.Metadatas, md)
	}
	return res, rows.Err()
}

// IDs lists document ids matching where, sorted.
func (c *Collection) IDs(ctx context.Context, where map[string]string) ([]string, error) {
	filter, args := whereClause(where)
	args = append([]any{c.name}, args...)
	rows, err := c.db.QueryContext(ctx,
		"SELECT d.id FROM documents d WHERE d.collection = ?"+filter+" ORDER BY d.id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes documents by id. Unknown ids are ignored.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	dim, err := c.dimensionTx(ctx, tx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		var pk int64
		err := tx.QueryRowContext(ctx,
			"DELETE FROM documents WHERE collection = ? AND id = ? RETURNING pk", c.name, id).Scan(&pk)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return fmt.Errorf("delete %s: %w", id, err)
		}
		if dim == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %q WHERE doc_pk = ?", vecTable(c.name)), pk); err != nil {
			return fmt.Errorf("delete embedding for %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT count(*) FROM documents WHERE collection = ?", c.name).Scan(&n)
	return n, err
}

func (c *Collection) dimensionTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var dim int
	err := tx.QueryRowContext(ctx, "SELECT dimension FROM collections WHERE name = ?", c.name).Scan(&dim)
	return dim, err
}

// whereClause renders equality filters on metadata keys in a stable order.
// Values compare as text so numeric metadata matches its decimal form.
func whereClause(where map[string]string) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		sb.WriteString(" AND CAST(json_extract(d.metadata, ?) AS TEXT) = ?")
		args = append(args, jsonPath(k), where[k])
	}
	return sb.String(), args
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

func encodeMetadata(md Metadata) (string, error) {
	if md == nil {
		return "{}", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeMetadata(s string) (Metadata, error) {
	md := Metadata{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&md); err != nil {
		return nil, err
	}
	return md, nil
}
