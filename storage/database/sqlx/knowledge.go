package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
)

const documentColumns = `id, campus_id, title, filename, content_type, size, checksum, blob_key, status, error,
	chunk_count, uploaded_by, created_at, updated_at, processed_at`

type documentRow struct {
	ID          string      `db:"id"`
	CampusID    null.String `db:"campus_id"`
	Title       string      `db:"title"`
	Filename    string      `db:"filename"`
	ContentType string      `db:"content_type"`
	Size        int64       `db:"size"`
	Checksum    string      `db:"checksum"`
	BlobKey     string      `db:"blob_key"`
	Status      string      `db:"status"`
	Error       string      `db:"error"`
	ChunkCount  int         `db:"chunk_count"`
	UploadedBy  null.String `db:"uploaded_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
	ProcessedAt null.Time   `db:"processed_at"`
}

func newDocumentRow(d knowledge.Document) documentRow {
	return documentRow{
		ID:          d.ID,
		CampusID:    null.NewString(d.CampusID, d.CampusID != ""),
		Title:       d.Title,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		Size:        d.Size,
		Checksum:    d.Checksum,
		BlobKey:     d.BlobKey,
		Status:      d.Status,
		Error:       d.Error,
		ChunkCount:  d.ChunkCount,
		UploadedBy:  null.NewString(d.UploadedBy, d.UploadedBy != ""),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
		ProcessedAt: null.TimeFromPtr(d.ProcessedAt),
	}
}

func (r documentRow) document() knowledge.Document {
	d := knowledge.Document{
		ID:          r.ID,
		CampusID:    r.CampusID.String,
		Title:       r.Title,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		Size:        r.Size,
		Checksum:    r.Checksum,
		BlobKey:     r.BlobKey,
		Status:      r.Status,
		Error:       r.Error,
		ChunkCount:  r.ChunkCount,
		UploadedBy:  r.UploadedBy.String,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.ProcessedAt.Valid {
		at := r.ProcessedAt.Time.UTC()
		d.ProcessedAt = &at
	}
	return d
}

type knowledgeRepository struct {
	db *sqlx.DB
}

var _ knowledge.Repository = (*knowledgeRepository)(nil) // interface compliance check

func NewKnowledgeRepository(db *sqlx.DB) *knowledgeRepository {
	return &knowledgeRepository{db: db}
}

func (repo *knowledgeRepository) CreateDocument(ctx context.Context, d knowledge.Document) (knowledge.Document, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (:id, :campus_id, :title, :filename, :content_type, :size, :checksum, :blob_key, :status, :error,
			:chunk_count, :uploaded_by, :created_at, :updated_at, :processed_at)`,
		newDocumentRow(d))
	if err != nil {
		return knowledge.Document{}, errors.Wrap(err, "inserting document")
	}
	return d, nil
}

func (repo *knowledgeRepository) getBy(ctx context.Context, where string, arg interface{}) (knowledge.Document, error) {
	var r documentRow
	if err := repo.db.GetContext(ctx, &r, "SELECT "+documentColumns+" FROM documents WHERE "+where, arg); err != nil {
		return knowledge.Document{}, trapNoRowsErr(err, knowledge.ErrNotFound, "finding document")
	}
	return r.document(), nil
}

func (repo *knowledgeRepository) GetDocument(ctx context.Context, id string) (knowledge.Document, error) {
	return repo.getBy(ctx, "id = $1", id)
}

func (repo *knowledgeRepository) GetDocumentByChecksum(ctx context.Context, checksum string) (knowledge.Document, error) {
	return repo.getBy(ctx, "checksum = $1", checksum)
}

func (repo *knowledgeRepository) QueryDocuments(ctx context.Context, f *knowledge.QueryFilter, ordering []core.DBOrdering) ([]knowledge.Document, error) {
	conds := new(conditions)
	if f != nil {
		if f.CampusID != "" {
			conds.add("campus_id = ?", f.CampusID)
		}
		if f.Status != "" {
			conds.add("status = ?", f.Status)
		}
		conds.search(f.Search, "title", "filename")
	}
	var rows []documentRow
	if err := selectWhere(ctx, repo.db, &rows, "SELECT "+documentColumns+" FROM documents", conds, ordering, "created_at DESC"); err != nil {
		return nil, errors.Wrap(err, "querying documents")
	}
	docs := make([]knowledge.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.document())
	}
	return docs, nil
}

func (repo *knowledgeRepository) UpdateDocument(ctx context.Context, d knowledge.Document) (knowledge.Document, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE documents SET campus_id = :campus_id, title = :title, status = :status, error = :error,
			chunk_count = :chunk_count, updated_at = :updated_at, processed_at = :processed_at
		WHERE id = :id`,
		newDocumentRow(d))
	if err != nil {
		return knowledge.Document{}, errors.Wrap(err, "updating document")
	}
	return d, expectRows(res, knowledge.ErrNotFound)
}

func (repo *knowledgeRepository) DeleteDocument(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	return expectRows(res, knowledge.ErrNotFound)
}

func (repo *knowledgeRepository) ReplaceChunks(ctx context.Context, docID string, chunks []knowledge.Chunk) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, "SELECT id FROM documents WHERE id = $1 FOR UPDATE", docID); err != nil {
			return trapNoRowsErr(err, knowledge.ErrNotFound, "locking document")
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE document_id = $1", docID); err != nil {
			return errors.Wrap(err, "deleting chunks")
		}
		if len(chunks) == 0 {
			return nil
		}
		// sqlx expands a slice argument into a multi-row insert
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO document_chunks (id, document_id, seq, content) VALUES (:id, :document_id, :seq, :content)`,
			chunkRows(chunks))
		return errors.Wrap(err, "inserting chunks")
	})
}

type chunkRow struct {
	ID         string `db:"id"`
	DocumentID string `db:"document_id"`
	Seq        int    `db:"seq"`
	Content    string `db:"content"`
}

func chunkRows(chunks []knowledge.Chunk) []chunkRow {
	rows := make([]chunkRow, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, chunkRow(c))
	}
	return rows
}

func (repo *knowledgeRepository) QueryChunks(ctx context.Context, docID string) ([]knowledge.Chunk, error) {
	var rows []chunkRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT id, document_id, seq, content FROM document_chunks WHERE document_id = $1 ORDER BY seq", docID); err != nil {
		return nil, errors.Wrap(err, "querying chunks")
	}
	chunks := make([]knowledge.Chunk, 0, len(rows))
	for _, r := range rows {
		chunks = append(chunks, knowledge.Chunk(r))
	}
	return chunks, nil
}

func (repo *knowledgeRepository) SearchChunks(ctx context.Context, terms []string, campusID string) ([]knowledge.ChunkMatch, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	patterns := make([]string, 0, len(terms))
	for _, t := range terms {
		patterns = append(patterns, "%"+escapeLike(t)+"%")
	}
	q := `
		SELECT c.id, c.document_id, c.seq, c.content, d.title
		FROM document_chunks c JOIN documents d ON d.id = c.document_id
		WHERE d.status = $1 AND c.content ILIKE ANY($2)`
	args := []interface{}{knowledge.StatusReady, pq.StringArray(patterns)}
	if campusID != "" {
		q += " AND (d.campus_id IS NULL OR d.campus_id = $3)"
		args = append(args, campusID)
	}

	var rows []struct {
		chunkRow
		Title string `db:"title"`
	}
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "searching chunks")
	}
	matches := make([]knowledge.ChunkMatch, 0, len(rows))
	for _, r := range rows {
		matches = append(matches, knowledge.ChunkMatch{Chunk: knowledge.Chunk(r.chunkRow), Title: r.Title})
	}
	return matches, nil
}
