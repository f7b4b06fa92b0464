package dummydb

import (
	"context"
	"strings"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
)

type knowledgeRepository struct {
	db *DB
}

var _ knowledge.Repository = (*knowledgeRepository)(nil) // interface compliance check

func NewKnowledgeRepository(db *DB) *knowledgeRepository {
	return &knowledgeRepository{db: db}
}

var documentColumns = map[string]comparer[knowledge.Document]{
	"title":      func(a, b knowledge.Document) int { return cmpString(a.Title, b.Title) },
	"size":       func(a, b knowledge.Document) int { return cmpInt(int(a.Size), int(b.Size)) },
	"status":     func(a, b knowledge.Document) int { return cmpString(a.Status, b.Status) },
	"created_at": func(a, b knowledge.Document) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
}

func (repo *knowledgeRepository) CreateDocument(ctx context.Context, d knowledge.Document) (knowledge.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.documents[d.ID] = d
	return d, nil
}

func (repo *knowledgeRepository) GetDocument(ctx context.Context, id string) (knowledge.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if d, ok := repo.db.documents[id]; ok {
		return d, nil
	}
	return knowledge.Document{}, knowledge.ErrNotFound
}

func (repo *knowledgeRepository) GetDocumentByChecksum(ctx context.Context, checksum string) (knowledge.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, d := range repo.db.documents {
		if d.Checksum == checksum {
			return d, nil
		}
	}
	return knowledge.Document{}, knowledge.ErrNotFound
}

func (repo *knowledgeRepository) QueryDocuments(ctx context.Context, f *knowledge.QueryFilter, ordering []core.DBOrdering) ([]knowledge.Document, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	docs := values(repo.db.documents)
	if f != nil {
		docs = filter(docs, func(d knowledge.Document) bool {
			switch {
			case f.CampusID != "" && d.CampusID != f.CampusID,
				f.Status != "" && d.Status != f.Status:
				return false
			}
			return f.Search == "" || containsFold(d.Title, f.Search) || containsFold(d.Filename, f.Search)
		})
	}
	order(docs, ordering, documentColumns, func(a, b knowledge.Document) int { return -cmpTime(a.CreatedAt, b.CreatedAt) })
	return docs, nil
}

func (repo *knowledgeRepository) UpdateDocument(ctx context.Context, d knowledge.Document) (knowledge.Document, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.documents[d.ID]; !ok {
		return knowledge.Document{}, knowledge.ErrNotFound
	}
	repo.db.documents[d.ID] = d
	return d, nil
}

func (repo *knowledgeRepository) DeleteDocument(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.documents[id]; !ok {
		return knowledge.ErrNotFound
	}
	delete(repo.db.documents, id)
	delete(repo.db.chunks, id)
	return nil
}

func (repo *knowledgeRepository) ReplaceChunks(ctx context.Context, docID string, chunks []knowledge.Chunk) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.documents[docID]; !ok {
		return knowledge.ErrNotFound
	}
	repo.db.chunks[docID] = append([]knowledge.Chunk(nil), chunks...)
	return nil
}

func (repo *knowledgeRepository) QueryChunks(ctx context.Context, docID string) ([]knowledge.Chunk, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return append([]knowledge.Chunk{}, repo.db.chunks[docID]...), nil
}

func (repo *knowledgeRepository) SearchChunks(ctx context.Context, terms []string, campusID string) ([]knowledge.ChunkMatch, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []knowledge.ChunkMatch
	for docID, chunks := range repo.db.chunks {
		d := repo.db.documents[docID]
		if d.Status != knowledge.StatusReady {
			continue
		}
		if campusID != "" && d.CampusID != "" && d.CampusID != campusID {
			continue
		}
		for _, c := range chunks {
			content := strings.ToLower(c.Content)
			for _, term := range terms {
				if strings.Contains(content, strings.ToLower(term)) {
					matches = append(matches, knowledge.ChunkMatch{Chunk: c, Title: d.Title})
					break
				}
			}
		}
	}
	return matches, nil
}
