package knowledge

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/academia-hq/academia/core"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50

	snippetLen = 240
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("document not found")
	ErrBlobNotFound  = core.NewNotFoundError("blob not found")
	ErrEmptyDocument = errors.New("file is empty")
)

type (
	Repository interface {
		CreateDocument(ctx context.Context, d Document) (Document, error)
		GetDocument(ctx context.Context, id string) (Document, error)
		GetDocumentByChecksum(ctx context.Context, checksum string) (Document, error)
		QueryDocuments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error)
		UpdateDocument(ctx context.Context, d Document) (Document, error)
		// DeleteDocument removes the document with its chunks.
		DeleteDocument(ctx context.Context, id string) error
		// ReplaceChunks swaps the chunks of a document in a single transaction.
		ReplaceChunks(ctx context.Context, docID string, chunks []Chunk) error
		QueryChunks(ctx context.Context, docID string) ([]Chunk, error)
		// SearchChunks returns the chunks of ready documents containing any of terms (case-insensitive).
		// With campusID, only that campus' documents and the shared ones are searched.
		SearchChunks(ctx context.Context, terms []string, campusID string) ([]ChunkMatch, error)
	}

	// BlobStore keeps the uploaded files.
	BlobStore interface {
		Put(ctx context.Context, key string, r io.Reader, contentType string) error
		// Get returns ErrBlobNotFound when nothing is stored under key.
		Get(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}

	Service struct {
		repo     Repository
		blobs    BlobStore
		conf     *core.Config
		metrics  *Metrics
		logger   core.Logger
		ingestor *Ingestor
	}
)

func NewService(repo Repository, blobs BlobStore, conf *core.Config, metrics *Metrics, logger core.Logger) *Service {
	svc := &Service{repo: repo, blobs: blobs, conf: conf, metrics: metrics, logger: logger}
	svc.ingestor = newIngestor(svc.Process, conf.Knowledge.Workers, conf.Knowledge.QueueSize, metrics, logger)
	return svc
}

// Start runs the ingestion workers and requeues the documents left pending, or left
// processing by an unclean shutdown.
func (svc *Service) Start(ctx context.Context) error {
	var ids []string
	for _, status := range []string{StatusPending, StatusProcessing} {
		docs, err := svc.repo.QueryDocuments(ctx, &QueryFilter{Status: status}, nil)
		if err != nil {
			return errors.Wrapf(err, "querying %s documents", status)
		}
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
	}

	svc.ingestor.Start(ctx)
	for i, id := range ids {
		if err := svc.ingestor.Enqueue(id); err != nil {
			svc.logger.Warn("requeuing documents", err, map[string]interface{}{"remaining": len(ids) - i})
			break
		}
	}
	return nil
}

func (svc *Service) Stop() {
	svc.ingestor.Stop()
}

// Upload stores a file and queues it for ingestion. An identical file (same checksum) is not
// stored twice: the existing document is returned with created false.
func (svc *Service) Upload(ctx context.Context, nd NewDocument, r io.Reader, filename, uploadedBy string) (Document, bool, error) {
	d, created, err := svc.store(ctx, nd, r, filename, uploadedBy)
	if err != nil || !created {
		return d, created, err
	}
	if err = svc.ingestor.Enqueue(d.ID); err != nil {
		svc.logger.Warn("queuing document", err, map[string]interface{}{"document_id": d.ID})
	}
	return d, true, nil
}

func (svc *Service) store(ctx context.Context, nd NewDocument, r io.Reader, filename, uploadedBy string) (Document, bool, error) {
	maxSize := svc.conf.Knowledge.MaxUploadSize
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return Document{}, false, errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > maxSize {
		return Document{}, false, core.NewFieldError("file", fmt.Sprintf("file is larger than %d bytes", maxSize))
	}
	if len(data) == 0 {
		return Document{}, false, core.NewFieldError("file", ErrEmptyDocument.Error())
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	existing, err := svc.repo.GetDocumentByChecksum(ctx, checksum)
	if err == nil {
		return existing, false, nil
	}
	if !core.IsNotFound(err) {
		return Document{}, false, errors.Wrap(err, "finding document by checksum")
	}

	contentType, ext, err := detectType(data, filename)
	if err != nil {
		return Document{}, false, core.NewFieldError("file", err.Error())
	}

	filename = filepath.Base(filename)
	if nd.Title == "" {
		nd.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	now := core.Now()
	d := Document{
		ID:          core.NewID(),
		CampusID:    nd.CampusID,
		Title:       nd.Title,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Checksum:    checksum,
		Status:      StatusPending,
		UploadedBy:  uploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.BlobKey = "documents/" + d.ID + ext
	if err = svc.blobs.Put(ctx, d.BlobKey, bytes.NewReader(data), contentType); err != nil {
		return Document{}, false, errors.Wrap(err, "storing blob")
	}
	created, err := svc.repo.CreateDocument(ctx, d)
	if err != nil {
		if delErr := svc.blobs.Delete(ctx, d.BlobKey); delErr != nil {
			svc.logger.Error("deleting orphan blob", delErr)
		}
		return Document{}, false, err
	}
	return created, true, nil
}

// Process extracts, splits and stores the chunks of a document, leaving it ready or failed.
func (svc *Service) Process(ctx context.Context, docID string) error {
	start := time.Now()
	d, err := svc.repo.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	d.Status = StatusProcessing
	d.Error = ""
	d.UpdatedAt = core.Now()
	if d, err = svc.repo.UpdateDocument(ctx, d); err != nil {
		return err
	}

	n, procErr := svc.chunk(ctx, d)
	// the outcome is saved even when ctx was cancelled meanwhile
	saveCtx := context.WithoutCancel(ctx)
	now := core.Now()
	d.UpdatedAt = now
	if procErr != nil && ctx.Err() != nil {
		// interrupted: the next start picks the document up again
		d.Status = StatusPending
		if _, err = svc.repo.UpdateDocument(saveCtx, d); err != nil {
			return errors.Wrap(err, "saving document status")
		}
		return procErr
	}
	if procErr != nil {
		d.Status = StatusFailed
		d.Error = procErr.Error()
	} else {
		d.Status = StatusReady
		d.ChunkCount = n
		d.ProcessedAt = &now
		svc.metrics.chunks.Add(float64(n))
	}
	svc.metrics.documents.WithLabelValues(d.Status).Inc()
	svc.metrics.duration.Observe(time.Since(start).Seconds())
	if _, err = svc.repo.UpdateDocument(saveCtx, d); err != nil {
		return errors.Wrap(err, "saving document status")
	}
	return procErr
}

func (svc *Service) chunk(ctx context.Context, d Document) (int, error) {
	rc, err := svc.blobs.Get(ctx, d.BlobKey)
	if err != nil {
		return 0, errors.Wrap(err, "opening blob")
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return 0, errors.Wrap(err, "reading blob")
	}
	text, err := extractText(d.ContentType, data)
	if err != nil {
		return 0, err
	}
	parts, err := split(newSplitter(d.ContentType, svc.conf.Knowledge.ChunkSize, svc.conf.Knowledge.ChunkOverlap), text)
	if err != nil {
		return 0, err
	}
	if len(parts) == 0 {
		return 0, errors.New("document has no text")
	}
	chunks := make([]Chunk, 0, len(parts))
	for i, p := range parts {
		chunks = append(chunks, Chunk{ID: core.NewID(), DocumentID: d.ID, Seq: i, Content: p})
	}
	if err = svc.repo.ReplaceChunks(ctx, d.ID, chunks); err != nil {
		return 0, errors.Wrap(err, "storing chunks")
	}
	return len(chunks), nil
}

func (svc *Service) Get(ctx context.Context, id string) (Document, error) {
	if !core.IsValidID(id) {
		return Document{}, ErrNotFound
	}
	return svc.repo.GetDocument(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Document, error) {
	return svc.repo.QueryDocuments(ctx, filter, core.FilterOrderings(ordering, OrderingFields))
}

func (svc *Service) Chunks(ctx context.Context, docID string) ([]Chunk, error) {
	return svc.repo.QueryChunks(ctx, docID)
}

// Reprocess puts a document back in the ingestion queue.
func (svc *Service) Reprocess(ctx context.Context, d Document) (Document, error) {
	d.Status = StatusPending
	d.Error = ""
	d.UpdatedAt = core.Now()
	d, err := svc.repo.UpdateDocument(ctx, d)
	if err != nil {
		return Document{}, err
	}
	if err = svc.ingestor.Enqueue(d.ID); err != nil {
		return d, errors.Wrap(err, "queuing document")
	}
	return d, nil
}

// Delete removes the document, its chunks and its blob.
func (svc *Service) Delete(ctx context.Context, d Document) error {
	if err := svc.repo.DeleteDocument(ctx, d.ID); err != nil {
		return err
	}
	if err := svc.blobs.Delete(ctx, d.BlobKey); err != nil && !core.IsNotFound(err) {
		svc.logger.Error("deleting blob", err, map[string]interface{}{"key": d.BlobKey})
	}
	return nil
}

// Search ranks the chunks holding the query terms. A chunk scores 1+ln(tf) per matched term.
func (svc *Service) Search(ctx context.Context, sq SearchQuery) ([]SearchHit, error) {
	terms := searchTerms(sq.Q)
	if len(terms) == 0 {
		return nil, core.NewFieldError("q", "no searchable terms")
	}
	limit := sq.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	matches, err := svc.repo.SearchChunks(ctx, terms, sq.CampusID)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, 0, len(matches))
	for _, m := range matches {
		tf := make(map[string]int, len(terms))
		for _, w := range words(m.Content) {
			tf[w]++
		}
		score := 0.0
		for _, t := range terms {
			if n := tf[t]; n > 0 {
				score += 1 + math.Log(float64(n))
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, SearchHit{
			DocumentID: m.DocumentID,
			Title:      m.Title,
			ChunkID:    m.ID,
			Seq:        m.Seq,
			Snippet:    snippet(m.Content, terms),
			Score:      math.Round(score*1000) / 1000,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Title != hits[j].Title {
			return hits[i].Title < hits[j].Title
		}
		return hits[i].Seq < hits[j].Seq
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// words lowercases text and splits it into words of at least two characters.
func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := fields[:0]
	for _, w := range fields {
		if len([]rune(w)) >= 2 {
			kept = append(kept, w)
		}
	}
	return kept
}

// searchTerms returns the unique words of a query, in order.
func searchTerms(q string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range words(q) {
		if !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return terms
}

// snippet returns up to snippetLen runes of content around the first term found.
func snippet(content string, terms []string) string {
	runes := []rune(content)
	if len(runes) <= snippetLen {
		return content
	}
	lower := strings.ToLower(content)
	start := 0
	for _, t := range terms {
		if i := strings.Index(lower, t); i >= 0 {
			start = len([]rune(lower[:i])) - snippetLen/4
			break
		}
	}
	if start < 0 {
		start = 0
	}
	if start+snippetLen > len(runes) {
		start = len(runes) - snippetLen
	}
	s := strings.TrimSpace(string(runes[start : start+snippetLen]))
	if start > 0 {
		s = "…" + s
	}
	if start+snippetLen < len(runes) {
		s += "…"
	}
	return s
}

// IngestFiles uploads and processes files concurrently, bypassing the worker queue.
func (svc *Service) IngestFiles(ctx context.Context, paths []string, campusID string) ([]BatchResult, error) {
	results := make([]BatchResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, svc.conf.Knowledge.Workers))
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res := BatchResult{Path: path}
			defer func() { results[i] = res }()

			f, err := os.Open(path)
			if err != nil {
				res.Error = err.Error()
				return nil
			}
			defer f.Close()

			d, created, err := svc.store(ctx, NewDocument{CampusID: campusID}, f, filepath.Base(path), "")
			if err != nil {
				res.Error = err.Error()
				return nil
			}
			res.DocumentID = d.ID
			res.Duplicate = !created
			res.Status = d.Status
			if created {
				if err = svc.Process(ctx, d.ID); err != nil {
					res.Error = err.Error()
					res.Status = StatusFailed
				} else {
					res.Status = StatusReady
				}
			}
			return ctx.Err()
		})
	}
	err := g.Wait()
	return results, err
}
