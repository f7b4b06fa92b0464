package knowledge

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/academia-hq/academia/core"
)

// Document statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// content types accepted for ingestion
const (
	TypePlain    = "text/plain"
	TypeMarkdown = "text/markdown"
	TypeHTML     = "text/html"
	TypeCSV      = "text/csv"
	TypeJSON     = "application/json"
)

// Document is an uploaded file of the knowledge base. A document without CampusID is shared by
// every campus.
type Document struct {
	ID          string     `json:"id"`
	CampusID    string     `json:"campus_id,omitempty"`
	Title       string     `json:"title"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Checksum    string     `json:"checksum"`
	BlobKey     string     `json:"-"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	ChunkCount  int        `json:"chunk_count"`
	UploadedBy  string     `json:"uploaded_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Chunk is a searchable piece of a document's text.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Seq        int    `json:"seq"`
	Content    string `json:"content"`
}

// ChunkMatch is a search candidate: a chunk of a ready document with its document title.
type ChunkMatch struct {
	Chunk
	Title string
}

type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	ChunkID    string  `json:"chunk_id"`
	Seq        int     `json:"seq"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
}

// NewDocument describes an upload; the file itself is passed alongside.
type NewDocument struct {
	Title    string `json:"title" form:"title" validate:"max=255"`
	CampusID string `json:"campus_id" form:"campus_id" validate:"omitempty,uuid"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	nd.CampusID = core.CleanString(nd.CampusID)
	return validate.Struct(nd)
}

type QueryFilter struct {
	CampusID string `query:"campus_id"`
	Status   string `query:"status"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true)
	qf.Search = core.CleanString(qf.Search)
}

type SearchQuery struct {
	Q        string `query:"q" json:"q" validate:"required,notblank,max=256"`
	CampusID string `query:"campus_id" json:"campus_id" validate:"omitempty,uuid"`
	Limit    int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=50"`
}

// BatchResult is the outcome of ingesting one file of a batch.
type BatchResult struct {
	Path       string `json:"path"`
	DocumentID string `json:"document_id,omitempty"`
	Duplicate  bool   `json:"duplicate"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OrderingFields maps the sortable JSON fields to their columns.
var OrderingFields = map[string]string{
	"title":      "title",
	"size":       "size",
	"status":     "status",
	"created_at": "created_at",
}
