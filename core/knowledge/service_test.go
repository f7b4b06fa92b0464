package knowledge_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
	"github.com/academia-hq/academia/core/knowledge"
	blobsvc "github.com/academia-hq/academia/services/blob"
	testutil "github.com/academia-hq/academia/tests"
)

// strictRepo refuses writes on a done context, as the postgres driver does.
type strictRepo struct {
	knowledge.Repository
}

func (r strictRepo) UpdateDocument(ctx context.Context, d knowledge.Document) (knowledge.Document, error) {
	if err := ctx.Err(); err != nil {
		return knowledge.Document{}, err
	}
	return r.Repository.UpdateDocument(ctx, d)
}

// stallingStore blocks reads until their context is done while stall is set.
type stallingStore struct {
	knowledge.BlobStore
	stall   atomic.Bool
	reading chan struct{}
}

func (s *stallingStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.stall.Load() {
		s.reading <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s.BlobStore.Get(ctx, key)
}

func upload(t *testing.T, env *testutil.Env, title, campusID, filename, content string) knowledge.Document {
	t.Helper()

	nd := knowledge.NewDocument{Title: title, CampusID: campusID}
	require.NoError(t, nd.Validate(env.Validate))
	d, created, err := env.Svcs.Knowledge.Upload(context.Background(), nd, strings.NewReader(content), filename, "")
	require.NoError(t, err)
	require.True(t, created)
	return d
}

func TestService_Search(t *testing.T) {
	env := testutil.NewEnv(t)
	kin := testutil.NewSchool(t, env, "KIN")
	gom := testutil.NewSchool(t, env, "GOM")
	svc := env.Svcs.Knowledge
	ctx := context.Background()

	handbook := upload(t, env, "Handbook", kin.Campus.ID, "handbook.md",
		"# Homework\nHomework is due every Monday. Late homework loses points, homework is never optional.\n")
	policy := upload(t, env, "Policy", "", "policy.txt", "Homework policy summary.\n")
	club := upload(t, env, "Club", gom.Campus.ID, "club.txt", "The homework club meets on Friday.\n")

	hits, err := svc.Search(ctx, knowledge.SearchQuery{Q: "homework"})
	require.NoError(t, err)
	assert.Empty(t, hits, "pending documents are not searchable")

	for _, d := range []knowledge.Document{handbook, policy, club} {
		require.NoError(t, svc.Process(ctx, d.ID))
	}

	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "HOMEWORK"})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, handbook.ID, hits[0].DocumentID)
	assert.Equal(t, 2.386, hits[0].Score) // 1 + ln(4)
	// equal scores are ordered by title
	assert.Equal(t, club.ID, hits[1].DocumentID)
	assert.Equal(t, policy.ID, hits[2].DocumentID)
	assert.Equal(t, 1.0, hits[2].Score)

	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "homework", CampusID: kin.Campus.ID})
	require.NoError(t, err)
	require.Len(t, hits, 2, "campus documents and shared ones")
	assert.Equal(t, handbook.ID, hits[0].DocumentID)
	assert.Equal(t, policy.ID, hits[1].DocumentID)

	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "friday homework", Limit: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, handbook.ID, hits[0].DocumentID)

	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "friday club"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 2.0, hits[0].Score)

	hits, err = svc.Search(ctx, knowledge.SearchQuery{Q: "chemistry"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = svc.Search(ctx, knowledge.SearchQuery{Q: "? !"})
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "q", verr.Fields[0].Field)
}

func TestService_Process(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Knowledge
	ctx := context.Background()

	d := upload(t, env, "", "", "blank.html", "<html><body><script>var x = 1;</script></body></html>")
	assert.Equal(t, "blank", d.Title)
	assert.Equal(t, knowledge.TypeHTML, d.ContentType)
	assert.Equal(t, knowledge.StatusPending, d.Status)

	err := svc.Process(ctx, d.ID)
	assert.EqualError(t, err, "document has no text")
	failed, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusFailed, failed.Status)
	assert.Equal(t, "document has no text", failed.Error)
	assert.Nil(t, failed.ProcessedAt)

	// the same bytes are the same document
	nd := knowledge.NewDocument{Title: "Again"}
	again, created, err := svc.Upload(ctx, nd, strings.NewReader("<html><body><script>var x = 1;</script></body></html>"), "again.html", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, d.ID, again.ID)

	big := strings.Repeat("x", int(env.Conf.Knowledge.MaxUploadSize)+1)
	_, _, err = svc.Upload(ctx, nd, strings.NewReader(big), "big.txt", "")
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, "file", verr.Fields[0].Field)

	require.NoError(t, svc.Delete(ctx, d))
	_, err = svc.Get(ctx, d.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestService_Start(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Knowledge
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := upload(t, env, "Rules", "", "rules.txt", "Be on time.\n")

	// documents uploaded while stopped are picked up on start
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()
	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, d.ID)
		return err == nil && got.Status == knowledge.StatusReady
	}, 5*time.Second, 10*time.Millisecond)

	chunks, err := svc.Chunks(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Be on time.", chunks[0].Content)
}

func TestService_StopWhileProcessing(t *testing.T) {
	env := testutil.NewEnv(t)
	local, err := blobsvc.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	blobs := &stallingStore{BlobStore: local, reading: make(chan struct{}, 1)}
	blobs.stall.Store(true)
	svc := knowledge.NewService(strictRepo{env.Repos.Knowledge}, blobs, env.Conf,
		knowledge.NewMetrics(prometheus.NewRegistry()), core.NewNopLogger())
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	d, created, err := svc.Upload(ctx, knowledge.NewDocument{Title: "Rules"}, strings.NewReader("Be on time.\n"), "rules.txt", "")
	require.NoError(t, err)
	require.True(t, created)
	select {
	case <-blobs.reading:
	case <-time.After(5 * time.Second):
		t.Fatal("document was not picked up")
	}

	svc.Stop()
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, knowledge.StatusPending, got.Status, "interrupted documents go back to pending")
	assert.Empty(t, got.Error)

	// left processing by a crash
	got.Status = knowledge.StatusProcessing
	_, err = env.Repos.Knowledge.UpdateDocument(ctx, got)
	require.NoError(t, err)

	blobs.stall.Store(false)
	require.NoError(t, svc.Start(ctx))
	defer svc.Stop()
	require.Eventually(t, func() bool {
		got, err := svc.Get(ctx, d.ID)
		return err == nil && got.Status == knowledge.StatusReady
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_IngestFiles(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.Svcs.Knowledge
	ctx := context.Background()

	existing := upload(t, env, "Rules", "", "rules.txt", "Be on time.\n")

	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}
	paths := []string{
		write("uniform.md", "# Uniform\nThe school uniform is worn every day.\n"),
		write("copy.txt", "Be on time.\n"),
		write("logo.png", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"),
		filepath.Join(dir, "missing.txt"),
	}

	results, err := svc.IngestFiles(ctx, paths, "")
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, paths[0], results[0].Path)
	assert.Equal(t, knowledge.StatusReady, results[0].Status)
	assert.Empty(t, results[0].Error)
	d, err := svc.Get(ctx, results[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "uniform", d.Title)
	assert.Equal(t, knowledge.TypeMarkdown, d.ContentType)

	assert.True(t, results[1].Duplicate)
	assert.Equal(t, existing.ID, results[1].DocumentID)

	assert.Equal(t, "unsupported file type", results[2].Error)
	assert.Empty(t, results[2].DocumentID)

	assert.NotEmpty(t, results[3].Error)
}

func TestService_IngestFiles_noWorkers(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Conf.Knowledge.Workers = 0

	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte("Be on time.\n"), 0o600))

	done := make(chan []knowledge.BatchResult, 1)
	go func() {
		results, err := env.Svcs.Knowledge.IngestFiles(context.Background(), []string{path}, "")
		assert.NoError(t, err)
		done <- results
	}()
	select {
	case results := <-done:
		require.Len(t, results, 1)
		assert.Equal(t, knowledge.StatusReady, results[0].Status)
	case <-time.After(5 * time.Second):
		t.Fatal("IngestFiles did not return")
	}
}
