package scraper

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/audit_backend/config"
	"bitbucket.org/mmdatafocus/audit_backend/models"
	"bitbucket.org/mmdatafocus/audit_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves bodies keyed by the "ano" query param ("" for the base page).
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	fail   map[string]error
	calls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, raw string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	ano := u.Query().Get("ano")
	if err := f.fail[ano]; err != nil {
		return nil, err
	}
	body, ok := f.bodies[ano]
	if !ok {
		return nil, &utils.FetchError{URL: raw, StatusCode: 404}
	}
	return []byte(body), nil
}

type fakeWriter struct {
	createCalls int
	items       []*models.StagingItem
	configs     map[string]string
	createErr   error
}

func (w *fakeWriter) CreateItems(_ context.Context, items []*models.StagingItem) error {
	w.createCalls++
	if w.createErr != nil {
		return w.createErr
	}
	for i, it := range items {
		it.ID = uint(len(w.items) + i + 1)
	}
	w.items = append(w.items, items...)
	return nil
}

func (w *fakeWriter) TouchBatchConfig(_ context.Context, batchId, sourceUrl string) error {
	if w.configs == nil {
		w.configs = map[string]string{}
	}
	w.configs[batchId] = sourceUrl
	return nil
}

type memorySnapshots struct {
	saved map[string]string
}

func (m *memorySnapshots) Save(_ context.Context, batchId, partition, _ string, body []byte) error {
	if m.saved == nil {
		m.saved = map[string]string{}
	}
	m.saved[SnapshotObjectName(batchId, partition)] = string(body)
	return nil
}

func yearPage(year string, n int) string {
	body := "<html><body>"
	for i := 1; i <= n; i++ {
		body += "<details><summary>Processo Licitatório " + string(rune('0'+i)) + "/" + year + "</summary><h4>00" + string(rune('0'+i)) + "</h4><p>Objeto " + year + "</p></details>"
	}
	return body + "</body></html>"
}

const menuPage = `<html><body>
<a class="btmenu" href="?p=licitacao&ano=2019">2019</a>
<a class="btmenu" href="?p=licitacao&ano=2020">2020</a>
<a class="btmenu" href="?p=licitacao&ano=2021">2021</a>
</body></html>`

func newTestService(f Fetcher, w ItemWriter) (*Service, *[]config.AuditEvent) {
	svc := NewService(w, f, quietLogger())
	svc.Now = func() time.Time { return time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC) }
	events := &[]config.AuditEvent{}
	svc.Publish = func(_ context.Context, ev config.AuditEvent) error {
		*events = append(*events, ev)
		return nil
	}
	return svc, events
}

func TestRunMultiPartitionIsolatesFailures(t *testing.T) {
	fetcher := &fakeFetcher{
		bodies: map[string]string{
			"":     menuPage,
			"2019": yearPage("2019", 2),
			"2021": yearPage("2021", 1),
		},
		fail: map[string]error{"2020": &utils.FetchError{URL: "2020", Err: errors.New("connection reset")}},
	}
	writer := &fakeWriter{}
	svc, events := newTestService(fetcher, writer)
	snaps := &memorySnapshots{}
	svc.Snapshots = snaps

	res, err := svc.Run(context.Background(), "https://portal.test/transparencia?p=licitacao", Selectors{})
	require.NoError(t, err)

	assert.Equal(t, "licitacao_todos_20240305", res.BatchId)
	require.Len(t, res.Items, 3)
	for _, it := range res.Items {
		assert.Equal(t, res.BatchId, it.BatchId)
		require.NotNil(t, it.Ano)
		assert.NotEqual(t, "2020", *it.Ano)
		assert.NotZero(t, it.ID)
	}
	assert.Equal(t, "001/2019", res.Items[0].Edital)
	assert.Equal(t, "001/2021", res.Items[2].Edital)

	require.Len(t, res.Partitions, 3)
	assert.Equal(t, PartitionReport{Ano: "2019", Url: res.Partitions[0].Url, Count: 2}, res.Partitions[0])
	assert.Equal(t, "2020", res.Partitions[1].Ano)
	assert.NotEmpty(t, res.Partitions[1].Error)
	assert.Equal(t, 1, res.Partitions[2].Count)
	assert.Equal(t, 1, res.Failed())

	assert.Equal(t, 1, writer.createCalls, "one bulk write per run")
	assert.Equal(t, "https://portal.test/transparencia?p=licitacao", writer.configs[res.BatchId])

	require.Len(t, *events, 1)
	assert.Equal(t, config.AuditEventBatchImported, (*events)[0].Type)
	assert.Equal(t, 3, (*events)[0].Count)

	assert.Contains(t, snaps.saved, "snapshots/licitacao_todos_20240305/2019.html")
	assert.Contains(t, snaps.saved, "snapshots/licitacao_todos_20240305/2021.html")
	assert.NotContains(t, snaps.saved, "snapshots/licitacao_todos_20240305/2020.html")
}

// cancelingFetcher cancels the caller's context after the given number of fetches.
type cancelingFetcher struct {
	Fetcher
	after  int
	calls  int
	cancel context.CancelFunc
}

func (c *cancelingFetcher) Fetch(ctx context.Context, raw string) ([]byte, error) {
	body, err := c.Fetcher.Fetch(ctx, raw)
	c.calls++
	if c.calls == c.after {
		c.cancel()
	}
	return body, err
}

func TestRunMultiPartitionSurvivesClientCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetcher := &cancelingFetcher{
		Fetcher: &fakeFetcher{bodies: map[string]string{
			"":     menuPage,
			"2019": yearPage("2019", 2),
			"2020": yearPage("2020", 1),
			"2021": yearPage("2021", 1),
		}},
		after:  2,
		cancel: cancel,
	}
	writer := &fakeWriter{}
	svc, _ := newTestService(fetcher, writer)

	res, err := svc.Run(ctx, "https://portal.test/transparencia?p=licitacao", Selectors{})
	require.NoError(t, err)
	assert.Error(t, ctx.Err())
	assert.Equal(t, 4, fetcher.calls)
	assert.Len(t, res.Items, 4)
	assert.Zero(t, res.Failed())
	assert.Equal(t, 1, writer.createCalls)
	assert.Len(t, writer.items, 4)
}

func TestRunSinglePartition(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{"2021": yearPage("2021", 2)}}
	writer := &fakeWriter{}
	svc, _ := newTestService(fetcher, writer)

	res, err := svc.Run(context.Background(), "https://portal.test/?p=pregao&ano=2021", Selectors{})
	require.NoError(t, err)
	assert.Equal(t, "pregao_2021_20240305", res.BatchId)
	assert.Len(t, res.Items, 2)
	assert.Len(t, fetcher.calls, 1)
	for _, it := range res.Items {
		assert.Equal(t, "https://portal.test/?p=pregao&ano=2021", it.SourceUrl)
	}
}

func TestRunWithoutYearsFallsBackToBasePage(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{"": scenarioA}}
	writer := &fakeWriter{}
	svc, _ := newTestService(fetcher, writer)

	res, err := svc.Run(context.Background(), "https://portal.test/lista", Selectors{})
	require.NoError(t, err)
	assert.Equal(t, "licitacao_sem_ano_20240305", res.BatchId)
	require.Len(t, res.Items, 1)
	assert.Nil(t, res.Items[0].Ano)
	assert.Len(t, fetcher.calls, 1, "base page is parsed once")
}

func TestRunEmptyResultWritesNothing(t *testing.T) {
	fetcher := &fakeFetcher{bodies: map[string]string{"2021": `<html><body>vazio</body></html>`}}
	writer := &fakeWriter{}
	svc, events := newTestService(fetcher, writer)

	res, err := svc.Run(context.Background(), "https://portal.test/?ano=2021", Selectors{})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, writer.createCalls)
	assert.Empty(t, *events)
}

func TestRunErrors(t *testing.T) {
	svc, _ := newTestService(&fakeFetcher{bodies: map[string]string{}}, &fakeWriter{})

	_, err := svc.Run(context.Background(), "not a url", Selectors{})
	var ve *utils.ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.Run(context.Background(), "https://portal.test/?ano=2021", Selectors{})
	var fe *utils.FetchError
	assert.ErrorAs(t, err, &fe, "single partition fetch failures surface")

	_, err = svc.Run(context.Background(), "https://portal.test/?ano=2021", Selectors{Container: "div["})
	assert.ErrorAs(t, err, &ve)

	failing := &fakeWriter{createErr: errors.New("disk full")}
	svc, _ = newTestService(&fakeFetcher{bodies: map[string]string{"2021": scenarioA}}, failing)
	_, err = svc.Run(context.Background(), "https://portal.test/?ano=2021", Selectors{})
	assert.EqualError(t, err, "disk full")
}

func TestPreview(t *testing.T) {
	svc, _ := newTestService(&fakeFetcher{bodies: map[string]string{"": scenarioA}}, &fakeWriter{})
	p, err := svc.Preview(context.Background(), "https://portal.test/", "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Count)
	assert.Contains(t, p.Html, "<!-- CONTAINER 1 -->\n<summary>Processo Licitatório 004/2017</summary>")
}
