// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/significance-miner/pkg/types"
)

const fakePDFContent = "%PDF-1.4 fake"

// paperServer simulates Unpaywall, an OA host, and a mirror. Each route's
// behaviour is chosen per DOI suffix so one server covers every scenario.
type paperServer struct {
	*httptest.Server

	unpaywall map[string]string // doi -> JSON body ("" = 404)
	mirror    map[string]string // doi -> HTML body ("" = 404)
	files     map[string]string // path -> body
	status    map[string]int    // path -> forced status

	mirrorHits atomic.Int32
	fileHits   atomic.Int32
}

func newPaperServer(t *testing.T) *paperServer {
	t.Helper()
	ps := &paperServer{
		unpaywall: map[string]string{},
		mirror:    map[string]string{},
		files:     map[string]string{},
		status:    map[string]int{},
	}
	ps.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := ps.status[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/unpaywall/"):
			body := ps.unpaywall[strings.TrimPrefix(r.URL.Path, "/unpaywall/")]
			if body == "" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, body)
		case strings.HasPrefix(r.URL.Path, "/mirror/"):
			ps.mirrorHits.Add(1)
			body := ps.mirror[strings.TrimPrefix(r.URL.Path, "/mirror/")]
			if body == "" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, body)
		case strings.HasPrefix(r.URL.Path, "/files/"):
			ps.fileHits.Add(1)
			body, ok := ps.files[r.URL.Path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ps.Close)

	orig := unpaywallAPIBase
	unpaywallAPIBase = ps.URL + "/unpaywall/"
	t.Cleanup(func() { unpaywallAPIBase = orig })
	return ps
}

func oaJSON(pdfURL string) string {
	return fmt.Sprintf(`{"is_oa": true, "best_oa_location": {"url_for_pdf": %q}}`, pdfURL)
}

func mirrorHTML(pdfURL string) string {
	return fmt.Sprintf(`<html><body><div id="buttons">
<button onclick="location.href='%s'">save</button></div></body></html>`, pdfURL)
}

func testAcqConfig(ps *paperServer) types.AcquisitionConfig {
	return types.AcquisitionConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "significance-miner-test/0.1",
		},
		Email:     "test@example.com",
		MirrorURL: ps.URL + "/mirror",
	}
}

func newTestChain(t *testing.T, ps *paperServer, cfg types.AcquisitionConfig) *Chain {
	t.Helper()
	c, err := NewChain(ps.Client(), cfg, nil)
	require.NoError(t, err)
	return c
}

func TestChainOpenAccessShortCircuitsMirror(t *testing.T) {
	ps := newPaperServer(t)
	doi := "10.1000/oa"
	ps.unpaywall[doi] = oaJSON(ps.URL + "/files/oa.pdf")
	ps.files["/files/oa.pdf"] = fakePDFContent
	ps.mirror[doi] = mirrorHTML(ps.URL + "/files/mirror.pdf")

	res := newTestChain(t, ps, testAcqConfig(ps)).Resolve(context.Background(), doi)

	require.True(t, res.OK(), "result: %v", res)
	assert.Equal(t, types.StrategyUnpaywall, res.Source)
	assert.Equal(t, fakePDFContent, string(res.PDF))
	assert.Equal(t, int32(0), ps.mirrorHits.Load(), "mirror must not be consulted")
}

func TestChainNotOpenAccessGoesStraightToMirror(t *testing.T) {
	ps := newPaperServer(t)
	doi := "10.1000/closed"
	ps.unpaywall[doi] = `{"is_oa": false, "best_oa_location": {"url_for_pdf": "` + ps.URL + `/files/never.pdf"}}`
	ps.mirror[doi] = mirrorHTML(ps.URL + "/files/mirror.pdf")
	ps.files["/files/mirror.pdf"] = fakePDFContent

	res := newTestChain(t, ps, testAcqConfig(ps)).Resolve(context.Background(), doi)

	require.True(t, res.OK(), "result: %v", res)
	assert.Equal(t, types.StrategyMirror, res.Source)
	assert.Equal(t, int32(1), ps.fileHits.Load(), "only the mirror PDF is fetched")
}

func TestChainFallsBackWhenOAFetchFails(t *testing.T) {
	ps := newPaperServer(t)
	doi := "10.1000/broken"
	ps.unpaywall[doi] = oaJSON(ps.URL + "/files/gone.pdf")
	ps.status["/files/gone.pdf"] = http.StatusInternalServerError
	ps.mirror[doi] = mirrorHTML("/files/mirror.pdf")
	ps.files["/files/mirror.pdf"] = fakePDFContent

	res := newTestChain(t, ps, testAcqConfig(ps)).Resolve(context.Background(), doi)

	require.True(t, res.OK(), "result: %v", res)
	assert.Equal(t, types.StrategyMirror, res.Source)
	assert.Equal(t, ps.URL+"/files/mirror.pdf", res.URL)
}

func TestChainNoOARecordAndUnreachableMirror(t *testing.T) {
	ps := newPaperServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()

	cfg := testAcqConfig(ps)
	cfg.MirrorURL = dead.URL
	res := newTestChain(t, ps, cfg).Resolve(context.Background(), "10.1000/nowhere")

	require.False(t, res.OK())
	assert.Equal(t, types.FailureNotFound, res.Reason)
	assert.ErrorIs(t, res.Err, ErrNotFound)
	assert.ErrorIs(t, res.Err, ErrNetwork)
}

func TestChainFailureReasons(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(ps *paperServer, doi string)
		want   types.FailureReason
		wantIs error
	}{
		{
			name: "landing page only and empty mirror page",
			setup: func(ps *paperServer, doi string) {
				ps.unpaywall[doi] = `{"is_oa": true, "best_oa_location": {"url": "https://example.com/landing"}}`
				ps.mirror[doi] = `<html><body><p>article not found</p></body></html>`
			},
			want:   types.FailurePaywalled,
			wantIs: ErrPaywalled,
		},
		{
			name: "OA link serves HTML and mirror has nothing",
			setup: func(ps *paperServer, doi string) {
				ps.unpaywall[doi] = oaJSON(ps.URL + "/files/login.pdf")
				ps.files["/files/login.pdf"] = "<html>please log in</html>"
			},
			want:   types.FailureParseError,
			wantIs: ErrNotPDF,
		},
		{
			name: "every service errors",
			setup: func(ps *paperServer, doi string) {
				ps.status["/unpaywall/"+doi] = http.StatusBadGateway
				ps.status["/mirror/"+doi] = http.StatusServiceUnavailable
			},
			want:   types.FailureNetworkError,
			wantIs: ErrNetwork,
		},
		{
			name:   "unknown everywhere",
			setup:  func(*paperServer, string) {},
			want:   types.FailureNotFound,
			wantIs: ErrNotFound,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := newPaperServer(t)
			doi := fmt.Sprintf("10.1000/case%d", i)
			tt.setup(ps, doi)

			res := newTestChain(t, ps, testAcqConfig(ps)).Resolve(context.Background(), doi)

			require.False(t, res.OK())
			assert.Equal(t, tt.want, res.Reason)
			assert.ErrorIs(t, res.Err, tt.wantIs)
		})
	}
}

func TestUnpaywallScansOtherLocations(t *testing.T) {
	ps := newPaperServer(t)
	doi := "10.1000/alt"
	ps.unpaywall[doi] = fmt.Sprintf(`{"is_oa": true,
		"best_oa_location": {"url": "https://example.com/landing"},
		"oa_locations": [{"url": "x"}, {"url_for_pdf": %q}]}`, ps.URL+"/files/alt.pdf")
	ps.files["/files/alt.pdf"] = fakePDFContent

	u := &Unpaywall{fetch: newFetcher(ps.Client(), testAcqConfig(ps)), email: "a@b.c"}
	res := u.Attempt(context.Background(), doi)

	require.True(t, res.OK(), "result: %v", res)
	assert.Equal(t, ps.URL+"/files/alt.pdf", res.URL)
}

func TestFetchTimeoutIsNetworkError(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		fmt.Fprint(w, fakePDFContent)
	}))
	defer slow.Close()

	cfg := types.AcquisitionConfig{HTTPConfig: types.HTTPConfig{Timeout: 50 * time.Millisecond}}
	f := newFetcher(slow.Client(), cfg)

	res := f.fetchPDF(context.Background(), "test", slow.URL+"/paper.pdf")

	require.False(t, res.OK())
	assert.Equal(t, types.FailureNetworkError, res.Reason)
	assert.ErrorIs(t, res.Err, ErrNetwork)
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	big := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, fakePDFContent+strings.Repeat("x", 100))
	}))
	defer big.Close()

	f := newFetcher(big.Client(), types.AcquisitionConfig{MaxPDFBytes: 32})
	res := f.fetchPDF(context.Background(), "test", big.URL)

	assert.Equal(t, types.FailureNetworkError, res.Reason)
}

func TestChainCachesDownloads(t *testing.T) {
	ps := newPaperServer(t)
	doi := "10.1000/cached"
	ps.unpaywall[doi] = oaJSON(ps.URL + "/files/c.pdf")
	ps.files["/files/c.pdf"] = fakePDFContent

	cfg := testAcqConfig(ps)
	cfg.PapersDir = t.TempDir()
	chain := newTestChain(t, ps, cfg)

	first := chain.Resolve(context.Background(), doi)
	require.True(t, first.OK())
	assert.Equal(t, types.StrategyUnpaywall, first.Source)

	_, err := os.Stat(PDFPath(cfg.PapersDir, doi))
	require.NoError(t, err)

	second := chain.Resolve(context.Background(), doi)
	require.True(t, second.OK())
	assert.Equal(t, types.SourceCache, second.Source)
	assert.Equal(t, int32(1), ps.fileHits.Load())
}

func TestWriteAndReadMetadata(t *testing.T) {
	dir := t.TempDir()
	rec := types.PaperRecord{DOI: "10.1000/meta", Title: "A Title", CitationCount: 12}
	res := types.Success([]byte(fakePDFContent), types.StrategyMirror, "https://mirror.example/x.pdf")

	require.NoError(t, WriteMetadata(dir, rec, res))

	meta, err := ReadMetadata(dir, rec.DOI)
	require.NoError(t, err)
	assert.Equal(t, "A Title", meta.Title)
	assert.Equal(t, 12, meta.CitationCount)
	assert.Equal(t, types.StrategyMirror, meta.Source)
	assert.Equal(t, PDFPath(dir, rec.DOI), meta.PDFPath)
}

func TestWriteMetadata_CacheHitKeepsDownloadURL(t *testing.T) {
	dir := t.TempDir()
	rec := types.PaperRecord{DOI: "10.1000/meta", Title: "A Title"}
	downloaded := types.Success([]byte(fakePDFContent), types.StrategyUnpaywall, "https://oa.example/x.pdf")
	require.NoError(t, WriteMetadata(dir, rec, downloaded))

	cached := types.Success([]byte(fakePDFContent), types.SourceCache, PDFPath(dir, rec.DOI))
	require.NoError(t, WriteMetadata(dir, rec, cached))

	meta, err := ReadMetadata(dir, rec.DOI)
	require.NoError(t, err)
	assert.Equal(t, types.StrategyUnpaywall, meta.Source)
	assert.Equal(t, "https://oa.example/x.pdf", meta.SourceURL)

	// Without earlier metadata a cache hit still records one.
	other := types.PaperRecord{DOI: "10.1000/manual"}
	require.NoError(t, WriteMetadata(dir, other, types.Success(nil, types.SourceCache, "papers/raw/manual.pdf")))
	meta, err = ReadMetadata(dir, other.DOI)
	require.NoError(t, err)
	assert.Equal(t, types.SourceCache, meta.Source)
}

// fakeStrategy returns a canned result and counts calls.
type fakeStrategy struct {
	name  string
	res   types.AcquisitionResult
	calls int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Attempt(context.Context, string) types.AcquisitionResult {
	f.calls++
	return f.res
}

func TestChainEvaluatesInOrderAndNeverRetries(t *testing.T) {
	a := &fakeStrategy{name: "a", res: types.Failure(types.FailureNetworkError, ErrNetwork)}
	b := &fakeStrategy{name: "b", res: types.Success([]byte(fakePDFContent), "b", "u")}
	c := &fakeStrategy{name: "c", res: types.Success([]byte(fakePDFContent), "c", "u")}

	chain := NewChainOf(a, b, c)
	res := chain.Resolve(context.Background(), "10.1000/x")

	assert.Equal(t, "b", res.Source)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, []string{"a", "b", "c"}, chain.Strategies())
}

func TestChainStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeStrategy{name: "a", res: types.Failure(types.FailureNetworkError, context.Canceled)}
	b := &fakeStrategy{name: "b", res: types.Success([]byte(fakePDFContent), "b", "u")}
	cancel()

	res := NewChainOf(a, b).Resolve(ctx, "10.1000/x")

	assert.False(t, res.OK())
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Equal(t, 0, b.calls)
}

func TestAggregate(t *testing.T) {
	nf := types.Failure(types.FailureNotFound, ErrNotFound)
	pw := types.Failure(types.FailurePaywalled, ErrPaywalled)
	pe := types.Failure(types.FailureParseError, ErrNotPDF)
	ne := types.Failure(types.FailureNetworkError, ErrNetwork)

	tests := []struct {
		name     string
		failures []types.AcquisitionResult
		want     types.FailureReason
	}{
		{"none", nil, types.FailureNotFound},
		{"only network", []types.AcquisitionResult{ne, ne}, types.FailureNetworkError},
		{"network ignored", []types.AcquisitionResult{nf, ne}, types.FailureNotFound},
		{"paywalled wins", []types.AcquisitionResult{pw, pe, nf}, types.FailurePaywalled},
		{"parse beats not found", []types.AcquisitionResult{nf, pe}, types.FailureParseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, aggregate(tt.failures).Reason)
		})
	}
}

func TestNewChainConfig(t *testing.T) {
	ps := newPaperServer(t)

	cfg := testAcqConfig(ps)
	cfg.Strategies = []string{types.StrategyOpenAlex, types.StrategyUnpaywall, types.StrategyMirror}
	c, err := NewChain(ps.Client(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Strategies, c.Strategies())

	cfg.MirrorURL = ""
	c, err = NewChain(ps.Client(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{types.StrategyOpenAlex, types.StrategyUnpaywall}, c.Strategies())

	cfg.Strategies = []string{"scholar"}
	_, err = NewChain(ps.Client(), cfg, nil)
	assert.Error(t, err)

	cfg.Strategies = []string{types.StrategyMirror}
	_, err = NewChain(ps.Client(), cfg, nil)
	assert.Error(t, err, "mirror without URL leaves no strategies")
}
