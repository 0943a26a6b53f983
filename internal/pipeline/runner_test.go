package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/guard"
	"github.com/valpere/perepys/internal/images"
	"github.com/valpere/perepys/internal/model"
	"github.com/valpere/perepys/internal/publisher"
	"github.com/valpere/perepys/internal/scraper"
	"github.com/valpere/perepys/internal/store"
	"github.com/valpere/perepys/internal/validator"
)

type fakeSource struct {
	article *article.RawArticle
	err     error
	fn      func(rawURL string) (*article.RawArticle, error)
	fetches atomic.Int32
}

var _ scraper.Source = (*fakeSource)(nil)

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, rawURL string) (*article.RawArticle, error) {
	f.fetches.Add(1)
	if f.fn != nil {
		return f.fn(rawURL)
	}
	if f.err != nil {
		return nil, f.err
	}
	a := *f.article
	a.URL = rawURL
	return &a, nil
}

type fakePublisher struct {
	publishFn func(post publisher.Post) (*publisher.Result, error)
	uploadFn  func(filename string, data []byte) (*publisher.Media, error)

	publishes atomic.Int32
	uploads   atomic.Int32
	lastPost  publisher.Post
}

var _ publisher.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Publish(ctx context.Context, post publisher.Post) (*publisher.Result, error) {
	f.publishes.Add(1)
	f.lastPost = post
	if f.publishFn != nil {
		return f.publishFn(post)
	}
	return &publisher.Result{ID: 1, Link: "https://cms.example.com/?p=1", Status: "draft"}, nil
}

func (f *fakePublisher) UploadMedia(ctx context.Context, filename string, data []byte) (*publisher.Media, error) {
	f.uploads.Add(1)
	if f.uploadFn != nil {
		return f.uploadFn(filename, data)
	}
	return &publisher.Media{ID: 1, URL: "https://cms.example.com/media/" + filename}, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newRunner(engine model.Engine, src scraper.Source, st *store.Store) *Runner {
	return &Runner{
		Source:     src,
		Controller: NewController(engine, guard.New(guard.Config{}), passScorer(), Config{MaxIterations: 3, OptimizeEachCycle: true}),
		Store:      st,
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	ctx := context.Background()

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.RunID == "" {
		t.Error("run id not assigned")
	}
	if !res.Accepted || res.State != string(StateAccepted) {
		t.Errorf("accepted/state = %v/%q", res.Accepted, res.State)
	}

	rec, err := st.GetRun(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if rec.State != string(StateAccepted) || rec.URL != "https://blog.example.com/grinders" || rec.Iterations != 1 {
		t.Errorf("persisted run = %+v", rec)
	}

	attempts, err := st.ListAttempts(ctx, res.RunID)
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Source != string(article.SourceRewrite) {
		t.Errorf("attempts = %+v, want one rewrite row", attempts)
	}

	if _, ok, err := st.GetCachedArticle(ctx, "https://blog.example.com/grinders"); err != nil || !ok {
		t.Errorf("fetched article not cached: ok=%v err=%v", ok, err)
	}
}

func TestRunner_FetchErrorShortCircuits(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{err: &scraper.FetchError{URL: "https://blog.example.com/x", Kind: scraper.KindUnreachable, Message: "status 503"}}
	pub := &fakePublisher{}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	r.Publisher = pub
	ctx := context.Background()

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/x", Publish: true})
	if res != nil {
		t.Errorf("res = %+v, want nil on fetch failure", res)
	}
	var fetchErr *scraper.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Kind != scraper.KindUnreachable {
		t.Fatalf("err = %v, want the scraper error preserved", err)
	}

	if engine.rewrites.Load() != 0 || pub.publishes.Load() != 0 {
		t.Errorf("backend/publisher called after a fetch failure: %d/%d", engine.rewrites.Load(), pub.publishes.Load())
	}
	runs, err := st.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("got %d persisted runs, want none", len(runs))
	}
}

func TestRunner_CacheHitSkipsScraper(t *testing.T) {
	engine := &fakeEngine{
		rewriteFn: func(req model.RewriteRequest) (string, error) {
			return "Rewritten from: " + req.Body, nil
		},
	}
	fresh := testArticle()
	fresh.Body = "Fresh body from the network."
	src := &fakeSource{article: fresh}
	st := newTestStore(t)
	ctx := context.Background()

	cached := testArticle()
	cached.Body = "Body kept in the cache."
	if err := st.CacheArticle(ctx, cached); err != nil {
		t.Fatalf("CacheArticle: %v", err)
	}

	r := newRunner(engine, src, st)
	res, err := r.Run(ctx, RunRequest{URL: cached.URL})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if src.fetches.Load() != 0 {
		t.Errorf("scraper called %d times on a cache hit", src.fetches.Load())
	}
	if !strings.Contains(res.Final.Body, "Body kept in the cache.") {
		t.Errorf("final body not derived from the cached article: %q", res.Final.Body)
	}

	// Refresh bypasses the cache and fetches anew.
	if _, err := r.Run(ctx, RunRequest{URL: cached.URL, Refresh: true}); err != nil {
		t.Fatalf("Run with refresh: %v", err)
	}
	if src.fetches.Load() != 1 {
		t.Errorf("scraper calls after refresh = %d, want 1", src.fetches.Load())
	}
}

func TestRunner_RewriteCacheHitSkipsEngine(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	ctx := context.Background()

	first, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !first.Accepted {
		t.Fatalf("first run not accepted: %+v", first)
	}

	second, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run (replay): %v", err)
	}

	if engine.rewrites.Load() != 1 {
		t.Errorf("backend called %d times, want the replay to skip it", engine.rewrites.Load())
	}
	if src.fetches.Load() != 1 {
		t.Errorf("scraper called %d times, want the replay to skip it", src.fetches.Load())
	}
	if second.Final.Body != first.Final.Body || second.Final.Title != first.Final.Title {
		t.Errorf("replayed candidate differs:\nfirst  %+v\nsecond %+v", first.Final, second.Final)
	}
	if !second.Accepted || second.State != string(StateAccepted) {
		t.Errorf("replay accepted/state = %v/%q", second.Accepted, second.State)
	}
	if second.Report.SEOScore != first.Report.SEOScore || second.Report.ContentScore != first.Report.ContentScore {
		t.Errorf("replayed scores = %v/%v, want %v/%v",
			second.Report.SEOScore, second.Report.ContentScore, first.Report.SEOScore, first.Report.ContentScore)
	}
	if second.RunID == "" || second.RunID == first.RunID {
		t.Errorf("replay run id = %q, want a fresh one", second.RunID)
	}

	runs, err := st.ListRuns(ctx, store.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d persisted runs, want one per invocation", len(runs))
	}

	// Refresh reprocesses from scratch.
	if _, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders", Refresh: true}); err != nil {
		t.Fatalf("Run with refresh: %v", err)
	}
	if engine.rewrites.Load() != 2 {
		t.Errorf("backend calls after refresh = %d, want 2", engine.rewrites.Load())
	}
}

func TestRunner_RewriteCacheReplayPublishes(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	pub := &fakePublisher{}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	r.Publisher = pub
	ctx := context.Background()

	if _, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pub.publishes.Load() != 0 {
		t.Fatalf("published %d times without the flag", pub.publishes.Load())
	}

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders", Publish: true})
	if err != nil {
		t.Fatalf("Run (replay with publish): %v", err)
	}

	if engine.rewrites.Load() != 1 {
		t.Errorf("backend called %d times, want the replay to skip it", engine.rewrites.Load())
	}
	if pub.publishes.Load() != 1 || res.Publication == nil || res.Publication.RemoteID != 1 {
		t.Errorf("publishes = %d, publication = %+v", pub.publishes.Load(), res.Publication)
	}
	if pub.lastPost.Content != res.Final.Body {
		t.Errorf("published content diverges from the replayed candidate")
	}

	saved, err := st.GetPublication(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetPublication: %v", err)
	}
	if saved == nil || saved.RemoteID != 1 {
		t.Errorf("persisted publication = %+v", saved)
	}
}

func TestRunner_ExhaustedRunNotCached(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	st := newTestStore(t)
	r := &Runner{
		Source:     src,
		Controller: NewController(engine, guard.New(guard.Config{}), failScorer(), Config{MaxIterations: 2}),
		Store:      st,
	}
	ctx := context.Background()

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Accepted {
		t.Fatalf("expected an exhausted run, got %+v", res)
	}

	rewrites := engine.rewrites.Load()
	if _, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders"}); err != nil {
		t.Fatalf("Run (retry): %v", err)
	}
	if engine.rewrites.Load() == rewrites {
		t.Error("retry of an exhausted run served from the cache")
	}
}

func TestRunner_PublishSuccess(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	pub := &fakePublisher{
		publishFn: func(post publisher.Post) (*publisher.Result, error) {
			return &publisher.Result{ID: 42, Link: "https://cms.example.com/?p=42", Status: "draft"}, nil
		},
	}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	r.Publisher = pub
	ctx := context.Background()

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders", Publish: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Publication == nil || res.Publication.RemoteID != 42 || res.Publication.Error != "" {
		t.Fatalf("publication = %+v", res.Publication)
	}
	if pub.lastPost.Title != res.Final.Title || pub.lastPost.Content != res.Final.Body || pub.lastPost.Excerpt != res.Final.Description {
		t.Errorf("published post diverges from the final candidate: %+v", pub.lastPost)
	}

	saved, err := st.GetPublication(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetPublication: %v", err)
	}
	if saved == nil || saved.RemoteID != 42 || saved.Link != "https://cms.example.com/?p=42" {
		t.Errorf("persisted publication = %+v", saved)
	}
}

func TestRunner_PublishErrorNonFatal(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	pub := &fakePublisher{
		publishFn: func(publisher.Post) (*publisher.Result, error) {
			return nil, &publisher.PublishError{Kind: publisher.KindUnauthorized, Status: 401, Message: "bad app password"}
		},
	}
	st := newTestStore(t)
	r := newRunner(engine, src, st)
	r.Publisher = pub
	ctx := context.Background()

	res, err := r.Run(ctx, RunRequest{URL: "https://blog.example.com/grinders", Publish: true})
	if err != nil {
		t.Fatalf("Run must not fail on a publish error, got %v", err)
	}

	if res.Publication == nil || !strings.Contains(res.Publication.Error, "unauthorized") {
		t.Fatalf("publication = %+v, want the failure recorded", res.Publication)
	}
	if !res.Accepted {
		t.Error("publish failure invalidated the pipeline result")
	}

	saved, err := st.GetPublication(ctx, res.RunID)
	if err != nil {
		t.Fatalf("GetPublication: %v", err)
	}
	if saved == nil || saved.Error == "" {
		t.Errorf("persisted publication = %+v, want the error kept", saved)
	}
}

func TestRunner_NoPublishWithoutFlag(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	pub := &fakePublisher{}
	r := newRunner(engine, src, nil)
	r.Publisher = pub

	res, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pub.publishes.Load() != 0 {
		t.Errorf("published %d times without the flag", pub.publishes.Load())
	}
	if res.Publication != nil {
		t.Errorf("publication = %+v, want none", res.Publication)
	}
}

func TestRunner_KeywordOverride(t *testing.T) {
	var gotKeywords []string
	engine := &fakeEngine{
		rewriteFn: func(req model.RewriteRequest) (string, error) {
			gotKeywords = append([]string(nil), req.Keywords...)
			return "A fresh look at the topic.", nil
		},
	}
	src := &fakeSource{article: testArticle()}
	r := newRunner(engine, src, nil)

	if _, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders", Keyword: "espresso"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(gotKeywords) != 2 || gotKeywords[0] != "espresso" || gotKeywords[1] != "grinder" {
		t.Errorf("keywords = %v, want the override first", gotKeywords)
	}
}

func TestRunner_ImagesEmbeddedAndUploaded(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	}))
	defer imgSrv.Close()

	raw := testArticle()
	raw.Images = []article.ImageRef{{URL: imgSrv.URL + "/shots/crema.jpg", Alt: "Crema"}}

	engine := &fakeEngine{
		rewriteFn: func(model.RewriteRequest) (string, error) {
			return "One.\n\nTwo.\n\nThree.\n\nFour.\n\nFive.\n\nSix.", nil
		},
	}
	src := &fakeSource{article: raw}
	pub := &fakePublisher{
		uploadFn: func(filename string, data []byte) (*publisher.Media, error) {
			return &publisher.Media{ID: 7, URL: "https://cms.example.com/media/" + filename}, nil
		},
	}

	r := newRunner(engine, src, nil)
	r.Publisher = pub
	r.Images = images.New(images.Config{Enabled: true, Dir: filepath.Join(t.TempDir(), "images"), Upload: true})

	res, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders", Publish: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if pub.uploads.Load() != 1 {
		t.Fatalf("uploads = %d, want 1", pub.uploads.Load())
	}
	if !strings.Contains(res.Final.Body, "https://cms.example.com/media/crema.jpg") {
		t.Errorf("final body missing the uploaded image reference:\n%s", res.Final.Body)
	}
	if pub.lastPost.FeaturedMedia != 7 {
		t.Errorf("featured media = %d, want the first upload", pub.lastPost.FeaturedMedia)
	}
	if !strings.Contains(pub.lastPost.Content, "https://cms.example.com/media/crema.jpg") {
		t.Errorf("published content missing the image:\n%s", pub.lastPost.Content)
	}
}

func TestRunner_NoUploadWithoutPublish(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer imgSrv.Close()

	raw := testArticle()
	raw.Images = []article.ImageRef{{URL: imgSrv.URL + "/logo.png"}}

	engine := &fakeEngine{}
	src := &fakeSource{article: raw}
	pub := &fakePublisher{}
	r := newRunner(engine, src, nil)
	r.Publisher = pub
	r.Images = images.New(images.Config{Enabled: true, Dir: filepath.Join(t.TempDir(), "images"), Upload: true})

	res, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if pub.uploads.Load() != 0 {
		t.Errorf("uploads = %d, want none without publishing", pub.uploads.Load())
	}
	if !strings.Contains(res.Final.Body, "![") {
		t.Errorf("local image reference not embedded:\n%s", res.Final.Body)
	}
}

func TestRunner_LanguageMismatchWarning(t *testing.T) {
	engine := &fakeEngine{
		rewriteFn: func(model.RewriteRequest) (string, error) {
			return "This is a longer piece of English text about coffee grinders. " +
				"It talks about burrs, grind size and why freshness matters for every single cup you brew.", nil
		},
	}
	src := &fakeSource{article: testArticle()}
	r := newRunner(engine, src, nil)
	r.Validator = validator.New()
	r.Language = "uk"

	res, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "language check") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings = %v, want a language mismatch entry", res.Warnings)
	}
	if !res.Accepted {
		t.Error("language mismatch must stay advisory")
	}
}

func TestRunner_MinimalWiring(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{article: testArticle()}
	r := newRunner(engine, src, nil)

	res, err := r.Run(context.Background(), RunRequest{URL: "https://blog.example.com/grinders"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Accepted || res.Publication != nil || len(res.Warnings) != 0 {
		t.Errorf("res = accepted %v, publication %+v, warnings %v", res.Accepted, res.Publication, res.Warnings)
	}
}
