package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/scraper"
)

func TestRunBatch_ContinuesPastFailures(t *testing.T) {
	engine := &fakeEngine{}
	src := &fakeSource{
		fn: func(rawURL string) (*article.RawArticle, error) {
			if strings.Contains(rawURL, "broken") {
				return nil, &scraper.FetchError{URL: rawURL, Kind: scraper.KindUnreachable, Message: "status 503"}
			}
			a := *testArticle()
			a.URL = rawURL
			return &a, nil
		},
	}
	r := newRunner(engine, src, nil)

	reqs := []RunRequest{
		{URL: "https://blog.example.com/one"},
		{URL: "https://blog.example.com/broken"},
		{URL: "https://blog.example.com/three"},
	}
	items := r.RunBatch(context.Background(), reqs, time.Millisecond)

	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}
	if items[0].Err != nil || items[0].Result == nil || !items[0].Result.Accepted {
		t.Errorf("item 0 = %+v", items[0])
	}
	var fetchErr *scraper.FetchError
	if !errors.As(items[1].Err, &fetchErr) || items[1].Result != nil {
		t.Errorf("item 1 = err %v, result %+v", items[1].Err, items[1].Result)
	}
	if items[2].Err != nil || items[2].Result == nil {
		t.Errorf("item 2 = %+v, batch must continue past a failure", items[2])
	}
	if items[2].Request.URL != "https://blog.example.com/three" {
		t.Errorf("item order lost: %q", items[2].Request.URL)
	}
}

func TestRunBatch_CancellationStopsTheRest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{}
	src := &fakeSource{
		fn: func(rawURL string) (*article.RawArticle, error) {
			cancel()
			a := *testArticle()
			a.URL = rawURL
			return &a, nil
		},
	}
	r := newRunner(engine, src, nil)

	reqs := []RunRequest{
		{URL: "https://blog.example.com/one"},
		{URL: "https://blog.example.com/two"},
		{URL: "https://blog.example.com/three"},
	}
	items := r.RunBatch(ctx, reqs, time.Minute)

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2 (first ran, second hit the cancelled wait)", len(items))
	}
	if !errors.Is(items[1].Err, context.Canceled) {
		t.Errorf("item 1 err = %v, want context.Canceled", items[1].Err)
	}
}
