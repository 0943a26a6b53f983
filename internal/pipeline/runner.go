package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/images"
	"github.com/valpere/perepys/internal/publisher"
	"github.com/valpere/perepys/internal/scraper"
	"github.com/valpere/perepys/internal/store"
	"github.com/valpere/perepys/internal/validator"
)

// Runner ties the stages around the loop together: replay a cached
// rewrite when one exists, otherwise fetch with cache lookup, run the
// controller, weave in images, publish once, persist the run and cache
// the accepted text. Optional collaborators stay nil when their feature
// is off; only Source and Controller are required. A Runner drives one
// article at a time.
type Runner struct {
	Source     scraper.Source
	Controller *Controller
	Validator  *validator.Validator
	Images     *images.Processor
	Publisher  publisher.Publisher
	Store      *store.Store

	// Language is the expected output language (ISO 639-1); empty skips
	// the check. Mismatches become warnings, never failures.
	Language string
}

// RunRequest is one article to process.
type RunRequest struct {
	URL     string
	Keyword string // primary keyword override, put first when set
	Publish bool
	Refresh bool // bypass the article and rewrite caches, process anew
}

// Run processes one URL end to end. An accepted rewrite of the same URL
// and model is replayed from the cache without fetching or calling the
// backend unless Refresh is set; publishing still happens on request and
// the replay is recorded as its own run. Otherwise a fetch failure
// aborts before any backend or publisher call; after the loop has
// produced a result every later failure (validation, images, publish,
// persistence) degrades to a warning or to Publication.Error on that
// result.
func (r *Runner) Run(ctx context.Context, req RunRequest) (*article.PipelineResult, error) {
	runID := uuid.NewString()

	if r.Store != nil && !req.Refresh {
		if res, ok, err := r.Store.GetCachedRewrite(ctx, req.URL, r.Controller.Model()); err == nil && ok {
			res.RunID = runID
			if req.Publish && r.Publisher != nil && res.Final.Body != "" {
				res.Publication = r.publish(ctx, res.Final, 0)
			}
			r.persist(ctx, res)
			return res, nil
		}
	}

	raw, cached, err := r.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if !cached && r.Store != nil {
		if err := r.Store.CacheArticle(ctx, raw); err != nil {
			warnings = append(warnings, fmt.Sprintf("article cache write failed: %v", err))
		}
	}

	if req.Keyword != "" {
		raw.Metadata.Keywords = promoteKeyword(raw.Metadata.Keywords, req.Keyword)
	}

	if r.Store != nil {
		r.Controller.OnAttempt = func(att article.Attempt) {
			if err := r.Store.SaveAttempt(ctx, runID, att); err != nil {
				warnings = append(warnings, fmt.Sprintf("attempt audit write failed: %v", err))
			}
		}
	}

	res := r.Controller.Run(ctx, raw)
	res.RunID = runID
	res.Warnings = warnings

	if r.Validator != nil && r.Language != "" && res.Final.Body != "" {
		if ok, err := r.Validator.IsValid(res.Final.Body, r.Language); !ok && err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("language check: %v", err))
		}
	}

	featured := r.placeImages(ctx, raw, res, req.Publish)

	if req.Publish && r.Publisher != nil && res.Final.Body != "" {
		res.Publication = r.publish(ctx, res.Final, featured)
	}

	if r.Store != nil && res.Accepted {
		if err := r.Store.CacheRewrite(ctx, res); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("rewrite cache write failed: %v", err))
		}
	}

	r.persist(ctx, res)
	return res, nil
}

// fetch returns the article from the cache when allowed, the scraper
// otherwise. The cached copy already carries detected language and
// keywords from the original fetch.
func (r *Runner) fetch(ctx context.Context, req RunRequest) (*article.RawArticle, bool, error) {
	if r.Store != nil && !req.Refresh {
		if raw, ok, err := r.Store.GetCachedArticle(ctx, req.URL); err == nil && ok {
			return raw, true, nil
		}
	}
	raw, err := r.Source.Fetch(ctx, req.URL)
	if err != nil {
		return nil, false, err
	}
	return raw, false, nil
}

// placeImages downloads the source article's images, uploads them to the
// CMS when publishing with upload enabled, and weaves references into the
// final body. Returns the media ID to use as the featured image, zero for
// none.
func (r *Runner) placeImages(ctx context.Context, raw *article.RawArticle, res *article.PipelineResult, publishing bool) int {
	if r.Images == nil || res.Final.Body == "" || len(raw.Images) == 0 {
		return 0
	}

	stored := r.Images.DownloadAll(ctx, raw.Images, raw.URL)
	if len(stored) < len(raw.Images) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("downloaded %d of %d images", len(stored), len(raw.Images)))
	}
	if len(stored) == 0 {
		return 0
	}

	featured := 0
	if publishing && r.Publisher != nil && r.Images.UploadEnabled() {
		for i := range stored {
			media, err := r.Publisher.UploadMedia(ctx, stored[i].Filename, stored[i].Data)
			if err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("media upload failed for %s: %v", stored[i].Filename, err))
				continue
			}
			stored[i].URL = media.URL
			if featured == 0 {
				featured = media.ID
			}
		}
	}

	res.Final.Body = r.Images.Embed(res.Final.Body, stored)
	return featured
}

// publish pushes the final candidate once. Failures land in the returned
// Publication, not in the run's error.
func (r *Runner) publish(ctx context.Context, final article.Candidate, featured int) *article.Publication {
	result, err := r.Publisher.Publish(ctx, publisher.Post{
		Title:         final.Title,
		Content:       final.Body,
		Excerpt:       final.Description,
		FeaturedMedia: featured,
	})
	if err != nil {
		return &article.Publication{Error: err.Error()}
	}
	return &article.Publication{
		RemoteID: result.ID,
		Link:     result.Link,
		Status:   result.Status,
	}
}

// persist writes the terminal run row and the publication outcome. Audit
// failures degrade to warnings on the result.
func (r *Runner) persist(ctx context.Context, res *article.PipelineResult) {
	if r.Store == nil {
		return
	}

	rec := store.RunRecord{
		ID:           res.RunID,
		URL:          res.URL,
		Model:        res.Model,
		Title:        res.Final.Title,
		State:        res.State,
		Accepted:     res.Accepted,
		SEOScore:     res.Report.SEOScore,
		ContentScore: res.Report.ContentScore,
		Iterations:   res.IterationsUsed,
		Findings:     res.Findings,
		Warnings:     res.Warnings,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := r.Store.SaveRun(ctx, rec); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("run audit write failed: %v", err))
		return
	}
	if res.Publication != nil {
		if err := r.Store.SavePublication(ctx, res.RunID, *res.Publication); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("publication audit write failed: %v", err))
		}
	}
}

// promoteKeyword puts the override first, dropping a duplicate deeper in
// the list.
func promoteKeyword(keywords []string, keyword string) []string {
	out := []string{keyword}
	for _, k := range keywords {
		if k != keyword {
			out = append(out, k)
		}
	}
	return out
}
