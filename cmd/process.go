/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/perepys/internal/pipeline"
)

var (
	processPublish   bool
	processCSVFile   string
	processOutputDir string
	processKeyword   string
	processRefresh   bool
	processDelay     time.Duration
)

var processCmd = &cobra.Command{
	Use:   "process [url]",
	Short: "Rewrite a blog article end to end",
	Long: `Fetch a blog article, rewrite it with the configured model, redact
branding, and iterate until the rewrite clears the SEO and content
thresholds or the iteration budget runs out.

A single URL is processed directly. With --csv each row of the file is
processed in turn, paced by the batch delay; the first column is the URL
and an optional second column sets the primary keyword.

Examples:
  perepys process https://blog.example.com/posts/some-article
  perepys process https://blog.example.com/posts/some-article --publish -o out/
  perepys process --csv articles.csv -o out/ --publish`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if processCSVFile == "" && len(args) != 1 {
			return fmt.Errorf("expected a blog URL argument (or --csv)")
		}
		if processCSVFile != "" && len(args) > 0 {
			return fmt.Errorf("--csv and a URL argument are mutually exclusive")
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}
		runner, cleanup, err := buildRunner(eng)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx := context.Background()

		if processCSVFile != "" {
			return processBatch(ctx, runner)
		}

		req := pipeline.RunRequest{
			URL:     args[0],
			Keyword: processKeyword,
			Publish: processPublish,
			Refresh: processRefresh,
		}
		progressf("Processing %s with %s\n", req.URL, eng.Name())

		res, err := runner.Run(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", req.URL, err)
		}

		printRunSummary(res)
		if processOutputDir != "" && res.Final.Body != "" {
			mdPath, err := writeArticleFiles(processOutputDir, res)
			if err != nil {
				return err
			}
			fmt.Printf("Saved to %s\n", mdPath)
		}
		if res.Err != nil && res.Final.Body == "" {
			return res.Err
		}
		return nil
	},
}

func processBatch(ctx context.Context, runner *pipeline.Runner) error {
	reqs, err := readCSVRequests(processCSVFile, processPublish, processRefresh)
	if err != nil {
		return err
	}

	delay := processDelay
	if delay <= 0 {
		delay = cfg.Batch.Delay
	}
	progressf("Processing %d articles, one every %v\n", len(reqs), delay)

	items := runner.RunBatch(ctx, reqs, delay)

	var failed int
	for _, item := range items {
		if item.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Error: %s: %v\n", item.Request.URL, item.Err)
			continue
		}
		printRunSummary(item.Result)
		if processOutputDir != "" && item.Result.Final.Body != "" {
			mdPath, err := writeArticleFiles(processOutputDir, item.Result)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Printf("Saved to %s\n", mdPath)
		}
	}

	fmt.Printf("Processed %d articles, %d failed\n", len(items), failed)
	if failed == len(items) {
		return fmt.Errorf("all %d articles failed", failed)
	}
	return nil
}

// readCSVRequests parses the batch file. Rows whose first column is not
// an http(s) URL are skipped, which also drops a header row.
func readCSVRequests(path string, publish, refresh bool) ([]pipeline.RunRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	var reqs []pipeline.RunRequest
	for i, row := range records {
		if len(row) == 0 {
			continue
		}
		rawURL := strings.TrimSpace(row[0])
		if rawURL == "" {
			continue
		}
		if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
			fmt.Fprintf(os.Stderr, "Skipping CSV row %d: %q is not a URL\n", i+1, rawURL)
			continue
		}
		req := pipeline.RunRequest{URL: rawURL, Publish: publish, Refresh: refresh}
		if len(row) > 1 {
			req.Keyword = strings.TrimSpace(row[1])
		}
		reqs = append(reqs, req)
	}
	if len(reqs) == 0 {
		return nil, fmt.Errorf("no URLs found in %s", path)
	}
	return reqs, nil
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&processPublish, "publish", false, "Publish the result to WordPress")
	processCmd.Flags().StringVar(&processCSVFile, "csv", "", "CSV file with URLs to process in batch")
	processCmd.Flags().StringVarP(&processOutputDir, "output", "o", "", "Directory for rewritten articles (<slug>.md + <slug>.json)")
	processCmd.Flags().StringVarP(&processKeyword, "keyword", "k", "", "Primary keyword override (single URL mode)")
	processCmd.Flags().BoolVar(&processRefresh, "refresh", false, "Bypass the caches and reprocess from scratch")
	processCmd.Flags().DurationVar(&processDelay, "delay", 0, "Delay between batch articles (default from batch.delay)")
}
