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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valpere/perepys/internal/article"
	"github.com/valpere/perepys/internal/detector"
	"github.com/valpere/perepys/internal/scraper"
)

var (
	scrapeOutputFile string
	scrapeFormat     string
	scrapeFillMeta   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Fetch and extract a blog article without rewriting",
	Long: `Fetch a blog article and extract its main content, metadata and image
references, without running the rewrite loop.

The JSON format keeps everything and feeds straight into "perepys
rewrite"; markdown keeps just the title and body. With --fill-meta a
missing title or description is drafted by the configured model.

Examples:
  perepys scrape https://blog.example.com/posts/some-article
  perepys scrape https://blog.example.com/posts/some-article -f json -o article.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if scrapeFormat != "markdown" && scrapeFormat != "json" {
			return fmt.Errorf("unknown format %q (markdown or json)", scrapeFormat)
		}

		ctx := context.Background()

		src := scraper.Auto(cfg.Scraper, detector.New())
		progressf("Fetching %s\n", args[0])
		raw, err := src.Fetch(ctx, args[0])
		if err != nil {
			return err
		}
		progressf("Extracted %d words, language %q, %d images\n",
			len(strings.Fields(raw.Body)), raw.Metadata.Language, len(raw.Images))

		if scrapeFillMeta && (raw.Title == "" || raw.Metadata.Description == "") {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			if err := fillMissingMeta(ctx, eng, raw); err != nil {
				return err
			}
		}

		var text string
		if scrapeFormat == "json" {
			data, err := json.MarshalIndent(raw, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode article: %w", err)
			}
			text = string(data) + "\n"
		} else {
			text = renderMarkdown(article.Candidate{Title: raw.Title, Body: raw.Body})
		}

		if err := writeOrPrint(scrapeOutputFile, text); err != nil {
			return err
		}
		if scrapeOutputFile != "" {
			fmt.Printf("Saved %s to %s\n", raw.URL, scrapeOutputFile)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	scrapeCmd.Flags().StringVarP(&scrapeOutputFile, "output", "o", "", "Output file (default stdout)")
	scrapeCmd.Flags().StringVarP(&scrapeFormat, "format", "f", "markdown", "Output format: markdown or json")
	scrapeCmd.Flags().BoolVar(&scrapeFillMeta, "fill-meta", false, "Draft a missing title/description with the model")
}
