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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/perepys/internal/guard"
	"github.com/valpere/perepys/internal/pipeline"
	"github.com/valpere/perepys/internal/seo"
	"github.com/valpere/perepys/internal/validator"
)

var (
	rewriteKeyword   string
	rewriteOutputDir string
)

var rewriteCmd = &cobra.Command{
	Use:   "rewrite <file>",
	Short: "Run the rewrite loop on a local article file",
	Long: `Rewrite an article loaded from disk instead of a URL: a JSON dump from
"perepys scrape" or a markdown file whose first "# " heading is the
title. A missing title or description is drafted by the model first.

The loop, redaction and scoring behave exactly as in "perepys process";
fetching, publishing and the audit trail are skipped.

Examples:
  perepys rewrite article.json -o out/
  perepys rewrite draft.md -k "burr grinder" -o out/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readRawArticle(args[0])
		if err != nil {
			return err
		}

		eng, err := buildEngine()
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := fillMissingMeta(ctx, eng, raw); err != nil {
			return err
		}
		if rewriteKeyword != "" {
			kws := []string{rewriteKeyword}
			for _, k := range raw.Metadata.Keywords {
				if k != rewriteKeyword {
					kws = append(kws, k)
				}
			}
			raw.Metadata.Keywords = kws
		}

		controller := pipeline.NewController(
			eng, guard.New(cfg.Guard), seo.New(cfg.SEO, cfg.Quality), cfg.Pipeline)

		progressf("Rewriting %s with %s\n", args[0], eng.Name())
		res := controller.Run(ctx, raw)

		if lang := cfg.Pipeline.Language; lang != "" && res.Final.Body != "" {
			if ok, err := validator.New().IsValid(res.Final.Body, lang); !ok && err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("language check: %v", err))
			}
		}

		printRunSummary(res)
		if res.Final.Body == "" {
			if res.Err != nil {
				return res.Err
			}
			return fmt.Errorf("rewrite produced no candidate")
		}

		mdPath, err := writeArticleFiles(rewriteOutputDir, res)
		if err != nil {
			return err
		}
		fmt.Printf("Saved to %s\n", mdPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rewriteCmd)

	rewriteCmd.Flags().StringVarP(&rewriteOutputDir, "output", "o", "", "Directory for the rewritten article (required)")
	rewriteCmd.Flags().StringVarP(&rewriteKeyword, "keyword", "k", "", "Primary keyword override")

	rewriteCmd.MarkFlagRequired("output")
}
