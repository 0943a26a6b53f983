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
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/perepys/internal/publisher"
	"github.com/valpere/perepys/internal/translate"
	"github.com/valpere/perepys/internal/validator"
)

var (
	localizeTo         string
	localizeFrom       string
	localizeOutputFile string
	localizePublish    bool
)

var localizeCmd = &cobra.Command{
	Use:   "localize <file>",
	Short: "Translate a finished article into another language",
	Long: `Translate a rewritten article with Google Cloud Translate, keeping
markdown links, images and code spans intact. The output language is
verified and a mismatch reported as a warning.

Requires Google Cloud credentials (localize.credentials_file or
application default credentials).

Examples:
  perepys localize out/some-article.json --to uk -o out/some-article.uk.md
  perepys localize out/some-article.md --to de --publish`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cand, err := readCandidate(args[0])
		if err != nil {
			return err
		}

		ctx := context.Background()

		svc := translate.New(cfg.Localize)
		progressf("Translating %s to %s\n", args[0], localizeTo)
		translated, err := svc.TranslateCandidate(ctx, cand, localizeFrom, localizeTo)
		if err != nil {
			return fmt.Errorf("failed to translate %s: %w", args[0], err)
		}

		if ok, err := validator.New().IsValid(translated.Body, localizeTo); !ok && err != nil {
			fmt.Fprintf(os.Stderr, "Warning: language check: %v\n", err)
		}

		if err := writeOrPrint(localizeOutputFile, renderMarkdown(translated)); err != nil {
			return err
		}
		if localizeOutputFile != "" {
			fmt.Printf("Translated to %s: %s\n", localizeTo, localizeOutputFile)
		}

		if localizePublish {
			if cfg.WordPress.APIURL == "" {
				return fmt.Errorf("wordpress.api_url is not configured")
			}
			client := publisher.NewWordPressClient(cfg.WordPress)
			result, err := client.Publish(ctx, publisher.Post{
				Title:   translated.Title,
				Content: translated.Body,
				Excerpt: translated.Description,
			})
			if err != nil {
				return fmt.Errorf("failed to publish translation: %w", err)
			}
			fmt.Printf("Published: %s (id %d, status %s)\n", result.Link, result.ID, result.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(localizeCmd)

	localizeCmd.Flags().StringVar(&localizeTo, "to", "", "Target language code (required)")
	localizeCmd.Flags().StringVar(&localizeFrom, "from", "auto", "Source language code")
	localizeCmd.Flags().StringVarP(&localizeOutputFile, "output", "o", "", "Output file (default stdout)")
	localizeCmd.Flags().BoolVar(&localizePublish, "publish", false, "Publish the translation to WordPress")

	localizeCmd.MarkFlagRequired("to")
}
