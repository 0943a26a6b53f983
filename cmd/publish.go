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

	"github.com/valpere/perepys/internal/publisher"
)

var publishStatus string

var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a finished article to WordPress",
	Long: `Publish a rewritten article from disk: the JSON result written by
"perepys process" or "perepys rewrite", or a markdown file whose first
"# " heading is the title.

Requires wordpress.api_url, wordpress.username and wordpress.app_password
in the configuration. Posts default to the configured status (draft
unless changed).

Examples:
  perepys publish out/some-article.json
  perepys publish out/some-article.md --status publish`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.WordPress.APIURL == "" {
			return fmt.Errorf("wordpress.api_url is not configured")
		}

		cand, err := readCandidate(args[0])
		if err != nil {
			return err
		}

		client := publisher.NewWordPressClient(cfg.WordPress)

		progressf("Publishing %q to %s\n", cand.Title, cfg.WordPress.APIURL)
		result, err := client.Publish(context.Background(), publisher.Post{
			Title:   cand.Title,
			Content: cand.Body,
			Excerpt: cand.Description,
			Status:  publishStatus,
		})
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", args[0], err)
		}

		fmt.Printf("Published: %s (id %d, status %s)\n", result.Link, result.ID, result.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishStatus, "status", "", "Post status: draft, publish or private (default from config)")
}
