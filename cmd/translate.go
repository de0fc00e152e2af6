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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/posttran/internal"
	"github.com/valpere/posttran/internal/client"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Detect and translate a single post",
	Long: `Run one post through the pipeline and print the JSON the server would
return.

The post is read from --content, from --input (a file, or - for stdin), or
from stdin when neither is given. With --remote the post is sent to a
running server instead of being processed locally.

Examples:
  posttran translate --content "Hola a todos"
  posttran translate --input post.md --services google,mymemory
  echo "Bonjour" | posttran translate --remote http://localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var result internal.PageResult

		if remote, _ := cmd.Flags().GetString("remote"); remote != "" {
			res, err := client.New(remote).Page(ctx, content)
			if err != nil {
				return err
			}
			result = *res
		} else {
			a, err := newApp(globalConfig)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			out, err := a.pipeline.Process(ctx, content)
			if err != nil {
				return err
			}
			result = out.PageResult
			fmt.Fprintf(cmd.ErrOrStderr(), "Detected: %s  Target: %s  Service: %s  Cached: %v  (%s)\n",
				valueOr(out.DetectedLang, "unknown"), a.pipeline.TargetLang(), valueOr(out.Service, "-"), out.Cached,
				time.Since(start).Round(time.Millisecond))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(result)
	},
}

func readContent(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("content") {
		return cmd.Flags().GetString("content")
	}

	input, _ := cmd.Flags().GetString("input")
	if input != "" && input != "-" {
		data, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("failed to read input file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("content", "c", "", "post content")
	translateCmd.Flags().StringP("input", "i", "", "file holding the post (- for stdin)")
	translateCmd.Flags().String("remote", "", "URL of a running posttran server")
	translateCmd.Flags().Bool("pretty", false, "indent the JSON output")

	translateCmd.Flags().StringSlice("services", nil, "translation services in priority order (google, mymemory, ollama, openrouter)")
	translateCmd.Flags().StringP("target", "t", "en", "target language code")
	translateCmd.Flags().Bool("strict", false, "fail instead of printing the source text when every service fails")
	translateCmd.Flags().Bool("no-cache", false, "disable the translation memory")
	translateCmd.Flags().String("db", "", "database path for translation memory")
}
