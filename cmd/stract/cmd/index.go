package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonomal/stract/internal/postings"
	"github.com/nonomal/stract/internal/schema"
	"github.com/nonomal/stract/internal/webpage"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage a postings index",
	}
	cmd.AddCommand(newIndexAddCmd())
	cmd.AddCommand(newIndexCommitCmd())
	cmd.AddCommand(newIndexMergeCmd())
	return cmd
}

// indexDoc is the JSON shape index add reads, one object per line. It
// mirrors webpage.Document's text fields; the dedup/ranking hash fields
// are derived from Url, host, Title and Body rather than required on input, since a
// crawler upstream of this CLI is out of scope (spec.md §13, Non-goals).
type indexDoc struct {
	Title           string  `json:"title"`
	Url             string  `json:"url"`
	Body            string  `json:"body"`
	Description     string  `json:"description,omitempty"`
	DmozDescription string  `json:"dmoz_description,omitempty"`
	HostTopic       string  `json:"host_topic,omitempty"`
	SchemaOrgJson   string  `json:"schema_org_json,omitempty"`
	PreComputedScore float64 `json:"precomputed_score,omitempty"`
	LastUpdated     uint64  `json:"last_updated,omitempty"`
	Region          uint64  `json:"region,omitempty"`
}

func newIndexAddCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "add <file.jsonl>...",
		Short: "Insert documents from newline-delimited JSON files and commit them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := postings.Open(path)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()

			w, err := idx.Writer(postings.DefaultWriterConfig())
			if err != nil {
				return fmt.Errorf("open writer: %w", err)
			}
			defer w.Close()

			var inserted int
			for _, file := range args {
				n, err := insertFromFile(w, file)
				inserted += n
				if err != nil {
					return err
				}
			}

			if err := w.Commit(); err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			log.Info("index_add_complete", slog.Int("inserted", inserted), slog.String("path", path))
			fmt.Fprintf(cmd.OutOrStdout(), "inserted %d documents\n", inserted)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "index directory")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func insertFromFile(w *postings.Writer, file string) (int, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var n int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d indexDoc
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return n, fmt.Errorf("%s: parse document: %w", file, err)
		}
		if err := w.Insert(toDocument(d)); err != nil {
			return n, fmt.Errorf("%s: insert %q: %w", file, d.Url, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("%s: %w", file, err)
	}
	return n, nil
}

// toDocument fills webpage.Document's dedup hash fields with FNV
// fingerprints of Url, host and Title, and SimHash with one of Body, in
// lieu of the crawler pipeline that
// produces these in the original system (spec.md §13, Non-goals).
func toDocument(d indexDoc) *webpage.Document {
	return &webpage.Document{
		Title:            d.Title,
		AllBody:          d.Body,
		CleanBody:        d.Body,
		StemmedCleanBody: d.Body,
		Url:              d.Url,
		Description:      d.Description,
		DmozDescription:  d.DmozDescription,
		HostTopic:        d.HostTopic,
		SchemaOrgJson:    d.SchemaOrgJson,
		PreComputedScore: d.PreComputedScore,
		LastUpdated:      d.LastUpdated,
		Region:           d.Region,
		SimHash:          fnv64(d.Body),
		SiteHash:         schema.CombineU64s(fnv64(hostOf(d.Url)), fnv64a(hostOf(d.Url))),
		UrlHash:          schema.CombineU64s(fnv64(d.Url), fnv64a(d.Url)),
		UrlWithoutTldHash: schema.CombineU64s(fnv64(withoutTLD(d.Url)), fnv64a(withoutTLD(d.Url))),
		TitleHash:        schema.CombineU64s(fnv64(d.Title), fnv64a(d.Title)),
	}
}

func fnv64(s string) uint64 {
	h := fnv.New64()
	h.Write([]byte(s))
	return h.Sum64()
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func hostOf(rawURL string) string {
	u := strings.TrimPrefix(rawURL, "https://")
	u = strings.TrimPrefix(u, "http://")
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	return strings.ToLower(u)
}

func withoutTLD(rawURL string) string {
	host := hostOf(rawURL)
	if i := strings.LastIndex(host, "."); i >= 0 {
		if j := strings.LastIndex(host[:i], "."); j >= 0 {
			return host[j+1:]
		}
	}
	return host
}

func newIndexCommitCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Flush any pending inserts into a new segment",
		Long: `commit exists for parity with the core Writer's Insert/Commit split.
A CLI invocation holds the writer lock only for its own process lifetime,
so "index add" already commits before exiting; running commit on its own
against an index with no other writer open is a no-op.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := postings.Open(path)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()

			w, err := idx.Writer(postings.DefaultWriterConfig())
			if err != nil {
				return fmt.Errorf("open writer: %w", err)
			}
			defer w.Close()

			return w.Commit()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "index directory")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newIndexMergeCmd() *cobra.Command {
	var path string
	var maxSegments int

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge segments down to at most max-segments",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := postings.Open(path)
			if err != nil {
				return fmt.Errorf("open index: %w", err)
			}
			defer idx.Close()

			if err := idx.MergeIntoMaxSegments(maxSegments); err != nil {
				return fmt.Errorf("merge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged into at most %d segments\n", maxSegments)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "index directory")
	cmd.Flags().IntVar(&maxSegments, "max-segments", 8, "target segment count")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}
