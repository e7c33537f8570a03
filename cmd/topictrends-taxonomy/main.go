// Command topictrends-taxonomy maintains and queries the semantic
// category index: "index" embeds every category title of a wiki's
// snapshot into the vector store, "search" finds categories by meaning
// and optionally projects them into another wiki.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/santhoshtr/topictrends"
	"github.com/santhoshtr/topictrends/taxonomy"
)

// taxonomyFlags holds the values shared by the index and search
// commands.
type taxonomyFlags struct {
	DataDir         string
	EmbeddingServer string
	VectorStore     string
	Collection      string
	Wiki            string
	LogLevel        string
}

func (f *taxonomyFlags) asCliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "data-dir",
			Usage:       "Root data directory, one subdirectory per wiki.",
			EnvVars:     []string{topictrends.EnvDataDir},
			Destination: &f.DataDir,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "embedding-server",
			Usage:       "Base URL of the OpenAI-compatible embedding server.",
			EnvVars:     []string{topictrends.EnvEmbeddingServer},
			Destination: &f.EmbeddingServer,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "vector-store",
			Usage:       "Base URL of the Qdrant-compatible vector store.",
			EnvVars:     []string{topictrends.EnvVectorStore},
			Destination: &f.VectorStore,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Vector store collection holding the category embeddings.",
			Value:       taxonomy.DefaultCollection,
			Destination: &f.Collection,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level: debug, info, warn or error.",
			Value:       "info",
			Destination: &f.LogLevel,
		},
	}
}

// open builds an engine wired to the embedding server and vector store
// named by the flags.
func (f *taxonomyFlags) open() (*topictrends.TopicTrends, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", f.LogLevel, err)
	}

	store, err := taxonomy.NewRESTStore(f.VectorStore)
	if err != nil {
		return nil, err
	}

	return topictrends.New(f.DataDir,
		topictrends.WithLogLevel(level),
		topictrends.WithSemanticSearch(taxonomy.NewEmbedder(f.EmbeddingServer), store),
		topictrends.WithCollection(f.Collection),
	)
}

func runIndex(c *cli.Context, flags *taxonomyFlags) error {
	tt, err := flags.open()
	if err != nil {
		return err
	}
	defer tt.Close()

	if err := tt.LoadWiki(c.Context, flags.Wiki); err != nil {
		return err
	}
	if err := tt.IndexTaxonomy(c.Context, flags.Wiki); err != nil {
		return err
	}

	snap, err := tt.Snapshot(flags.Wiki)
	if err != nil {
		return err
	}
	fmt.Printf("indexed %s snapshot %s into collection %q\n", flags.Wiki, snap.Tag, flags.Collection)
	return nil
}

func runSearch(c *cli.Context, flags *taxonomyFlags, threshold float64, limit int) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("usage: %s search [options] QUERY", c.App.Name)
	}

	tt, err := flags.open()
	if err != nil {
		return err
	}
	defer tt.Close()

	// Projection into a non-English wiki resolves titles from that
	// wiki's corpus, so it has to be loaded. English results come
	// straight from the collection payloads.
	if flags.Wiki != taxonomy.EnglishWiki {
		if err := tt.LoadWiki(c.Context, flags.Wiki); err != nil {
			return err
		}
	}

	matches, err := tt.SearchCategories(c.Context, query, flags.Wiki, float32(threshold), limit)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("no matches")
		return nil
	}

	for _, m := range matches {
		line := fmt.Sprintf("%.3f  %-9s  %s", m.Score, m.QID, m.Title)
		if m.Title != m.TitleEN {
			line += fmt.Sprintf("  (en: %s)", m.TitleEN)
		}
		fmt.Println(line)
	}
	return nil
}

func main() {
	// A .env file in the working directory supplies the endpoint
	// variables when present; explicit flags still win.
	_ = godotenv.Load()

	var (
		flags     taxonomyFlags
		threshold float64
		limit     int
	)

	app := &cli.App{
		Name:  "topictrends-taxonomy",
		Usage: "Embed Wikipedia category titles into a vector store and search them by meaning.",
		Commands: []*cli.Command{
			{
				Name:  "index",
				Usage: "Embed every category title of a wiki's snapshot and upsert the vectors.",
				Flags: append(flags.asCliFlags(),
					&cli.StringFlag{
						Name:        "wiki",
						Usage:       "Wiki whose categories populate the collection. Queries are encoded in English, so this should stay enwiki.",
						Value:       taxonomy.EnglishWiki,
						Destination: &flags.Wiki,
					},
				),
				Action: func(c *cli.Context) error {
					return runIndex(c, &flags)
				},
			},
			{
				Name:      "search",
				Usage:     "Find categories matching an English query, projected into the target wiki.",
				ArgsUsage: "QUERY",
				Flags: append(flags.asCliFlags(),
					&cli.StringFlag{
						Name:        "wiki",
						Usage:       "Target wiki for result titles.",
						Value:       taxonomy.EnglishWiki,
						Destination: &flags.Wiki,
					},
					&cli.Float64Flag{
						Name:        "threshold",
						Usage:       "Minimum cosine score a match must reach.",
						Value:       taxonomy.DefaultMatchThreshold,
						Destination: &threshold,
					},
					&cli.IntFlag{
						Name:        "limit",
						Usage:       "Maximum number of matches.",
						Value:       10,
						Destination: &limit,
					},
				),
				Action: func(c *cli.Context) error {
					return runSearch(c, &flags, threshold, limit)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
