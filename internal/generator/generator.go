package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/go-pkgz/lgr"
	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/knpwrs/tsm3u/internal/catalog"
	"github.com/knpwrs/tsm3u/internal/config"
	"github.com/knpwrs/tsm3u/internal/filesystem"
	"github.com/knpwrs/tsm3u/internal/playlist"
)

// ErrNoData is returned when a source document could not be fetched.
var ErrNoData = errors.New("failed to fetch data from API")

// Fetcher retrieves a JSON document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (json.RawMessage, error)
}

// Generator produces the playlist file from the catalog and auth sources.
//
// A run fetches both documents, renders the playlist in memory and replaces the
// output file in one atomic write. If either fetch fails nothing is rendered and
// the existing output file, if any, is left untouched.
type Generator struct {
	fetcher  Fetcher
	fs       *filesystem.FileSystem
	cfg      config.Config
	log      log.L
	render   func(*catalog.Catalog, *catalog.Auth, playlist.Options) (playlist.Result, error)
	parallel bool
}

// New creates a new Generator with the given configuration.
//
// Parameters:
//   - cfg: Sources, output path and rendering settings
//   - f: Fetcher used for both source documents
//   - l: Logger, nil disables logging
func New(cfg config.Config, f Fetcher, l log.L) *Generator {
	if l == nil {
		l = log.NoOp
	}
	return &Generator{
		fetcher:  f,
		fs:       filesystem.New(cfg.OutputDir),
		cfg:      cfg,
		log:      l,
		render:   playlist.Render,
		parallel: cfg.Parallel,
	}
}

// Run performs one generation.
//
// This method:
// 1. Fetches the catalog and auth documents (one after another, or concurrently in parallel mode)
// 2. Decodes both from their "data" envelope
// 3. Renders the playlist
// 4. Writes the output file atomically
//
// Returns the run summary and any error encountered. A fetch failure is
// reported as ErrNoData, a missing field as *catalog.MalformedInputError.
func (g *Generator) Run(ctx context.Context) (Summary, error) {
	summary, err := g.run(ctx)
	if err != nil {
		g.log.Logf("[ERROR] %v", err)
		return Summary{}, err
	}
	g.log.Logf("[INFO] %s", summary)
	return summary, nil
}

func (g *Generator) run(ctx context.Context) (Summary, error) {
	start := time.Now()

	catalogRaw, authRaw, err := g.fetchAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	cat, err := catalog.DecodeCatalog(catalogRaw)
	if err != nil {
		return Summary{}, fmt.Errorf("source %s: %w", g.cfg.CatalogURL, err)
	}
	auth, err := catalog.DecodeAuth(authRaw)
	if err != nil {
		return Summary{}, fmt.Errorf("source %s: %w", g.cfg.AuthURL, err)
	}

	res, err := g.render(cat, auth, playlist.Options{EPGURL: g.cfg.EPGURL})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to render playlist: %w", err)
	}
	g.log.Logf("[DEBUG] rendered %d channels, skipped %d without clear keys", res.Rendered, res.Skipped)

	replaced, err := g.fs.FileExists(g.cfg.Output)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to check playlist: %w", err)
	}

	localPath, err := g.fs.WriteFile(g.cfg.Output, []byte(res.Text))
	if err != nil {
		return Summary{}, fmt.Errorf("failed to write playlist: %w", err)
	}
	if replaced {
		g.log.Logf("[DEBUG] replaced existing playlist %s", localPath)
	}

	summary := Summary{
		Path:     localPath,
		Channels: len(cat.Channels),
		Rendered: res.Rendered,
		Skipped:  res.Skipped,
		Replaced: replaced,
		Bytes:    int64(len(res.Text)),
		Elapsed:  time.Since(start),
	}
	return summary, nil
}

// fetchAll retrieves both source documents.
//
// Both sources are always requested and failures are checked afterwards, so an
// auth fetch still happens when the catalog fetch has failed.
func (g *Generator) fetchAll(ctx context.Context) (catalogRaw, authRaw json.RawMessage, err error) {
	var catalogErr, authErr error

	if g.parallel {
		// no shared cancellation, each fetch keeps its full attempt budget
		var eg errgroup.Group
		eg.Go(func() error {
			catalogRaw, catalogErr = g.fetch(ctx, g.cfg.CatalogURL)
			return catalogErr
		})
		eg.Go(func() error {
			authRaw, authErr = g.fetch(ctx, g.cfg.AuthURL)
			return authErr
		})
		_ = eg.Wait()
	} else {
		catalogRaw, catalogErr = g.fetch(ctx, g.cfg.CatalogURL)
		authRaw, authErr = g.fetch(ctx, g.cfg.AuthURL)
	}

	if catalogErr != nil {
		return nil, nil, catalogErr
	}
	if authErr != nil {
		return nil, nil, authErr
	}
	return catalogRaw, authRaw, nil
}

func (g *Generator) fetch(ctx context.Context, url string) (json.RawMessage, error) {
	g.log.Logf("[DEBUG] fetching %s", url)
	body, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}
	return body, nil
}
