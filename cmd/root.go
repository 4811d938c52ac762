package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/spf13/cobra"

	"github.com/knpwrs/tsm3u/internal/config"
	"github.com/knpwrs/tsm3u/internal/fetcher"
	"github.com/knpwrs/tsm3u/internal/generator"
)

var (
	configFile string
	catalogURL string
	authURL    string
	output     string
	outputDir  string
	epgURL     string
	retries    int
	timeout    time.Duration
	userAgent  string
	parallel   bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands.
//
// This CLI tool fetches the channel catalog and the authorization token document
// and writes an IPTV playlist with clearkey DRM properties for every channel that
// has a key.
var rootCmd = &cobra.Command{
	Use:   "tsm3u",
	Short: "Generate an IPTV playlist from the channel catalog API",
	Long: `tsm3u fetches the channel catalog and the authorization token documents and
renders an extended M3U playlist for players using inputstream.adaptive.

Every channel carrying a clearkey gets its license key, user agent and the CDN
cookie. Channels without keys are skipped. The output file is replaced atomically
and left untouched when either document can't be fetched.`,
	Example: `  # Generate ts.m3u in the current directory
  tsm3u

  # Write to a different file, fetching both documents concurrently
  tsm3u -o /srv/iptv/ts.m3u --parallel

  # Use settings from a config file, flags still override it
  tsm3u --config tsm3u.yml --retries 5`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runGenerate,
}

// Execute adds all child commands to the root command and sets flags appropriately.
//
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Any failure ends the process with exit status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	def := config.Default()
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file (yml), flags override its values")
	rootCmd.Flags().StringVar(&catalogURL, "catalog-url", def.CatalogURL, "Channel catalog URL")
	rootCmd.Flags().StringVar(&authURL, "auth-url", def.AuthURL, "Authorization token URL")
	rootCmd.Flags().StringVarP(&output, "output", "o", def.Output, "Output playlist file")
	rootCmd.Flags().StringVarP(&outputDir, "dir", "d", def.OutputDir, "Directory a relative output path is written to")
	rootCmd.Flags().StringVar(&epgURL, "epg-url", def.EPGURL, "Program guide URL written to the playlist header")
	rootCmd.Flags().IntVarP(&retries, "retries", "r", def.Retries, "Number of fetch attempts per document")
	rootCmd.Flags().DurationVar(&timeout, "timeout", def.Timeout, "Timeout of a single fetch attempt, 0 for none")
	rootCmd.Flags().StringVar(&userAgent, "user-agent", def.UserAgent, "User-Agent header for API requests")
	rootCmd.Flags().BoolVar(&parallel, "parallel", def.Parallel, "Fetch both documents concurrently")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

// runGenerate is the main execution function for the root command.
func runGenerate(cmd *cobra.Command, args []string) error {
	lg := setupLog(cmd.OutOrStdout(), verbose)

	cfg, err := loadConfig(cmd)
	if err != nil {
		lg.Logf("[ERROR] %v", err)
		return err
	}

	if verbose {
		lg.Logf("[DEBUG] catalog %s, auth %s, output %s, retries %d, parallel %v",
			cfg.CatalogURL, cfg.AuthURL, cfg.Output, cfg.Retries, cfg.Parallel)
	}

	fetcherOpts := fetcher.DefaultOptions()
	fetcherOpts.MaxAttempts = cfg.Retries
	fetcherOpts.Timeout = cfg.Timeout
	fetcherOpts.UserAgent = cfg.UserAgent

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gen := generator.New(cfg, fetcher.New(fetcherOpts, lg), lg)
	if _, err := gen.Run(ctx); err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	return nil
}

// loadConfig merges defaults, the optional config file and explicitly set flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("can't load config %s: %w", configFile, err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("catalog-url") {
		cfg.CatalogURL = catalogURL
	}
	if flags.Changed("auth-url") {
		cfg.AuthURL = authURL
	}
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("epg-url") {
		cfg.EPGURL = epgURL
	}
	if flags.Changed("retries") {
		cfg.Retries = retries
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLog makes the console logger, timestamped with milliseconds and level braces.
func setupLog(w io.Writer, dbg bool) log.L {
	if dbg {
		return log.New(log.Debug, log.Msec, log.LevelBraces, log.Out(w))
	}
	return log.New(log.Msec, log.LevelBraces, log.Out(w))
}
