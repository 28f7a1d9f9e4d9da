// Package cli provides the make-release command-line interface.
// It loads the YAML release configuration, wires the GitHub client, artifact
// source, journal and signer, and runs the release orchestrator.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/diracgrid/diracos-release/internal/artifact"
	"github.com/diracgrid/diracos-release/internal/config"
	"github.com/diracgrid/diracos-release/internal/logger"
	"github.com/diracgrid/diracos-release/internal/release"
	"github.com/diracgrid/diracos-release/internal/signing"
	"github.com/diracgrid/diracos-release/internal/storage"
	"github.com/diracgrid/diracos-release/internal/version"
)

// ErrUsage marks invalid invocations. They are reported before any network
// activity and exit with code 2.
var ErrUsage = errors.New("usage error")

// ExitCode maps an error returned by the application to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	default:
		return 1
	}
}

// NewApp creates and configures the main CLI application.
func NewApp() *cli.App {
	return newApp(defaultClientFactory)
}

func newApp(newClient ClientFactory) *cli.App {
	return &cli.App{
		Name:     "make-release",
		Usage:    "Publish DIRACOS installers built by CI as a GitHub release",
		Version:  "1.0.0",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to release configuration file (built-in DIRACOS defaults when empty)",
				EnvVars: []string{"DIRACOS_RELEASE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"DIRACOS_RELEASE_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Value:   "text",
				Usage:   "log format (text, json)",
				EnvVars: []string{"DIRACOS_RELEASE_LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "GitHub token with contents and actions access",
				EnvVars: []string{"GITHUB_TOKEN"},
			},
			&cli.StringFlag{
				Name:  "owner",
				Usage: "repository owner (default from config: DIRACGrid)",
			},
			&cli.StringFlag{
				Name:  "repo",
				Usage: "repository name (default from config: DIRACOS2)",
			},
			&cli.Int64Flag{
				Name:  "run-id",
				Usage: "CI run to release from (default: latest run on the main branch)",
			},
			&cli.StringFlag{
				Name:  "version",
				Usage: "release version, e.g. 2.0 or 2.1a1 (default: derived from the build)",
			},
			&cli.StringFlag{
				Name:  "artifacts-dir",
				Usage: "read installers from <dir>/<platform>/ instead of CI (dry run only)",
			},
			&cli.BoolFlag{
				Name:  "make-release",
				Usage: "create, publish and bump; without it nothing remote is changed",
			},
			&cli.StringFlag{
				Name:    "journal",
				Usage:   "SQLite journal path for resuming interrupted releases (default from config, in-memory when unset)",
				EnvVars: []string{"DIRACOS_RELEASE_JOURNAL"},
			},
			&cli.StringFlag{
				Name:    "ignore-file",
				Usage:   "JSON or YAML list of release tags never used as the previous release",
				EnvVars: []string{"DIRACOS_RELEASE_IGNORE_FILE"},
			},
			&cli.StringFlag{
				Name:    "signing-key",
				Usage:   "armored OpenPGP private key used to sign SHA256SUMS",
				EnvVars: []string{"DIRACOS_SIGNING_KEY"},
			},
			&cli.StringFlag{
				Name:    "signing-passphrase",
				Usage:   "passphrase of the signing key",
				EnvVars: []string{"DIRACOS_SIGNING_PASSPHRASE"},
			},
		},
		Action: func(c *cli.Context) error {
			return releaseCommand(c, newClient)
		},
		Commands: []*cli.Command{
			{
				Name:  "init-config",
				Usage: "Write the built-in configuration to a file for editing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Usage:    "output file",
						Required: true,
					},
				},
				Action: initConfigCommand,
			},
			{
				Name:   "history",
				Usage:  "List the releases recorded in the journal",
				Action: historyCommand,
			},
			{
				Name:      "verify",
				Usage:     "Check a downloaded SHA256SUMS against its detached signature",
				ArgsUsage: "SHA256SUMS SHA256SUMS.asc",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "public-key",
						Usage:    "armored OpenPGP public key of the release signer",
						Required: true,
					},
				},
				Action: verifyCommand,
			},
		},
	}
}

// runOptions are the parsed command-line settings of a release run.
type runOptions struct {
	token             string
	owner             string
	repo              string
	runID             int64
	version           string
	artifactsDir      string
	makeRelease       bool
	configPath        string
	journal           string
	ignoreFile        string
	signingKey        string
	signingPassphrase string
	logLevel          string
	logFormat         string
}

// parseOptions reads and checks the flags. Every error wraps ErrUsage.
func parseOptions(c *cli.Context) (runOptions, error) {
	opts := runOptions{
		token:             strings.TrimSpace(c.String("token")),
		owner:             c.String("owner"),
		repo:              c.String("repo"),
		runID:             c.Int64("run-id"),
		version:           strings.TrimSpace(c.String("version")),
		artifactsDir:      c.String("artifacts-dir"),
		makeRelease:       c.Bool("make-release"),
		configPath:        c.String("config"),
		journal:           c.String("journal"),
		ignoreFile:        c.String("ignore-file"),
		signingKey:        c.String("signing-key"),
		signingPassphrase: c.String("signing-passphrase"),
		logLevel:          c.String("log-level"),
		logFormat:         c.String("log-format"),
	}

	if c.NArg() > 0 {
		return opts, fmt.Errorf("%w: unexpected argument %q", ErrUsage, c.Args().First())
	}
	if opts.token == "" {
		return opts, fmt.Errorf("%w: --token or GITHUB_TOKEN is required", ErrUsage)
	}
	if opts.version != "" {
		if strings.HasPrefix(opts.version, "v") || strings.HasPrefix(opts.version, "V") {
			return opts, fmt.Errorf("%w: --version %q must not start with \"v\"", ErrUsage, opts.version)
		}
		if _, err := version.Parse(opts.version); err != nil {
			return opts, fmt.Errorf("%w: --version: %w", ErrUsage, err)
		}
	}
	if opts.runID < 0 {
		return opts, fmt.Errorf("%w: --run-id must be positive", ErrUsage)
	}
	if opts.artifactsDir != "" {
		if opts.makeRelease {
			return opts, fmt.Errorf("%w: --artifacts-dir can only be used for a dry run", ErrUsage)
		}
		if opts.runID != 0 {
			return opts, fmt.Errorf("%w: --artifacts-dir and --run-id are mutually exclusive", ErrUsage)
		}
	}
	if _, err := logger.ParseLevel(opts.logLevel); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return opts, nil
}

// loadConfig loads the configuration file and applies flag overrides.
func loadConfig(opts runOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.owner != "" {
		cfg.Release.Owner = opts.owner
	}
	if opts.repo != "" {
		cfg.Release.Repository = opts.repo
	}
	if opts.journal != "" {
		cfg.Config.Storage.DatabasePath = opts.journal
	}
	if opts.ignoreFile != "" {
		cfg.Config.IgnoreFile = opts.ignoreFile
	}
	if opts.signingKey != "" {
		cfg.Config.Signing.KeyPath = opts.signingKey
	}
	return cfg, nil
}

// releaseCommand implements the default action.
func releaseCommand(c *cli.Context, newClient ClientFactory) error {
	opts, err := parseOptions(c)
	if err != nil {
		return err
	}

	log, err := logger.New(opts.logLevel, opts.logFormat, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ignore, err := config.LoadIgnoreList(cfg.Config.IgnoreFile)
	if err != nil {
		return err
	}

	repository := cfg.Release.Owner + "/" + cfg.Release.Repository
	client, err := newClient(opts.token, repository, cfg.Config.GetHTTPTimeout())
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	log.Info("Starting release",
		"repository", client.Repository(),
		"make_release", opts.makeRelease,
		"requested_version", opts.version,
		"run_id", opts.runID,
		"artifacts_dir", opts.artifactsDir)

	deps := release.Dependencies{
		Source:      newSource(opts, cfg, client, log),
		Releases:    client,
		Changelog:   release.NewGitHubChangelog(client),
		VersionFile: client,
	}

	if opts.makeRelease {
		if cfg.Config.Storage.DatabasePath == "" {
			log.Warn("Journal is in memory; an interrupted release resumes only from the remote draft")
		}
		db, err := storage.InitDB(storage.Config{
			DatabasePath: cfg.Config.Storage.DatabasePath,
			LogLevel:     "silent",
		})
		if err != nil {
			return fmt.Errorf("failed to initialize journal: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Warn("Failed to close journal", "error", closeErr)
			}
		}()
		deps.Journal = db
	}

	if cfg.Config.Signing.KeyPath != "" {
		signer, err := signing.LoadSigner(cfg.Config.Signing.KeyPath, []byte(opts.signingPassphrase))
		if err != nil {
			return fmt.Errorf("failed to load signing key: %w", err)
		}
		log.Info("Loaded signing key", "fingerprint", signer.Fingerprint())
		deps.Signer = signer
	}

	orchestrator, err := release.New(release.Options{
		Product:          cfg.Release.Product,
		Platforms:        cfg.Platforms,
		RequestedVersion: opts.version,
		DryRun:           !opts.makeRelease,
		MainBranch:       cfg.Release.MainBranch,
		VersionFile:      cfg.Release.VersionFile,
		Ignore:           ignore,
	}, deps, log)
	if err != nil {
		return err
	}

	res, err := orchestrator.Run(c.Context)
	if err != nil {
		log.Error("Release failed", "error", err)
		return err
	}

	return report(c.App.Writer, c.App.ErrWriter, res)
}

func newSource(opts runOptions, cfg *config.Config, client GitHubAPI, log *slog.Logger) artifact.Source {
	if opts.artifactsDir != "" {
		return artifact.NewLocalSource(opts.artifactsDir, cfg.Release.InstallerGlob, cfg.Release.ManifestFile)
	}
	return artifact.NewCISource(client, artifact.CIOptions{
		Workflow:     cfg.Release.Workflow,
		Branch:       cfg.Release.MainBranch,
		RunID:        opts.runID,
		ManifestFile: cfg.Release.ManifestFile,
	}, log)
}

// report prints the outcome. A dry run writes the notes to stdout; the plan
// always goes to stderr.
func report(stdout, stderr io.Writer, res *release.Result) error {
	if res.DryRun {
		if _, err := io.WriteString(stdout, res.Notes); err != nil {
			return fmt.Errorf("failed to write release notes: %w", err)
		}
	} else if _, err := fmt.Fprintln(stdout, res.ReleaseURL); err != nil {
		return fmt.Errorf("failed to write release URL: %w", err)
	}

	if _, err := fmt.Fprintln(stderr, renderPlan(res)); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// initConfigCommand implements the init-config command.
func initConfigCommand(c *cli.Context) error {
	out := c.String("out")
	if err := config.SaveConfig(config.DefaultConfig(), out); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.App.Writer, "Wrote %s\n", out)
	return err
}

// historyCommand implements the history command.
func historyCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	path := c.String("journal")
	if path == "" {
		path = cfg.Config.Storage.DatabasePath
	}
	if path == "" {
		return fmt.Errorf("%w: --journal or config.storage.database_path is required", ErrUsage)
	}

	db, err := storage.InitDB(storage.Config{DatabasePath: path, LogLevel: "silent"})
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	releases, err := db.ListReleases()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, renderHistory(releases))
	return err
}

// verifyCommand implements the verify command.
func verifyCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("%w: verify takes the checksum file and its signature", ErrUsage)
	}
	public, err := os.ReadFile(c.String("public-key"))
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}
	sums, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("failed to read checksums: %w", err)
	}
	signature, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}

	if err := signing.Verify(string(public), sums, string(signature)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "Good signature on %s\n", c.Args().Get(0))
	return err
}
