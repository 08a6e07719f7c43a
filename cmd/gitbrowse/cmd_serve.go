package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gitbrowse/pkg/config"
	"github.com/odvcencio/gitbrowse/pkg/repo"
	"github.com/odvcencio/gitbrowse/pkg/server"
)

type serveFlags struct {
	configPath string
	listen     string
	siteName   string
	logLevel   string
	logFormat  string
	roots      []string
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve [repo...]",
		Short: "Serve repositories over HTTP",
		Long: `Serve the repositories named on the command line, listed in the
configuration file, or found directly below a --root directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd, args)
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			repos, err := cfg.OpenRepos(logger)
			if err != nil {
				return err
			}
			defer closeRepos(repos)
			if len(repos) == 0 {
				return errors.New("no repositories to serve")
			}

			srv, err := server.New(repos, server.Options{SiteName: cfg.SiteName, Logger: logger})
			if err != nil {
				return err
			}
			httpSrv := &http.Server{
				Addr:         cfg.Listen,
				Handler:      srv.Handler(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  120 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() {
				logger.Info("starting gitbrowse", "listen", cfg.Listen, "repos", len(repos))
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
			}
			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&f.listen, "listen", "", "Listen address (default "+config.DefaultListen+")")
	cmd.Flags().StringVar(&f.siteName, "site-name", "", "Site name shown in page headers")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
	cmd.Flags().StringArrayVar(&f.roots, "root", nil, "Directory whose repositories are served (repeatable)")
	return cmd
}

// config loads the configuration file, if any, and applies flag overrides
// and positional repositories on top.
func (f *serveFlags) config(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if f.siteName != "" {
		cfg.SiteName = f.siteName
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.logFormat != "" {
		cfg.LogFormat = f.logFormat
	}
	for _, p := range args {
		cfg.Repos = append(cfg.Repos, config.RepoEntry{Path: p})
	}
	for _, p := range f.roots {
		cfg.Roots = append(cfg.Roots, config.RepoEntry{Path: p})
	}
	if len(cfg.Repos) == 0 && len(cfg.Roots) == 0 {
		path, _ := cmd.Flags().GetString("repo")
		cfg.Repos = append(cfg.Repos, config.RepoEntry{Path: path})
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func closeRepos(repos []*repo.Repo) {
	for _, r := range repos {
		r.Close()
	}
}
