// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// hostpatchd watches over a host application's files: after a startup
// delay it verifies each declared destination against its known-good
// base, replaces the ones that match with their patch content, and
// optionally restarts the host application. SIGHUP re-reads the
// settings file and runs again immediately.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	"github.com/hostpatch/hostpatch/internal/config"
	"github.com/hostpatch/hostpatch/internal/fetcher"
	"github.com/hostpatch/hostpatch/internal/patcher"
	"github.com/hostpatch/hostpatch/internal/worker/filepatcher"
)

var logger = loggo.GetLogger("hostpatch.cmd")

func main() {
	os.Exit(Main(os.Args[1:]))
}

// Main runs the daemon and returns the process exit code.
func Main(args []string) int {
	var (
		configPath       string
		sitePackagesDir  string
		homeAssistantDir string
		restartCommand   string
		logConfig        string
	)
	f := gnuflag.NewFlagSet("hostpatchd", gnuflag.ContinueOnError)
	f.StringVar(&configPath, "config", "/etc/hostpatchd.yaml", "path to the settings file")
	f.StringVar(&sitePackagesDir, "site-packages-dir", "", "directory the site-packages prefix expands to")
	f.StringVar(&homeAssistantDir, "homeassistant-dir", "", "directory the homeassistant prefix expands to")
	f.StringVar(&restartCommand, "restart-cmd", "", "command run to restart the host application")
	f.StringVar(&logConfig, "log-config", "<root>=INFO", "loggo logger configuration")
	if err := f.Parse(true, args); err != nil {
		if err == gnuflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := run(configPath, restartCommand, logConfig, prefixResolver{
		config.PrefixSitePackages:  sitePackagesDir,
		config.PrefixHomeAssistant: homeAssistantDir,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "hostpatchd: %v\n", err)
		return 1
	}
	return 0
}

func run(configPath, restartCommand, logConfig string, resolver prefixResolver) error {
	if err := loggo.ConfigureLoggers(logConfig); err != nil {
		return errors.Annotate(err, "configuring loggers")
	}

	settings, err := config.Read(configPath, resolver)
	if err != nil {
		return errors.Trace(err)
	}

	fetchLogger := loggo.GetLogger("hostpatch.fetcher")
	contentFetcher, err := fetcher.NewContentFetcher(fetcher.Config{
		Client: fetcher.DefaultHTTPClient(fetchLogger),
		Logger: fetchLogger,
	})
	if err != nil {
		return errors.Trace(err)
	}

	engineLogger := loggo.GetLogger("hostpatch.patcher")
	engine, err := patcher.NewEngine(patcher.EngineConfig{
		Fetcher: contentFetcher,
		Issues:  newLoggedIssues(loggo.GetLogger("hostpatch.issues")),
		Logger:  engineLogger,
	})
	if err != nil {
		return errors.Trace(err)
	}

	restarter, err := patcher.NewRestartCoordinator(&commandHostControl{
		command: restartCommand,
		logger:  logger,
	}, engineLogger)
	if err != nil {
		return errors.Trace(err)
	}

	w, err := filepatcher.NewWorker(filepatcher.Config{
		Clock:     clock.WallClock,
		Logger:    loggo.GetLogger("hostpatch.worker"),
		Engine:    engine,
		Restarter: restarter,
		Source:    settingsFile{path: configPath, resolver: resolver},
		Settings:  settings,
	})
	if err != nil {
		return errors.Trace(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				logger.Infof("received SIGHUP, reloading settings")
				w.Reload()
				continue
			}
			logger.Infof("received %v, shutting down", sig)
			w.Kill()
			return
		}
	}()

	logger.Infof("patching %d declared files after %v", len(settings.Entries), settings.Delay)
	return w.Wait()
}
