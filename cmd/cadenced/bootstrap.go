package main

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/conflicts"
	"cadence/internal/importer"
	"cadence/internal/logging"
	"cadence/internal/matching"
	"cadence/internal/reconcile"
	"cadence/internal/sources/gcal"
	"cadence/internal/sources/gdrive"
	"cadence/internal/sources/tracksearch"
	"cadence/internal/store"
)

type daemonRuntime struct {
	store   *store.Store
	service *api.Service
}

func (r *daemonRuntime) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

// externalSources holds the optional adapters. A nil field means the source
// is not configured and its endpoints answer with a configuration error.
type externalSources struct {
	calendar *gcal.Client
	drive    *gdrive.Client
	tracks   *tracksearch.Client
}

// resolveSources builds the Google clients concurrently; credential lookup
// may query the metadata server and take a while.
func resolveSources(ctx context.Context, cfg *config.Config, logger *slog.Logger) externalSources {
	var out externalSources
	var g errgroup.Group
	g.Go(func() error {
		client, err := gcal.New(ctx, cfg, logger)
		if err != nil {
			logging.WarnWithContext(logger, "calendar source disabled", "source_disabled",
				logging.String(logging.FieldSource, "calendar"),
				logging.Error(err),
				logging.String(logging.FieldImpact, "streaming import and use_local resolution unavailable"),
				logging.String(logging.FieldErrorHint, "set google.access_token or google.credentials_file"),
			)
			return nil
		}
		out.calendar = client
		return nil
	})
	g.Go(func() error {
		client, err := gdrive.New(ctx, cfg, logger)
		if err != nil {
			logging.WarnWithContext(logger, "drive source disabled", "source_disabled",
				logging.String(logging.FieldSource, api.SourceDrive),
				logging.Error(err),
				logging.String(logging.FieldImpact, "drive reconciliation unavailable"),
				logging.String(logging.FieldErrorHint, "set google.access_token or google.credentials_file"),
			)
			return nil
		}
		out.drive = client
		return nil
	})
	_ = g.Wait()

	if cfg.TrackSearch.Enabled {
		out.tracks = tracksearch.New(cfg, nil, logger)
	}
	return out
}

func (s externalSources) providers() map[string]api.ItemProvider {
	providers := map[string]api.ItemProvider{
		api.SourceDrive:  nil,
		api.SourceTracks: nil,
	}
	if s.drive != nil {
		providers[api.SourceDrive] = s.drive
	}
	if s.tracks != nil {
		providers[api.SourceTracks] = s.tracks
	}
	return providers
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*daemonRuntime, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}

	srcs := resolveSources(ctx, cfg, logger)

	// Keep the interfaces nil (not typed-nil) when the calendar is absent.
	var (
		feed   importer.EventSource
		writer conflicts.RemoteWriter
	)
	if srcs.calendar != nil {
		feed = srcs.calendar
		writer = srcs.calendar
	}

	thresholds := matching.Thresholds{
		AutoLink:    cfg.Matching.AutoLinkThreshold,
		ReviewFloor: cfg.Matching.ReviewFloor,
	}
	detector := conflicts.NewManager(st, writer, logger)
	service := api.NewService(api.Dependencies{
		Store:     st,
		Executor:  reconcile.NewExecutor(st, thresholds, logger),
		Imports:   importer.NewManager(cfg, st, feed, detector, logger),
		Conflicts: detector,
		Providers: srcs.providers(),
		Logger:    logger,
	})
	return &daemonRuntime{store: st, service: service}, nil
}
