package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"transcribe/internal/cache"
	"transcribe/internal/services"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage cached transcriptions",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	cacheCmd.AddCommand(newCacheRemoveCommand(ctx))
	return cacheCmd
}

func withCache(cmd *cobra.Command, ctx *commandContext, fn func(*cache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := cache.Open(cmd.Context(), cfg.CacheDBPath())
	if err != nil {
		if errors.Is(err, cache.ErrSchemaMismatch) {
			return services.Wrap(services.ErrConfiguration, "cache", "open", "", err)
		}
		return services.Wrap(services.ErrTransient, "cache", "open", cfg.CacheDBPath(), err)
	}
	defer store.Close()
	return fn(store)
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached transcriptions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, ctx, func(store *cache.Store) error {
				entries, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				var total int64
				for _, e := range entries {
					total += e.PayloadBytes
					rows = append(rows, []string{
						shortID(e.ID),
						filepath.Base(e.SourcePath),
						e.Key.Model,
						yesNo(e.Key.Diarize),
						e.Key.VAD,
						e.Language,
						humanize.Bytes(uint64(e.PayloadBytes)),
						humanize.Time(e.AccessedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Source", "Model", "Speakers", "VAD", "Lang", "Size", "Last used"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				fmt.Fprintf(out, "%d entries, %s\n", len(entries), humanize.Bytes(uint64(total)))
				return nil
			})
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached transcriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				if err := cache.Reset(cfg.CacheDBPath()); err != nil {
					return services.Wrap(services.ErrTransient, "cache", "reset", "", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted cache database %s\n", cfg.CacheDBPath())
				return nil
			}
			return withCache(cmd, ctx, func(store *cache.Store) error {
				n, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached transcriptions\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Delete the cache database file (recovers from schema mismatches)")
	return cmd
}

func newCacheRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove one cached transcription by id or id prefix",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, ctx, func(store *cache.Store) error {
				id, err := store.Remove(cmd.Context(), args[0])
				if err != nil {
					switch {
					case errors.Is(err, cache.ErrNotFound):
						return services.Wrap(services.ErrNotFound, "cache", "remove", "", err)
					case errors.Is(err, cache.ErrAmbiguousID):
						return services.Wrap(services.ErrValidation, "cache", "remove", "use a longer prefix", err)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", id)
				return nil
			})
		},
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
