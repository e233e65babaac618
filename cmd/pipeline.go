package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/finblog/infrastructure/jwt"
	"github.com/jonesrussell/finblog/internal/bootstrap"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/rewrite"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the in-process scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Serve(cmd.Context(), configPath)
		},
	}
}

func newFetchCommand() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch news from the configured sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.WithApp(cmd.Context(), configPath, func(ctx context.Context, app *bootstrap.App) error {
				if category != "" {
					stats, err := app.Service.FetchCategory(ctx, category)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), stats)
				}
				stats, err := app.Service.FetchNews(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "fetch a single category")
	return cmd
}

func newGenerateCommand() *cobra.Command {
	var (
		limit       int
		candidateID string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate drafts from pending news items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.WithApp(cmd.Context(), configPath, func(ctx context.Context, app *bootstrap.App) error {
				if candidateID != "" {
					d, outcome, err := app.Service.GenerateDraft(ctx, candidateID)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), map[string]any{"draft": d, "rewrite": outcome})
				}
				if limit <= 0 {
					limit = app.Config.Generation.BatchSize
				}
				result, err := app.Service.GenerateDrafts(ctx, limit)
				if result != nil {
					if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "batch size (default generation.batch_size)")
	cmd.Flags().StringVar(&candidateID, "candidate", "", "draft a single news item")
	return cmd
}

func newRewriteCommand() *cobra.Command {
	var (
		step   string
		resume bool
	)

	cmd := &cobra.Command{
		Use:   "rewrite <draft-id>",
		Short: "Run the rewrite pipeline on a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if step != "" && resume {
				return errors.New("--step and --resume are mutually exclusive")
			}
			var parsed domain.Step
			if step != "" {
				var ok bool
				if parsed, ok = domain.ParseStep(step); !ok {
					return fmt.Errorf("unknown step %q (editor, columnist, save)", step)
				}
			}

			return bootstrap.WithApp(cmd.Context(), configPath, func(ctx context.Context, app *bootstrap.App) error {
				var (
					res *rewrite.Result
					err error
				)
				switch {
				case resume:
					res, err = app.Service.Resume(ctx, args[0])
				case parsed != "":
					res, err = app.Service.RewriteStep(ctx, args[0], parsed)
				default:
					res, err = app.Service.Rewrite(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().StringVar(&step, "step", "", "run a single step: editor, columnist or save")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from the last persisted output")
	return cmd
}

func newApproveCommand() *cobra.Command {
	var (
		siteID   string
		reviewer string
	)

	cmd := &cobra.Command{
		Use:   "approve <draft-id>",
		Short: "Publish a draft to a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return bootstrap.WithApp(cmd.Context(), configPath, func(ctx context.Context, app *bootstrap.App) error {
				target := siteID
				if target == "" {
					site, err := app.Resolver.Resolve(ctx, "")
					if err != nil {
						return err
					}
					target = site.ID
				}
				res, err := app.Service.Approve(ctx, publish.ApproveRequest{
					DraftID:  args[0],
					SiteID:   target,
					Reviewer: reviewer,
				})
				if res != nil {
					if printErr := printJSON(cmd.OutOrStdout(), res); printErr != nil {
						return printErr
					}
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&siteID, "site", "", "target site id (default: main site)")
	cmd.Flags().StringVar(&reviewer, "reviewer", "cli", "reviewer recorded on the draft")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator JWT for the admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			token, err := jwt.GenerateToken(cfg.Auth.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "operator name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default auth.token_ttl)")
	return cmd
}
