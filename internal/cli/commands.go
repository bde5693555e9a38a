package cli

import (
	"fmt"

	"hearth/internal/db"
	"hearth/internal/services"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// db.Open 自带 AutoMigrate
			conn, err := db.Open(a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if sqlDB, err := conn.DB(); err == nil {
				defer sqlDB.Close()
			}
			a.out.success("Database schema is up to date")
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert default categories and badges into empty tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, err := db.Open(a.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if err := db.Seed(conn); err != nil {
				return err
			}
			a.out.success("Seed data inserted")
			return nil
		},
	}
}

func newNewsCmd(a *app) *cobra.Command {
	news := &cobra.Command{
		Use:   "news",
		Short: "Manage news sources",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return a.connect()
		},
		PersistentPostRun: func(*cobra.Command, []string) { a.close() },
	}

	news.AddCommand(
		&cobra.Command{
			Use:   "add <url>",
			Short: "Subscribe to an RSS/Atom feed (rsshub:// supported) and fetch it once",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				src, err := a.svc.News.AddSource(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				a.out.success("Source #%d %s", src.ID, src.Title)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List news sources",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				sources, err := a.svc.News.Sources(cmd.Context())
				if err != nil {
					return err
				}
				a.out.section("News sources")
				for _, src := range sources {
					state := "enabled"
					if !src.Enabled {
						state = "disabled"
					}
					a.out.info("#%d %s", src.ID, src.Title)
					a.out.muted("   %s (%s)", src.URL, state)
				}
				if len(sources) == 0 {
					a.out.warning("No sources yet")
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "fetch",
			Short: "Refresh every enabled source once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := a.svc.News.FetchAll(cmd.Context())
				if err != nil {
					return err
				}
				a.out.success("Stored %d new articles", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Delete RSS articles older than NEWS_RETENTION_DAYS",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				n, err := a.svc.News.Cleanup(cmd.Context())
				if err != nil {
					return err
				}
				a.out.success("Removed %d articles", n)
				return nil
			},
		},
	)
	return news
}

func newRescoreCmd(a *app) *cobra.Command {
	var (
		kind string
		id   uint
	)
	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Recompute hot scores of recent and top items, or of one item",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return a.connect()
		},
		PostRun: func(*cobra.Command, []string) { a.close() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == 0 {
				n := a.svc.Ranking.RescoreHot(cmd.Context())
				a.out.success("Rescored %d items", n)
				return nil
			}
			var k services.RankKind
			switch kind {
			case "post":
				k = services.RankPost
			case "news":
				k = services.RankNews
			default:
				return fmt.Errorf("unknown kind %q (post|news)", kind)
			}
			if err := a.svc.Ranking.Rescore(cmd.Context(), k, id); err != nil {
				return err
			}
			a.out.success("Rescored %s #%d", kind, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "post", "Item kind: post or news")
	cmd.Flags().UintVar(&id, "id", 0, "Internal item ID (omit to rescore hot items)")
	return cmd
}

func newBadgeCmd(a *app) *cobra.Command {
	badge := &cobra.Command{
		Use:   "badge",
		Short: "Badge administration",
	}
	badge.AddCommand(&cobra.Command{
		Use:   "grant <username> <code>",
		Short: "Grant a badge to a user without charging points",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(*cobra.Command, []string) error {
			return a.connect()
		},
		PostRun: func(*cobra.Command, []string) { a.close() },
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := a.svc.Users.ByUsername(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[0], err)
			}
			ub, err := a.svc.Badges.Grant(cmd.Context(), user.ID, args[1])
			if err != nil {
				return err
			}
			a.out.success("Granted %s %s to %s", ub.Badge.Icon, ub.Badge.Name, user.Username)
			return nil
		},
	})
	return badge
}

func newUserCmd(a *app) *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "User administration",
	}
	user.AddCommand(&cobra.Command{
		Use:   "role <username> <user|admin>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(*cobra.Command, []string) error {
			return a.connect()
		},
		PostRun: func(*cobra.Command, []string) { a.close() },
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.svc.Users.SetRole(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			a.out.success("%s is now %s", u.Username, args[1])
			return nil
		},
	})
	return user
}
