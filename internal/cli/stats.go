package cli

import (
	"github.com/spf13/cobra"

	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/requestcontext"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	Actor string
}

// NewStatsCommand creates the stats command. Local store access is treated
// as admin access; the read is still audited under the actor.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate verification statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var actor id.UserID
			if opts.Actor != "" {
				parsed, err := id.ParseUserID(opts.Actor)
				if err != nil {
					return err
				}
				actor = parsed
			}

			ctx := requestcontext.WithRole(cmd.Context(), requestcontext.RoleAdmin)
			a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			stats, err := a.History.Stats(ctx, actor)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, stats)
			}
			printf(out, "Records: %d across %d users\n", stats.TotalRecords, stats.DistinctUsers)
			for _, s := range models.Statuses {
				printf(out, "  %-10s %d\n", s, stats.StatusCounts[s])
			}
			printf(out, "Videos: %d (%d deepfakes)\n", stats.TotalVideos, stats.VideoDeepfakes)
			if len(stats.Recent) > 0 {
				printf(out, "Recent activity\n")
				for _, r := range stats.Recent {
					printf(out, "  %s  %-10s  risk %3d  %s\n",
						r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.RiskScore, r.FullName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Actor, "actor", "", "user ID recorded in the audit trail")
	return cmd
}
