package cli

import (
	"github.com/spf13/cobra"

	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	User string
}

type historyOutput struct {
	Records []models.VerificationRecord  `json:"records"`
	Videos  []models.VideoAnalysisRecord `json:"videos"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's verifications and video analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := id.ParseUserID(opts.User)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			records, err := a.History.History(ctx, userID)
			if err != nil {
				return err
			}
			videos, err := a.History.VideoHistory(ctx, userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, historyOutput{Records: records, Videos: videos})
			}
			printf(out, "Verifications (%d)\n", len(records))
			for _, r := range records {
				printf(out, "  %s  %-10s  risk %3d  %s\n",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Status, r.FinalDecision.RiskScore, r.ID)
			}
			printf(out, "Videos (%d)\n", len(videos))
			for _, v := range videos {
				printf(out, "  %s  %-6s  deepfake=%t  %s\n",
					v.CreatedAt.Format("2006-01-02 15:04:05"), v.RiskLevel, v.IsDeepfake, v.VideoName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user ID (required)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
