package cli

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"kycbuster/internal/workflow/capture"
	id "kycbuster/pkg/domain"
)

// VideoOptions holds flags for the video command.
type VideoOptions struct {
	*RootOptions
	User string
}

// NewVideoCommand creates the video command.
func NewVideoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VideoOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "video <file>",
		Short: "Analyze a video for deepfake manipulation",
		Long: `Analyze one video file and store the result in the user's video history.

Example:
  kycctl video ./clip.mp4 --user 0b6f...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := id.UserID(uuid.New())
			if opts.User != "" {
				parsed, err := id.ParseUserID(opts.User)
				if err != nil {
					return err
				}
				userID = parsed
			}

			clip, err := capture.ReadMedia(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), opts.RootOptions, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeApp(a)

			record, err := a.Video.Analyze(cmd.Context(), userID, filepath.Base(args[0]), clip)
			if err != nil {
				return fmt.Errorf("video analysis: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, record)
			}
			verdict := "authentic"
			if record.IsDeepfake {
				verdict = "deepfake"
			}
			printf(out, "%s: %s (risk %s, confidence %d)\n", record.VideoName, verdict, record.RiskLevel, record.ConfidenceScore)
			for _, a := range record.AnalysisPayload.DetectedAnomalies {
				printf(out, "  - %s\n", a)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "user the analysis is stored for (default: a new user)")
	return cmd
}
