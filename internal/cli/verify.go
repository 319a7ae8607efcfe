package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/workflow"
	"kycbuster/internal/workflow/capture"
	id "kycbuster/pkg/domain"
)

// Profile describes one local verification run. Relative paths are resolved
// against the profile's directory.
type Profile struct {
	User     string                   `yaml:"user"`
	Details  evidence.PersonalDetails `yaml:"details"`
	Document string                   `yaml:"document"`
	Frames   string                   `yaml:"frames"`
	Voice    string                   `yaml:"voice"`
}

// LoadProfile reads and checks a profile file.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	for field, v := range map[string]string{"document": p.Document, "frames": p.Frames, "voice": p.Voice} {
		if v == "" {
			return nil, fmt.Errorf("profile: %s is required", field)
		}
	}
	base := filepath.Dir(path)
	p.Document = resolve(base, p.Document)
	p.Frames = resolve(base, p.Frames)
	p.Voice = resolve(base, p.Voice)
	return &p, nil
}

// UserID returns the profile's user, or a fresh one when none is set.
func (p *Profile) UserID() (id.UserID, error) {
	if p.User == "" {
		return id.UserID(uuid.New()), nil
	}
	return id.ParseUserID(p.User)
}

func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Profile string
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run a full verification from a profile",
		Long: `Run Details -> Document -> Liveness -> Voice -> Result against the local store.

The camera replays one image per pose from the profile's frames directory
(look-straight, blink, smile, turn-head, move-forward) on the same timed
protocol the browser uses. The microphone replays the profile's voice file.

Example:
  kycctl verify --profile ./alice.yaml
  kycctl verify --profile ./alice.yaml --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runVerify(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "path to the profile YAML (required)")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

func runVerify(ctx context.Context, opts *VerifyOptions, out, errOut io.Writer) error {
	profile, err := LoadProfile(opts.Profile)
	if err != nil {
		return err
	}
	userID, err := profile.UserID()
	if err != nil {
		return err
	}
	a, err := openApp(ctx, opts.RootOptions, errOut)
	if err != nil {
		return err
	}
	defer closeApp(a)

	text := opts.Format == "text"
	progress := func(format string, args ...any) {
		if text {
			printf(out, format, args...)
		}
	}

	session, err := a.Engine.NewSession(userID)
	if err != nil {
		return err
	}
	step := func(label string, cmd workflow.Command) (workflow.View, error) {
		view, err := a.Engine.Dispatch(ctx, session, cmd)
		if err != nil {
			a.Engine.Abandon(ctx, session)
			return view, fmt.Errorf("%s: %w", label, err)
		}
		return view, nil
	}

	if _, err := step("details", workflow.SubmitDetails{Details: profile.Details}); err != nil {
		return err
	}

	image, err := capture.ReadMedia(profile.Document)
	if err != nil {
		return err
	}
	if _, err := step("document upload", workflow.UploadDocument{Image: image}); err != nil {
		return err
	}
	progress("Analyzing document...\n")
	view, err := step("document", workflow.VerifyDocument{})
	if err != nil {
		return err
	}
	if v := view.DocumentVerdict; v != nil {
		progress("  document: tampered=%t confidence=%d\n", v.IsTampered, v.Confidence)
	}

	seq := capture.NewSequencer(opts.captureClock(), capture.WithObserver(func(e capture.Event) {
		if e.Text != "" {
			progress("  %s\n", e.Text)
		}
	}))
	liveness, err := seq.Run(ctx, capture.NewDirCamera(profile.Frames))
	if err != nil {
		a.Engine.Abandon(ctx, session)
		return fmt.Errorf("liveness capture: %w", err)
	}
	progress("Analyzing liveness...\n")
	view, err = step("liveness", workflow.VerifyLiveness{Capture: liveness})
	if err != nil {
		return err
	}
	if v := view.LivenessVerdict; v != nil {
		progress("  liveness: live=%t match=%d risk=%s\n", v.IsLive, v.MatchScore, v.RiskLevel)
	}

	progress("Say: %q\n", view.ExpectedPhrase)
	audio, err := capture.RecordVoice(ctx, opts.captureClock(), capture.NewFileMicrophone(profile.Voice), capture.DefaultVoiceWindow)
	if err != nil {
		a.Engine.Abandon(ctx, session)
		return fmt.Errorf("voice capture: %w", err)
	}
	progress("Analyzing voice and finalizing...\n")
	view, err = step("voice", workflow.VerifyVoice{Audio: audio})
	if err != nil {
		return err
	}

	if !text {
		return writeJSON(out, view)
	}
	if r := view.Record; r != nil {
		printf(out, "Result: %s (risk %d, confidence %d)\n", r.Status, r.FinalDecision.RiskScore, r.FinalDecision.ConfidenceScore)
		printf(out, "  %s\n", r.FinalDecision.Explanation)
		printf(out, "Record %s saved for user %s\n", r.ID, r.UserID)
	}
	return nil
}
