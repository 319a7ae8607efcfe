package workflow

import (
	"context"
	"sync"

	"kycbuster/internal/decision"
	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
)

type fakeAnalyzer struct {
	mu sync.Mutex

	documentErr error
	livenessErr error
	voiceErr    error

	// block, when set, holds AnalyzeDocument until it is closed or the
	// context ends. entered is signalled once the call has started.
	block   chan struct{}
	entered chan struct{}

	documentCalls int
	livenessCalls int
	voiceCalls    int

	lastDetails     evidence.PersonalDetails
	lastDocImage    evidence.Media
	lastLivenessDoc evidence.Media
	lastCode        string
}

func (f *fakeAnalyzer) AnalyzeDocument(ctx context.Context, details evidence.PersonalDetails, image evidence.Media) (*evidence.DocumentVerdict, error) {
	f.mu.Lock()
	f.documentCalls++
	f.lastDetails = details
	f.lastDocImage = image
	block, entered, err := f.block, f.entered, f.documentErr
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &evidence.DocumentVerdict{
		Name:           details.FullName,
		DocumentNumber: "1234 5678 9012",
		DOB:            details.DOB,
		Address:        "12 MG Road, Bengaluru 560001",
		Confidence:     92,
	}, nil
}

func (f *fakeAnalyzer) AnalyzeLiveness(_ context.Context, documentImage evidence.Media, _ *evidence.LivenessCapture) (*evidence.LivenessVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.livenessCalls++
	f.lastLivenessDoc = documentImage
	if f.livenessErr != nil {
		return nil, f.livenessErr
	}
	return &evidence.LivenessVerdict{IsLive: true, HumanDetected: true, Confidence: 90, RiskLevel: evidence.RiskLow, MatchScore: 88}, nil
}

func (f *fakeAnalyzer) AnalyzeVoice(_ context.Context, code string, _ evidence.Media) (*evidence.VoiceVerdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voiceCalls++
	f.lastCode = code
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return &evidence.VoiceVerdict{CodeVerified: true, IsNatural: true, RiskScore: 4, Confidence: 93}, nil
}

type fakeFinalizer struct {
	mu    sync.Mutex
	errs  []error
	calls []decision.FinalizeInput
	// entered and block hold a call mid-flight. A blocked call ignores ctx,
	// like a store that has already started its insert.
	entered chan struct{}
	block   chan struct{}
}

func (f *fakeFinalizer) Finalize(_ context.Context, in decision.FinalizeInput) (*models.VerificationRecord, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.VerificationRecord{
		ID:               id.NewRecordID(),
		UserID:           in.UserID,
		Status:           models.StatusVerified,
		DocumentEvidence: in.DocumentEvidence,
		FinalDecision:    evidence.FinalDecision{Decision: evidence.DecisionVerified, RiskScore: 12, ConfidenceScore: 94},
	}, nil
}

func (f *fakeFinalizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// sequenceCodes hands out the given codes in order.
func sequenceCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func completedCapture() *evidence.LivenessCapture {
	frames := make([]evidence.Frame, 0, evidence.FrameCount)
	for i, p := range evidence.Poses {
		frames = append(frames, evidence.Frame{Step: i, Pose: p, Image: evidence.Media{MIMEType: "image/jpeg", Data: []byte{byte(i + 1)}}})
	}
	c, err := evidence.NewLivenessCapture(frames)
	if err != nil {
		panic(err)
	}
	return c
}
