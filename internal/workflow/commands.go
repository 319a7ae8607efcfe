package workflow

import (
	evidence "kycbuster/internal/evidence/models"
)

// Command is an action dispatched to a session. Every mutation of a session
// goes through Engine.Dispatch so stage ordering is enforced in one place.
type Command interface {
	commandName() string
}

// SubmitDetails records the typed identity claims. Details -> Document.
type SubmitDetails struct {
	Details evidence.PersonalDetails
}

// UploadDocument stores the document image. The image is kept across failed
// verifications so it can be re-verified without re-uploading.
type UploadDocument struct {
	Image evidence.Media
}

// VerifyDocument analyzes the uploaded image. Document -> Liveness.
type VerifyDocument struct{}

// VerifyLiveness analyzes a completed capture. Liveness -> Voice.
type VerifyLiveness struct {
	Capture *evidence.LivenessCapture
}

// VerifyVoice analyzes the recording and then finalizes. Voice -> Result.
type VerifyVoice struct {
	Audio evidence.Media
}

// Finalize retries finalization once a voice verdict is held.
type Finalize struct{}

// Next re-enters the following stage when this stage's evidence exists.
type Next struct{}

// Back returns to the previous stage, discarding the evidence of the stage
// being left.
type Back struct{}

func (SubmitDetails) commandName() string  { return "submit_details" }
func (UploadDocument) commandName() string { return "upload_document" }
func (VerifyDocument) commandName() string { return "verify_document" }
func (VerifyLiveness) commandName() string { return "verify_liveness" }
func (VerifyVoice) commandName() string    { return "verify_voice" }
func (Finalize) commandName() string       { return "finalize" }
func (Next) commandName() string           { return "next" }
func (Back) commandName() string           { return "back" }
