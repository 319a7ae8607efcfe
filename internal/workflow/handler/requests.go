package handler

import (
	"fmt"

	evidence "kycbuster/internal/evidence/models"
	dErrors "kycbuster/pkg/domain-errors"
)

// DetailsRequest is the body of PUT /kyc/sessions/{id}/details.
type DetailsRequest struct {
	FullName string `json:"fullName"`
	DOB      string `json:"dob"`
	Address  string `json:"address"`
}

func (r *DetailsRequest) Details() evidence.PersonalDetails {
	return evidence.PersonalDetails{FullName: r.FullName, DOB: r.DOB, Address: r.Address}
}

func (r *DetailsRequest) Normalize() {
	d := r.Details()
	d.Normalize()
	r.FullName, r.DOB, r.Address = d.FullName, d.DOB, d.Address
}

func (r *DetailsRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return r.Details().Validate()
}

// DocumentRequest is the body of PUT /kyc/sessions/{id}/document.
type DocumentRequest struct {
	Image evidence.EncodedMedia `json:"image"`

	media evidence.Media
}

func (r *DocumentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	m, err := r.Image.Decode("image")
	if err != nil {
		return err
	}
	r.media = m
	return nil
}

// FrameRequest is one captured liveness frame.
type FrameRequest struct {
	Step  int                   `json:"step"`
	Pose  string                `json:"pose"`
	Image evidence.EncodedMedia `json:"image"`
}

// LivenessRequest is the body of POST /kyc/sessions/{id}/liveness: the five
// frames in capture order.
type LivenessRequest struct {
	Frames []FrameRequest `json:"frames"`

	capture *evidence.LivenessCapture
}

func (r *LivenessRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	frames := make([]evidence.Frame, 0, len(r.Frames))
	for i, f := range r.Frames {
		img, err := f.Image.Decode(fmt.Sprintf("frames[%d].image", i))
		if err != nil {
			return err
		}
		frames = append(frames, evidence.Frame{Step: f.Step, Pose: evidence.Pose(f.Pose), Image: img})
	}
	capture, err := evidence.NewLivenessCapture(frames)
	if err != nil {
		return err
	}
	r.capture = capture
	return nil
}

// VoiceRequest is the body of POST /kyc/sessions/{id}/voice.
type VoiceRequest struct {
	Audio evidence.EncodedMedia `json:"audio"`

	media evidence.Media
}

func (r *VoiceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	m, err := r.Audio.Decode("audio")
	if err != nil {
		return err
	}
	r.media = m
	return nil
}
