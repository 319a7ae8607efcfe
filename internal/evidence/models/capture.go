package models

import (
	"fmt"

	dErrors "kycbuster/pkg/domain-errors"
)

// Pose is one prescribed instruction in the liveness capture sequence.
type Pose string

const (
	PoseLookStraight Pose = "look-straight"
	PoseBlink        Pose = "blink"
	PoseSmile        Pose = "smile"
	PoseTurnHead     Pose = "turn-head"
	PoseMoveForward  Pose = "move-forward"
)

// Poses is the fixed capture order.
var Poses = [...]Pose{PoseLookStraight, PoseBlink, PoseSmile, PoseTurnHead, PoseMoveForward}

// FrameCount is the number of frames in a complete capture.
const FrameCount = len(Poses)

// Instruction is the text displayed while counting down to a pose.
func (p Pose) Instruction() string {
	switch p {
	case PoseLookStraight:
		return "Look straight at the camera"
	case PoseBlink:
		return "Blink your eyes"
	case PoseSmile:
		return "Smile"
	case PoseTurnHead:
		return "Turn your head slightly"
	case PoseMoveForward:
		return "Move closer to the camera"
	}
	return ""
}

// Feedback is the confirmation text held after the pose's frame is captured.
func (p Pose) Feedback() string {
	switch p {
	case PoseLookStraight:
		return "Position captured"
	case PoseBlink:
		return "Blink captured"
	case PoseSmile:
		return "Expression captured"
	case PoseTurnHead:
		return "Movement captured"
	case PoseMoveForward:
		return "Depth captured"
	}
	return ""
}

// Frame is one captured image tagged with its step index.
type Frame struct {
	Step  int
	Pose  Pose
	Image Media
}

// LivenessCapture is a complete, ordered five-frame capture. The zero value is
// not usable; build one with NewLivenessCapture.
type LivenessCapture struct {
	frames [FrameCount]Frame
}

// NewLivenessCapture accepts exactly FrameCount frames in pose order.
func NewLivenessCapture(frames []Frame) (*LivenessCapture, error) {
	if len(frames) != FrameCount {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("liveness capture requires exactly %d frames, got %d", FrameCount, len(frames)))
	}
	c := &LivenessCapture{}
	for i, f := range frames {
		if f.Step != i || f.Pose != Poses[i] {
			return nil, dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("frame %d must be step %d (%s)", i, i, Poses[i]))
		}
		if f.Image.Empty() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("frame %d is empty", i))
		}
		data := make([]byte, len(f.Image.Data))
		copy(data, f.Image.Data)
		c.frames[i] = Frame{Step: f.Step, Pose: f.Pose, Image: Media{MIMEType: f.Image.MIMEType, Data: data}}
	}
	return c, nil
}

// Frames returns the frames in step order.
func (c *LivenessCapture) Frames() []Frame {
	out := make([]Frame, FrameCount)
	copy(out, c.frames[:])
	return out
}
