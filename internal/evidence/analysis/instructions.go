package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"kycbuster/internal/evidence/models"
)

// ExpectedPhrase is what the user must say during voice verification.
func ExpectedPhrase(code string) string {
	return "My verification code is " + code
}

func documentInstructions(details models.PersonalDetails) string {
	claimed, _ := json.Marshal(details)
	return strings.Join([]string{
		"You are reviewing an identity document image for a KYC check.",
		"Extract the holder name, document number, date of birth and address.",
		"Compare them with the details the applicant typed: " + string(claimed) + ".",
		"Look for tampering: edited fonts, misaligned fields, inconsistent layout.",
		`Answer with one JSON object: {"name": string, "documentNumber": string, "dob": string, "address": string, ` +
			`"isTampered": boolean, "confidence": integer 0-100, "reasoning": string}.`,
	}, "\n")
}

func livenessInstructions() string {
	var steps strings.Builder
	for i, p := range models.Poses {
		fmt.Fprintf(&steps, "  %d. %s\n", i+1, p.Instruction())
	}
	return strings.Join([]string{
		"You are performing a face liveness and identity match check.",
		"Image 1 is the photo from the applicant's identity document.",
		fmt.Sprintf("Images 2-%d were captured live while the applicant followed these prompts in order:", models.FrameCount+1),
		strings.TrimRight(steps.String(), "\n"),
		"Score how well the live face matches the document photo.",
		"Check that each prompt was followed (blink, smile, head turn, depth change).",
		"Look for spoofing: printed photos, screen replays, masks, synthetic faces.",
		`Answer with one JSON object: {"isLive": boolean, "humanDetected": boolean, "confidence": integer 0-100, ` +
			`"riskLevel": "low"|"medium"|"high", "detectedMovements": {"blink": boolean, "smile": boolean, ` +
			`"headTurn": boolean, "depthChange": boolean}, "matchScore": integer 0-100, "reasoning": string, ` +
			`"explanation": string}.`,
	}, "\n")
}

func voiceInstructions(code string) string {
	return strings.Join([]string{
		"You are checking a short voice recording for a KYC liveness test.",
		fmt.Sprintf("The applicant was asked to say: %q.", ExpectedPhrase(code)),
		"Transcribe the audio and decide whether the code " + code + " was spoken.",
		"Look for cloned or synthetic speech and for replayed audio.",
		`Answer with one JSON object: {"matchesText": boolean, "codeVerified": boolean, "isNatural": boolean, ` +
			`"riskScore": integer 0-100, "reasoning": string, "transcript": string, "confidence": integer 0-100}.`,
	}, "\n")
}

func videoInstructions() string {
	return strings.Join([]string{
		"You are checking a video clip for deepfake manipulation.",
		"Look for lighting inconsistencies, unnatural blinking, lip-sync drift, temporal flicker and background warping.",
		`Answer with one JSON object: {"isDeepfake": boolean, "confidenceScore": integer 0-100, ` +
			`"riskLevel": "low"|"medium"|"high", "detectedAnomalies": [string], "explanation": string, ` +
			`"frameAnalysis": [{"timestamp": string, "issue": string}]}.`,
	}, "\n")
}

func aggregateInstructions(doc *models.DocumentVerdict, live *models.LivenessVerdict, voice *models.VoiceVerdict) string {
	docJSON, _ := json.Marshal(doc)
	liveJSON, _ := json.Marshal(live)
	voiceJSON, _ := json.Marshal(voice)
	return strings.Join([]string{
		"Combine these KYC check results into one decision.",
		"Document analysis: " + string(docJSON),
		"Liveness analysis: " + string(liveJSON),
		"Voice analysis: " + string(voiceJSON),
		`Answer with one JSON object: {"decision": "verified"|"suspicious"|"fake", "riskScore": integer 0-100, ` +
			`"confidenceScore": integer 0-100, "explanation": string}.`,
	}, "\n")
}
