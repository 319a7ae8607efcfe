package analysis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycbuster/internal/evidence/models"
)

func TestParseDocumentVerdict(t *testing.T) {
	t.Run("parses full payload and rounds scores", func(t *testing.T) {
		v, err := ParseDocumentVerdict(`{"name":"Asha Rao","documentNumber":"1234 5678 9012","dob":"1990-01-02",
			"address":"12 MG Road","isTampered":false,"confidence":91.6,"reasoning":"clean","extra":"ignored"}`)
		require.NoError(t, err)
		assert.Equal(t, "Asha Rao", v.Name)
		assert.Equal(t, 92, v.Confidence)
		assert.False(t, v.IsTampered)
	})

	t.Run("accepts fenced json", func(t *testing.T) {
		v, err := ParseDocumentVerdict("```json\n{\"isTampered\":true,\"confidence\":40}\n```")
		require.NoError(t, err)
		assert.True(t, v.IsTampered)
		assert.Equal(t, 40, v.Confidence)
	})

	failures := map[string]string{
		"not json":           `definitely not json`,
		"array":              `[{"isTampered":false,"confidence":90}]`,
		"missing isTampered": `{"confidence":90}`,
		"missing confidence": `{"isTampered":false}`,
		"score out of range": `{"isTampered":false,"confidence":140}`,
		"wrong type":         `{"isTampered":"no","confidence":90}`,
		"empty":              ``,
	}
	for name, raw := range failures {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := ParseDocumentVerdict(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errShape))
		})
	}
}

func TestParseLivenessVerdict(t *testing.T) {
	v, err := ParseLivenessVerdict(`{"isLive":true,"humanDetected":true,"confidence":88,"riskLevel":"Low",
		"detectedMovements":{"blink":true,"smile":true,"headTurn":false,"depthChange":true},"matchScore":88}`)
	require.NoError(t, err)
	assert.True(t, v.IsLive)
	assert.Equal(t, models.RiskLow, v.RiskLevel)
	assert.Equal(t, 88, v.MatchScore)
	assert.Equal(t, models.Movements{Blink: true, Smile: true, DepthChange: true}, v.DetectedMovements)

	_, err = ParseLivenessVerdict(`{"isLive":true,"confidence":88,"riskLevel":"extreme","matchScore":88}`)
	require.Error(t, err)

	_, err = ParseLivenessVerdict(`{"isLive":true,"confidence":88,"riskLevel":"low"}`)
	require.Error(t, err, "matchScore is required")
}

func TestParseVoiceVerdict(t *testing.T) {
	v, err := ParseVoiceVerdict(`{"matchesText":true,"codeVerified":true,"isNatural":true,"riskScore":7,
		"transcript":"My verification code is 4821","confidence":93}`)
	require.NoError(t, err)
	assert.True(t, v.CodeVerified)
	assert.Equal(t, 7, v.RiskScore)
	assert.Equal(t, "My verification code is 4821", v.Transcript)

	_, err = ParseVoiceVerdict(`{"codeVerified":true,"isNatural":true,"confidence":93}`)
	require.Error(t, err, "riskScore must not default to zero")
}

func TestParseVideoVerdict(t *testing.T) {
	v, err := ParseVideoVerdict(`{"isDeepfake":true,"confidenceScore":77,"riskLevel":"high",
		"detectedAnomalies":["lip sync drift"," lip sync drift ",""],"frameAnalysis":[{"timestamp":"00:03","issue":"blur at jaw"}]}`)
	require.NoError(t, err)
	assert.True(t, v.IsDeepfake)
	assert.Equal(t, []string{"lip sync drift"}, v.DetectedAnomalies)
	require.Len(t, v.FrameAnalysis, 1)
	assert.Equal(t, "00:03", v.FrameAnalysis[0].Timestamp)

	v, err = ParseVideoVerdict(`{"isDeepfake":false,"confidenceScore":90,"riskLevel":"low"}`)
	require.NoError(t, err)
	assert.NotNil(t, v.DetectedAnomalies)
	assert.Empty(t, v.DetectedAnomalies)

	_, err = ParseVideoVerdict(`{"confidenceScore":77,"riskLevel":"high"}`)
	require.Error(t, err)
}

func TestParseFinalDecision(t *testing.T) {
	v, err := ParseFinalDecision(`{"decision":"Verified","riskScore":12,"confidenceScore":94,"explanation":"all checks passed"}`)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionVerified, v.Decision)
	assert.Equal(t, 12, v.RiskScore)

	for name, raw := range map[string]string{
		"unknown decision": `{"decision":"approved","riskScore":12,"confidenceScore":94}`,
		"missing decision": `{"riskScore":12,"confidenceScore":94}`,
		"missing risk":     `{"decision":"fake","confidenceScore":94}`,
		"negative risk":    `{"decision":"fake","riskScore":-3,"confidenceScore":94}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFinalDecision(raw)
			require.Error(t, err)
		})
	}
}

func TestParseScoreBounds(t *testing.T) {
	parsers := map[string]struct {
		accepted func(score string) (int, error)
	}{
		"final decision risk": {
			accepted: func(score string) (int, error) {
				v, err := ParseFinalDecision(`{"decision":"verified","riskScore":` + score + `,"confidenceScore":50}`)
				if err != nil {
					return 0, err
				}
				return v.RiskScore, nil
			},
		},
		"final decision confidence": {
			accepted: func(score string) (int, error) {
				v, err := ParseFinalDecision(`{"decision":"verified","riskScore":50,"confidenceScore":` + score + `}`)
				if err != nil {
					return 0, err
				}
				return v.ConfidenceScore, nil
			},
		},
		"liveness confidence": {
			accepted: func(score string) (int, error) {
				v, err := ParseLivenessVerdict(`{"isLive":true,"humanDetected":true,"confidence":` + score + `,"riskLevel":"low","matchScore":50}`)
				if err != nil {
					return 0, err
				}
				return v.Confidence, nil
			},
		},
		"liveness match": {
			accepted: func(score string) (int, error) {
				v, err := ParseLivenessVerdict(`{"isLive":true,"humanDetected":true,"confidence":50,"riskLevel":"low","matchScore":` + score + `}`)
				if err != nil {
					return 0, err
				}
				return v.MatchScore, nil
			},
		},
		"voice risk": {
			accepted: func(score string) (int, error) {
				v, err := ParseVoiceVerdict(`{"matchesText":true,"codeVerified":true,"isNatural":true,"riskScore":` + score + `,"confidence":50}`)
				if err != nil {
					return 0, err
				}
				return v.RiskScore, nil
			},
		},
		"video confidence": {
			accepted: func(score string) (int, error) {
				v, err := ParseVideoVerdict(`{"isDeepfake":false,"confidenceScore":` + score + `,"riskLevel":"low"}`)
				if err != nil {
					return 0, err
				}
				return v.ConfidenceScore, nil
			},
		},
	}

	for name, p := range parsers {
		t.Run(name, func(t *testing.T) {
			for raw, want := range map[string]int{"0": 0, "100": 100, "99.6": 100, "0.4": 0} {
				got, err := p.accepted(raw)
				require.NoError(t, err, raw)
				assert.Equal(t, want, got, raw)
			}
			for _, raw := range []string{"100.4", "-0.49", "100.000001", "-1"} {
				_, err := p.accepted(raw)
				require.Error(t, err, raw)
				assert.True(t, errors.Is(err, errShape), raw)
			}
		})
	}
}
