package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskCore/internal/domain"
	"riskCore/internal/ports"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Verdict
		wantErr bool
	}{
		{
			name: "plain object",
			raw:  `{"approved": true, "confidence": 82, "setup_type": "breakout", "reasoning": "volume expansion"}`,
			want: Verdict{Confidence: 82, Approved: true, SetupType: domain.SetupBreakout, Reasoning: "volume expansion"},
		},
		{
			name: "fenced with prose",
			raw:  "Here is my assessment:\n```json\n{\"confidence\": \"85%\", \"setup_type\": \"Range Bounce\"}\n```\nGood luck.",
			want: Verdict{Confidence: 85, Approved: true, SetupType: domain.SetupRangeBounce},
		},
		{
			name: "approved derived from threshold",
			raw:  `{"confidence_score": 40, "setup": "pullback"}`,
			want: Verdict{Confidence: 40, Approved: false, SetupType: domain.SetupPullback},
		},
		{
			name: "unknown setup normalised",
			raw:  `{"confidence": 75, "approved": "yes", "setup_type": "head and shoulders"}`,
			want: Verdict{Confidence: 75, Approved: true, SetupType: domain.SetupNone},
		},
		{
			name: "confidence clamped",
			raw:  `{"Confidence": 140, "Approved": "rejected", "Reason": "too extended"}`,
			want: Verdict{Confidence: 100, Approved: false, SetupType: domain.SetupNone, Reasoning: "too extended"},
		},
		{
			name: "hyphenated setup",
			raw:  `{"confidence": 71, "setup_type": "trend-continuation"}`,
			want: Verdict{Confidence: 71, Approved: true, SetupType: domain.SetupTrendContinuation},
		},
		{
			name: "braces in prose before fence",
			raw:  "Here is my view {short}:\n```json\n{\"confidence\": 80, \"approved\": true}\n```",
			want: Verdict{Confidence: 80, Approved: true, SetupType: domain.SetupNone},
		},
		{
			name: "braces in prose after fence",
			raw:  "```json\n{\"confidence\": 80}\n```\nNote: {not json}",
			want: Verdict{Confidence: 80, Approved: true, SetupType: domain.SetupNone},
		},
		{
			name: "unfenced object after stray braces",
			raw:  `I would say {maybe} but {"confidence": 65, "reasoning": "thin {volume}"} overall`,
			want: Verdict{Confidence: 65, Approved: false, SetupType: domain.SetupNone, Reasoning: "thin {volume}"},
		},
		{name: "fence without object", raw: "```\nno verdict\n```", wantErr: true},
		{name: "no object", raw: "I think this trade is fine.", wantErr: true},
		{name: "broken json", raw: `{"confidence": 70,`, wantErr: true},
		{name: "missing confidence", raw: `{"approved": true}`, wantErr: true},
		{name: "non numeric confidence", raw: `{"confidence": "high"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw, 70)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ports.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
