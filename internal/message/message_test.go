package message

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		req     SpeakRequest
		wantErr bool
	}{
		{"ok", SpeakRequest{Text: "Tak"}, false},
		{"ok with duration", SpeakRequest{Text: "Tak", Context: Context{MaxResponseDuration: 1e19}}, false},
		{"empty text", SpeakRequest{Text: " "}, true},
		{"unknown mode", SpeakRequest{Text: "Tak", ResponseMode: "video"}, true},
		{"negative duration", SpeakRequest{Text: "Tak", Context: Context{MaxResponseDuration: -1}}, true},
		{"nan duration", SpeakRequest{Text: "Tak", Context: Context{MaxResponseDuration: math.NaN()}}, true},
		{"infinite duration", SpeakRequest{Text: "Tak", Context: Context{MaxResponseDuration: math.Inf(1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Check()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
