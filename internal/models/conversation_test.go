package models_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/popeskul/waba-messenger/internal/models"
)

func TestTruncateBody(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantRunes int
	}{
		{name: "short body unchanged", body: "Hello", wantRunes: 5},
		{name: "long ascii body cut to limit", body: strings.Repeat("x", 900), wantRunes: models.LastMessageMaxLen},
		{name: "multibyte body cut on rune boundary", body: strings.Repeat("€", 600), wantRunes: models.LastMessageMaxLen},
		{name: "exactly at limit unchanged", body: strings.Repeat("y", models.LastMessageMaxLen), wantRunes: models.LastMessageMaxLen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.TruncateBody(tt.body)

			assert.Equal(t, tt.wantRunes, utf8.RuneCountInString(got))
			assert.True(t, utf8.ValidString(got), "truncation must not split a rune")
			assert.True(t, strings.HasPrefix(tt.body, got))
		})
	}
}
