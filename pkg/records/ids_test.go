package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentIDDeterministic(t *testing.T) {
	first := ContentID("doc.docx", "Intro")
	second := ContentID("doc.docx", "Intro")
	assert.Equal(t, first, second)
}

func TestContentIDSensitiveToInput(t *testing.T) {
	base := ContentID("doc.docx", "Intro")

	assert.NotEqual(t, base, ContentID("doc.docx", "Intro "), "trailing space must change the ID")
	assert.NotEqual(t, base, ContentID("doc.docx", "intro"))
	assert.NotEqual(t, base, ContentID("other.docx", "Intro"))
	assert.NotEqual(t, base, ContentID("Intro", "doc.docx"), "part order matters")
}

func TestContentIDIsDecimal(t *testing.T) {
	id := ContentID("doc.docx", "Intro", "some content")
	assert.NotEmpty(t, id)
	for _, r := range id {
		assert.True(t, r >= '0' && r <= '9', "unexpected rune %q in ID", r)
	}
	// SHA-256 rendered in decimal is at most 78 digits.
	assert.LessOrEqual(t, len(id), 78)
}
