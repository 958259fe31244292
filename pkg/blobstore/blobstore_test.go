package blobstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFolder(t *testing.T) {
	tests := []struct {
		key    string
		folder string
		name   string
	}{
		{"banking/loans.docx", "banking", "loans.docx"},
		{"banking/archive/2023.pdf", "banking", "archive/2023.pdf"},
		{"readme.txt", "", "readme.txt"},
		{"/banking/loans.docx", "banking", "loans.docx"},
	}
	for _, tt := range tests {
		folder, name := SplitFolder(tt.key)
		assert.Equal(t, tt.folder, folder, tt.key)
		assert.Equal(t, tt.name, name, tt.key)
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "loans.docx", BaseName("banking/archive/loans.docx"))
	assert.Equal(t, "readme.txt", BaseName("readme.txt"))
}
