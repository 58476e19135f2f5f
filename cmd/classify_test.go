package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintClassification(t *testing.T) {
	var buf bytes.Buffer
	printClassification(&buf, []string{
		"https://youtu.be/dQw4w9WgXcQ?t=42",
		"https://www.tiktok.com/@creator/video/7301?lang=en",
		"ftp://example.com/video",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "CANONICAL URL")

	assert.Contains(t, lines[1], "youtube")
	assert.Contains(t, lines[1], "regular")
	assert.Contains(t, lines[1], "https://www.youtube.com/watch?v=dQw4w9WgXcQ")

	assert.Contains(t, lines[2], "tiktok")
	assert.Contains(t, lines[2], "https://www.tiktok.com/@creator/video/7301")

	assert.Contains(t, lines[3], "InvalidUrlError")
}
