package util

import (
	"net/url"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestFilenameFromURL(t *testing.T) {
	assert := assert_.New(t)

	valid := []struct{ raw, expected string }{
		{"https://example.com/downloads/tweets.zip", "tweets.zip"},
		{"https://example.com/downloads/transcript.txt/", "transcript.txt"},
		{"/relative/path/out.csv?token=abc", "out.csv"},
		{"https://example.com/a%20b.zip", "a b.zip"},
	}
	for _, c := range valid {
		u, err := url.Parse(c.raw)
		assert.Nil(err)
		filename, err := FilenameFromURL(u)
		assert.Nil(err, c.raw)
		assert.Equal(c.expected, filename, c.raw)
	}

	for _, raw := range []string{"https://example.com", "https://example.com/", "https://example.com/..", "https://example.com/x/...", "https://example.com/a%5Cb"} {
		u, err := url.Parse(raw)
		assert.Nil(err)
		_, err = FilenameFromURL(u)
		assert.ErrorIs(err, ErrNoFilename, raw)
	}
	_, err := FilenameFromURL(nil)
	assert.ErrorIs(err, ErrNoFilename)
}
