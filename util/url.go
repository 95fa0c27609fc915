package util

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoFilename = errors.New("cannot extract valid filename")
)

// FilenameFromURL returns the last path element of u, suitable for saving the resource to a local directory.
func FilenameFromURL(u *url.URL) (string, error) {
	if u == nil {
		return "", ErrNoFilename
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "", ErrNoFilename
	}
	filename := path.Base(p)
	// Reject "filenames" that are just ".", "..", etc.
	if strings.Trim(filename, ".") == "" {
		return "", ErrNoFilename
	}
	if strings.ContainsAny(filename, `\:`) || strings.ContainsRune(filename, 0) {
		return "", ErrNoFilename
	}
	return filename, nil
}
