//go:build !windows

package store

import "github.com/google/renameio/v2"

// replaceFile writes data to a temporary file in the same directory and
// renames it over path, so readers never observe a half-written list.
func replaceFile(path string, data []byte) error {
	return renameio.WriteFile(path, data, 0644)
}
