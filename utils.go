package bpe

import (
	"os"
	"path/filepath"
	"runtime"
)

// Version is the library version reported in the User-Agent of hub requests.
const Version = "0.1.0"

// getCacheDir returns the platform-specific cache directory root.
func getCacheDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "bpe-tokenizer")
		}
		return filepath.Join(os.TempDir(), "bpe-tokenizer")
	case "darwin":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Caches", "bpe-tokenizer")
		}
	default: // linux
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, "bpe-tokenizer")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".cache", "bpe-tokenizer")
		}
	}
	return filepath.Join(os.TempDir(), "bpe-tokenizer")
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
