// agora/utils/utils.go
package utils

import (
	"os"
	"strings"
)

// ReadBanner reads the site announcement from its file. A missing file is an empty banner.
func ReadBanner(bannerFile string) (string, error) {
	if bannerFile == "" {
		return "", nil
	}
	content, err := os.ReadFile(bannerFile)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(content)), nil
}

// WriteBanner replaces the site announcement. Empty content removes the file.
func WriteBanner(bannerFile, content string) error {
	if content == "" {
		if err := os.Remove(bannerFile); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return os.WriteFile(bannerFile, []byte(content), 0644)
}
