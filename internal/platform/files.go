package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Operating system constants
const (
	OSWindows = "windows"
	OSAndroid = "android"
)

// File permissions
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// Layout constants
const (
	DownloadsDirName       = "Downloads"
	AppDirName             = "psn-updates"
	DefaultPackageFileName = "update.pkg"
	TitleSeparator         = " - "
	InvalidCharReplacement = "_"
)

// Characters that may not appear in a folder name
var (
	WindowsInvalidChars = `<>:"/\|?*`
	UnixInvalidChars    = `/`
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	if runtime.GOOS == OSAndroid || os.Getenv("ANDROID_DATA") != "" {
		return "/sdcard/Download", nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, DownloadsDirName), nil
}

// DefaultDownloadDir returns the directory packages are stored in when none is configured
func DefaultDownloadDir() string {
	dir, err := GetHomeDownloadsDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppDirName)
	}
	return filepath.Join(dir, AppDirName)
}

// SanitizeTitle replaces characters that are invalid in folder names
func SanitizeTitle(title string) string {
	return sanitizeTitleFor(runtime.GOOS, title)
}

func sanitizeTitleFor(goos, title string) string {
	invalid := UnixInvalidChars
	if goos == OSWindows {
		invalid = WindowsInvalidChars
	}
	title = strings.TrimSpace(title)
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) || r < 0x20 {
			return '_'
		}
		return r
	}, title)
}

// PackageDir returns the folder holding the packages of one title:
// <downloadDir>/<TITLEID> - <sanitized title>, or <downloadDir>/<TITLEID>
// when the title is unknown.
func PackageDir(downloadDir, titleID, title string) string {
	title = SanitizeTitle(title)
	if title == "" {
		return filepath.Join(downloadDir, titleID)
	}
	return filepath.Join(downloadDir, titleID+TitleSeparator+title)
}

// PackagePath returns the destination path of fileName for a title.
// An empty fileName falls back to DefaultPackageFileName.
func PackagePath(downloadDir, titleID, title, fileName string) string {
	fileName = filepath.Base(strings.TrimSpace(fileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		fileName = DefaultPackageFileName
	}
	return filepath.Join(PackageDir(downloadDir, titleID, title), fileName)
}

// MigrateLegacyDir renames a folder named only after the title id to the
// current "<TITLEID> - <title>" layout. A missing legacy folder, an unknown
// title or an already existing target are not errors.
func MigrateLegacyDir(downloadDir, titleID, title string) error {
	legacy := filepath.Join(downloadDir, titleID)
	target := PackageDir(downloadDir, titleID, title)
	if legacy == target {
		return nil
	}

	info, err := os.Stat(legacy)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return nil
	}
	if _, err := os.Stat(target); err == nil {
		return nil
	}

	slog.Info("renaming legacy package folder", "from", legacy, "to", target)
	if err := os.Rename(legacy, target); err != nil {
		return fmt.Errorf("rename legacy folder: %w", err)
	}
	return nil
}

// FileExists reports whether path names an existing regular file
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
