package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/agnosto/board-collector/logger"
	"github.com/schollz/progressbar/v3"
)

const (
	githubAPIURL = "https://api.github.com/repos/agnosto/board-collector/releases/latest"
	binaryName   = "board-collector"
)

var ErrUpToDate = errors.New("already on the latest version")

type GithubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// Updater replaces the running binary with the latest GitHub release.
type Updater struct {
	apiURL     string
	httpClient *http.Client
	goos       string
	goarch     string
}

func New() *Updater {
	return &Updater{
		apiURL:     githubAPIURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		goos:       runtime.GOOS,
		goarch:     runtime.GOARCH,
	}
}

func CheckForUpdate(currentVersion string) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}
	return New().Update(currentVersion, execPath)
}

// CheckUpdateAvailable reports whether a newer release than currentVersion
// is published, and its tag.
func CheckUpdateAvailable(currentVersion string) (bool, string, error) {
	return New().Available(currentVersion)
}

func (u *Updater) Available(currentVersion string) (bool, string, error) {
	release, err := u.latestRelease()
	if err != nil {
		return false, "", err
	}
	if !strings.HasPrefix(currentVersion, "v") {
		currentVersion = "v" + currentVersion
	}
	return release.TagName != currentVersion, release.TagName, nil
}

// Update installs the latest release over execPath. It returns ErrUpToDate
// when currentVersion is the latest tag.
func (u *Updater) Update(currentVersion, execPath string) error {
	release, err := u.latestRelease()
	if err != nil {
		return fmt.Errorf("failed to get latest release: %w", err)
	}

	if !strings.HasPrefix(currentVersion, "v") {
		currentVersion = "v" + currentVersion
	}
	if release.TagName == currentVersion {
		return ErrUpToDate
	}

	logger.Logger.Printf("[INFO] New version available: %s", release.TagName)
	return u.installRelease(release, execPath)
}

func (u *Updater) latestRelease() (*GithubRelease, error) {
	resp, err := u.httpClient.Get(u.apiURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release lookup returned status %d", resp.StatusCode)
	}

	var release GithubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}
	return &release, nil
}

func (u *Updater) assetName(tag string) string {
	return fmt.Sprintf("%s_%s_%s_%s.tar.gz", binaryName, strings.TrimPrefix(tag, "v"), u.goos, u.goarch)
}

func (u *Updater) installRelease(release *GithubRelease, execPath string) error {
	assetName := u.assetName(release.TagName)

	var downloadURL string
	for _, asset := range release.Assets {
		if asset.Name == assetName {
			downloadURL = asset.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("no suitable binary found for %s/%s", u.goos, u.goarch)
	}

	resp, err := u.httpClient.Get(downloadURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, "downloading "+release.TagName)
	gzr, err := gzip.NewReader(io.TeeReader(resp.Body, bar))
	if err != nil {
		return err
	}
	defer gzr.Close()

	tempDir, err := os.MkdirTemp(filepath.Dir(execPath), binaryName+"-update")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tempDir)

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if header.Typeflag != tar.TypeReg || !strings.HasPrefix(filepath.Base(header.Name), binaryName) {
			continue
		}

		outPath := filepath.Join(tempDir, filepath.Base(header.Name))
		outFile, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(outFile, tr); err != nil {
			outFile.Close()
			return err
		}
		outFile.Close()

		if u.goos == "windows" {
			// A running executable cannot be replaced on windows.
			old := execPath + ".old"
			os.Remove(old)
			if err := os.Rename(execPath, old); err != nil {
				return err
			}
		}
		if err := os.Rename(outPath, execPath); err != nil {
			return err
		}
		logger.Logger.Printf("[INFO] Updated to %s", release.TagName)
		return nil
	}

	return fmt.Errorf("binary not found in the archive")
}
