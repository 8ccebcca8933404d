package images

import "fmt"

// DownloadError is returned when an attachment could not be fetched.
// StatusCode is zero for transport failures.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("download %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// OptimizeError is returned when an image cannot be decoded or re-encoded.
type OptimizeError struct {
	Path string
	Err  error
}

func (e *OptimizeError) Error() string {
	return fmt.Sprintf("optimize %s: %v", e.Path, e.Err)
}

func (e *OptimizeError) Unwrap() error {
	return e.Err
}
