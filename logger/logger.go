package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agnosto/board-collector/config"
)

const (
	maxLogSize    = 5 * 1024 * 1024 // 5MB
	maxLogBackups = 5
)

var (
	// Logger defaults to stderr so packages can log before InitLogger runs (tests, diagnosis).
	Logger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lshortfile)

	rotateOnce sync.Once
)

// InitLogger points Logger at save_location/.logs/board-collector.log. When
// console is true every line is mirrored to stdout as well.
func InitLogger(cfg *config.Config, console bool) error {
	logDir := filepath.Join(cfg.Options.SaveLocation, ".logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, "board-collector.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	out := &rotatingWriter{file: file}
	if console {
		Logger = log.New(io.MultiWriter(out, os.Stdout), "", log.Ldate|log.Ltime|log.Lshortfile)
	} else {
		Logger = log.New(out, "", log.Ldate|log.Ltime|log.Lshortfile)
	}

	rotateOnce.Do(func() {
		go rotateLogFile(logFile, out)
	})

	return nil
}

// rotatingWriter lets the rotation goroutine swap the file underneath a
// logger that may be writing through an io.MultiWriter.
type rotatingWriter struct {
	mu   sync.Mutex
	file *os.File
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Write(p)
}

func (w *rotatingWriter) swap(f *os.File) {
	w.mu.Lock()
	old := w.file
	w.file = f
	w.mu.Unlock()
	old.Close()
}

func rotateLogFile(logFile string, out *rotatingWriter) {
	for {
		time.Sleep(1 * time.Hour)

		file, err := os.Stat(logFile)
		if err != nil {
			Logger.Printf("Error checking log file: %v", err)
			continue
		}

		if file.Size() < maxLogSize {
			continue
		}

		Logger.Printf("Rotating log file")

		for i := maxLogBackups - 1; i > 0; i-- {
			oldFile := fmt.Sprintf("%s.%d", logFile, i)
			newFile := fmt.Sprintf("%s.%d", logFile, i+1)
			os.Rename(oldFile, newFile)
		}

		os.Rename(logFile, logFile+".1")

		newFile, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			Logger.Printf("Error creating new log file: %v", err)
			continue
		}

		out.swap(newFile)
	}
}
