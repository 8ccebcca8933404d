package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/db"
	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/repository"
	"github.com/agnosto/board-collector/db/service"
)

// smoothImage renders a random 8x8 grid of grey levels, bilinearly
// interpolated to width x width. The same seed gives the same picture at any
// size.
func smoothImage(seed int64, width int) image.Image {
	r := rand.New(rand.NewSource(seed))
	var grid [9][9]float64
	for y := range grid {
		for x := range grid[y] {
			grid[y][x] = r.Float64() * 255
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, width))
	for py := 0; py < width; py++ {
		for px := 0; px < width; px++ {
			fx := float64(px) / float64(width) * 8
			fy := float64(py) / float64(width) * 8
			x0, y0 := int(fx), int(fy)
			tx, ty := fx-float64(x0), fy-float64(y0)
			top := grid[y0][x0]*(1-tx) + grid[y0][x0+1]*tx
			bottom := grid[y0+1][x0]*(1-tx) + grid[y0+1][x0+1]*tx
			v := uint8(top*(1-ty) + bottom*ty)
			img.Set(px, py, color.RGBA{v, v / 2, 255 - v, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.CreateDefaultConfig()
	cfg.Options.SaveLocation = t.TempDir()
	cfg.Board.RequestsPerSecond = 1000
	cfg.Board.Burst = 100
	return cfg
}

func TestOptimizer_ResizesAndRemovesOriginal(t *testing.T) {
	cfg := testConfig(t)
	src := filepath.Join(cfg.ImageDir(), "big.png")
	os.MkdirAll(cfg.ImageDir(), 0755)
	if err := os.WriteFile(src, encodePNG(t, smoothImage(1, 1200)), 0644); err != nil {
		t.Fatal(err)
	}

	dst, err := NewOptimizer(cfg).Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("downloaded file still present")
	}

	f, err := os.Open(dst)
	if err != nil {
		t.Fatalf("open optimized: %v", err)
	}
	defer f.Close()
	conf, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode optimized: %v", err)
	}
	if conf.Width != cfg.Images.MaxWidth {
		t.Fatalf("width=%d, want %d", conf.Width, cfg.Images.MaxWidth)
	}
}

func TestOptimizer_NoEnlarge(t *testing.T) {
	cfg := testConfig(t)
	os.MkdirAll(cfg.ImageDir(), 0755)
	src := filepath.Join(cfg.ImageDir(), "small.png")
	os.WriteFile(src, encodePNG(t, smoothImage(2, 100)), 0644)

	dst, err := NewOptimizer(cfg).Optimize(src)
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	f, _ := os.Open(dst)
	defer f.Close()
	conf, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if conf.Width != 100 {
		t.Fatalf("width=%d, want 100", conf.Width)
	}
}

func TestOptimizer_CorruptInput(t *testing.T) {
	cfg := testConfig(t)
	os.MkdirAll(cfg.ImageDir(), 0755)
	src := filepath.Join(cfg.ImageDir(), "broken.jpg")
	os.WriteFile(src, []byte("not an image"), 0644)

	_, err := NewOptimizer(cfg).Optimize(src)
	var oe *OptimizeError
	if !errors.As(err, &oe) {
		t.Fatalf("err=%v, want *OptimizeError", err)
	}
}

func TestHashImage_Format(t *testing.T) {
	h, err := HashImage(smoothImage(3, 256))
	if err != nil {
		t.Fatalf("HashImage: %v", err)
	}
	if len(h) != HashLength {
		t.Fatalf("len=%d, want %d", len(h), HashLength)
	}
	for _, c := range h {
		if c != '0' && c != '1' {
			t.Fatalf("hash %q has non-binary digit", h)
		}
	}
}

func TestHashImage_ScaledCopyIsNear(t *testing.T) {
	a, _ := HashImage(smoothImage(4, 800))
	b, _ := HashImage(smoothImage(4, 400))
	c, _ := HashImage(smoothImage(99, 800))

	near, err := service.HashDistance(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if near > 5 {
		t.Fatalf("scaled copy distance=%d, want <= 5", near)
	}
	far, _ := service.HashDistance(a, c)
	if far <= 5 {
		t.Fatalf("unrelated image distance=%d, want > 5", far)
	}
}

func TestDownloader_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := testConfig(t)
	_, err := NewDownloader(cfg, nil).Download(context.Background(), srv.URL+"/biz/1.jpg", "1.jpg")

	var de *DownloadError
	if !errors.As(err, &de) || de.StatusCode != http.StatusNotFound {
		t.Fatalf("err=%v, want 404 DownloadError", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.ImageDir(), "1.jpg")); !os.IsNotExist(err) {
		t.Fatal("file written for failed download")
	}
}

type recordingNotifier struct {
	entries []models.ImageEntry
}

func (n *recordingNotifier) NotifyRepost(entry models.ImageEntry) {
	n.entries = append(n.entries, entry)
}

func TestPipeline_StoredThenDuplicate(t *testing.T) {
	cfg := testConfig(t)

	bodies := map[string][]byte{
		"/biz/1.png": encodePNG(t, smoothImage(7, 1000)),
		"/biz/2.png": encodePNG(t, smoothImage(7, 1000)),
		"/biz/3.png": encodePNG(t, smoothImage(8, 1000)),
		"/biz/4.png": []byte("garbage"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close()

	store := service.NewImageService(repository.NewImageRepository(database.DB), cfg.Images.HashThreshold, 2)
	notifier := &recordingNotifier{}
	p := NewPipeline(NewDownloader(cfg, nil), NewOptimizer(cfg), store).WithRepostNotifier(notifier, 2)

	jobs := []Job{
		{ThreadID: 1, URL: srv.URL + "/biz/1.png", FileName: "1.png"},
		{ThreadID: 2, URL: srv.URL + "/biz/2.png", FileName: "2.png"},
		{ThreadID: 3, URL: srv.URL + "/biz/3.png", FileName: "3.png"},
		{ThreadID: 4, URL: srv.URL + "/biz/4.png", FileName: "4.png"},
		{ThreadID: 5, URL: srv.URL + "/biz/5.png", FileName: "5.png"},
	}
	results := p.Process(context.Background(), jobs)

	if len(results) != 3 {
		t.Fatalf("results=%d, want 3", len(results))
	}
	if results[0].Outcome != Stored || results[1].Outcome != Duplicate || results[2].Outcome != Stored {
		t.Fatalf("outcomes=%v,%v,%v", results[0].Outcome, results[1].Outcome, results[2].Outcome)
	}
	if results[1].Entry.ID != results[0].Entry.ID {
		t.Fatalf("duplicate matched entry %d, want %d", results[1].Entry.ID, results[0].Entry.ID)
	}
	if results[1].Entry.TotalEncounters != 2 {
		t.Fatalf("TotalEncounters=%d, want 2", results[1].Entry.TotalEncounters)
	}
	if results[2].Entry.ID == results[0].Entry.ID {
		t.Fatal("unrelated image matched existing entry")
	}

	optimized := cfg.OptimizedDir()
	if _, err := os.Stat(filepath.Join(optimized, "1.png")); err != nil {
		t.Fatalf("stored image missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(optimized, "2.png")); !os.IsNotExist(err) {
		t.Fatal("redundant duplicate file kept")
	}
	if _, err := os.Stat(filepath.Join(cfg.ImageDir(), "4.png")); !os.IsNotExist(err) {
		t.Fatal("corrupt download left behind")
	}

	if len(notifier.entries) != 1 || notifier.entries[0].ID != results[0].Entry.ID {
		t.Fatalf("repost notifications=%+v", notifier.entries)
	}
}

type fileFetcher struct {
	dir  string
	body []byte
}

func (f *fileFetcher) Download(ctx context.Context, url, fileName string) (string, error) {
	os.MkdirAll(f.dir, 0755)
	path := filepath.Join(f.dir, fileName)
	return path, os.WriteFile(path, f.body, 0644)
}

type failingStore struct {
	lookupErr error
	saveErr   error
	recordErr error
	match     *service.Match
}

func (s *failingStore) FindNearDuplicate(ctx context.Context, hash string) (*service.Match, error) {
	return s.match, s.lookupErr
}

func (s *failingStore) SaveNew(ctx context.Context, hash, fileName string) (*models.ImageEntry, error) {
	return nil, s.saveErr
}

func (s *failingStore) RecordDuplicate(ctx context.Context, entryID uint) (*models.ImageEntry, error) {
	return nil, s.recordErr
}

func TestPipeline_StoreFailureRemovesOptimized(t *testing.T) {
	tests := []struct {
		name  string
		store *failingStore
	}{
		{"lookup", &failingStore{lookupErr: errors.New("connection reset")}},
		{"save", &failingStore{saveErr: errors.New("disk full")}},
		{"record", &failingStore{
			match:     &service.Match{Entry: models.ImageEntry{ID: 9, FileName: "old.png"}},
			recordErr: errors.New("disk full"),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			fetcher := &fileFetcher{dir: cfg.ImageDir(), body: encodePNG(t, smoothImage(11, 400))}
			p := NewPipeline(fetcher, NewOptimizer(cfg), tt.store)

			_, err := p.ProcessOne(context.Background(), Job{ThreadID: 1, URL: "unused", FileName: "1.png"})
			if err == nil {
				t.Fatal("expected store error")
			}

			files, _ := os.ReadDir(cfg.OptimizedDir())
			if len(files) != 0 {
				t.Fatalf("optimized dir holds %d files after failed %s", len(files), tt.name)
			}
		})
	}
}

type fakeExpiryStore struct {
	expired []models.ImageEntry
	removed []uint
	failOn  uint
}

func (f *fakeExpiryStore) Expired(ctx context.Context, retention time.Duration) ([]models.ImageEntry, error) {
	return f.expired, nil
}

func (f *fakeExpiryStore) Remove(ctx context.Context, entryID uint) error {
	if entryID == f.failOn {
		return errors.New("locked")
	}
	f.removed = append(f.removed, entryID)
	return nil
}

func TestSweeper_RemovesRecordsAndFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.jpg", "keep.jpg"} {
		os.WriteFile(filepath.Join(dir, name), []byte("data"), 0644)
	}

	store := &fakeExpiryStore{
		expired: []models.ImageEntry{
			{ID: 1, FileName: "a.jpg"},
			{ID: 2, FileName: "b.jpg"},
			{ID: 3, FileName: "missing.jpg"},
		},
		failOn: 2,
	}

	res, err := NewSweeper(store, dir, 30*24*time.Hour).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Entries != 2 || res.Files != 1 || res.Freed != 4 {
		t.Fatalf("result=%+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.jpg")); !os.IsNotExist(err) {
		t.Fatal("a.jpg not deleted")
	}
	if _, err := os.Stat(filepath.Join(dir, "b.jpg")); err != nil {
		t.Fatal("b.jpg deleted although its record was kept")
	}
	if _, err := os.Stat(filepath.Join(dir, "keep.jpg")); err != nil {
		t.Fatal("unrelated file deleted")
	}
}
