package threads

import (
	"encoding/json"
	"strconv"
)

// Thread is the stable per-thread shape compared between cycles.
type Thread struct {
	No           int64  `json:"no"`
	Replies      int    `json:"replies"`
	Images       int    `json:"images,omitempty"`
	Time         int64  `json:"time,omitempty"`
	LastModified int64  `json:"last_modified"`
	Subject      string `json:"sub,omitempty"`
	Comment      string `json:"com,omitempty"`
	Media        *Media `json:"media,omitempty"`
}

// Media describes the single attachment of a thread's opening post.
type Media struct {
	Stem int64  `json:"tim"`
	Ext  string `json:"ext"`
	Name string `json:"filename,omitempty"`
}

func (m Media) FileName() string {
	return strconv.FormatInt(m.Stem, 10) + m.Ext
}

// IsImage reports whether the attachment is one the image pipeline handles.
func (m Media) IsImage() bool {
	return m.Ext == ".jpg" || m.Ext == ".png"
}

// Snapshot is the board state at one fetch instant, keyed by thread number.
type Snapshot map[int64]Thread

// Page is one page of the upstream thread listing.
type Page struct {
	Page    int         `json:"page"`
	Threads []RawThread `json:"threads"`
}

// RawThread is a listing entry as the API sends it. Catalog listings embed
// reply previews in LastReplies; they are not part of Thread.
type RawThread struct {
	No           int64           `json:"no"`
	Replies      int             `json:"replies"`
	Images       int             `json:"images"`
	Time         int64           `json:"time"`
	LastModified int64           `json:"last_modified"`
	Sub          string          `json:"sub"`
	Com          string          `json:"com"`
	Tim          int64           `json:"tim"`
	Ext          string          `json:"ext"`
	Filename     string          `json:"filename"`
	LastReplies  json.RawMessage `json:"last_replies,omitempty"`
}

// Post is an entry of a thread detail response; only the opening post is used.
type Post struct {
	No       int64  `json:"no"`
	Time     int64  `json:"time"`
	Sub      string `json:"sub"`
	Com      string `json:"com"`
	Tim      int64  `json:"tim"`
	Ext      string `json:"ext"`
	Filename string `json:"filename"`
	Replies  int    `json:"replies"`
	Images   int    `json:"images"`
}

type ThreadDetails struct {
	Posts []Post `json:"posts"`
}

// Media returns the post's attachment, or nil when it has none.
func (p Post) Media() *Media {
	if p.Tim == 0 || p.Ext == "" {
		return nil
	}
	return &Media{Stem: p.Tim, Ext: p.Ext, Name: p.Filename}
}
