package threads

// Normalize flattens listing pages into a Snapshot. A thread number seen on
// more than one page keeps the entry from the later page.
func Normalize(pages []Page) Snapshot {
	snapshot := make(Snapshot)
	for _, page := range pages {
		for _, raw := range page.Threads {
			snapshot[raw.No] = fromRaw(raw)
		}
	}
	return snapshot
}

func fromRaw(raw RawThread) Thread {
	t := Thread{
		No:           raw.No,
		Replies:      raw.Replies,
		Images:       raw.Images,
		Time:         raw.Time,
		LastModified: raw.LastModified,
		Subject:      raw.Sub,
		Comment:      raw.Com,
	}
	if raw.Tim != 0 && raw.Ext != "" {
		t.Media = &Media{Stem: raw.Tim, Ext: raw.Ext, Name: raw.Filename}
	}
	return t
}

// WithDetails returns t completed with the opening post's text and attachment.
func (t Thread) WithDetails(op Post) Thread {
	if t.Subject == "" {
		t.Subject = op.Sub
	}
	if t.Comment == "" {
		t.Comment = op.Com
	}
	if t.Time == 0 {
		t.Time = op.Time
	}
	if t.Media == nil {
		t.Media = op.Media()
	}
	return t
}
