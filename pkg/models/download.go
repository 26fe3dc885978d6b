package models

import "time"

// DownloadEntry represents a media file saved to the downloads directory
type DownloadEntry struct {
	FileName string    `json:"filename"`
	Size     int64     `json:"size"`
	Saved    time.Time `json:"saved"`
}
