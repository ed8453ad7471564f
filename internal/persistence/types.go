package persistence

import "time"

// SubtitleSelection is the subtitle track a user last picked for a video.
type SubtitleSelection struct {
	VideoID   string    `json:"videoId"`
	URL       string    `json:"url"`
	Label     string    `json:"label,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
