package models

import "time"

type Announcement struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	AuthorID      string       `json:"authorId"`
	Author        *UserSummary `json:"author,omitempty"`
	AttachmentIDs []string     `json:"-"`
	Attachments   []Attachment `json:"attachments"`
	ViewerStatus  []string     `json:"viewerStatus"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// Attachment is the metadata of a stored upload.
type Attachment struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	SavedName     string    `json:"savedName"`
	FilePath      string    `json:"filePath"`
	ContentType   string    `json:"contentType"`
	FileExtension string    `json:"fileExtension"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// AnnouncementInput carries the fields of a new announcement.
type AnnouncementInput struct {
	Title        string
	Description  string
	AuthorID     string
	ViewerStatus []string
}

// AnnouncementUpdate is a partial announcement change. Nil fields are left untouched.
type AnnouncementUpdate struct {
	Title         *string
	Description   *string
	ViewerStatus  *[]string
	AttachmentIDs *[]string
}
