package upload

import (
	"net/url"
	"strings"
)

const (
	// MiB is used for the per-file size limit.
	MiB = 1 << 20
	// MinFileBytes is the smallest file accepted by the post-processor.
	MinFileBytes = 1024
	// NotUploaded is the OriginalName of the placeholder shown for an empty slot.
	NotUploaded = "not uploaded"
)

// Slot binds a multipart field name to its intake constraints. Title and
// Description name the text companions of a single-file slot.
type Slot struct {
	Name                string
	MaxCount            int
	MaxSizeBytes        int64
	AllowedMimePrefixes []string
	Title               string
	Description         string
}

// Single reports whether the slot holds at most one file.
func (s Slot) Single() bool {
	return s.MaxCount == 1
}

func (s Slot) allows(mime string) bool {
	if len(s.AllowedMimePrefixes) == 0 {
		return true
	}
	for _, p := range s.AllowedMimePrefixes {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}

var imageOnly = []string{"image/"}

// DefaultSlots is the upload form: two titled single-file slots and a
// gallery of up to three pictures, images only, 2 MiB each.
var DefaultSlots = []Slot{
	{Name: "file1", MaxCount: 1, MaxSizeBytes: 2 * MiB, AllowedMimePrefixes: imageOnly, Title: "title1", Description: "desc1"},
	{Name: "file2", MaxCount: 1, MaxSizeBytes: 2 * MiB, AllowedMimePrefixes: imageOnly, Title: "title2", Description: "desc2"},
	{Name: "pictures", MaxCount: 3, MaxSizeBytes: 2 * MiB, AllowedMimePrefixes: imageOnly},
}

// UploadedFile describes one file accepted by intake. FinalName and FinalPath
// are set once the file has been moved out of staging.
type UploadedFile struct {
	FieldName     string
	TemporaryPath string
	GeneratedName string
	OriginalName  string
	SizeBytes     int64
	MimeType      string
	DetectedType  string
	FinalName     string
	FinalPath     string
}

// Stored reports whether the file reached the permanent directory.
func (f *UploadedFile) Stored() bool {
	return f != nil && f.FinalPath != ""
}

// Files groups the received files by slot, in arrival order.
type Files map[string][]*UploadedFile

// All returns every file, slot by slot in the order of slots.
func (f Files) All(slots []Slot) []*UploadedFile {
	var out []*UploadedFile
	for _, s := range slots {
		out = append(out, f[s.Name]...)
	}
	return out
}

// Submission is the result of intake: staged files plus the text fields.
type Submission struct {
	Files Files
	Form  url.Values
}
