// Package resume extracts candidate facts from resume documents.
package resume

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResume is returned when a resume has no readable text.
	ErrEmptyResume = errors.New("resume is empty")

	// ErrUnsupportedFormat is returned for documents the extractor cannot read.
	ErrUnsupportedFormat = errors.New("unsupported resume format")
)

// File is an uploaded resume.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Contact is the candidate's contact block.
type Contact struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
}

// Parsed is the structured content of a resume.
type Parsed struct {
	Text           string   `json:"-"`
	Skills         []string `json:"skills"`
	Experience     []string `json:"experience"`
	Education      []string `json:"education"`
	Projects       []string `json:"projects"`
	Certifications []string `json:"certifications"`
	Achievements   []string `json:"achievements"`
	Contact        Contact  `json:"contact"`
}

// Extractor parses a resume file.
type Extractor interface {
	Parse(ctx context.Context, f File) (*Parsed, error)
}
