package device

import (
	"fmt"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/kailas-cloud/devsearch/internal/domain"
)

// Input limits.
const (
	MaxTitleLength = 512
	// MaxContentSize is the maximum content size in bytes.
	MaxContentSize = 163840 // 160KB
)

// Input is the caller-supplied part of a device: everything except the id.
type Input struct {
	Title   string
	Content string
}

// Validate checks the input against the record store constraints.
// Errors wrap domain.ErrConstraintViolation.
func (in Input) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Title,
			validation.By(validUTF8),
			validation.By(noNUL),
			validation.RuneLength(0, MaxTitleLength),
		),
		validation.Field(&in.Content,
			validation.By(validUTF8),
			validation.By(noNUL),
			validation.Length(0, MaxContentSize).Error(fmt.Sprintf("must be at most %d bytes", MaxContentSize)),
		),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConstraintViolation, err)
	}
	return nil
}

func validUTF8(value any) error {
	s, _ := value.(string)
	if !utf8.ValidString(s) {
		return validation.NewError("validation_utf8", "must be valid UTF-8")
	}
	return nil
}

// noNUL rejects U+0000, which postgres text columns cannot store.
func noNUL(value any) error {
	s, _ := value.(string)
	if strings.ContainsRune(s, 0) {
		return validation.NewError("validation_nul", "must not contain NUL characters")
	}
	return nil
}

// Record is the system-of-record entity. Its id is assigned by the record
// store on first persistence and never changes afterwards.
type Record struct {
	id      int64
	title   string
	content string
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(id int64, title, content string) Record {
	return Record{id: id, title: title, content: content}
}

// ID returns the store-assigned identity.
func (r Record) ID() int64 { return r.id }

// Title returns the device title.
func (r Record) Title() string { return r.title }

// Content returns the device content.
func (r Record) Content() string { return r.content }

// Document is the search-index projection of a Record.
// ID always equals the ID of the Record it was derived from.
type Document struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DocumentFrom derives the search document of a record.
func DocumentFrom(r Record) Document {
	return Document{ID: r.id, Title: r.title, Content: r.content}
}
