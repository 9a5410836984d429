// Package upload validates files before they are sent to the backend.
// A rejected file never reaches the network.
package upload

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrRejected is wrapped by every validation failure.
var ErrRejected = errors.New("file rejected")

// RejectionError carries the human-readable reason a file was refused.
type RejectionError struct {
	Name   string
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func (e *RejectionError) Unwrap() error { return ErrRejected }

// Defaults match what the backend accepts for resumes.
var (
	DefaultExtensions = []string{".pdf", ".docx", ".doc"}
	DefaultMaxSizeMB  = 10
)

// Policy is the set of files accepted for upload.
type Policy struct {
	Extensions []string
	MaxSizeMB  int
}

// DefaultPolicy returns the resume upload policy.
func DefaultPolicy() Policy {
	return Policy{
		Extensions: append([]string(nil), DefaultExtensions...),
		MaxSizeMB:  DefaultMaxSizeMB,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxSizeMB <= 0 {
		p.MaxSizeMB = DefaultMaxSizeMB
	}
	if len(p.Extensions) == 0 {
		p.Extensions = DefaultExtensions
	}
	exts := make([]string, 0, len(p.Extensions))
	for _, e := range p.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	p.Extensions = exts
	return p
}

// MaxBytes is the size limit in bytes.
func (p Policy) MaxBytes() int64 {
	return int64(p.normalized().MaxSizeMB) * 1024 * 1024
}

// Validate checks a file's name and size. Size is checked first.
func (p Policy) Validate(name string, size int64) error {
	p = p.normalized()

	if size > p.MaxBytes() {
		return &RejectionError{Name: name, Reason: fmt.Sprintf("File size must be less than %dMB", p.MaxSizeMB)}
	}
	if size == 0 {
		return &RejectionError{Name: name, Reason: "File is empty"}
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range p.Extensions {
		if ext == allowed {
			return nil
		}
	}
	return &RejectionError{
		Name:   name,
		Reason: fmt.Sprintf("Only %s files are allowed", strings.ToUpper(strings.Join(p.Extensions, ", "))),
	}
}

// Check validates name and size and, for PDFs, that content opens as a
// document with at least one page.
func (p Policy) Check(name string, content io.ReaderAt, size int64) error {
	if err := p.Validate(name, size); err != nil {
		return err
	}
	if strings.ToLower(filepath.Ext(name)) != ".pdf" {
		return nil
	}
	pages, err := countPages(content, size)
	if err != nil || pages == 0 {
		return &RejectionError{Name: name, Reason: "File is not a readable PDF document"}
	}
	return nil
}

// countPages recovers from the panics the PDF parser raises on some
// malformed inputs.
func countPages(content io.ReaderAt, size int64) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()
	rd, err := pdf.NewReader(content, size)
	if err != nil {
		return 0, fmt.Errorf("parsing pdf: %w", err)
	}
	return rd.NumPage(), nil
}
