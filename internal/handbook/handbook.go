// Package handbook downloads the AI-written project handbook as a PDF file
package handbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/tgienger/smartpm/internal/models"
	"github.com/tgienger/smartpm/internal/session"
)

// ErrNotPDF is returned when the service answers with something other than a PDF
var ErrNotPDF = errors.New("handbook response is not a PDF")

// maxSuffix bounds the search for a free file name
const maxSuffix = 1000

// Renderer produces the handbook PDF of a project
type Renderer interface {
	HandbookPDF(ctx context.Context, userID, projectID string, model models.ModelSelector) ([]byte, error)
}

// Export requests the handbook of project and writes it into dir as
// <slug>-handbook.pdf. An existing file is never overwritten; a numeric
// suffix is added instead. It returns the written path.
func Export(ctx context.Context, r Renderer, sess *session.Session, project models.Project, model models.ModelSelector, dir string) (string, error) {
	userID, err := sess.RequireUser()
	if err != nil {
		return "", err
	}
	if model == "" {
		model = models.DefaultModel
	}

	data, err := r.HandbookPDF(ctx, userID, project.ID, model)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", ErrNotPDF
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	return writeNew(dir, FileName(project.Name), data)
}

// FileName returns the base file name for a project's handbook
func FileName(projectName string) string {
	return Slug(projectName) + "-handbook.pdf"
}

// Slug lowercases name and joins its letters and digits with dashes
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "project"
	}
	return b.String()
}

func writeNew(dir, name string, data []byte) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	for i := 0; i < maxSuffix; i++ {
		candidate := name
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", name, dir)
}
