// Package label reviews drug labeling documents for liver injury evidence.
package label

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"gopkg.in/yaml.v3"
)

// ErrDrugNotFound is returned when the library has no label for a drug.
var ErrDrugNotFound = errors.New("drug not found in label library")

// Library maps drug names to label PDFs. Names are case-insensitive.
type Library struct {
	labels map[string]string
}

type libraryFile struct {
	Labels map[string]string `yaml:"labels"`
}

// NewLibrary builds a library from drug name to PDF path.
func NewLibrary(labels map[string]string) *Library {
	l := &Library{labels: make(map[string]string, len(labels))}
	for drug, path := range labels {
		l.labels[strings.ToUpper(strings.TrimSpace(drug))] = path
	}
	return l
}

// LoadLibrary reads a YAML library file. Relative PDF paths are resolved
// against the file's directory.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label library: %w", err)
	}
	var f libraryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse label library: %w", err)
	}

	dir := filepath.Dir(path)
	for drug, p := range f.Labels {
		if !filepath.IsAbs(p) {
			f.Labels[drug] = filepath.Join(dir, p)
		}
	}
	return NewLibrary(f.Labels), nil
}

// Lookup returns the PDF path for drug.
func (l *Library) Lookup(drug string) (string, error) {
	path, ok := l.labels[strings.ToUpper(strings.TrimSpace(drug))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrDrugNotFound, drug)
	}
	return path, nil
}

// Drugs returns the library's drug names, sorted.
func (l *Library) Drugs() []string {
	drugs := make([]string, 0, len(l.labels))
	for d := range l.labels {
		drugs = append(drugs, d)
	}
	sort.Strings(drugs)
	return drugs
}

// ExtractText returns the plain text of every page of a PDF.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract text from %s: %w", path, err)
	}

	var b bytes.Buffer
	if _, err := b.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read text from %s: %w", path, err)
	}
	return b.String(), nil
}
