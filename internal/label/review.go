package label

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/johnayoung/dili-agents/internal/provider"
)

// NoDILIFound is the section content that marks a section without evidence.
const NoDILIFound = "No DILI information was found."

const sectionsPrompt = `You are an expert in drug labeling review.
You focus on the two labeling sections that report adverse events.
From the given text, extract all adverse reaction content related to
drug-induced liver injury (DILI) in each section.
If a section has no DILI information, use "` + NoDILIFound + `" as its content.
Output one section per line, exactly in this form:
#S1 [Warnings and Precautions]:[` + NoDILIFound + `]
#S2 [Adverse Reactions]:[...original content from the input text...]`

const keywordsPrompt = `You are an expert in drug-induced liver injury (DILI).
Extract all DILI-related keywords from the following text.
Provide the keywords as a comma-separated list, only terms directly relevant to liver injury.`

var sectionHeader = regexp.MustCompile(`^#S(\d+)\s*\[(.*)$`)

// Section is one adverse event section of a label.
type Section struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Keywords string `json:"keywords,omitempty"`
}

// HasEvidence reports whether the section carries DILI content.
func (s Section) HasEvidence() bool {
	c := strings.TrimSpace(s.Content)
	return c != "" && !strings.EqualFold(c, NoDILIFound)
}

// ParseSections splits the sections answer into sections. Lines that do not
// follow the "#S1 [Title]:[content]" form are returned as skipped.
func ParseSections(text string) (sections []Section, skipped []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		head, content, ok := strings.Cut(line, "]:[")
		if !ok {
			skipped = append(skipped, line)
			continue
		}
		m := sectionHeader.FindStringSubmatch(head)
		if m == nil {
			skipped = append(skipped, line)
			continue
		}
		sections = append(sections, Section{
			ID:      "S" + m[1],
			Title:   strings.TrimSpace(m[2]),
			Content: strings.TrimSpace(strings.TrimSuffix(content, "]")),
		})
	}
	return sections, skipped
}

// Review is the DILI evidence extracted from one drug label.
type Review struct {
	Drug     string    `json:"drug"`
	Source   string    `json:"source,omitempty"`
	Sections []Section `json:"sections"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Evidence renders the review as input text for a classification panel.
func (r *Review) Evidence() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Drug: %s\n", r.Drug)
	for _, s := range r.Sections {
		if !s.HasEvidence() {
			fmt.Fprintf(&b, "[%s]: %s\n", s.Title, NoDILIFound)
			continue
		}
		fmt.Fprintf(&b, "[%s]: %s\n", s.Title, s.Content)
		if s.Keywords != "" {
			fmt.Fprintf(&b, "  Keywords: %s\n", s.Keywords)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Reviewer extracts DILI evidence from drug labels with an LLM.
type Reviewer struct {
	provider provider.Provider
	model    string
	library  *Library
	extract  func(path string) (string, error)
	log      *slog.Logger
	limit    int
}

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reviewer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithExtractor replaces PDF text extraction.
func WithExtractor(fn func(path string) (string, error)) Option {
	return func(r *Reviewer) { r.extract = fn }
}

// WithConcurrency bounds the parallel keyword queries.
func WithConcurrency(n int) Option {
	return func(r *Reviewer) {
		if n > 0 {
			r.limit = n
		}
	}
}

// NewReviewer creates a reviewer that queries model through p.
func NewReviewer(p provider.Provider, model string, library *Library, opts ...Option) *Reviewer {
	r := &Reviewer{
		provider: p,
		model:    model,
		library:  library,
		extract:  ExtractText,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		limit:    4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Review looks up drug in the library and reviews its label.
func (r *Reviewer) Review(ctx context.Context, drug string) (*Review, error) {
	if r.library == nil {
		return nil, fmt.Errorf("%w: %q (no label library configured)", ErrDrugNotFound, drug)
	}
	path, err := r.library.Lookup(drug)
	if err != nil {
		return nil, err
	}
	r.log.Info("reviewing label", slog.String("drug", drug), slog.String("path", path))

	text, err := r.extract(path)
	if err != nil {
		return nil, err
	}
	review, err := r.ReviewText(ctx, drug, text)
	if err != nil {
		return nil, err
	}
	review.Source = path
	return review, nil
}

// ReviewText reviews label text that is already extracted.
func (r *Reviewer) ReviewText(ctx context.Context, drug, text string) (*Review, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("label for %s has no text", drug)
	}

	resp, err := r.provider.Query(ctx, provider.Request{
		Model:       r.model,
		System:      sectionsPrompt,
		Prompt:      text,
		Temperature: provider.Float(0),
		MaxTokens:   2000,
	})
	if err != nil {
		return nil, fmt.Errorf("extracting sections: %w", err)
	}

	sections, skipped := ParseSections(resp.Content)
	review := &Review{Drug: drug, Sections: sections}
	for _, line := range skipped {
		r.log.Warn("skipping malformed section", slog.String("drug", drug), slog.String("line", line))
		review.Warnings = append(review.Warnings, "malformed section: "+line)
	}

	warnings := make([]string, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i := range review.Sections {
		s := &review.Sections[i]
		if !s.HasEvidence() {
			continue
		}
		g.Go(func() error {
			kw, err := r.provider.Query(gctx, provider.Request{
				Model:       r.model,
				System:      keywordsPrompt,
				Prompt:      s.Content,
				Temperature: provider.Float(0),
				MaxTokens:   150,
			})
			if err != nil {
				warnings[i] = fmt.Sprintf("keywords for %s: %v", s.Title, err)
				return nil
			}
			s.Keywords = strings.TrimSpace(kw.Content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, w := range warnings {
		if w != "" {
			r.log.Warn("keyword extraction failed", slog.String("drug", drug), slog.String("warning", w))
			review.Warnings = append(review.Warnings, w)
		}
	}
	return review, nil
}
