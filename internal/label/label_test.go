package label

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/johnayoung/dili-agents/internal/provider"
)

func TestParseSections(t *testing.T) {
	text := `Here are the sections:
#S1 [Warnings and Precautions]:[No DILI information was found.]

#S2 [Adverse Reactions]:[Hepatotoxicity, including fatal cases, was reported.]
#S3 broken line without separator`

	sections, skipped := ParseSections(text)

	want := []Section{
		{ID: "S1", Title: "Warnings and Precautions", Content: NoDILIFound},
		{ID: "S2", Title: "Adverse Reactions", Content: "Hepatotoxicity, including fatal cases, was reported."},
	}
	if diff := cmp.Diff(want, sections); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if len(skipped) != 2 {
		t.Errorf("skipped = %q, want the preamble and the broken line", skipped)
	}
	if sections[0].HasEvidence() || !sections[1].HasEvidence() {
		t.Error("HasEvidence mismatch")
	}
}

func TestLibrary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.yaml")
	data := "labels:\n  Tenofovir: pdfs/tenofovir.pdf\n  ACETAMINOPHEN: /abs/apap.pdf\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	lib, err := LoadLibrary(path)
	if err != nil {
		t.Fatalf("LoadLibrary: %v", err)
	}

	got, err := lib.Lookup("tenofovir")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if want := filepath.Join(dir, "pdfs", "tenofovir.pdf"); got != want {
		t.Errorf("Lookup = %q, want %q", got, want)
	}
	if got, _ := lib.Lookup(" Acetaminophen "); got != "/abs/apap.pdf" {
		t.Errorf("Lookup = %q, want absolute path kept", got)
	}
	if _, err := lib.Lookup("aspirin"); !errors.Is(err, ErrDrugNotFound) {
		t.Errorf("err = %v, want ErrDrugNotFound", err)
	}
	if diff := cmp.Diff([]string{"ACETAMINOPHEN", "TENOFOVIR"}, lib.Drugs()); diff != "" {
		t.Errorf("Drugs mismatch (-want +got):\n%s", diff)
	}
}

func TestReviewer_Review(t *testing.T) {
	var (
		mu       sync.Mutex
		keywords []string
	)
	p := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		switch req.System {
		case sectionsPrompt:
			if req.Prompt != "label text" {
				t.Errorf("sections prompt = %q", req.Prompt)
			}
			return provider.Response{Content: "#S1 [Warnings and Precautions]:[Severe hepatitis reported.]\n#S2 [Adverse Reactions]:[No DILI information was found.]"}, nil
		case keywordsPrompt:
			mu.Lock()
			keywords = append(keywords, req.Prompt)
			mu.Unlock()
			return provider.Response{Content: " hepatitis "}, nil
		}
		return provider.Response{}, errors.New("unexpected prompt")
	})

	lib := NewLibrary(map[string]string{"tenofovir": "tenofovir.pdf"})
	extract := func(path string) (string, error) {
		if path != "tenofovir.pdf" {
			t.Errorf("extract path = %q", path)
		}
		return "label text", nil
	}

	review, err := NewReviewer(p, "gpt-4o-mini", lib, WithExtractor(extract)).Review(context.Background(), "Tenofovir")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	if diff := cmp.Diff([]string{"Severe hepatitis reported."}, keywords); diff != "" {
		t.Errorf("keyword queries mismatch (-want +got):\n%s", diff)
	}
	if review.Source != "tenofovir.pdf" || review.Sections[0].Keywords != "hepatitis" {
		t.Errorf("review = %+v", review)
	}

	evidence := review.Evidence()
	for _, want := range []string{"Drug: Tenofovir", "[Warnings and Precautions]: Severe hepatitis reported.", "Keywords: hepatitis", "[Adverse Reactions]: " + NoDILIFound} {
		if !strings.Contains(evidence, want) {
			t.Errorf("evidence missing %q:\n%s", want, evidence)
		}
	}
}

func TestReviewer_Errors(t *testing.T) {
	p := provider.ProviderFunc(func(ctx context.Context, req provider.Request) (provider.Response, error) {
		if req.System == keywordsPrompt {
			return provider.Response{}, errors.New("rate limited")
		}
		return provider.Response{Content: "#S1 [Adverse Reactions]:[ALT elevations]"}, nil
	})

	r := NewReviewer(p, "m", NewLibrary(nil))
	if _, err := r.Review(context.Background(), "x"); !errors.Is(err, ErrDrugNotFound) {
		t.Errorf("err = %v, want ErrDrugNotFound", err)
	}
	if _, err := r.ReviewText(context.Background(), "x", "   "); err == nil {
		t.Error("expected error for empty label text")
	}

	review, err := r.ReviewText(context.Background(), "x", "text")
	if err != nil {
		t.Fatalf("ReviewText: %v", err)
	}
	if len(review.Warnings) != 1 || !strings.Contains(review.Warnings[0], "rate limited") {
		t.Errorf("warnings = %q, want keyword failure", review.Warnings)
	}
}
