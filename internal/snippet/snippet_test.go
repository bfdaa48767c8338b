package snippet

import (
	"strings"
	"testing"

	"github.com/nonomal/stract/internal/config"
)

func TestGeneratePrefersWindowWithQueryTerms(t *testing.T) {
	cfg := config.DefaultSnippetConfig()
	cfg.MinPassageWidth = 3
	cfg.MinBodyLength = 5

	body := "completely unrelated filler words go here before the rust programming language appears and then more filler follows after it for a while"
	got := Generate(cfg, body, "", "", []string{"rust", "programming"}, false)

	if !strings.Contains(got, "rust") {
		t.Fatalf("expected snippet to contain query term, got %q", got)
	}
}

func TestGenerateFallsBackToDescription(t *testing.T) {
	cfg := config.DefaultSnippetConfig()
	cfg.MinBodyLength = 1000

	got := Generate(cfg, "short body", "a longer description of the page", "", nil, false)
	if got != "a longer description of the page" {
		t.Fatalf("expected description fallback, got %q", got)
	}
}

func TestGenerateEmptyBodyUsesDmoz(t *testing.T) {
	cfg := config.DefaultSnippetConfig()
	cfg.MinBodyLength = 1000

	got := Generate(cfg, "x", "", "dmoz fallback text", nil, false)
	if got != "dmoz fallback text" {
		t.Fatalf("expected dmoz fallback, got %q", got)
	}
}

func TestGenerateHomepageUsesLowerThreshold(t *testing.T) {
	cfg := config.DefaultSnippetConfig()
	cfg.MinBodyLength = 1000
	cfg.MinBodyLengthHomepage = 1
	cfg.MinPassageWidth = 1

	body := "home"
	got := Generate(cfg, body, "", "", nil, true)
	if got == "" {
		t.Fatalf("expected non-empty snippet for homepage body")
	}
}
