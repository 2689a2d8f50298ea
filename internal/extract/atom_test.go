package extract

import (
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom" xmlns:opensearch="http://a9.com/-/spec/opensearch/1.1/" xmlns:arxiv="http://arxiv.org/schemas/atom">
  <title>arXiv Query</title>
  <opensearch:totalResults>4321</opensearch:totalResults>
  <entry>
    <id>http://arxiv.org/abs/2401.00001v2</id>
    <updated>2024-01-03T00:00:00Z</updated>
    <published>2024-01-01T00:00:00Z</published>
    <title>Moduli   of stable
      curves</title>
    <summary>  We study moduli stacks.
      The proof uses &amp;eacute;tale cohomology. </summary>
    <arxiv:primary_category term="math.AG"/>
    <category term="math.AG" scheme="http://arxiv.org/schemas/atom"/>
    <category term="math.NT" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
  <entry>
    <id>https://arxiv.org/abs/2401.00002v1</id>
    <title>Physics cross-list</title>
    <summary>No math category here.</summary>
    <category term="hep-th"/>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2401.00003v1</id>
    <title>   </title>
    <summary>Dropped: no title.</summary>
  </entry>
</feed>`

func TestParseFeed(t *testing.T) {
	feed, err := ParseFeed([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}

	if feed.TotalResults != 4321 {
		t.Errorf("Expected total 4321, got %d", feed.TotalResults)
	}
	if len(feed.Papers) != 2 {
		t.Fatalf("Expected 2 papers, got %d", len(feed.Papers))
	}

	p := feed.Papers[0]
	if p.WorkID != "arxiv:2401.00001v2" {
		t.Errorf("Unexpected work id: %s", p.WorkID)
	}
	if p.Title != "Moduli of stable curves" {
		t.Errorf("Expected collapsed title, got %q", p.Title)
	}
	if p.Summary != "We study moduli stacks. The proof uses étale cohomology." {
		t.Errorf("Unexpected summary: %q", p.Summary)
	}
	if p.Category != "math.AG" {
		t.Errorf("Expected first math category, got %s", p.Category)
	}
	if p.Published != "2024-01-01T00:00:00Z" || p.Updated != "2024-01-03T00:00:00Z" {
		t.Errorf("Unexpected dates: %s %s", p.Published, p.Updated)
	}

	if feed.Papers[1].WorkID != "arxiv:2401.00002v1" {
		t.Errorf("Expected https prefix rewritten, got %s", feed.Papers[1].WorkID)
	}
	if feed.Papers[1].Category != "" {
		t.Errorf("Expected no math category, got %s", feed.Papers[1].Category)
	}
}

func TestParseFeed_MissingTotal(t *testing.T) {
	feed, err := ParseFeed([]byte(`<feed xmlns="http://www.w3.org/2005/Atom"></feed>`))
	if err != nil {
		t.Fatalf("ParseFeed failed: %v", err)
	}
	if feed.TotalResults != 0 || len(feed.Papers) != 0 {
		t.Errorf("Expected empty feed, got %+v", feed)
	}
}

func TestParseFeed_Invalid(t *testing.T) {
	if _, err := ParseFeed([]byte("not xml")); err == nil {
		t.Error("Expected error for invalid XML")
	}
}

func TestNormalizeWorkID(t *testing.T) {
	tests := map[string]string{
		"http://arxiv.org/abs/math/0101001v1": "arxiv:math/0101001v1",
		" https://arxiv.org/abs/2401.1 ":      "arxiv:2401.1",
		"arxiv:2401.2":                        "arxiv:2401.2",
	}
	for in, want := range tests {
		if got := NormalizeWorkID(in); got != want {
			t.Errorf("NormalizeWorkID(%q): expected %q, got %q", in, want, got)
		}
	}
}
