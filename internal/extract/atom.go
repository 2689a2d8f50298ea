package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/mathfoundry/internal/model"
)

const (
	atomNS       = "http://www.w3.org/2005/Atom"
	openSearchNS = "http://a9.com/-/spec/opensearch/1.1/"
)

// Feed is one parsed page of the arXiv Atom API
type Feed struct {
	TotalResults int           // opensearch:totalResults, 0 when absent or invalid
	Papers       []model.Paper // Entries with both a work id and a title
}

type atomFeed struct {
	XMLName      xml.Name    `xml:"http://www.w3.org/2005/Atom feed"`
	TotalResults string      `xml:"http://a9.com/-/spec/opensearch/1.1/ totalResults"`
	Entries      []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID         string         `xml:"http://www.w3.org/2005/Atom id"`
	Title      string         `xml:"http://www.w3.org/2005/Atom title"`
	Summary    string         `xml:"http://www.w3.org/2005/Atom summary"`
	Published  string         `xml:"http://www.w3.org/2005/Atom published"`
	Updated    string         `xml:"http://www.w3.org/2005/Atom updated"`
	Categories []atomCategory `xml:"http://www.w3.org/2005/Atom category"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// ParseFeed parses an arXiv Atom feed page
func ParseFeed(data []byte) (*Feed, error) {
	var raw atomFeed
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse atom feed: %w", err)
	}

	feed := &Feed{Papers: make([]model.Paper, 0, len(raw.Entries))}
	if n, err := strconv.Atoi(strings.TrimSpace(raw.TotalResults)); err == nil && n > 0 {
		feed.TotalResults = n
	}

	for _, e := range raw.Entries {
		paper := model.Paper{
			WorkID:    NormalizeWorkID(e.ID),
			Title:     cleanText(e.Title),
			Summary:   cleanText(e.Summary),
			Category:  primaryMathCategory(e.Categories),
			Published: strings.TrimSpace(e.Published),
			Updated:   strings.TrimSpace(e.Updated),
		}
		if paper.WorkID == "" || paper.Title == "" {
			continue
		}
		feed.Papers = append(feed.Papers, paper)
	}

	return feed, nil
}

// NormalizeWorkID rewrites an arXiv abstract URL into an "arxiv:" work id
func NormalizeWorkID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.ReplaceAll(id, "http://arxiv.org/abs/", "arxiv:")
	id = strings.ReplaceAll(id, "https://arxiv.org/abs/", "arxiv:")
	return id
}

// cleanText collapses whitespace and decodes stray HTML entities
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

func primaryMathCategory(categories []atomCategory) string {
	for _, c := range categories {
		if strings.HasPrefix(c.Term, "math.") {
			return c.Term
		}
	}
	return ""
}
