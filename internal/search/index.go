package search

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/historias/internal/models"
)

// titleBoost weighs title hits over content hits in the additive merge.
const titleBoost = 2.0

// storyDoc is what the index stores for one record. Text fields are folded
// (lowercase, no accents) so "cafe" finds "Café".
type storyDoc struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Platform string `json:"platform"`
	Tone     string `json:"tone"`
}

// Index is an in-memory Bleve index of archived records keyed by filename.
type Index struct {
	index bleve.Index
}

// Match is one index hit.
type Match struct {
	Key   string
	Score float64
}

// NewIndex creates an empty in-memory index.
func NewIndex() (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("platform", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("tone", keywordFieldMapping)
	im.AddDocumentMapping("story", docMapping)
	im.DefaultType = "story"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// Put indexes rec under key, replacing any previous version.
func (x *Index) Put(key string, rec *models.Record) error {
	c := rec.Content
	content := []string{c.Hook}
	content = append(content, c.Body...)
	content = append(content, c.CallToAction, strings.Join(c.Hashtags, " "), c.FullText)
	doc := storyDoc{
		Title:    Fold(c.Title),
		Content:  Fold(strings.Join(content, "\n")),
		Platform: string(rec.Platform),
		Tone:     strings.ToLower(rec.Tone),
	}
	return x.index.Index(key, doc)
}

// Delete removes key from the index.
func (x *Index) Delete(key string) error {
	return x.index.Delete(key)
}

// DocCount returns the number of indexed records.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}

// Search runs query against title and content and merges the scores
// additively, with title hits boosted. For multi-term queries the score is
// scaled by the squared share of terms a record matches, so records that
// match every term rank first. An empty platform matches all platforms.
func (x *Index) Search(query string, limit int, fuzzy bool, platform models.Platform) ([]Match, error) {
	folded := Fold(query)
	terms := strings.Fields(folded)
	if len(terms) == 0 {
		return nil, nil
	}
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	titleScores, err := x.scores(x.fieldQuery(folded, terms, "title", fuzzy), platform, reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve title search failed: %w", err)
	}
	contentScores, err := x.scores(x.fieldQuery(folded, terms, "content", fuzzy), platform, reqSize)
	if err != nil {
		return nil, fmt.Errorf("Bleve content search failed: %w", err)
	}

	coverage := make(map[string]int)
	if len(terms) > 1 {
		for _, term := range terms {
			hits, err := x.scores(x.fieldQuery(term, []string{term}, "", fuzzy), platform, reqSize)
			if err != nil {
				continue
			}
			for id := range hits {
				coverage[id]++
			}
		}
	}

	merged := make(map[string]float64)
	for id, s := range titleScores {
		merged[id] += s * titleBoost
	}
	for id, s := range contentScores {
		merged[id] += s
	}
	out := make([]Match, 0, len(merged))
	for id, score := range merged {
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			share := float64(matched) / float64(len(terms))
			score *= share * share
		}
		out = append(out, Match{Key: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Key > out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// fieldQuery builds a match query, or a disjunction of fuzzy term queries,
// restricted to field unless it is empty.
func (x *Index) fieldQuery(text string, terms []string, field string, fuzzy bool) blevequery.Query {
	if !fuzzy {
		mq := bleve.NewMatchQuery(text)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness(term))
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

func (x *Index) scores(q blevequery.Query, platform models.Platform, size int) (map[string]float64, error) {
	if platform != "" {
		pq := bleve.NewTermQuery(string(platform))
		pq.SetField("platform")
		q = bleve.NewConjunctionQuery(q, pq)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = size
	results, err := x.index.Search(req)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(results.Hits))
	for _, hit := range results.Hits {
		out[hit.ID] = hit.Score
	}
	return out, nil
}

// fuzziness allows one edit for short terms and two otherwise.
func fuzziness(term string) int {
	if len([]rune(term)) <= 4 {
		return 1
	}
	return 2
}

// Fold lowercases s and removes diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
