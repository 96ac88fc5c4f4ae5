package song

import (
	"cmp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultSearchThreshold is the minimum Jaro-Winkler similarity for a
// fuzzy title match.
const DefaultSearchThreshold = 0.85

// Search filters songs to those whose title matches query, best match first.
// A title qualifies when it contains the query, when every query word
// sounds like a title word (Double Metaphone), or when the best
// Jaro-Winkler score reaches threshold. An empty query returns songs
// unchanged.
func Search(songs []Song, query string, threshold float64) []Song {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return songs
	}
	if threshold <= 0 {
		threshold = DefaultSearchThreshold
	}
	queryTokens := strings.Fields(query)

	type hit struct {
		song  Song
		score float64
	}
	var hits []hit
	for _, s := range songs {
		title := strings.ToLower(s.Title)
		if strings.Contains(title, query) {
			hits = append(hits, hit{s, 1})
			continue
		}

		titleTokens := strings.Fields(title)
		score := bestScore(queryTokens, titleTokens, query, title)
		if soundsLike(queryTokens, titleTokens) {
			score = max(score, threshold)
		}
		if score >= threshold {
			hits = append(hits, hit{s, score})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.song.Title, b.song.Title)
	})

	out := make([]Song, len(hits))
	for i, h := range hits {
		out[i] = h.song
	}
	return out
}

// bestScore is the highest Jaro-Winkler similarity over the full strings and
// every query/title word pair.
func bestScore(queryTokens, titleTokens []string, query, title string) float64 {
	score := matchr.JaroWinkler(query, title, false)
	for _, q := range queryTokens {
		for _, t := range titleTokens {
			if s := matchr.JaroWinkler(q, t, false); s > score {
				score = s
			}
		}
	}
	return score
}

// soundsLike reports whether each query word shares a Double Metaphone code
// with some title word.
func soundsLike(queryTokens, titleTokens []string) bool {
	titleCodes := make(map[string]struct{}, len(titleTokens)*2)
	for _, t := range titleTokens {
		for _, c := range metaphone(t) {
			titleCodes[c] = struct{}{}
		}
	}
	for _, q := range queryTokens {
		found := false
		for _, c := range metaphone(q) {
			if _, ok := titleCodes[c]; ok {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return len(queryTokens) > 0
}

func metaphone(word string) []string {
	p, s := matchr.DoubleMetaphone(word)
	codes := make([]string, 0, 2)
	if p != "" {
		codes = append(codes, p)
	}
	if s != "" && s != p {
		codes = append(codes, s)
	}
	return codes
}
