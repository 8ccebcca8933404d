package texts

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultWordCloudSize is the number of words kept when no size is given.
const DefaultWordCloudSize = 300

type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Board noise that tops every cloud without saying anything about it.
var ignoredWords = set(
	"gur", "https", "http", "www", "don", "pastebin", "day", "people", "data",
	"live", "good", "time", "buy", "org", "net", "guys", "youtube", "post",
	"ve", "gonna", "io", "biz", "didn", "t", "s", "thread", "ll", "embed",
	"doesn", "lot", "man",
)

var stopWords = set(
	"a", "about", "after", "again", "all", "also", "am", "an", "and", "any",
	"are", "as", "at", "be", "because", "been", "before", "being", "but", "by",
	"can", "could", "d", "did", "do", "does", "for", "from", "get", "got",
	"had", "has", "have", "he", "her", "here", "him", "his", "how", "i", "if",
	"in", "into", "is", "it", "its", "just", "like", "m", "me", "more", "my",
	"no", "not", "now", "of", "on", "one", "only", "or", "other", "our", "out",
	"re", "she", "so", "some", "than", "that", "the", "their", "them", "then",
	"there", "these", "they", "this", "to", "too", "up", "us", "very", "was",
	"we", "were", "what", "when", "where", "which", "who", "why", "will",
	"with", "would", "you", "your",
)

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// WordCloud counts, for every word, how many of the given posts use it. Posts
// are stripped of markup first, a word repeated inside one post counts once,
// and numbers, stop words and board noise are left out. The n most frequent
// words are returned, ties in alphabetical order. n <= 0 selects
// DefaultWordCloudSize.
func WordCloud(posts []string, n int) []WordCount {
	if n <= 0 {
		n = DefaultWordCloudSize
	}

	counts := make(map[string]int)
	for _, post := range posts {
		seen := make(map[string]struct{})
		for _, word := range words(StripMarkup(post)) {
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			counts[word]++
		}
	}

	cloud := make([]WordCount, 0, len(counts))
	for word, count := range counts {
		cloud = append(cloud, WordCount{Word: word, Count: count})
	}
	sort.Slice(cloud, func(i, j int) bool {
		if cloud[i].Count != cloud[j].Count {
			return cloud[i].Count > cloud[j].Count
		}
		return cloud[i].Word < cloud[j].Word
	})

	if len(cloud) > n {
		cloud = cloud[:n]
	}
	return cloud
}

func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := fields[:0]
	for _, w := range fields {
		if isNumber(w) {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		if _, ok := ignoredWords[w]; ok {
			continue
		}
		out = append(out, w)
	}
	return out
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
