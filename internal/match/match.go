// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match finds the context windows of a paper's text that mention
// the configured search terms. Simple terms match as substrings; composite
// terms match when all their parts occur within a bounded span (loose
// match). Overlapping windows are merged so each passage is presented once.
package match

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/significance-miner/pkg/types"
)

// Options controls window sizes and case handling.
type Options struct {
	// ContextLength is the number of bytes kept on each side of a match. It
	// also acts as the merge threshold: occurrences closer than twice this
	// distance end up in one window.
	ContextLength int

	// LooseWindow bounds the distance between the first and the last part
	// of a composite term.
	LooseWindow int

	CaseSensitive bool
}

// OptionsFrom builds Options from the run configuration.
func OptionsFrom(cfg types.MatchConfig) Options {
	return Options{
		ContextLength: cfg.ContextLength,
		LooseWindow:   cfg.LooseMatchWindow,
		CaseSensitive: cfg.CaseSensitive,
	}
}

// FindWindows returns the merged windows of text relevant to terms, in
// ascending start order.
func FindWindows(doi, text string, terms []types.SearchTerm, opts Options) []types.ContextWindow {
	return Merge(text, RawWindows(doi, text, terms, opts))
}

// RawWindows returns one window per simple-term occurrence and one per
// composite co-occurrence span, before merging. A window extends
// ContextLength bytes past the end of its last matched part. Windows are
// sorted by start offset, then end offset, then term.
func RawWindows(doi, text string, terms []types.SearchTerm, opts Options) []types.ContextWindow {
	if text == "" || len(terms) == 0 {
		return nil
	}
	haystack := text
	if !opts.CaseSensitive {
		haystack = fold(text)
	}

	var spans []span
	for _, t := range terms {
		parts := t.Parts
		if !opts.CaseSensitive {
			parts = make([]string, len(t.Parts))
			for i, p := range t.Parts {
				parts[i] = fold(p)
			}
		}
		if len(parts) == 1 {
			spans = append(spans, simpleSpans(haystack, parts[0], t.Raw)...)
		} else {
			spans = append(spans, compositeSpans(haystack, parts, t.Raw, opts.LooseWindow)...)
		}
	}

	windows := make([]types.ContextWindow, 0, len(spans))
	for _, s := range spans {
		start := max(0, s.start-opts.ContextLength)
		end := min(len(text), s.end+opts.ContextLength)
		windows = append(windows, types.ContextWindow{
			SourceDOI: doi,
			Start:     start,
			End:       end,
			Text:      text[start:end],
			Terms:     []string{s.term},
		})
	}
	sort.SliceStable(windows, func(i, j int) bool {
		a, b := windows[i], windows[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Terms[0] < b.Terms[0]
	})
	return windows
}

// Merge collapses windows that share at least one offset into a window
// spanning their union. The term list of a merged window keeps first-seen
// order without duplicates. windows must come from the same text.
func Merge(text string, windows []types.ContextWindow) []types.ContextWindow {
	if len(windows) == 0 {
		return nil
	}
	sorted := make([]types.ContextWindow, len(windows))
	copy(sorted, windows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var merged []types.ContextWindow
	cur := sorted[0]
	cur.Terms = append([]string(nil), cur.Terms...)
	for _, w := range sorted[1:] {
		if w.Start < cur.End {
			cur.End = max(cur.End, w.End)
			cur.Terms = unionTerms(cur.Terms, w.Terms)
			continue
		}
		cur.Text = text[cur.Start:cur.End]
		merged = append(merged, cur)
		cur = w
		cur.Terms = append([]string(nil), w.Terms...)
	}
	cur.Text = text[cur.Start:cur.End]
	return append(merged, cur)
}

func unionTerms(have, add []string) []string {
	for _, t := range add {
		found := false
		for _, h := range have {
			if h == t {
				found = true
				break
			}
		}
		if !found {
			have = append(have, t)
		}
	}
	return have
}

// span is a matched region of the text before context is added.
type span struct {
	start, end int
	term       string
}

// simpleSpans finds every non-overlapping occurrence of needle, scanning
// left to right.
func simpleSpans(haystack, needle, term string) []span {
	var out []span
	for pos := 0; pos <= len(haystack)-len(needle); {
		i := strings.Index(haystack[pos:], needle)
		if i < 0 {
			break
		}
		o := pos + i
		out = append(out, span{start: o, end: o + len(needle), term: term})
		pos = o + len(needle)
	}
	return out
}

// occurrence is one hit of one part of a composite term.
type occurrence struct {
	offset int
	end    int
	part   int
}

// compositeSpans finds, for every occurrence taken as the leftmost part, the
// span reaching the farthest occurrence of any part that starts at most
// looseWindow bytes after it, provided every part occurs in that range. The
// union of these spans equals the union over all qualifying combinations of
// one occurrence per part, so nothing a combination covers is lost. A span
// ends where its last occurrence ends, not where it starts, so the whole
// matched word stays inside the window. A larger looseWindow never yields
// fewer spans.
func compositeSpans(haystack string, parts []string, term string, looseWindow int) []span {
	parts = distinct(parts)
	if looseWindow < 0 {
		return nil
	}

	var occ []occurrence
	for i, p := range parts {
		hits := allIndexes(haystack, p)
		if len(hits) == 0 {
			return nil
		}
		for _, o := range hits {
			occ = append(occ, occurrence{offset: o, end: o + len(p), part: i})
		}
	}
	sort.Slice(occ, func(i, j int) bool {
		if occ[i].offset != occ[j].offset {
			return occ[i].offset < occ[j].offset
		}
		return occ[i].part < occ[j].part
	})

	var out []span
	counts := make([]int, len(parts))
	// lastEnd holds the end of the latest occurrence of each part added to
	// the range; parts have fixed lengths, so it is also the farthest end.
	lastEnd := make([]int, len(parts))
	covered := 0
	right := 0
	for left := range occ {
		start := occ[left].offset
		for right < len(occ) && occ[right].offset-start <= looseWindow {
			p := occ[right].part
			if counts[p] == 0 {
				covered++
			}
			counts[p]++
			lastEnd[p] = occ[right].end
			right++
		}
		if covered == len(parts) && (left == 0 || occ[left-1].offset != start) {
			end := 0
			for _, e := range lastEnd {
				end = max(end, e)
			}
			out = append(out, span{start: start, end: end, term: term})
		}
		p := occ[left].part
		counts[p]--
		if counts[p] == 0 {
			covered--
		}
	}
	return out
}

// allIndexes returns every offset at which needle starts, overlapping hits
// included, so each part can anchor a span wherever it appears.
func allIndexes(haystack, needle string) []int {
	var out []int
	for pos := 0; pos <= len(haystack)-len(needle); {
		i := strings.Index(haystack[pos:], needle)
		if i < 0 {
			break
		}
		out = append(out, pos+i)
		pos += i + 1
	}
	return out
}

func distinct(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := parts[:0:0]
	for _, p := range parts {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// fold lower-cases s rune by rune, keeping invalid bytes and any rune whose
// lower-case form has a different UTF-8 length. The result has the same
// byte length as s, so offsets found in it index s directly.
func fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		lr := unicode.ToLower(r)
		if r == utf8.RuneError || utf8.RuneLen(lr) != size {
			b.WriteString(s[i : i+size])
		} else {
			b.WriteRune(lr)
		}
		i += size
	}
	return b.String()
}
