package processor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titled(titles ...string) []NewsItem {
	out := make([]NewsItem, 0, len(titles))
	for _, t := range titles {
		out = append(out, NewsItem{Title: t, Source: "Página/12"})
	}
	return out
}

func titlesOf(items []NewsItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Title)
	}
	return out
}

func TestSimilarityRatios(t *testing.T) {
	base := "alpha bravo charlie delta echo foxtrot golf hotel india juliet"
	eightOfTen := "alpha bravo charlie delta echo foxtrot golf hotel kilo lima"
	fiveOfTen := "alpha bravo charlie delta echo mike november oscar papa quebec"
	sevenOfTen := "alpha bravo charlie delta echo foxtrot golf lima mike november"

	assert.InDelta(t, 0.8, Similarity(base, eightOfTen), 1e-9)
	assert.InDelta(t, 0.5, Similarity(base, fiveOfTen), 1e-9)
	assert.InDelta(t, 0.7, Similarity(base, sevenOfTen), 1e-9)
	assert.InDelta(t, 1.0, Similarity("Senate approves new budget bill", "Senate Approves New Budget Bill!!"), 1e-9)
	assert.Zero(t, Similarity("!!!!!!", "Senate approves"))
	assert.Zero(t, Similarity("", ""))
}

func TestFuzzyDeduperThreshold(t *testing.T) {
	base := "alpha bravo charlie delta echo foxtrot golf hotel india juliet"
	d := &FuzzyDeduper{Threshold: DefaultThreshold}

	merged := d.Dedupe(titled(base, "alpha bravo charlie delta echo foxtrot golf hotel kilo lima"))
	assert.Equal(t, []string{base}, titlesOf(merged), "0.8 overlap is a duplicate")

	kept := d.Dedupe(titled(base, "alpha bravo charlie delta echo mike november oscar papa quebec"))
	assert.Len(t, kept, 2, "0.5 overlap is distinct")

	boundary := d.Dedupe(titled(base, "alpha bravo charlie delta echo foxtrot golf lima mike november"))
	assert.Len(t, boundary, 2, "ratio must exceed the threshold, not equal it")
}

func TestFuzzyDeduperIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Senate approves new budget bill", "Senate Approves New Budget Bill!!"},
		{"Senate approves new budget bill", "Senate approves new budget bill after long debate over taxes"},
		{"Central bank keeps rates unchanged", "Central bank raises rates again"},
		{"Milei viaja a Washington", "Milei viaja a Washington para reunirse con el FMI"},
		{"one two three", "four five six"},
	}
	d := &FuzzyDeduper{Threshold: DefaultThreshold}
	for _, p := range pairs {
		assert.Equal(t, Similarity(p[0], p[1]), Similarity(p[1], p[0]), "%q vs %q", p[0], p[1])
		ab := d.Dedupe(titled(p[0], p[1]))
		ba := d.Dedupe(titled(p[1], p[0]))
		assert.Equal(t, len(ab), len(ba), "%q vs %q", p[0], p[1])
	}
}

func TestFuzzyDeduperKeepsFirstSeen(t *testing.T) {
	items := []NewsItem{
		{Title: "Senate approves new budget bill", Source: "La Nación"},
		{Title: "Governors meet to discuss transport", Source: "Clarín"},
		{Title: "Senate Approves New Budget Bill!!", Source: "Infobae"},
		{Title: "Central bank keeps rates unchanged", Source: "Ámbito"},
	}
	out := (&FuzzyDeduper{Threshold: DefaultThreshold}).Dedupe(items)

	require.Len(t, out, 3)
	assert.Equal(t, "La Nación", out[0].Source, "representative is the first-seen item")
	assert.Equal(t, []string{
		"Senate approves new budget bill",
		"Governors meet to discuss transport",
		"Central bank keeps rates unchanged",
	}, titlesOf(out))
}

func TestFuzzyDeduperComparesAgainstAllKept(t *testing.T) {
	// 第三条与第一条重复，即使中间隔了一条不相关的
	out := (&FuzzyDeduper{Threshold: DefaultThreshold}).Dedupe(titled(
		"Inflation slows for the third month in a row",
		"River Plate wins the derby",
		"inflation slows for the third month in a row, data shows",
	))
	assert.Len(t, out, 2)
}

func TestPrefixDeduper(t *testing.T) {
	longA := "Breaking: the government announces a new economic plan for the second half"
	longB := "BREAKING: The Government Announces A New Economic Plan for the second half of 2025"
	assert.Equal(t, strings.ToLower(longA[:50]), strings.ToLower(longB[:50]))

	d := &PrefixDeduper{KeyLen: DefaultKeyLen}
	out := d.Dedupe(titled(longA, longB, "Breaking: floods hit the northern provinces"))
	assert.Equal(t, []string{longA, "Breaking: floods hit the northern provinces"}, titlesOf(out))

	// 只看前缀：大小写和标点不同的短标题不会被合并
	out = d.Dedupe(titled("Senate approves new budget bill", "Senate approves new budget bill!!"))
	assert.Len(t, out, 2)

	short := &PrefixDeduper{KeyLen: 6}
	out = short.Dedupe(titled("Senate approves", "SENATE rejects"))
	assert.Len(t, out, 1)
}

func TestNewDeduper(t *testing.T) {
	d, err := NewDeduper("fuzzy", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, &FuzzyDeduper{Threshold: DefaultThreshold}, d)

	d, err = NewDeduper("", 0.9, 0)
	require.NoError(t, err)
	assert.Equal(t, &FuzzyDeduper{Threshold: 0.9}, d)

	d, err = NewDeduper("PREFIX", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, &PrefixDeduper{KeyLen: DefaultKeyLen}, d)

	_, err = NewDeduper("semantic", 0, 0)
	assert.Error(t, err)
}
