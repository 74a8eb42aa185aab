// Package features は乗客テーブルの欠損補完・カテゴリ符号化・派生特徴量を扱います。
package features

import (
	"math"
	"regexp"
)

// 年齢の区間の上限（両端含む）。最後の区間より上は 6
var ageBreaks = []int{11, 18, 22, 27, 33, 40}

// 運賃の区間の上限（両端含む）。最後の区間より上は 5
var fareBreaks = []float64{7.91, 14.454, 31, 99, 250}

// AgeBucket maps an age in whole years to 0..6.
func AgeBucket(age int) int {
	for i, b := range ageBreaks {
		if age <= b {
			return i
		}
	}
	return len(ageBreaks)
}

// FareBucket maps a fare to 0..5. Prepare truncates fares to whole units
// before bucketing, so 7.925 falls in bucket 0.
func FareBucket(fare float64) int {
	for i, b := range fareBreaks {
		if fare <= b {
			return i
		}
	}
	return len(fareBreaks)
}

var sexCodes = map[string]int{"male": 0, "female": 1}

var portCodes = map[string]int{"S": 0, "C": 1, "Q": 2}

var titleCodes = map[string]int{"Mr": 1, "Miss": 2, "Mrs": 3, "Master": 4, "Rare": 5}

var titleAliases = map[string]string{
	"Lady": "Rare", "Countess": "Rare", "Capt": "Rare", "Col": "Rare",
	"Don": "Rare", "Dr": "Rare", "Major": "Rare", "Rev": "Rare",
	"Sir": "Rare", "Jonkheer": "Rare", "Dona": "Rare",
	"Mlle": "Miss", "Ms": "Miss",
	"Mme": "Mrs",
}

// デッキ A..G は 1..7、不明 (U) は 8。T などその他は 0
var deckCodes = map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 6, "G": 7, "U": 8}

// UnknownCabin is the placeholder for a missing cabin.
const UnknownCabin = "U0"

var (
	titleRe = regexp.MustCompile(` ([A-Za-z]+)\.`)
	deckRe  = regexp.MustCompile(`[a-zA-Z]+`)
)

// SexCode returns 0 for male, 1 for female and 0 otherwise.
func SexCode(sex string) (int, bool) {
	c, ok := sexCodes[sex]
	return c, ok
}

// EmbarkedCode returns 0 for S, 1 for C, 2 for Q and 0 otherwise.
func EmbarkedCode(port string) (int, bool) {
	c, ok := portCodes[port]
	return c, ok
}

// Title extracts the honorific from a name such as "Braund, Mr. Owen Harris"
// and folds rare and foreign forms. It returns "" when the name has none.
func Title(name string) string {
	m := titleRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	if alias, ok := titleAliases[m[1]]; ok {
		return alias
	}
	return m[1]
}

// TitleCode returns 1..5 for Mr, Miss, Mrs, Master and Rare, 0 otherwise.
func TitleCode(name string) int {
	return titleCodes[Title(name)]
}

// DeckCode maps the first run of letters of a cabin to its deck code.
func DeckCode(cabin string) int {
	return deckCodes[deckRe.FindString(cabin)]
}

// truncAge drops the fractional part of an age.
func truncAge(age float64) int {
	return int(math.Trunc(age))
}
