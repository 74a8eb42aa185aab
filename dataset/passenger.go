// Package dataset は乗客テーブルの読み込みと提出ファイルの書き出しを行います。
package dataset

import "math"

// Passenger は1人の乗客レコード
// Age と Fare の欠損は NaN、Cabin と Embarked の欠損は空文字で表す
type Passenger struct {
	PassengerID int
	Survived    int // ラベル付きテーブルのみ有効
	Pclass      int
	Name        string
	Sex         string
	Age         float64
	SibSp       int
	Parch       int
	Ticket      string
	Fare        float64
	Cabin       string
	Embarked    string

	// 特徴量変換で埋まる
	Features Encoded
}

// Encoded holds the integer codes and derived values produced by feature
// preparation.
type Encoded struct {
	Sex           int `json:"sex"`
	Embarked      int `json:"embarked"`
	Title         int `json:"title"`
	Deck          int `json:"deck"`
	AgeBucket     int `json:"age"`
	FareBucket    int `json:"fare"`
	Relatives     int `json:"relatives"`
	Alone         int `json:"alone"`
	AgeClass      int `json:"age_class"`
	FarePerPerson int `json:"fare_per_person"`
}

// HasAge reports whether the age is known.
func (p Passenger) HasAge() bool { return !math.IsNaN(p.Age) }

// HasFare reports whether the fare is known.
func (p Passenger) HasFare() bool { return !math.IsNaN(p.Fare) }

// Table は乗客レコードの集合
type Table struct {
	Source   string
	Rows     []Passenger
	Labeled  bool // Survived 列を持つ
	Prepared bool // 特徴量変換済み
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	c := *t
	c.Rows = append([]Passenger(nil), t.Rows...)
	return &c
}

// IDs returns the passenger ids in row order.
func (t *Table) IDs() []int {
	ids := make([]int, len(t.Rows))
	for i, p := range t.Rows {
		ids[i] = p.PassengerID
	}
	return ids
}

// MissingCounts counts missing values per raw column.
func (t *Table) MissingCounts() map[string]int {
	counts := map[string]int{"Age": 0, "Fare": 0, "Cabin": 0, "Embarked": 0}
	for _, p := range t.Rows {
		if !p.HasAge() {
			counts["Age"]++
		}
		if !p.HasFare() {
			counts["Fare"]++
		}
		if p.Cabin == "" {
			counts["Cabin"]++
		}
		if p.Embarked == "" {
			counts["Embarked"]++
		}
	}
	return counts
}
