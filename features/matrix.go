package features

import (
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/titanic/dataset"
	"github.com/YuminosukeSato/titanic/pkg/errors"
)

// Feature column names, in the default matrix order.
const (
	Pclass        = "pclass"
	Sex           = "sex"
	Age           = "age"
	SibSp         = "sibsp"
	Parch         = "parch"
	Fare          = "fare"
	Embarked      = "embarked"
	Relatives     = "relatives"
	Alone         = "alone"
	Deck          = "deck"
	TitleCol      = "title"
	AgeClass      = "age_class"
	FarePerPerson = "fare_per_person"
)

// Columns is the full feature set. age and fare hold their bucket codes.
var Columns = []string{
	Pclass, Sex, Age, SibSp, Parch, Fare, Embarked,
	Relatives, Alone, Deck, TitleCol, AgeClass, FarePerPerson,
}

var extractors = map[string]func(p *dataset.Passenger) float64{
	Pclass:        func(p *dataset.Passenger) float64 { return float64(p.Pclass) },
	Sex:           func(p *dataset.Passenger) float64 { return float64(p.Features.Sex) },
	Age:           func(p *dataset.Passenger) float64 { return float64(p.Features.AgeBucket) },
	SibSp:         func(p *dataset.Passenger) float64 { return float64(p.SibSp) },
	Parch:         func(p *dataset.Passenger) float64 { return float64(p.Parch) },
	Fare:          func(p *dataset.Passenger) float64 { return float64(p.Features.FareBucket) },
	Embarked:      func(p *dataset.Passenger) float64 { return float64(p.Features.Embarked) },
	Relatives:     func(p *dataset.Passenger) float64 { return float64(p.Features.Relatives) },
	Alone:         func(p *dataset.Passenger) float64 { return float64(p.Features.Alone) },
	Deck:          func(p *dataset.Passenger) float64 { return float64(p.Features.Deck) },
	TitleCol:      func(p *dataset.Passenger) float64 { return float64(p.Features.Title) },
	AgeClass:      func(p *dataset.Passenger) float64 { return float64(p.Features.AgeClass) },
	FarePerPerson: func(p *dataset.Passenger) float64 { return float64(p.Features.FarePerPerson) },
}

// Select returns Columns without the dropped names, keeping their order.
// Dropping an unknown name is a ValidationError.
func Select(drop []string) ([]string, error) {
	for _, d := range drop {
		if _, ok := extractors[d]; !ok {
			return nil, errors.NewValidationError("features.drop", "unknown feature", d)
		}
	}
	cols := make([]string, 0, len(Columns))
	for _, c := range Columns {
		if !slices.Contains(drop, c) {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil, errors.NewValidationError("features.drop", "no feature left", drop)
	}
	return cols, nil
}

// Matrix builds the n x len(columns) feature matrix of a prepared table.
func Matrix(t *dataset.Table, columns []string) (*mat.Dense, error) {
	if !t.Prepared {
		return nil, errors.NewValueError("features.Matrix", "table must be prepared first")
	}
	if t.Len() == 0 || len(columns) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "features.Matrix")
	}
	get := make([]func(p *dataset.Passenger) float64, len(columns))
	for j, c := range columns {
		f, ok := extractors[c]
		if !ok {
			return nil, errors.NewValidationError("columns", "unknown feature", c)
		}
		get[j] = f
	}
	X := mat.NewDense(t.Len(), len(columns), nil)
	for i := range t.Rows {
		row := X.RawRowView(i)
		for j, f := range get {
			row[j] = f(&t.Rows[i])
		}
	}
	return X, nil
}

// Labels returns the Survived column of a labeled table.
func Labels(t *dataset.Table) (*mat.VecDense, error) {
	if !t.Labeled {
		return nil, errors.NewValueError("features.Labels", "table has no Survived column")
	}
	if t.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "features.Labels")
	}
	y := mat.NewVecDense(t.Len(), nil)
	for i, p := range t.Rows {
		y.SetVec(i, float64(p.Survived))
	}
	return y, nil
}
