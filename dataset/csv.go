package dataset

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/tobgu/qframe"
	qcsv "github.com/tobgu/qframe/config/csv"
	"github.com/tobgu/qframe/config/newqf"

	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
)

// Column names of the Kaggle Titanic files.
const (
	ColPassengerID = "PassengerId"
	ColSurvived    = "Survived"
	ColPclass      = "Pclass"
	ColName        = "Name"
	ColSex         = "Sex"
	ColAge         = "Age"
	ColSibSp       = "SibSp"
	ColParch       = "Parch"
	ColTicket      = "Ticket"
	ColFare        = "Fare"
	ColCabin       = "Cabin"
	ColEmbarked    = "Embarked"
)

// RequiredColumns must be present in both tables.
var RequiredColumns = []string{
	ColPassengerID, ColPclass, ColName, ColSex, ColAge, ColSibSp,
	ColParch, ColTicket, ColFare, ColCabin, ColEmbarked,
}

// 推論に任せると列ごとに型が揺れるため固定する
var columnTypes = map[string]string{
	ColPassengerID: "int",
	ColSurvived:    "int",
	ColPclass:      "int",
	ColName:        "string",
	ColSex:         "string",
	ColAge:         "float",
	ColSibSp:       "int",
	ColParch:       "int",
	ColTicket:      "string",
	ColFare:        "float",
	ColCabin:       "string",
	ColEmbarked:    "string",
}

// LoadCSVFile opens path and reads it with LoadCSV.
func LoadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return LoadCSV(f, path)
}

// LoadCSV reads a passenger table. The table is labeled when it has a
// Survived column. A missing required column is a SchemaError.
func LoadCSV(r io.Reader, source string) (*Table, error) {
	header, body, err := peekHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", source)
	}
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	for _, col := range RequiredColumns {
		if !present[col] {
			return nil, errors.NewSchemaError(source, col, "required column is missing")
		}
	}

	types := make(map[string]string)
	for col, typ := range columnTypes {
		if present[col] {
			types[col] = typ
		}
	}
	qf := qframe.ReadCSV(body, qcsv.Types(types), qcsv.EmptyNull(true))
	if qf.Err != nil {
		return nil, errors.Wrapf(qf.Err, "parse %s", source)
	}
	if qf.Len() == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "parse %s", source)
	}

	t := &Table{Source: source, Labeled: present[ColSurvived], Rows: make([]Passenger, qf.Len())}
	if err := fill(qf, t); err != nil {
		return nil, err
	}

	missing := t.MissingCounts()
	log.GetLogger().Info("table loaded",
		log.PhaseKey, log.PhaseLoading,
		log.SourceKey, source,
		log.SamplesKey, t.Len(),
		"labeled", t.Labeled,
		log.MissingKey, missing,
	)
	return t, nil
}

func fill(qf qframe.QFrame, t *Table) error {
	ints := []struct {
		col string
		set func(p *Passenger, v int)
	}{
		{ColPassengerID, func(p *Passenger, v int) { p.PassengerID = v }},
		{ColPclass, func(p *Passenger, v int) { p.Pclass = v }},
		{ColSibSp, func(p *Passenger, v int) { p.SibSp = v }},
		{ColParch, func(p *Passenger, v int) { p.Parch = v }},
	}
	if t.Labeled {
		ints = append(ints, struct {
			col string
			set func(p *Passenger, v int)
		}{ColSurvived, func(p *Passenger, v int) { p.Survived = v }})
	}
	for _, c := range ints {
		v, err := qf.IntView(c.col)
		if err != nil {
			return errors.NewSchemaError(t.Source, c.col, "expected an integer column without missing values")
		}
		for i := 0; i < v.Len(); i++ {
			c.set(&t.Rows[i], v.ItemAt(i))
		}
	}

	floats := []struct {
		col string
		set func(p *Passenger, v float64)
	}{
		{ColAge, func(p *Passenger, v float64) { p.Age = v }},
		{ColFare, func(p *Passenger, v float64) { p.Fare = v }},
	}
	for _, c := range floats {
		v, err := qf.FloatView(c.col)
		if err != nil {
			return errors.NewSchemaError(t.Source, c.col, "expected a numeric column")
		}
		for i := 0; i < v.Len(); i++ {
			c.set(&t.Rows[i], v.ItemAt(i))
		}
	}

	strs := []struct {
		col string
		set func(p *Passenger, v string)
	}{
		{ColName, func(p *Passenger, v string) { p.Name = v }},
		{ColSex, func(p *Passenger, v string) { p.Sex = v }},
		{ColTicket, func(p *Passenger, v string) { p.Ticket = v }},
		{ColCabin, func(p *Passenger, v string) { p.Cabin = v }},
		{ColEmbarked, func(p *Passenger, v string) { p.Embarked = v }},
	}
	for _, c := range strs {
		v, err := qf.StringView(c.col)
		if err != nil {
			return errors.NewSchemaError(t.Source, c.col, "expected a string column")
		}
		for i := 0; i < v.Len(); i++ {
			if s := v.ItemAt(i); s != nil {
				c.set(&t.Rows[i], *s)
			}
		}
	}
	return nil
}

// WriteSubmission writes "PassengerId,Survived" rows.
func WriteSubmission(w io.Writer, ids, survived []int) error {
	if len(ids) != len(survived) {
		return errors.NewDimensionError("WriteSubmission", len(ids), len(survived), 0)
	}
	qf := qframe.New(map[string]interface{}{
		ColPassengerID: ids,
		ColSurvived:    survived,
	}, newqf.ColumnOrder(ColPassengerID, ColSurvived))
	if qf.Err != nil {
		return errors.Wrap(qf.Err, "build submission")
	}
	return qf.ToCSV(w)
}

// WriteSubmissionFile writes the submission to path.
func WriteSubmissionFile(path string, ids, survived []int) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return WriteSubmission(f, ids, survived)
}

// peekHeader reads the header line and returns a reader that replays it.
func peekHeader(r io.Reader) ([]string, io.Reader, error) {
	br := bufio.NewReader(r)
	line, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if strings.TrimSpace(line) == "" {
		return nil, nil, errors.ErrEmptyData
	}
	header, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, nil, errors.Wrap(err, "header")
	}
	return header, io.MultiReader(strings.NewReader(line), br), nil
}
