package features

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/titanic/dataset"
	"github.com/YuminosukeSato/titanic/pkg/errors"
	"github.com/YuminosukeSato/titanic/pkg/log"
)

// Imputer holds the training statistics used to fill missing values.
type Imputer struct {
	EmbarkedMode string  `json:"embarked_mode"`
	AgeMean      float64 `json:"age_mean"`
	AgeStd       float64 `json:"age_std"` // 標本標準偏差
}

// FitImputer learns the embarkation mode and the age distribution from the
// training table.
func FitImputer(train *dataset.Table) (*Imputer, error) {
	if train == nil || train.Len() == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "FitImputer")
	}
	if train.Prepared {
		return nil, errors.Wrap(errors.ErrAlreadyPrepared, "FitImputer")
	}

	ports := make(map[string]int)
	var ages []float64
	for _, p := range train.Rows {
		if p.Embarked != "" {
			ports[p.Embarked]++
		}
		if p.HasAge() {
			ages = append(ages, p.Age)
		}
	}
	if len(ports) == 0 {
		return nil, errors.NewValueError("FitImputer", "no embarkation port observed")
	}
	if len(ages) < 2 {
		return nil, errors.NewValueError("FitImputer", "need at least two known ages")
	}

	// 最頻値。同数なら辞書順で先のもの
	keys := make([]string, 0, len(ports))
	for k := range ports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	mode := keys[0]
	for _, k := range keys[1:] {
		if ports[k] > ports[mode] {
			mode = k
		}
	}

	mean, std := stat.MeanStdDev(ages, nil)
	return &Imputer{EmbarkedMode: mode, AgeMean: mean, AgeStd: std}, nil
}

// drawAge returns an integer drawn uniformly from
// [trunc(mean-std), trunc(mean+std)).
func (imp *Imputer) drawAge(u distuv.Uniform) float64 {
	if u.Max <= u.Min {
		return u.Min
	}
	return math.Floor(u.Rand())
}

func (imp *Imputer) ageDistribution(src rand.Source) distuv.Uniform {
	return distuv.Uniform{
		Min: math.Trunc(imp.AgeMean - imp.AgeStd),
		Max: math.Trunc(imp.AgeMean + imp.AgeStd),
		Src: src,
	}
}

// Prepare returns a new table with missing values filled, categories
// encoded and derived features computed. The input is not modified.
// Missing ages are drawn from src in row order, so the same source state
// gives the same table.
func Prepare(t *dataset.Table, imp *Imputer, src rand.Source) (*dataset.Table, error) {
	if t == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "Prepare")
	}
	if t.Prepared {
		return nil, errors.ErrAlreadyPrepared
	}
	if imp == nil {
		return nil, errors.NewValidationError("imputer", "is required", nil)
	}
	if src == nil {
		return nil, errors.NewValidationError("src", "is required", nil)
	}

	out := t.Clone()
	ages := imp.ageDistribution(src)
	var filledAge, filledFare, filledCabin, filledPort, unmapped int

	for i := range out.Rows {
		p := &out.Rows[i]

		if p.Cabin == "" {
			p.Cabin = UnknownCabin
			filledCabin++
		}
		if p.Embarked == "" {
			p.Embarked = imp.EmbarkedMode
			filledPort++
		}
		if !p.HasAge() {
			p.Age = imp.drawAge(ages)
			filledAge++
		}
		p.Age = float64(truncAge(p.Age))
		if !p.HasFare() {
			p.Fare = 0
			filledFare++
		}
		p.Fare = math.Trunc(p.Fare)

		f := &p.Features
		var ok bool
		if f.Sex, ok = SexCode(p.Sex); !ok {
			unmapped++
			errors.Warn(errors.NewDataConversionWarning("Sex", "int",
				fmt.Sprintf("unknown value %q for passenger %d mapped to 0", p.Sex, p.PassengerID)))
		}
		if f.Embarked, ok = EmbarkedCode(p.Embarked); !ok {
			unmapped++
			errors.Warn(errors.NewDataConversionWarning("Embarked", "int",
				fmt.Sprintf("unknown value %q for passenger %d mapped to 0", p.Embarked, p.PassengerID)))
		}
		f.Title = TitleCode(p.Name)
		f.Deck = DeckCode(p.Cabin)
		f.AgeBucket = AgeBucket(int(p.Age))
		f.FareBucket = FareBucket(p.Fare)
		f.Relatives = p.SibSp + p.Parch
		f.Alone = 0
		if f.Relatives == 0 {
			f.Alone = 1
		}
		f.AgeClass = f.AgeBucket * p.Pclass
		f.FarePerPerson = f.FareBucket / (f.Relatives + 1)
	}
	out.Prepared = true

	log.GetLogger().Info("table prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.OperationKey, log.OperationPrepare,
		log.SourceKey, t.Source,
		log.SamplesKey, out.Len(),
		"filled.age", filledAge,
		"filled.fare", filledFare,
		"filled.cabin", filledCabin,
		"filled.embarked", filledPort,
		"unmapped", unmapped,
	)
	return out, nil
}
