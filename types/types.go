// Package types contains the value types exchanged with Jubatus servers.
//
// Every type is a tuple on the wire: its fields are encoded as an array in
// declaration order. Use the NewXxx constructors so that slices are never nil
// (a nil slice would be encoded as nil instead of an empty array).
package types

// StringValue is a key/value pair of a Datum.
type StringValue struct {
	_struct bool `codec:",toarray"`
	Key     string
	Value   string
}

// NumValue is a key/value pair of a Datum.
type NumValue struct {
	_struct bool `codec:",toarray"`
	Key     string
	Value   float64
}

// BinaryValue is a key/value pair of a Datum.
type BinaryValue struct {
	_struct bool `codec:",toarray"`
	Key     string
	Value   []byte
}

// Datum is a set of data used for machine learning. Keys cannot contain "$".
type Datum struct {
	_struct      bool `codec:",toarray"`
	StringValues []StringValue
	NumValues    []NumValue
	BinaryValues []BinaryValue
}

// NewDatum creates an empty Datum.
func NewDatum() *Datum {
	return &Datum{
		StringValues: []StringValue{},
		NumValues:    []NumValue{},
		BinaryValues: []BinaryValue{},
	}
}

// AddString adds a string value.
func (d *Datum) AddString(key, value string) *Datum {
	d.StringValues = append(d.StringValues, StringValue{Key: key, Value: value})
	return d
}

// AddNumber adds a numeric value.
func (d *Datum) AddNumber(key string, value float64) *Datum {
	d.NumValues = append(d.NumValues, NumValue{Key: key, Value: value})
	return d
}

// AddBinary adds a binary value.
func (d *Datum) AddBinary(key string, value []byte) *Datum {
	d.BinaryValues = append(d.BinaryValues, BinaryValue{Key: key, Value: value})
	return d
}

// LabeledDatum is a datum with its label (classifier).
type LabeledDatum struct {
	_struct bool `codec:",toarray"`
	Label   string
	Data    *Datum
}

// EstimateResult is a result of classification.
type EstimateResult struct {
	_struct bool `codec:",toarray"`
	Label   string
	Score   float64
}

// ScoredDatum is a datum with its score (regression).
type ScoredDatum struct {
	_struct bool `codec:",toarray"`
	Score   float64
	Data    *Datum
}

// IDWithScore is a row id with its score (recommender, nearest neighbor, anomaly).
type IDWithScore struct {
	_struct bool `codec:",toarray"`
	ID      string
	Score   float64
}

// WeightedDatum is a datum with its weight (clustering).
type WeightedDatum struct {
	_struct bool `codec:",toarray"`
	Weight  float64
	Point   *Datum
}

// IndexedPoint is a datum with its id (clustering).
type IndexedPoint struct {
	_struct bool `codec:",toarray"`
	ID      string
	Point   *Datum
}

// WeightedIndex is a point id with its weight (clustering).
type WeightedIndex struct {
	_struct bool `codec:",toarray"`
	Weight  float64
	ID      string
}

// KeywordWithParams is a burst keyword with its detection parameters.
type KeywordWithParams struct {
	_struct      bool `codec:",toarray"`
	Keyword      string
	ScalingParam float64
	Gamma        float64
}

// Batch is a burst detection batch.
type Batch struct {
	_struct           bool `codec:",toarray"`
	AllDataCount      int
	RelevantDataCount int
	BurstWeight       float64
}

// Window is a burst detection window.
type Window struct {
	_struct  bool `codec:",toarray"`
	StartPos float64
	Batches  []Batch
}

// Document is a burst input document.
type Document struct {
	_struct bool `codec:",toarray"`
	Pos     float64
	Text    string
}

// NewLabeledDatum creates a LabeledDatum. A nil d is replaced by an empty Datum.
func NewLabeledDatum(label string, d *Datum) LabeledDatum {
	return LabeledDatum{Label: label, Data: orEmpty(d)}
}

// NewScoredDatum creates a ScoredDatum. A nil d is replaced by an empty Datum.
func NewScoredDatum(score float64, d *Datum) ScoredDatum {
	return ScoredDatum{Score: score, Data: orEmpty(d)}
}

// NewIndexedPoint creates an IndexedPoint. A nil d is replaced by an empty Datum.
func NewIndexedPoint(id string, d *Datum) IndexedPoint {
	return IndexedPoint{ID: id, Point: orEmpty(d)}
}

func orEmpty(d *Datum) *Datum {
	if d == nil {
		return NewDatum()
	}
	return d
}
