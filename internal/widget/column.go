// internal/widget/column.go - column and widget configuration model
package widget

import (
	"encoding/json"
	"fmt"
	"time"

	"tophosts/internal/database"
	"tophosts/internal/history"
)

// DataKind selects what a column shows.
type DataKind int

const (
	DataItemValue DataKind = 1
	DataHostName  DataKind = 2
	DataText      DataKind = 3
)

// Display selects how an item value column is drawn.
type Display int

const (
	DisplayAsIs       Display = 0
	DisplayBar        Display = 1
	DisplayIndicators Display = 2
)

// HistoryMode selects where item values are read from.
type HistoryMode int

const (
	HistoryAuto   HistoryMode = 0
	HistoryData   HistoryMode = 1
	HistoryTrends HistoryMode = 2
)

// Order is the ranking direction of the order column.
type Order int

const (
	OrderTopN    Order = 2
	OrderBottomN Order = 3
)

// ThresholdPalette colors new thresholds by position.
var ThresholdPalette = []string{"97AAB3", "7499FF", "FFC859", "FFA059", "E97659", "E45959", "C8766E", "A6A6A6"}

type Threshold struct {
	Color     string `json:"color"`
	Threshold string `json:"threshold"`
}

// ColumnSpec is one configured table column. Item is used by item value
// columns, Text by text columns.
type ColumnSpec struct {
	Name          string              `json:"name"`
	Data          DataKind            `json:"data"`
	Item          string              `json:"item,omitempty"`
	Aggregate     history.AggregateFn `json:"aggregate_function"`
	TimePeriod    history.TimePeriod  `json:"time_period"`
	Display       Display             `json:"display"`
	History       HistoryMode         `json:"history"`
	Min           string              `json:"min,omitempty"`
	Max           string              `json:"max,omitempty"`
	DecimalPlaces int                 `json:"decimal_places"`
	BaseColor     string              `json:"base_color,omitempty"`
	Thresholds    []Threshold         `json:"thresholds,omitempty"`
	Text          string              `json:"text,omitempty"`
}

// Header is the column title shown above the table.
func (c ColumnSpec) Header() string {
	if c.Name != "" {
		return c.Name
	}
	switch c.Data {
	case DataHostName:
		return "Host name"
	case DataText:
		return c.Text
	default:
		return c.Item
	}
}

// HasBounds reports whether both gauge bounds are configured.
func (c ColumnSpec) HasBounds() bool {
	return c.Min != "" && c.Max != ""
}

// Fields is the whole widget configuration.
type Fields struct {
	Name           string               `json:"name"`
	GroupIDs       []string             `json:"groupids,omitempty"`
	HostIDs        []string             `json:"hostids,omitempty"`
	EvalType       database.TagEvalType `json:"evaltype"`
	Tags           []database.TagFilter `json:"tags,omitempty"`
	Maintenance    bool                 `json:"maintenance"`
	Columns        []ColumnSpec         `json:"columns"`
	Column         int                  `json:"column"`
	Order          Order                `json:"order"`
	ShowLines      int                  `json:"show_lines"`
	OverrideHostID string               `json:"override_hostid,omitempty"`
}

// Defaults is the table of default values applied to incoming configuration.
// It is built once at startup and shared read-only.
type Defaults struct {
	ShowLines     int
	MinLines      int
	MaxLines      int
	DecimalPlaces int
	TimePeriod    history.TimePeriod
	// HistoryPeriod bounds the lookup of the latest value for columns
	// without an aggregate function.
	HistoryPeriod time.Duration
}

const (
	DefaultShowLines     = 10
	MinShowLines         = 1
	MaxShowLines         = 100
	DefaultDecimalPlaces = 2
	MaxDecimalPlaces     = 10
)

// NewDefaults returns the platform defaults.
func NewDefaults() *Defaults {
	return &Defaults{
		ShowLines:     DefaultShowLines,
		MinLines:      MinShowLines,
		MaxLines:      MaxShowLines,
		DecimalPlaces: DefaultDecimalPlaces,
		TimePeriod:    history.TimePeriod{From: "now-1h", To: "now"},
		HistoryPeriod: 24 * time.Hour,
	}
}

func (d *Defaults) Column() ColumnSpec {
	return ColumnSpec{
		Data:          DataItemValue,
		Aggregate:     history.AggregateNone,
		TimePeriod:    d.TimePeriod,
		Display:       DisplayAsIs,
		History:       HistoryAuto,
		DecimalPlaces: d.DecimalPlaces,
	}
}

func (d *Defaults) Fields() Fields {
	return Fields{
		Order:     OrderTopN,
		ShowLines: d.ShowLines,
	}
}

// DecodeColumn reads a column, keeping defaults for absent keys.
func (d *Defaults) DecodeColumn(data []byte) (ColumnSpec, error) {
	c := d.Column()
	if err := json.Unmarshal(data, &c); err != nil {
		return ColumnSpec{}, fmt.Errorf("failed to decode column: %w", err)
	}
	return c, nil
}

// DecodeFields reads a widget configuration, keeping defaults for absent
// keys at both widget and column level.
func (d *Defaults) DecodeFields(data []byte) (Fields, error) {
	var raw struct {
		Fields
		Columns []json.RawMessage `json:"columns"`
	}
	raw.Fields = d.Fields()

	if err := json.Unmarshal(data, &raw); err != nil {
		return Fields{}, fmt.Errorf("failed to decode widget fields: %w", err)
	}

	f := raw.Fields
	f.Columns = make([]ColumnSpec, 0, len(raw.Columns))
	for i, rc := range raw.Columns {
		c, err := d.DecodeColumn(rc)
		if err != nil {
			return Fields{}, fmt.Errorf("column %d: %w", i, err)
		}
		f.Columns = append(f.Columns, c)
	}
	return f, nil
}
