package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tophosts/internal/database"
	"tophosts/internal/history"
)

func TestComputeExtents(t *testing.T) {
	observed := Bounds{Min: 3, Max: 42, OK: true}

	tests := []struct {
		name     string
		column   ColumnSpec
		observed Bounds
		want     Extents
	}{
		{
			name:     "both bounds configured ignore data",
			column:   ColumnSpec{Min: "1K", Max: "2K"},
			observed: observed,
			want:     Extents{Min: 1000, Max: 2000, MinBinary: 1024, MaxBinary: 2048},
		},
		{
			name:     "no bounds and no data",
			column:   ColumnSpec{},
			observed: Bounds{},
			want:     Extents{Min: 0, Max: 100, MinBinary: 0, MaxBinary: 100},
		},
		{
			name:     "no bounds use data",
			column:   ColumnSpec{},
			observed: observed,
			want:     Extents{Min: 3, Max: 42, MinBinary: 3, MaxBinary: 42},
		},
		{
			name:     "blank max falls back alone",
			column:   ColumnSpec{Min: "0"},
			observed: observed,
			want:     Extents{Min: 0, Max: 42, MinBinary: 0, MaxBinary: 42},
		},
		{
			name:     "time suffix",
			column:   ColumnSpec{Min: "1m", Max: "1h"},
			observed: Bounds{},
			want:     Extents{Min: 60, Max: 3600, MinBinary: 60, MaxBinary: 3600},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeExtents(tt.column, tt.observed))
		})
	}
}

func TestComputeExtents_ConfiguredIndependentOfData(t *testing.T) {
	c := ColumnSpec{Min: "5", Max: "10"}
	for _, observed := range []Bounds{{}, {Min: -100, Max: 1e9, OK: true}, {Min: 7, Max: 7, OK: true}} {
		e := ComputeExtents(c, observed)
		assert.Equal(t, 5.0, e.Min)
		assert.Equal(t, 10.0, e.Max)
	}
}

func TestThresholdColor(t *testing.T) {
	c := NormalizeColumn(ColumnSpec{Thresholds: []Threshold{
		{Color: "00FF00", Threshold: "50"},
		{Color: "FF0000", Threshold: "10"},
	}})
	levels := ThresholdLevels(c)
	require.Len(t, levels, 2)

	tests := []struct {
		value float64
		want  string
	}{
		{5, "BASE00"},
		{10, "FF0000"},
		{49, "FF0000"},
		{50, "00FF00"},
		{1000, "00FF00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ThresholdColor(levels, "BASE00", tt.value, false), "value %v", tt.value)
	}
}

func TestThresholdColor_Binary(t *testing.T) {
	levels := ThresholdLevels(ColumnSpec{Thresholds: []Threshold{{Color: "FF0000", Threshold: "1K"}}})

	assert.Equal(t, "FF0000", ThresholdColor(levels, "", 1000, false))
	assert.Equal(t, "", ThresholdColor(levels, "", 1000, true), "1000 is below 1KiB")
	assert.Equal(t, "FF0000", ThresholdColor(levels, "", 1024, true))
}

func TestAssemble(t *testing.T) {
	columns := []ColumnSpec{
		{Data: DataHostName, Name: "Host"},
		{Data: DataText, Name: "OS", Text: "{INVENTORY.OS}"},
		{
			Data:          DataItemValue,
			Name:          "Memory",
			Item:          "Used memory",
			Display:       DisplayBar,
			DecimalPlaces: 1,
			BaseColor:     "97AAB3",
			Thresholds:    []Threshold{{Color: "E45959", Threshold: "1K"}},
		},
	}

	memItem := &database.Item{ID: "i1", HostID: "h1", Units: "B", ValueType: database.ValueTypeUint64}
	values := []map[string]ColumnValue{
		nil,
		{"h1": {HostID: "h1", Value: history.TextValue("Linux")}},
		{"h1": {HostID: "h1", Value: history.NumericValue(1536), Item: memItem, IsBinaryUnits: true}},
	}
	hosts := map[string]*database.Host{
		"h1": {ID: "h1", Name: "web-01", MaintenanceStatus: database.MaintenanceStatusOn, MaintenanceID: "m1"},
		"h2": {ID: "h2", Name: "web-02"},
	}
	maintenances := map[string]database.Maintenance{"m1": {ID: "m1", Name: "Patching", Description: "Kernel"}}

	rows := Assemble([]string{"h2", "h1"}, columns, values, hosts, maintenances)
	require.Len(t, rows, 2)

	// Hosts without values get empty cells, not errors.
	assert.Equal(t, "h2", rows[0].Context.HostID)
	assert.Equal(t, "web-02", rows[0].Columns[0].Value.Str)
	assert.Nil(t, rows[0].Columns[0].Maintenance)
	assert.Nil(t, rows[0].Columns[1])
	assert.Nil(t, rows[0].Columns[2])

	row := rows[1]
	assert.Equal(t, RowContext{HostID: "h1"}, row.Context)
	assert.Equal(t, &MaintenanceInfo{Name: "Patching", Description: "Kernel"}, row.Columns[0].Maintenance)
	assert.Equal(t, "Linux", row.Columns[1].Value.Str)

	mem := row.Columns[2]
	require.NotNil(t, mem)
	assert.Equal(t, memItem, mem.Item)
	assert.True(t, mem.IsBinaryUnits)
	assert.Equal(t, "E45959", mem.Color)
	assert.Equal(t, "1.5 KB", mem.Display)
}

func TestAssemble_TextValuesHaveNoColor(t *testing.T) {
	columns := []ColumnSpec{{
		Data:       DataItemValue,
		Item:       "OS",
		BaseColor:  "97AAB3",
		Thresholds: []Threshold{{Color: "E45959", Threshold: "0"}},
	}}
	values := []map[string]ColumnValue{
		{"h1": {HostID: "h1", Value: history.TextValue("Linux"), Item: &database.Item{ValueType: database.ValueTypeStr}}},
	}

	rows := Assemble([]string{"h1"}, columns, values, map[string]*database.Host{}, nil)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].Columns[0].Color)
	assert.Equal(t, "Linux", rows[0].Columns[0].Display)
}

func TestAssemble_CountHasNoUnits(t *testing.T) {
	columns := []ColumnSpec{{Data: DataItemValue, Item: "Traffic", Aggregate: history.AggregateCount, DecimalPlaces: 0}}
	values := []map[string]ColumnValue{
		{"h1": {HostID: "h1", Value: history.NumericValue(60), Item: &database.Item{Units: "bps"}}},
	}

	rows := Assemble([]string{"h1"}, columns, values, nil, nil)
	assert.Equal(t, "60", rows[0].Columns[0].Display)
}
