// internal/widget/rows.go - table rows for the ranked hosts
package widget

import (
	"tophosts/internal/database"
	"tophosts/internal/history"
	"tophosts/internal/units"
)

// ThresholdLevel is a parsed threshold, plain and scaled for byte units.
type ThresholdLevel struct {
	Value       float64 `json:"value"`
	ValueBinary float64 `json:"value_binary"`
	Color       string  `json:"color"`
}

// ThresholdLevels parses the column thresholds, skipping any that do not
// parse. The input order is kept.
func ThresholdLevels(c ColumnSpec) []ThresholdLevel {
	var levels []ThresholdLevel
	for _, t := range c.Thresholds {
		value, err := units.Parse(t.Threshold)
		if err != nil {
			continue
		}
		binary, err := units.ParseBinary(t.Threshold)
		if err != nil {
			continue
		}
		levels = append(levels, ThresholdLevel{Value: value, ValueBinary: binary, Color: t.Color})
	}
	return levels
}

// ThresholdColor walks the ascending levels and returns the color of the
// last one not above value, or base when value is below all of them.
func ThresholdColor(levels []ThresholdLevel, base string, value float64, binary bool) string {
	color := base
	for _, l := range levels {
		threshold := l.Value
		if binary {
			threshold = l.ValueBinary
		}
		if value < threshold {
			break
		}
		color = l.Color
	}
	return color
}

type MaintenanceInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"maintenance_type"`
}

// Cell is one table cell. A nil *Cell is an empty cell.
type Cell struct {
	Value         history.Value    `json:"value"`
	HostID        string           `json:"hostid,omitempty"`
	Maintenance   *MaintenanceInfo `json:"maintenance,omitempty"`
	Item          *database.Item   `json:"item,omitempty"`
	IsBinaryUnits bool             `json:"is_binary_units,omitempty"`
	Color         string           `json:"color,omitempty"`
	Display       string           `json:"display,omitempty"`
}

type RowContext struct {
	HostID string `json:"hostid"`
}

type Row struct {
	Columns []*Cell    `json:"columns"`
	Context RowContext `json:"context"`
}

// Assemble builds one row per ranked host with a cell per column, in
// column order. values holds each column's values by host id.
func Assemble(ranked []string, columns []ColumnSpec, values []map[string]ColumnValue, hosts map[string]*database.Host, maintenances map[string]database.Maintenance) []Row {
	levels := make([][]ThresholdLevel, len(columns))
	for i, c := range columns {
		levels[i] = ThresholdLevels(c)
	}

	rows := make([]Row, 0, len(ranked))
	for _, hostID := range ranked {
		row := Row{
			Columns: make([]*Cell, len(columns)),
			Context: RowContext{HostID: hostID},
		}

		for i, c := range columns {
			switch c.Data {
			case DataHostName:
				row.Columns[i] = hostCell(hosts[hostID], maintenances)
			case DataText:
				if v, ok := values[i][hostID]; ok {
					row.Columns[i] = &Cell{Value: v.Value}
				}
			case DataItemValue:
				if v, ok := values[i][hostID]; ok {
					row.Columns[i] = itemCell(c, levels[i], v)
				}
			}
		}

		rows = append(rows, row)
	}

	return rows
}

func hostCell(host *database.Host, maintenances map[string]database.Maintenance) *Cell {
	if host == nil {
		return nil
	}

	cell := &Cell{Value: history.TextValue(host.Name), HostID: host.ID}
	if host.MaintenanceStatus == database.MaintenanceStatusOn {
		if m, ok := maintenances[host.MaintenanceID]; ok {
			cell.Maintenance = &MaintenanceInfo{Name: m.Name, Description: m.Description, Type: host.MaintenanceType}
		}
	}
	return cell
}

func itemCell(c ColumnSpec, levels []ThresholdLevel, v ColumnValue) *Cell {
	cell := &Cell{
		Value:         v.Value,
		Item:          v.Item,
		IsBinaryUnits: v.IsBinaryUnits,
	}

	if v.Item != nil && v.Item.ValueType == database.ValueTypeBinary {
		cell.Display = "binary value"
		return cell
	}

	if !v.Value.Numeric {
		cell.Display = v.Value.Str
		return cell
	}

	cell.Color = ThresholdColor(levels, c.BaseColor, v.Value.Num, v.IsBinaryUnits)

	unit := ""
	if v.Item != nil && c.Aggregate != history.AggregateCount {
		unit = v.Item.Units
	}
	cell.Display = units.Format(v.Value.Num, unit, c.DecimalPlaces)
	return cell
}
