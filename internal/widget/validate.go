// internal/widget/validate.go - save-time normalization and validation
package widget

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"tophosts/internal/history"
	"tophosts/internal/units"
)

// FieldError is a problem with one configuration field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors lists every field problem found in one configuration.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	messages := make([]string, len(v))
	for i, fe := range v {
		messages[i] = fe.Field + ": " + fe.Message
	}
	return "invalid configuration: " + strings.Join(messages, "; ")
}

func (v *ValidationErrors) add(field, format string, args ...interface{}) {
	*v = append(*v, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

var colorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// NormalizeColumn trims text fields, drops thresholds without a usable
// value, sorts the rest ascending and fills missing colors from the palette.
func NormalizeColumn(c ColumnSpec) ColumnSpec {
	c.Name = strings.TrimSpace(c.Name)
	c.Item = strings.TrimSpace(c.Item)
	c.Min = strings.TrimSpace(c.Min)
	c.Max = strings.TrimSpace(c.Max)

	type parsed struct {
		threshold Threshold
		value     float64
	}
	var kept []parsed
	for _, t := range c.Thresholds {
		t.Threshold = strings.TrimSpace(t.Threshold)
		if t.Threshold == "" {
			continue
		}
		value, err := units.Parse(t.Threshold)
		if err != nil {
			continue
		}
		kept = append(kept, parsed{threshold: t, value: value})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].value < kept[j].value
	})

	c.Thresholds = nil
	for i, p := range kept {
		if p.threshold.Color == "" {
			p.threshold.Color = ThresholdPalette[i%len(ThresholdPalette)]
		}
		c.Thresholds = append(c.Thresholds, p.threshold)
	}

	return c
}

// ValidateColumn checks one column. Field names are prefixed with prefix.
func (d *Defaults) ValidateColumn(c ColumnSpec, prefix string) ValidationErrors {
	var errs ValidationErrors
	field := func(name string) string { return prefix + name }

	switch c.Data {
	case DataItemValue:
		if strings.TrimSpace(c.Item) == "" {
			errs.add(field("item"), "cannot be empty")
		}
	case DataText:
		if strings.TrimSpace(c.Text) == "" {
			errs.add(field("text"), "cannot be empty")
		}
	case DataHostName:
	default:
		errs.add(field("data"), "unknown value %d", c.Data)
	}

	if c.Data != DataItemValue {
		return errs
	}

	if !c.Aggregate.Valid() {
		errs.add(field("aggregate_function"), "unknown value %d", c.Aggregate)
	}
	if c.Display < DisplayAsIs || c.Display > DisplayIndicators {
		errs.add(field("display"), "unknown value %d", c.Display)
	}
	if c.History < HistoryAuto || c.History > HistoryTrends {
		errs.add(field("history"), "unknown value %d", c.History)
	}
	if c.DecimalPlaces < 0 || c.DecimalPlaces > MaxDecimalPlaces {
		errs.add(field("decimal_places"), "must be between 0 and %d", MaxDecimalPlaces)
	}

	if c.Aggregate != history.AggregateNone {
		if _, err := c.TimePeriod.Resolve(time.Now()); err != nil {
			errs.add(field("time_period"), "%v", err)
		}
	}

	bounds := []struct{ name, value string }{{"min", c.Min}, {"max", c.Max}}
	for _, b := range bounds {
		if strings.TrimSpace(b.value) == "" {
			continue
		}
		if _, err := units.Parse(b.value); err != nil {
			errs.add(field(b.name), "a number is expected")
		}
	}

	if c.BaseColor != "" && !colorPattern.MatchString(c.BaseColor) {
		errs.add(field("base_color"), "a hexadecimal color code (6 symbols) is expected")
	}
	for i, t := range c.Thresholds {
		if !colorPattern.MatchString(t.Color) {
			errs.add(field(fmt.Sprintf("thresholds[%d].color", i)), "a hexadecimal color code (6 symbols) is expected")
		}
		if _, err := units.Parse(t.Threshold); err != nil {
			errs.add(field(fmt.Sprintf("thresholds[%d].threshold", i)), "a number is expected")
		}
	}

	return errs
}

// ValidateFields checks the widget configuration and all its columns.
func (d *Defaults) ValidateFields(f Fields) ValidationErrors {
	var errs ValidationErrors

	if len(f.Columns) == 0 {
		errs.add("columns", "at least one column is required")
	} else if f.Column < 0 || f.Column >= len(f.Columns) {
		errs.add("column", "must refer to a configured column")
	}

	if f.Order != OrderTopN && f.Order != OrderBottomN {
		errs.add("order", "unknown value %d", f.Order)
	}
	if f.ShowLines < d.MinLines || f.ShowLines > d.MaxLines {
		errs.add("show_lines", "must be between %d and %d", d.MinLines, d.MaxLines)
	}

	for i, c := range f.Columns {
		errs = append(errs, d.ValidateColumn(c, fmt.Sprintf("columns[%d].", i))...)
	}

	return errs
}

// PrepareFields decodes a widget configuration, normalizes its columns and
// validates the result. Validation problems come back as ValidationErrors.
func (d *Defaults) PrepareFields(data []byte) (Fields, error) {
	f, err := d.DecodeFields(data)
	if err != nil {
		return Fields{}, err
	}
	for i := range f.Columns {
		f.Columns[i] = NormalizeColumn(f.Columns[i])
	}
	if errs := d.ValidateFields(f); len(errs) > 0 {
		return f, errs
	}
	return f, nil
}
