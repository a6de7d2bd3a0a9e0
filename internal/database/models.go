// internal/database/models.go
package database

import (
	"time"
)

// ValueType follows the platform numbering of item value types.
type ValueType int

const (
	ValueTypeFloat  ValueType = 0
	ValueTypeStr    ValueType = 1
	ValueTypeLog    ValueType = 2
	ValueTypeUint64 ValueType = 3
	ValueTypeText   ValueType = 4
	ValueTypeBinary ValueType = 5
)

// NumericValueTypes are the value types accepted by numeric-only columns.
var NumericValueTypes = []ValueType{ValueTypeFloat, ValueTypeUint64}

// TextualValueTypes are the value types a non-numeric column may select.
// Binary items are never selected by the widget.
var TextualValueTypes = []ValueType{ValueTypeFloat, ValueTypeStr, ValueTypeLog, ValueTypeUint64, ValueTypeText}

func (v ValueType) IsNumeric() bool {
	return v == ValueTypeFloat || v == ValueTypeUint64
}

func (v ValueType) String() string {
	switch v {
	case ValueTypeFloat:
		return "float"
	case ValueTypeStr:
		return "str"
	case ValueTypeLog:
		return "log"
	case ValueTypeUint64:
		return "uint64"
	case ValueTypeText:
		return "text"
	case ValueTypeBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseValueType maps a config name ("float", "uint64", ...) to a ValueType.
func ParseValueType(name string) (ValueType, bool) {
	for _, vt := range []ValueType{ValueTypeFloat, ValueTypeStr, ValueTypeLog, ValueTypeUint64, ValueTypeText, ValueTypeBinary} {
		if vt.String() == name {
			return vt, true
		}
	}
	return 0, false
}

const (
	MaintenanceStatusOff = 0
	MaintenanceStatusOn  = 1
)

const (
	MaintenanceTypeNormal = 0
	MaintenanceTypeNoData = 1
)

type Tag struct {
	Tag   string `json:"tag" yaml:"tag"`
	Value string `json:"value" yaml:"value"`
}

type Host struct {
	ID                string            `json:"hostid"`
	Name              string            `json:"name"`
	Host              string            `json:"host"`
	IPv4              string            `json:"ipv4,omitempty"`
	Groups            []string          `json:"groups"`
	Tags              []Tag             `json:"tags"`
	Inventory         map[string]string `json:"inventory,omitempty"`
	Macros            map[string]string `json:"macros,omitempty"`
	MaintenanceStatus int               `json:"maintenance_status"`
	MaintenanceID     string            `json:"maintenanceid,omitempty"`
	MaintenanceType   int               `json:"maintenance_type"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type Item struct {
	ID        string        `json:"itemid"`
	HostID    string        `json:"hostid"`
	Name      string        `json:"name"`
	Key       string        `json:"key_"`
	ValueType ValueType     `json:"value_type"`
	Units     string        `json:"units"`
	History   time.Duration `json:"history"`
	Trends    time.Duration `json:"trends"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Maintenance struct {
	ID          string `json:"maintenanceid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"maintenance_type"`
}

// HistoryValue is one collected sample. Numeric items use Num, the rest Str.
type HistoryValue struct {
	ItemID string    `json:"itemid"`
	Clock  time.Time `json:"clock"`
	Num    float64   `json:"num,omitempty"`
	Str    string    `json:"str,omitempty"`
}

// Trend is an hourly rollup of a numeric item's history.
type Trend struct {
	ItemID string    `json:"itemid"`
	Clock  time.Time `json:"clock"`
	Num    int       `json:"num"`
	Min    float64   `json:"value_min"`
	Avg    float64   `json:"value_avg"`
	Max    float64   `json:"value_max"`
}

// TagEvalType selects how host tag filters combine.
type TagEvalType int

const (
	TagEvalAndOr TagEvalType = 0
	TagEvalOr    TagEvalType = 2
)

// TagOperator follows the platform tag filter operators.
type TagOperator int

const (
	TagOperatorLike      TagOperator = 0
	TagOperatorEqual     TagOperator = 1
	TagOperatorNotLike   TagOperator = 2
	TagOperatorNotEqual  TagOperator = 3
	TagOperatorExists    TagOperator = 4
	TagOperatorNotExists TagOperator = 5
)

type TagFilter struct {
	Tag      string      `json:"tag" yaml:"tag"`
	Operator TagOperator `json:"operator" yaml:"operator"`
	Value    string      `json:"value" yaml:"value"`
}

type HostFilters struct {
	GroupIDs           []string
	HostIDs            []string
	EvalType           TagEvalType
	Tags               []TagFilter
	ExcludeMaintenance bool
}

type ItemFilters struct {
	HostIDs    []string
	GroupIDs   []string
	Name       string
	ValueTypes []ValueType
}
