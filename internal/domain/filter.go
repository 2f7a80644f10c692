package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/coopdesk/backoffice/internal/ptr"
)

// DataType is the type of the values held by a filterable column.
type DataType string

const (
	DataTypeText    DataType = "text"
	DataTypeNumber  DataType = "number"
	DataTypeDate    DataType = "date"
	DataTypeBoolean DataType = "boolean"
)

// IsValid reports whether t is one of the known data types.
func (t DataType) IsValid() bool {
	switch t {
	case DataTypeText, DataTypeNumber, DataTypeDate, DataTypeBoolean:
		return true
	}
	return false
}

// SupportsRange reports whether range filters can be built for t.
// Only ordered types (numbers and dates) expose range controls.
func (t DataType) SupportsRange() bool {
	return t == DataTypeNumber || t == DataTypeDate
}

// FilterMode is the comparison operator family applied to a field.
type FilterMode string

const (
	ModeEquals             FilterMode = "equals"
	ModeNotEquals          FilterMode = "notEquals"
	ModeContains           FilterMode = "contains"
	ModeStartsWith         FilterMode = "startsWith"
	ModeEndsWith           FilterMode = "endsWith"
	ModeLessThan           FilterMode = "lessThan"
	ModeLessThanOrEqual    FilterMode = "lessThanOrEqual"
	ModeGreaterThan        FilterMode = "greaterThan"
	ModeGreaterThanOrEqual FilterMode = "greaterThanOrEqual"
	ModeRange              FilterMode = "range"
)

// modesByType lists the modes offered per data type. The first entry is the default.
var modesByType = map[DataType][]FilterMode{
	DataTypeText: {
		ModeContains, ModeEquals, ModeNotEquals, ModeStartsWith, ModeEndsWith,
	},
	DataTypeNumber: {
		ModeEquals, ModeNotEquals, ModeLessThan, ModeLessThanOrEqual,
		ModeGreaterThan, ModeGreaterThanOrEqual, ModeRange,
	},
	DataTypeDate: {
		ModeEquals, ModeLessThan, ModeGreaterThan, ModeRange,
	},
	DataTypeBoolean: {
		ModeEquals,
	},
}

// ModesFor returns the filter modes offered for t, default mode first.
// Returns nil for unknown data types.
func ModesFor(t DataType) []FilterMode {
	return slices.Clone(modesByType[t])
}

// DefaultMode returns the mode a fresh column filter of type t starts in.
func DefaultMode(t DataType) FilterMode {
	modes := modesByType[t]
	if len(modes) == 0 {
		return ModeEquals
	}
	return modes[0]
}

// Supports reports whether mode m is offered for data type t.
func (m FilterMode) Supports(t DataType) bool {
	return slices.Contains(modesByType[t], m)
}

// Scalar is a single filter operand.
//
// The wire format accepts a JSON string, number or boolean and always
// re-encodes as a string; interpretation happens against the column's DataType.
type Scalar string

// String returns the operand text.
func (s Scalar) String() string {
	return string(s)
}

// MarshalJSON encodes the scalar as a JSON string.
func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON accepts strings, numbers and booleans.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty operand", ErrInvalidFilter)
	}

	switch data[0] {
	case '"':
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		*s = Scalar(str)
	case 't', 'f':
		b, err := strconv.ParseBool(string(data))
		if err != nil {
			return fmt.Errorf("%w: invalid boolean operand %s", ErrInvalidFilter, data)
		}
		*s = Scalar(strconv.FormatBool(b))
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return fmt.Errorf("%w: unsupported operand %s", ErrInvalidFilter, data)
		}
		*s = Scalar(num.String())
	}
	return nil
}

// ScalarPtr returns a pointer to a Scalar holding v.
func ScalarPtr(v string) *Scalar {
	return ptr.To(Scalar(v))
}

// FilterDescriptor is the rule applied to one field.
// Range mode uses From/To; every other mode uses Value.
type FilterDescriptor struct {
	Mode     FilterMode `json:"mode"`
	Value    *Scalar    `json:"value,omitempty"`
	From     *Scalar    `json:"from,omitempty"`
	To       *Scalar    `json:"to,omitempty"`
	DataType DataType   `json:"dataType"`
}

// NewValueFilter builds a non-range descriptor, rejecting modes that are not
// offered for the data type.
func NewValueFilter(dataType DataType, mode FilterMode, value Scalar) (FilterDescriptor, error) {
	if !dataType.IsValid() {
		return FilterDescriptor{}, fmt.Errorf("%w: unknown data type %q", ErrInvalidFilter, dataType)
	}
	if mode == ModeRange {
		return FilterDescriptor{}, fmt.Errorf("%w: use a range filter for mode %q", ErrModeNotSupported, mode)
	}
	if !mode.Supports(dataType) {
		return FilterDescriptor{}, fmt.Errorf("%w: %q is not offered for %s", ErrModeNotSupported, mode, dataType)
	}
	return FilterDescriptor{Mode: mode, Value: &value, DataType: dataType}, nil
}

// NewRangeFilter builds a range descriptor. Either bound may be nil; a partial
// range is kept as-is and interpreted by the server as open-ended.
// Text and boolean types never produce range filters.
func NewRangeFilter(dataType DataType, from, to *Scalar) (FilterDescriptor, error) {
	if !dataType.IsValid() {
		return FilterDescriptor{}, fmt.Errorf("%w: unknown data type %q", ErrInvalidFilter, dataType)
	}
	if !dataType.SupportsRange() {
		return FilterDescriptor{}, fmt.Errorf("%w: %s columns", ErrRangeNotSupported, dataType)
	}
	return FilterDescriptor{
		Mode:     ModeRange,
		From:     ptr.Clone(from),
		To:       ptr.Clone(to),
		DataType: dataType,
	}, nil
}

// Clone returns a copy that shares no operand pointers with d.
func (d FilterDescriptor) Clone() FilterDescriptor {
	d.Value = ptr.Clone(d.Value)
	d.From = ptr.Clone(d.From)
	d.To = ptr.Clone(d.To)
	return d
}

// IsRange reports whether the descriptor uses range bounds.
func (d FilterDescriptor) IsRange() bool {
	return d.Mode == ModeRange
}

// Active reports whether the operand(s) meaningful for the mode are present.
func (d FilterDescriptor) Active() bool {
	if d.IsRange() {
		return d.From != nil || d.To != nil
	}
	return d.Value != nil
}

// Normalize drops the operands the mode does not use, so only one of
// Value or From/To is ever carried.
func (d FilterDescriptor) Normalize() FilterDescriptor {
	if d.IsRange() {
		d.Value = nil
		d.From = ptr.Clone(d.From)
		d.To = ptr.Clone(d.To)
	} else {
		d.Value = ptr.Clone(d.Value)
		d.From = nil
		d.To = nil
	}
	return d
}

// Validate checks mode/type compatibility. The filter store never calls this;
// it is used by callers building descriptors and by the server.
func (d FilterDescriptor) Validate() error {
	if !d.DataType.IsValid() {
		return fmt.Errorf("%w: unknown data type %q", ErrInvalidFilter, d.DataType)
	}
	if d.IsRange() && !d.DataType.SupportsRange() {
		return fmt.Errorf("%w: %s columns", ErrRangeNotSupported, d.DataType)
	}
	if !d.Mode.Supports(d.DataType) {
		return fmt.Errorf("%w: %q is not offered for %s", ErrModeNotSupported, d.Mode, d.DataType)
	}
	return nil
}

// Equal compares two descriptors field by field.
func (d FilterDescriptor) Equal(o FilterDescriptor) bool {
	return d.Mode == o.Mode &&
		d.DataType == o.DataType &&
		ptr.Equal(d.Value, o.Value) &&
		ptr.Equal(d.From, o.From) &&
		ptr.Equal(d.To, o.To)
}

// String renders the descriptor for logs.
func (d FilterDescriptor) String() string {
	var b strings.Builder
	b.WriteString(string(d.Mode))
	if d.IsRange() {
		fmt.Fprintf(&b, "[%s..%s]", ptr.ToString(d.From), ptr.ToString(d.To))
	} else {
		fmt.Fprintf(&b, "(%s)", ptr.ToString(d.Value))
	}
	return b.String()
}

// FilterMap holds the active filters of one table, keyed by field name.
type FilterMap map[string]FilterDescriptor

// Clone returns a copy of the map. Operands are copied too.
func (m FilterMap) Clone() FilterMap {
	out := make(FilterMap, len(m))
	for field, d := range m {
		out[field] = d.Clone()
	}
	return out
}

// Equal reports whether both maps hold equal descriptors for the same fields.
func (m FilterMap) Equal(o FilterMap) bool {
	return maps.EqualFunc(m, o, FilterDescriptor.Equal)
}

// Fields returns the filtered field names in sorted order.
func (m FilterMap) Fields() []string {
	return slices.Sorted(maps.Keys(m))
}
