package ability

import (
	"reflect"
	"regexp"
	"strings"
	"time"
)

// Match reports whether data satisfies the Mongo-style query.
// Supported operators: $eq $ne $in $nin $gt $gte $lt $lte $exists $regex $options
// $elemMatch $all $size $not, and the logical $and $or $nor.
func Match(query map[string]any, data map[string]any) bool {
	for key, cond := range query {
		switch key {
		case "$and":
			for _, sub := range subQueries(cond) {
				if !Match(sub, data) {
					return false
				}
			}
		case "$or":
			subs := subQueries(cond)
			matched := false
			for _, sub := range subs {
				if Match(sub, data) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		case "$nor":
			for _, sub := range subQueries(cond) {
				if Match(sub, data) {
					return false
				}
			}
		default:
			values, found := resolvePath(data, key)
			if !matchField(cond, values, found) {
				return false
			}
		}
	}
	return true
}

func subQueries(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if m, ok := asMap(item); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// matchField applies a field condition to the values resolved for the field path
func matchField(cond any, values []any, found bool) bool {
	ops, ok := operatorMap(cond)
	if !ok {
		return anyEqual(values, cond)
	}

	for op, arg := range ops {
		if !applyOperator(op, arg, ops, values, found) {
			return false
		}
	}
	return true
}

func applyOperator(op string, arg any, ops map[string]any, values []any, found bool) bool {
	switch op {
	case "$eq":
		return anyEqual(values, arg)
	case "$ne":
		return !anyEqual(values, arg)
	case "$in":
		for _, candidate := range toList(arg) {
			if anyEqual(values, candidate) {
				return true
			}
		}
		return false
	case "$nin":
		for _, candidate := range toList(arg) {
			if anyEqual(values, candidate) {
				return false
			}
		}
		return true
	case "$gt", "$gte", "$lt", "$lte":
		for _, v := range expand(values) {
			c, ok := compare(v, arg)
			if !ok {
				continue
			}
			switch op {
			case "$gt":
				if c > 0 {
					return true
				}
			case "$gte":
				if c >= 0 {
					return true
				}
			case "$lt":
				if c < 0 {
					return true
				}
			case "$lte":
				if c <= 0 {
					return true
				}
			}
		}
		return false
	case "$exists":
		want, _ := arg.(bool)
		return found == want
	case "$regex":
		pattern, ok := arg.(string)
		if !ok {
			return false
		}
		if opts, _ := ops["$options"].(string); strings.Contains(opts, "i") {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		for _, v := range expand(values) {
			if s, ok := v.(string); ok && re.MatchString(s) {
				return true
			}
		}
		return false
	case "$options":
		return true
	case "$elemMatch":
		sub, ok := asMap(arg)
		if !ok {
			return false
		}
		for _, v := range values {
			for _, elem := range toList(v) {
				if elemMatches(sub, elem) {
					return true
				}
			}
		}
		return false
	case "$all":
		wanted := toList(arg)
		for _, v := range values {
			list := toList(v)
			if list == nil {
				continue
			}
			all := true
			for _, w := range wanted {
				if !anyEqual(list, w) {
					all = false
					break
				}
			}
			if all {
				return true
			}
		}
		return false
	case "$size":
		size, ok := toFloat(arg)
		if !ok {
			return false
		}
		for _, v := range values {
			if list := toList(v); list != nil && float64(len(list)) == size {
				return true
			}
		}
		return false
	case "$not":
		return !matchField(arg, values, found)
	default:
		return false
	}
}

// elemMatches applies an $elemMatch query to a single array element
func elemMatches(query map[string]any, elem any) bool {
	if ops, ok := operatorMap(query); ok {
		return matchField(ops, []any{elem}, true)
	}
	m, ok := asMap(elem)
	if !ok {
		return false
	}
	return Match(query, m)
}

// operatorMap returns cond as an operator map when every key is an operator
func operatorMap(cond any) (map[string]any, bool) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

// resolvePath returns the values reachable through a dotted path.
// Arrays met on the way are traversed element by element.
func resolvePath(data any, path string) ([]any, bool) {
	current := []any{data}
	found := false
	for i, part := range strings.Split(path, ".") {
		var next []any
		found = false
		for _, c := range current {
			for _, item := range traversable(c, i > 0) {
				m, ok := asMap(item)
				if !ok {
					continue
				}
				if v, ok := m[part]; ok {
					next = append(next, v)
					found = true
				}
			}
		}
		current = next
	}
	return current, found
}

func traversable(v any, flatten bool) []any {
	if flatten {
		if list := toList(v); list != nil {
			return list
		}
	}
	return []any{v}
}

// anyEqual reports whether any value (or any element of an array value) equals want
func anyEqual(values []any, want any) bool {
	for _, v := range values {
		if equal(v, want) {
			return true
		}
		if list := toList(v); list != nil {
			for _, item := range list {
				if equal(item, want) {
					return true
				}
			}
		}
	}
	return false
}

// expand flattens array values one level
func expand(values []any) []any {
	var out []any
	for _, v := range values {
		if list := toList(v); list != nil {
			out = append(out, list...)
			continue
		}
		out = append(out, v)
	}
	return out
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if ta, tb, ok := timePair(a, b); ok {
		return ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) (int, bool) {
	if ta, tb, ok := timePair(a, b); ok {
		return ta.Compare(tb), true
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

// timePair converts both operands to times when at least one is a time.Time
// and the other a time.Time or an RFC3339 string
func timePair(a, b any) (time.Time, time.Time, bool) {
	_, aTime := a.(time.Time)
	_, bTime := b.(time.Time)
	if !aTime && !bTime {
		return time.Time{}, time.Time{}, false
	}
	ta, ok := toTime(a)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	tb, ok := toTime(b)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return ta, tb, true
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
