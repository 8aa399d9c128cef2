package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

type valueKind int

const (
	valueAbsent valueKind = iota
	valueScalar
	valueBool
	valueList
)

// Value is one request parameter in whichever shape it arrived: absent, a
// scalar string, a JSON boolean or a list.
type Value struct {
	kind valueKind
	str  string
	b    bool
	list []string
}

func Absent() Value { return Value{} }
func Scalar(s string) Value { return Value{kind: valueScalar, str: s} }
func Bool(b bool) Value { return Value{kind: valueBool, b: b} }
func List(items ...string) Value { return Value{kind: valueList, list: items} }
func (v Value) Present() bool { return v.kind != valueAbsent }
func (v Value) IsList() bool { return v.kind == valueList }

// Strings normalizes the value into a list. With split, scalars are comma
// separated lists.
func (v Value) Strings(split bool) []string {
	var raw []string
	switch v.kind {
	case valueScalar:
		if split {
			raw = strings.Split(v.str, ",")
		} else {
			raw = []string{v.str}
		}
	case valueBool:
		raw = []string{strconv.FormatBool(v.b)}
	case valueList:
		raw = v.list
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// String returns the scalar form; lists yield their first element.
func (v Value) String() string {
	switch v.kind {
	case valueScalar:
		return strings.TrimSpace(v.str)
	case valueBool:
		return strconv.FormatBool(v.b)
	case valueList:
		if len(v.list) > 0 {
			return strings.TrimSpace(v.list[0])
		}
	}
	return ""
}

// Int parses a non negative integer, capped at math.MaxInt32 so offsets can
// be added without overflow. Missing or malformed input yields 0, meaning
// unbounded.
func (v Value) Int() int {
	n, err := strconv.ParseInt(v.String(), 10, 64)
	if err != nil {
		var ne *strconv.NumError
		if errors.As(err, &ne) && ne.Err == strconv.ErrRange && !strings.HasPrefix(v.String(), "-") {
			return math.MaxInt32
		}
		return 0
	}
	if n < 0 {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// Tri returns nil unless the value is an explicit true or false.
func (v Value) Tri() *bool {
	switch v.kind {
	case valueBool:
		b := v.b
		return &b
	case valueScalar, valueList:
		switch strings.ToLower(v.String()) {
		case "true":
			b := true
			return &b
		case "false":
			b := false
			return &b
		}
	}
	return nil
}

// Params merges query string and body parameters. The query string wins,
// the body is consulted only for fields the query string lacks.
type Params struct {
	Query map[string]Value
	Body  map[string]Value
}

func NewParams(query, body map[string]Value) *Params {
	if query == nil {
		query = map[string]Value{}
	}
	if body == nil {
		body = map[string]Value{}
	}
	return &Params{Query: query, Body: body}
}

func (p *Params) Get(field string) Value {
	if v, ok := p.Query[field]; ok && v.Present() {
		return v
	}
	if v, ok := p.Body[field]; ok && v.Present() {
		return v
	}
	return Absent()
}

// FromValues converts url.Values. Repeated keys and `key[]` keys are lists.
func FromValues(values url.Values) map[string]Value {
	out := make(map[string]Value, len(values))
	for key, vs := range values {
		list := strings.HasSuffix(key, "[]")
		key = strings.TrimSuffix(key, "[]")
		switch {
		case len(vs) == 0:
			continue
		case len(vs) > 1 || list:
			out[key] = List(vs...)
		default:
			out[key] = Scalar(vs[0])
		}
	}
	return out
}

// FromJSON converts a decoded JSON object.
func FromJSON(body map[string]any) map[string]Value {
	out := make(map[string]Value, len(body))
	for key, raw := range body {
		switch v := raw.(type) {
		case nil:
			continue
		case string:
			out[key] = Scalar(v)
		case bool:
			out[key] = Bool(v)
		case float64:
			out[key] = Scalar(strconv.FormatFloat(v, 'f', -1, 64))
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				if item == nil {
					continue
				}
				items = append(items, fmt.Sprint(item))
			}
			out[key] = List(items...)
		default:
			out[key] = Scalar(fmt.Sprint(v))
		}
	}
	return out
}

const maxBodySize = 1 << 20

// FromRequest reads filter parameters from the query string and, for
// requests carrying one, a JSON or form encoded body.
func FromRequest(r *http.Request) (*Params, error) {
	query := FromValues(r.URL.Query())

	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return NewParams(query, nil), nil
	}

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, err
		}
		if len(strings.TrimSpace(string(b))) == 0 {
			return NewParams(query, nil), nil
		}

		var body map[string]any
		if err := json.Unmarshal(b, &body); err != nil {
			return nil, fmt.Errorf("invalid json body: %w", err)
		}
		return NewParams(query, FromJSON(body)), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return NewParams(query, FromValues(r.PostForm)), nil
	}

	return NewParams(query, nil), nil
}
