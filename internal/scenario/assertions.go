package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"petcontract/internal/apiclient"
	"petcontract/internal/core"
	"petcontract/internal/schema"
)

// maxSnippet bounds how much of a response body is quoted in diagnostics
const maxSnippet = 256

// Assertion is one expectation evaluated against a step Result. Check returns nil on
// success and a *core.HarnessError otherwise.
type Assertion interface {
	Check(res *apiclient.Result, st *State) error
	String() string
}

// check is the function-backed Assertion used by every constructor in this file.
type check struct {
	desc string
	refs []string
	fn   func(res *apiclient.Result, st *State) error
}

func (c *check) Check(res *apiclient.Result, st *State) error { return c.fn(res, st) }

func (c *check) String() string { return c.desc }

// Placeholders lists the state keys the expectation reads.
func (c *check) Placeholders() []string { return c.refs }

// Status expects an exact HTTP status code.
func Status(code int) Assertion {
	return &check{
		desc: fmt.Sprintf("status is %d", code),
		fn: func(res *apiclient.Result, _ *State) error {
			if res.Status == code {
				return nil
			}
			err := core.NewAssertionError("unexpected status", strconv.Itoa(code), strconv.Itoa(res.Status))
			if snippet := bodySnippet(res.Body); snippet != "" {
				err.Details = []string{"body: " + snippet}
			}
			return err
		},
	}
}

// StatusText expects the reason phrase of the status line, e.g. "Not Found".
func StatusText(text string) Assertion {
	return &check{
		desc: fmt.Sprintf("status text is %q", text),
		fn: func(res *apiclient.Result, _ *State) error {
			if res.StatusText == text {
				return nil
			}
			return core.NewAssertionError("unexpected status text", strconv.Quote(text), strconv.Quote(res.StatusText))
		},
	}
}

// HasHeader expects a response header to be present.
func HasHeader(name string) Assertion {
	return &check{
		desc: fmt.Sprintf("header %s is present", name),
		fn: func(res *apiclient.Result, _ *State) error {
			if res.HasHeader(name) {
				return nil
			}
			return core.NewAssertionError("missing header "+name, "present", "absent")
		},
	}
}

// HeaderContains expects a response header whose value contains substr. substr may
// contain placeholders.
func HeaderContains(name, substr string) Assertion {
	return &check{
		desc: fmt.Sprintf("header %s contains %q", name, substr),
		refs: placeholders(substr),
		fn: func(res *apiclient.Result, st *State) error {
			substr, err := expectedText(substr, st)
			if err != nil {
				return err
			}
			if !res.HasHeader(name) {
				return core.NewAssertionError("missing header "+name, "present", "absent")
			}
			value := res.Header(name)
			if strings.Contains(value, substr) {
				return nil
			}
			return core.NewAssertionError("unexpected "+name+" header", "value containing "+strconv.Quote(substr), strconv.Quote(value))
		},
	}
}

// BodyHasField expects the gjson path to exist in the response body.
func BodyHasField(path string) Assertion {
	return &check{
		desc: fmt.Sprintf("body has field %s", path),
		fn: func(res *apiclient.Result, _ *State) error {
			if res.Get(path).Exists() {
				return nil
			}
			return core.NewAssertionError("missing body field "+path, "present", "absent")
		},
	}
}

// BodyField expects the value at the gjson path to equal expected. Strings in expected
// may contain placeholders.
func BodyField(path string, expected any) Assertion {
	return &check{
		desc: fmt.Sprintf("body field %s equals %s", path, formatValue(expected)),
		refs: placeholders(expected),
		fn: func(res *apiclient.Result, st *State) error {
			want, err := expectedValue(expected, st)
			if err != nil {
				return err
			}
			got := res.Get(path)
			if !got.Exists() {
				return core.NewAssertionError("missing body field "+path, formatValue(want), "absent")
			}
			if diff := jsonDiff(want, json.RawMessage(got.Raw)); diff != "" {
				return core.NewAssertionError("unexpected value for body field "+path, formatValue(want), got.Raw)
			}
			return nil
		},
	}
}

// BodyEquals expects the whole body to be structurally equal to expected. Timestamps
// that denote the same instant compare equal regardless of their zone notation.
func BodyEquals(expected any) Assertion {
	return &check{
		desc: "body equals expected payload",
		refs: placeholders(expected),
		fn: func(res *apiclient.Result, st *State) error {
			want, err := expectedValue(expected, st)
			if err != nil {
				return err
			}
			if !json.Valid(res.Body) {
				return core.NewAssertionError("body is not JSON", "JSON body", bodySnippet(res.Body))
			}
			if diff := jsonDiff(want, json.RawMessage(res.Body)); diff != "" {
				e := core.NewAssertionError("body differs from expected payload", formatValue(want), bodySnippet(res.Body))
				e.Details = []string{"diff (-want +got):\n" + diff}
				return e
			}
			return nil
		},
	}
}

// BodyContains expects the raw body to contain substr. substr may contain placeholders.
func BodyContains(substr string) Assertion {
	return &check{
		desc: fmt.Sprintf("body contains %q", substr),
		refs: placeholders(substr),
		fn: func(res *apiclient.Result, st *State) error {
			substr, err := expectedText(substr, st)
			if err != nil {
				return err
			}
			if strings.Contains(string(res.Body), substr) {
				return nil
			}
			return core.NewAssertionError("body does not contain expected text", strconv.Quote(substr), bodySnippet(res.Body))
		},
	}
}

// MatchesSchema validates the body against s. Only 2xx responses are validated; any
// other status fails the assertion without attempting validation.
func MatchesSchema(s *schema.Schema) Assertion {
	return &check{
		desc: fmt.Sprintf("body matches schema %s", s.Name()),
		fn: func(res *apiclient.Result, _ *State) error {
			if !res.Success() {
				return core.NewAssertionError("schema check skipped: response is not a success", "2xx", strconv.Itoa(res.Status))
			}
			report := schema.Validate(s, res.Body)
			if report.Valid {
				return nil
			}
			return core.NewSchemaError(s.Name(), report.Errors)
		},
	}
}

// LatencyBelow expects the call to complete in under max.
func LatencyBelow(max time.Duration) Assertion {
	return &check{
		desc: fmt.Sprintf("latency below %s", max),
		fn: func(res *apiclient.Result, _ *State) error {
			if res.Elapsed < max {
				return nil
			}
			return core.NewAssertionError("response too slow", "< "+max.String(), res.Elapsed.Round(time.Millisecond).String())
		},
	}
}

func expectedValue(expected any, st *State) (any, error) {
	v, err := st.ExpandValue(expected)
	if err != nil {
		return nil, core.NewDefinitionError("cannot resolve expected value", err)
	}
	return v, nil
}

func expectedText(text string, st *State) (string, error) {
	out, err := st.ExpandString(text)
	if err != nil {
		return "", core.NewDefinitionError("cannot resolve expected value", err)
	}
	return out, nil
}

// jsonDiff compares two JSON-like values after normalizing both into the generic
// decoded form. Numbers stay exact. It returns an empty string when they are equal.
func jsonDiff(want, got any) string {
	w, err := canonical(want)
	if err != nil {
		return err.Error()
	}
	g, err := canonical(got)
	if err != nil {
		return err.Error()
	}
	return cmp.Diff(w, g, cmp.Comparer(equivalentStrings), cmp.Comparer(equivalentNumbers))
}

func canonical(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// equivalentNumbers compares by value, so 2 and 2.0 match while ids one apart do not.
func equivalentNumbers(a, b json.Number) bool {
	if a == b {
		return true
	}
	ra, ok := new(big.Rat).SetString(a.String())
	if !ok {
		return false
	}
	rb, ok := new(big.Rat).SetString(b.String())
	if !ok {
		return false
	}
	return ra.Cmp(rb) == 0
}

// timestampLayouts covers RFC 3339 ("Z" / "+00:00") and the "+0000" form some servers emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
}

func equivalentStrings(a, b string) bool {
	if a == b {
		return true
	}
	ta, ok := parseTimestamp(a)
	if !ok {
		return false
	}
	tb, ok := parseTimestamp(b)
	if !ok {
		return false
	}
	return ta.Equal(tb)
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxSnippet {
		cut := maxSnippet
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut] + "..."
	}
	return s
}
