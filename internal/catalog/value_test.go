package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerMap_RoundTrip(t *testing.T) {
	m := AnswerMap{
		"term-months":   IntValue(24),
		"counterparty":  StringValue("Acme GmbH"),
		"mutual":        BoolValue(true),
		"liability-cap": IntValue(500000),
	}

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back AnswerMap
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)

	// Types survive: an int stays an int.
	assert.Equal(t, TypeInt, back["term-months"].Type())
	assert.Equal(t, TypeBool, back["mutual"].Type())
}

func TestUnmarshalValue_UnknownType(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"type":"float","value":1.5}`))
	assert.Error(t, err)
}

func TestPredicate_RoundTrip(t *testing.T) {
	p := Predicate{
		Op:     OpIn,
		Values: []Value{StringValue("DE"), StringValue("AT"), StringValue("CH")},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var back Predicate
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	q := Predicate{Op: OpAtLeast, Value: IntValue(12)}
	data, err = json.Marshal(q)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, q, back)
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	obj := map[string]any{
		"zeta":  "z",
		"alpha": int64(1),
		"nested": map[string]any{
			"b": true,
			"a": "ä", // NFC normalization applies
		},
		"list": []any{"one", int64(2), false},
	}

	first, err := MarshalCanonical(obj)
	require.NoError(t, err)
	second, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Keys come out sorted, byte-for-byte stable.
	assert.Equal(t, `{"alpha":1,"list":["one",2,false],"nested":{"a":"ä","b":true},"zeta":"z"}`, string(first))
}

func TestMarshalCanonical_RejectsFloatsAndNull(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical("a < b & c > d")
	require.NoError(t, err)
	assert.Equal(t, `"a < b & c > d"`, string(out))
}

func TestClauseDigest_IgnoresStatus(t *testing.T) {
	cv := &ClauseVersion{VersionID: "c-v1", BlockID: "c", Number: 1, Title: "T", Body: "B", Status: StatusDraft}
	d1, err := ClauseDigest(cv)
	require.NoError(t, err)

	cv.Status = StatusPublished
	d2, err := ClauseDigest(cv)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	cv.Body = "B changed"
	d3, err := ClauseDigest(cv)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}
