package pomps_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eliwjones/pomps"
)

func TestParseRecord_RoundTripKeepsOrderAndNumbers(t *testing.T) {
	in := `{"b":1.50,"a":[true,null,"x",{}],"c":{"z":-0,"y":1e3},"d":[]}`
	v, err := pomps.ParseRecord([]byte(in))
	require.NoError(t, err)
	require.Equal(t, pomps.KindObject, v.Kind())
	require.Equal(t, in, v.String())

	names := make([]string, 0, v.Len())
	for _, f := range v.Fields() {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"b", "a", "c", "d"}, names)

	n, ok := v.Lookup("b").AsNumber()
	require.True(t, ok)
	require.Equal(t, json.Number("1.50"), n)
}

func TestParseRecord_Strings(t *testing.T) {
	v, err := pomps.ParseRecord([]byte(`{"s":"<a&b>é\n\"q\"\t\u0001"}`))
	require.NoError(t, err)

	s, ok := v.Lookup("s").AsString()
	require.True(t, ok)
	require.Equal(t, "<a&b>é\n\"q\"\t\x01", s)
	require.Equal(t, `{"s":"<a&b>`+"é"+`\n\"q\"\t\u0001"}`, v.String())
}

func TestParseRecord_DuplicateNameKeepsFirstPositionLastValue(t *testing.T) {
	v, err := pomps.ParseRecord([]byte(`{"a":1,"b":2,"a":3}`))
	require.NoError(t, err)
	require.Equal(t, `{"a":3,"b":2}`, v.String())
}

func TestParseRecord_Malformed(t *testing.T) {
	for _, in := range []string{``, `{`, `{"a":}`, `{"a":1} {"b":2}`, `[1,2`, `nope`} {
		_, err := pomps.ParseRecord([]byte(in))
		require.ErrorIs(t, err, pomps.ErrMalformedRecord, "input %q", in)
	}
}

func TestParseRecord_Scalars(t *testing.T) {
	for _, in := range []string{`null`, `true`, `false`, `"x"`, `-12.5e-3`, `[]`} {
		v, err := pomps.ParseRecord([]byte(in))
		require.NoError(t, err)
		require.Equal(t, in, v.String())
	}
}

func TestValue_SetDeleteDoNotMutate(t *testing.T) {
	orig := pomps.Object(pomps.KV("a", pomps.Int(1)), pomps.KV("b", pomps.String("x")))

	set := orig.Set("a", pomps.Bool(true)).Set("c", pomps.Null())
	require.Equal(t, `{"a":true,"b":"x","c":null}`, set.String())

	del := orig.Delete("a")
	require.Equal(t, `{"b":"x"}`, del.String())

	require.Equal(t, `{"a":1,"b":"x"}`, orig.String())
}

func TestValue_Constructors(t *testing.T) {
	v := pomps.Object(
		pomps.KV("i", pomps.Int(-7)),
		pomps.KV("f", pomps.Float(0.25)),
		pomps.KV("n", pomps.Number("10.0")),
		pomps.KV("arr", pomps.Array()),
		pomps.KV("nil", pomps.Null()),
	)
	require.Equal(t, `{"i":-7,"f":0.25,"n":10.0,"arr":[],"nil":null}`, v.String())
	require.True(t, v.Lookup("missing").IsNull())
	_, ok := v.Get("missing")
	require.False(t, ok)
}

func TestValue_JSONInterop(t *testing.T) {
	type wrapper struct {
		Doc pomps.Value `json:"doc"`
	}
	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"doc":{"z":1,"a":2}}`), &w))

	out, err := json.Marshal(w)
	require.NoError(t, err)
	require.Equal(t, `{"doc":{"z":1,"a":2}}`, string(out))
}

func TestFieldKey(t *testing.T) {
	key := pomps.FieldKey("name")

	k, err := key(pomps.Object(pomps.KV("name", pomps.String("bob"))))
	require.NoError(t, err)
	require.Equal(t, "bob", k)

	_, err = key(pomps.Object(pomps.KV("name", pomps.Int(1))))
	require.ErrorIs(t, err, pomps.ErrInvalidKeyType)

	_, err = key(pomps.Object())
	require.ErrorIs(t, err, pomps.ErrInvalidKeyType)
}

func TestFieldText(t *testing.T) {
	key := pomps.FieldText("_id")

	k, err := key(pomps.Object(pomps.KV("_id", pomps.Int(0))))
	require.NoError(t, err)
	require.Equal(t, "0", k)

	k, err = key(pomps.Object(pomps.KV("_id", pomps.String("a7"))))
	require.NoError(t, err)
	require.Equal(t, "a7", k)

	for _, bad := range []pomps.Value{pomps.Null(), pomps.Bool(true), pomps.Array(), pomps.Object()} {
		_, err := key(pomps.Object(pomps.KV("_id", bad)))
		require.ErrorIs(t, err, pomps.ErrInvalidKeyType)
	}
}

func TestGroupedBatch_RoundTrip(t *testing.T) {
	line := `{"group_key":"0","data":[{"_id":0},{"_id":0,"x":[1]}]}`
	b, err := pomps.ParseGroupedBatch([]byte(line))
	require.NoError(t, err)
	require.Equal(t, "0", b.Key)
	require.Len(t, b.Data, 2)
	require.Equal(t, line, string(b.AppendJSON(nil)))
	require.Equal(t, line, b.Record().String())
}

func TestParseGroupedBatch_Invalid(t *testing.T) {
	for _, line := range []string{
		`{"group_key":0,"data":[]}`,
		`{"group_key":"a","data":{}}`,
		`{"data":[]}`,
		`[1]`,
	} {
		_, err := pomps.ParseGroupedBatch([]byte(line))
		require.ErrorIs(t, err, pomps.ErrMalformedRecord, "line %s", line)
	}
}
