package sourceazure

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azhovan/envrig"
	"github.com/Azhovan/envrig/sourceenv"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func fromVars(prefix string, vars ...string) Environment {
	return FromEnvironment(sourceenv.Options{Prefix: prefix, Environ: environ(vars...)})
}

func TestConstructors(t *testing.T) {
	t.Run("new reads everything", func(t *testing.T) {
		opts := New().Options()
		assert.Empty(t, opts.Prefix)
		assert.Equal(t, "_", opts.PrefixSeparator)
		assert.Equal(t, "__", opts.Separator)
		assert.False(t, opts.IgnoreEmpty)
	})

	t.Run("with prefix", func(t *testing.T) {
		opts := WithPrefix("TEST").Options()
		assert.Equal(t, "TEST", opts.Prefix)
		assert.Equal(t, "_", opts.PrefixSeparator)
		assert.Equal(t, "__", opts.Separator)
	})

	t.Run("from environment keeps explicit options", func(t *testing.T) {
		opts := FromEnvironment(sourceenv.Options{
			Prefix:          "APP",
			PrefixSeparator: "-",
			Separator:       ".",
			IgnoreEmpty:     true,
		}).Options()
		assert.Equal(t, "APP", opts.Prefix)
		assert.Equal(t, "-", opts.PrefixSeparator)
		assert.Equal(t, ".", opts.Separator)
		assert.True(t, opts.IgnoreEmpty)
	})
}

func TestSettersReturnCopies(t *testing.T) {
	base := WithPrefix("A")

	changed := base.Prefix("B").Separator("_").IgnoreEmpty(true).Dotenv("x.env")

	assert.Equal(t, "A", base.Options().Prefix)
	assert.Equal(t, "__", base.Options().Separator)
	assert.False(t, base.Options().IgnoreEmpty)
	assert.Empty(t, base.Options().DotenvFiles)

	assert.Equal(t, "B", changed.Options().Prefix)
	assert.Equal(t, "_", changed.Options().Separator)
	assert.True(t, changed.Options().IgnoreEmpty)
	assert.Equal(t, []string{"x.env"}, changed.Options().DotenvFiles)
}

func TestDotenvDoesNotAlias(t *testing.T) {
	base := New().Dotenv("a.env")
	left := base.Dotenv("left.env")
	right := base.Dotenv("right.env")

	assert.Equal(t, []string{"a.env"}, base.Options().DotenvFiles)
	assert.Equal(t, []string{"a.env", "left.env"}, left.Options().DotenvFiles)
	assert.Equal(t, []string{"a.env", "right.env"}, right.Options().DotenvFiles)

	opts := left.Options()
	opts.DotenvFiles[0] = "mutated"
	assert.Equal(t, "a.env", left.Options().DotenvFiles[0])
}

func TestLoad_RewritesNumericSegments(t *testing.T) {
	src := fromVars("TEST",
		"TEST_VALUE_1=42",
		"TEST_OTHER_VALUES__0=first",
		"TEST_OTHER_VALUES__1=second",
		"TEST_CLIENTS__1__ID=abc",
		"TEST_GRID__0__1=x",
		"TEST_V1__NAME=plain",
		"UNRELATED=1",
	)

	got, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"value_1":         "42",
		"other_values[0]": "first",
		"other_values[1]": "second",
		"clients[1].id":   "abc",
		"grid[0].1":       "x",
		"v1.name":         "plain",
	}, got)
}

func TestLoad_PreservesCardinalityAndValues(t *testing.T) {
	src := fromVars("",
		"A=1",
		"B__0=2",
		"C__D__3=",
		"E=x=y",
	)

	collected, err := sourceenv.New(src.Options()).Load(context.Background())
	require.NoError(t, err)
	got, err := src.Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, got, len(collected))
	assert.Equal(t, map[string]any{"a": "1", "b[0]": "2", "c.d[3]": "", "e": "x=y"}, got)
}

func TestLoadWithKeys(t *testing.T) {
	src := fromVars("APP", "APP_SCOPES__0=read", "APP_PORT=80")

	data, keys, err := src.LoadWithKeys(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"scopes[0]": "read", "port": "80"}, data)
	assert.Equal(t, map[string]string{"scopes[0]": "APP_SCOPES__0", "port": "APP_PORT"}, keys)
}

func TestLoad_IgnoreEmpty(t *testing.T) {
	src := fromVars("APP", "APP_A=", "APP_B__0=").IgnoreEmpty(true)

	got, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_ErrorPassthrough(t *testing.T) {
	src := fromVars("", "GOOD=1", "BAD=\xff")

	_, readerErr := sourceenv.New(src.Options()).Load(context.Background())
	require.Error(t, readerErr)

	got, err := src.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sourceenv.ErrInvalidEncoding)
	assert.Equal(t, readerErr.Error(), err.Error())

	var encErr *sourceenv.EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Nil(t, got)
}

func TestLoad_KeyCollision(t *testing.T) {
	src := fromVars("", "A__0=x", "A[0]=y")

	collected, err := sourceenv.New(src.Options()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, collected, 2)

	got, err := src.Load(context.Background())
	require.ErrorIs(t, err, ErrKeyCollision)
	assert.Nil(t, got)
	assert.Equal(t, `sourceazure: variables map to the same key: A__0 and A[0] both become "a[0]"`, err.Error())
}

func TestWatchAndName(t *testing.T) {
	ch, err := WithPrefix("APP").Watch(context.Background())
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, envrig.ErrWatchNotSupported)

	assert.Equal(t, "env", New().Name())
	assert.Equal(t, "env:APP", WithPrefix("APP").Name())
}

func TestLoader_EndToEnd(t *testing.T) {
	type Settings struct {
		Value1      uint64   `conf:"name:value_1"`
		OtherValues []string `conf:"name:other_values"`
	}

	cfg, err := envrig.NewLoader[Settings]().
		WithSource(fromVars("TEST",
			"TEST_VALUE_1=42",
			"TEST_OTHER_VALUES__0=value_1",
			"TEST_OTHER_VALUES__1=value_2",
		)).
		Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Value1)
	assert.Equal(t, []string{"value_1", "value_2"}, cfg.OtherValues)

	prov, ok := envrig.GetProvenance(cfg)
	require.True(t, ok)
	sources := map[string]string{}
	for _, f := range prov.Fields {
		sources[f.FieldPath] = f.SourceName
	}
	assert.Equal(t, "env:TEST_VALUE_1", sources["Value1"])
	assert.Equal(t, "env:TEST_OTHER_VALUES__1", sources["OtherValues[1]"])
}

func TestLoader_EndToEndProcessEnvironment(t *testing.T) {
	type Settings struct {
		Value1      uint64   `conf:"name:value_1"`
		OtherValues []string `conf:"name:other_values"`
	}

	t.Setenv("E2EPROC_VALUE_1", "42")
	t.Setenv("E2EPROC_OTHER_VALUES__0", "value_1")
	t.Setenv("E2EPROC_OTHER_VALUES__1", "value_2")

	cfg, err := envrig.NewLoader[Settings]().
		WithSource(WithPrefix("E2EPROC")).
		Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Value1)
	assert.Equal(t, []string{"value_1", "value_2"}, cfg.OtherValues)
}

func TestLoader_LeadingZeroIndex(t *testing.T) {
	type Settings struct {
		L []string
	}

	cfg, err := envrig.NewLoader[Settings]().
		WithSource(fromVars("X", "X_L__2=c", "X_L__00=a")).
		Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "c"}, cfg.L)

	prov, ok := envrig.GetProvenance(cfg)
	require.True(t, ok)
	for _, f := range prov.Fields {
		if f.FieldPath == "L[0]" {
			assert.Equal(t, "env:X_L__00", f.SourceName)
		}
	}
}

func TestLoader_EndToEndStructElements(t *testing.T) {
	type Client struct {
		ID     string `conf:"required"`
		Secret string `conf:"secret"`
	}
	type Settings struct {
		Clients []Client
	}

	t.Setenv("E2E_CLIENTS__0__ID", "web")
	t.Setenv("E2E_CLIENTS__1__ID", "cli")
	t.Setenv("E2E_CLIENTS__1__SECRET", "s")

	cfg, err := envrig.NewLoader[Settings]().
		WithSource(WithPrefix("E2E")).
		Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []Client{{ID: "web"}, {ID: "cli", Secret: "s"}}, cfg.Clients)
}

func TestLoader_MissingRequiredElementField(t *testing.T) {
	type Client struct {
		ID  string `conf:"required"`
		URL string
	}
	type Settings struct {
		Clients []Client
	}

	t.Setenv("REQ_CLIENTS__0__URL", "https://example.com")

	_, err := envrig.NewLoader[Settings]().
		WithSource(WithPrefix("REQ")).
		Load(context.Background())

	var valErr *envrig.ValidationError
	require.ErrorAs(t, err, &valErr)
	require.Len(t, valErr.FieldErrors, 1)
	assert.Equal(t, "Clients[0].ID", valErr.FieldErrors[0].FieldPath)
	assert.Equal(t, envrig.ErrCodeRequired, valErr.FieldErrors[0].Code)
}
