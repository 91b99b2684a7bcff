package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func environ(vars ...string) func() []string {
	return func() []string { return vars }
}

func run(t *testing.T, env func() []string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := Run(context.Background(), append([]string{"envrig"}, args...), &stdout, &stderr, env)
	return stdout.String(), stderr.String(), err
}

func TestRun_Collect(t *testing.T) {
	t.Parallel()

	env := environ(
		"TEST_VALUE_1=42",
		"TEST_OTHER_VALUES__0=value_1",
		"TEST_OTHER_VALUES__1=value_2",
		"TEST_EMPTY=",
		"OTHER=1",
	)

	tests := []struct {
		name string
		env  func() []string
		args []string
		want string
	}{
		{
			name: "text output is sorted",
			env:  env,
			args: []string{"collect", "--prefix", "TEST"},
			want: "empty=\nother_values[0]=value_1\nother_values[1]=value_2\nvalue_1=42\n",
		},
		{
			name: "ignore empty",
			env:  env,
			args: []string{"collect", "--prefix", "TEST", "--ignore-empty"},
			want: "other_values[0]=value_1\nother_values[1]=value_2\nvalue_1=42\n",
		},
		{
			name: "custom separator",
			env:  environ("APP_A_0_B=x"),
			args: []string{"collect", "-p", "APP", "-s", "_"},
			want: "a[0].b=x\n",
		},
		{
			name: "defaults from ENVRIG variables",
			env:  environ("ENVRIG_PREFIX=TEST", "ENVRIG_IGNORE_EMPTY=true", "TEST_X__0=1", "TEST_Y="),
			args: []string{"collect"},
			want: "x[0]=1\n",
		},
		{
			name: "flags override ENVRIG variables",
			env:  environ("ENVRIG_PREFIX=NOPE", "TEST_X=1"),
			args: []string{"collect", "--prefix", "TEST"},
			want: "x=1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stdout, _, err := run(t, tt.env, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestRun_CollectJSON(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, environ("APP_SCOPES__0=read", "APP_SCOPES__1=write", "ENVRIG_FORMAT=json"), "collect", "-p", "APP")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, map[string]string{"scopes[0]": "read", "scopes[1]": "write"}, got)
}

func TestRun_CollectDotenv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("APP_HOSTS__0=file\nAPP_PORT=1\n"), 0o600))

	stdout, _, err := run(t, environ("APP_PORT=2"), "collect", "-p", "APP", "--dotenv", path)
	require.NoError(t, err)
	assert.Equal(t, "hosts[0]=file\nport=2\n", stdout)
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		env     func() []string
		args    []string
		wantErr string
	}{
		{
			name:    "unknown command",
			env:     environ(),
			args:    []string{"nope"},
			wantErr: "unknown command",
		},
		{
			name:    "unsupported format flag",
			env:     environ(),
			args:    []string{"collect", "--format", "xml"},
			wantErr: "unsupported format",
		},
		{
			name:    "invalid ENVRIG_FORMAT",
			env:     environ("ENVRIG_FORMAT=xml"),
			args:    []string{"collect"},
			wantErr: "oneof",
		},
		{
			name:    "colliding variables",
			env:     environ("TEST_A__0=x", "TEST_A[0]=y"),
			args:    []string{"collect", "--prefix", "TEST"},
			wantErr: "map to the same key",
		},
		{
			name:    "unknown ENVRIG variable",
			env:     environ("ENVRIG_PREFX=TEST"),
			args:    []string{"collect"},
			wantErr: "unknown_key",
		},
		{
			name:    "invalid encoding",
			env:     environ("APP_X=\xff"),
			args:    []string{"collect", "-p", "APP"},
			wantErr: "not valid UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, stderr, err := run(t, tt.env, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, stderr, "Error: ")
		})
	}
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, environ(), "version")
	require.NoError(t, err)
	assert.Equal(t, "envrig "+Version+"\n", stdout)
}

func TestRun_Debug(t *testing.T) {
	t.Parallel()

	_, stderr, err := run(t, environ("APP_X=1"), "--debug", "collect", "-p", "APP")
	require.NoError(t, err)
	assert.Contains(t, stderr, "level=DEBUG")
	assert.Contains(t, stderr, "source=env:APP")

	_, stderr, err = run(t, environ("APP_X=1"), "collect", "-p", "APP")
	require.NoError(t, err)
	assert.Empty(t, stderr)
}
