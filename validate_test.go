package envrig

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateField(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		tags     tagConfig
		wantCode string
	}{
		{"required with value", "hello", tagConfig{required: true}, ""},
		{"required empty string", "", tagConfig{required: true}, ErrCodeRequired},
		{"required zero int", 0, tagConfig{required: true}, ErrCodeRequired},
		{"required empty slice", []string{}, tagConfig{required: true}, ErrCodeRequired},
		{"int below min", -1, tagConfig{min: "1"}, ErrCodeMin},
		{"zero skips min", 0, tagConfig{min: "1"}, ""},
		{"int above max", 70000, tagConfig{max: "65535"}, ErrCodeMax},
		{"int in range", 8080, tagConfig{min: "1", max: "65535"}, ""},
		{"uint above max", uint16(300), tagConfig{max: "255"}, ErrCodeMax},
		{"float below min", 0.1, tagConfig{min: "0.5"}, ErrCodeMin},
		{"string too short", "ab", tagConfig{min: "3"}, ErrCodeMin},
		{"string too long", "abcdef", tagConfig{max: "5"}, ErrCodeMax},
		{"oneof match", "debug", tagConfig{oneof: []string{"debug", "info"}}, ""},
		{"oneof mismatch", "trace", tagConfig{oneof: []string{"debug", "info"}}, ErrCodeOneOf},
		{"oneof skips empty", "", tagConfig{oneof: []string{"debug", "info"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateField(reflect.ValueOf(tt.value), "Field", tt.tags)
			if tt.wantCode == "" {
				assert.Empty(t, errs)
				return
			}
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.wantCode, errs[0].Code)
			assert.Equal(t, "Field", errs[0].FieldPath)
		})
	}
}

func TestValidateStruct(t *testing.T) {
	type Server struct {
		Host string `conf:"required"`
		Port int    `conf:"min:1"`
	}
	type Database struct {
		Name string `conf:"required"`
	}
	type Config struct {
		Level    string `conf:"oneof:debug,info"`
		Database Database
		Servers  []Server      `conf:"required"`
		Replicas Optional[int] `conf:"min:1"`
		Unset    Optional[int] `conf:"min:1"`
	}

	cfg := Config{
		Level:    "trace",
		Servers:  []Server{{Host: "a", Port: 1}, {Port: -1}},
		Replicas: Optional[int]{Value: -2, Set: true},
	}

	errs := validateStruct(reflect.ValueOf(&cfg))

	got := map[string]string{}
	for _, fe := range errs {
		got[fe.FieldPath] = fe.Code
	}
	assert.Equal(t, map[string]string{
		"Level":           ErrCodeOneOf,
		"Database.Name":   ErrCodeRequired,
		"Servers[1].Host": ErrCodeRequired,
		"Servers[1].Port": ErrCodeMin,
		"Replicas":        ErrCodeMin,
	}, got)
}

func TestValidateStruct_EmptyRequiredSlice(t *testing.T) {
	type Config struct {
		Hosts []string `conf:"required"`
	}

	errs := validateStruct(reflect.ValueOf(Config{}))
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeRequired, errs[0].Code)
}

func TestValidateTags(t *testing.T) {
	type Target struct {
		URL string `validate:"required,url"`
	}
	type Config struct {
		Email   string   `validate:"omitempty,email"`
		Targets []Target `validate:"min=1,dive"`
	}

	t.Run("rule failures", func(t *testing.T) {
		errs, err := validateTags(&Config{
			Email:   "nope",
			Targets: []Target{{URL: "https://example.com"}, {URL: "::"}},
		})
		require.NoError(t, err)

		got := map[string]string{}
		for _, fe := range errs {
			got[fe.FieldPath] = fe.Message
		}
		assert.Equal(t, `failed "email" rule`, got["Email"])
		assert.Equal(t, `failed "url" rule`, got["Targets[1].URL"])
	})

	t.Run("rule parameter in message", func(t *testing.T) {
		errs, err := validateTags(&Config{})
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Equal(t, "Targets", errs[0].FieldPath)
		assert.Equal(t, ErrCodeValidate, errs[0].Code)
		assert.Equal(t, `failed "min" rule (1)`, errs[0].Message)
	})

	t.Run("valid config", func(t *testing.T) {
		errs, err := validateTags(&Config{Targets: []Target{{URL: "https://example.com"}}})
		require.NoError(t, err)
		assert.Empty(t, errs)
	})

	t.Run("non-struct is an error", func(t *testing.T) {
		_, err := validateTags(42)
		assert.Error(t, err)
	})
}

func TestTrimRootNamespace(t *testing.T) {
	assert.Equal(t, "Servers[0].Host", trimRootNamespace("Config.Servers[0].Host"))
	assert.Equal(t, "Config", trimRootNamespace("Config"))
}

func TestIsZeroValue(t *testing.T) {
	assert.True(t, isZeroValue(reflect.ValueOf("")))
	assert.True(t, isZeroValue(reflect.ValueOf(0)))
	assert.True(t, isZeroValue(reflect.ValueOf(false)))
	assert.True(t, isZeroValue(reflect.ValueOf([]int(nil))))
	assert.False(t, isZeroValue(reflect.ValueOf("x")))
	assert.False(t, isZeroValue(reflect.ValueOf(1.5)))
}
