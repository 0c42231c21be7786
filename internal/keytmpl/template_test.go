package keytmpl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s3gate/s3gate/errors"
)

func TestCompile(t *testing.T) {
	c := NewCompiler()

	t.Run("fields in order of appearance", func(t *testing.T) {
		tmpl, err := c.Compile("{a}/literal/{b}-{c}.csv")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, tmpl.Fields())
		assert.Equal(t, "{a}/literal/{b}-{c}.csv", tmpl.Raw())
	})

	t.Run("memoized per template string", func(t *testing.T) {
		first, err := c.Compile("{x}/{y}")
		require.NoError(t, err)
		second, err := c.Compile("{x}/{y}")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("escaped braces are literal", func(t *testing.T) {
		tmpl, err := c.Compile("{{raw}}/{x}")
		require.NoError(t, err)
		m := tmpl.Match("{raw}/value", false)
		require.True(t, m.Matched)
		assert.Equal(t, "value", m.Values["x"])
	})

	t.Run("syntax errors", func(t *testing.T) {
		for _, tmpl := range []string{"{unclosed", "closed}", "{}", "{bad name}", "{a-b}"} {
			_, err := c.Compile(tmpl)
			assert.ErrorIs(t, err, errors.ErrTemplateSyntax, "template %q", tmpl)
		}
	})

	t.Run("duplicate placeholder rejected", func(t *testing.T) {
		_, err := c.Compile("{a}/{a}")
		assert.ErrorIs(t, err, errors.ErrTemplateSyntax)
	})
}

func TestMatch(t *testing.T) {
	c := NewCompiler()
	tmpl, err := c.Compile("{dir}/{file}")
	require.NoError(t, err)

	t.Run("captures named values", func(t *testing.T) {
		m := tmpl.Match("reports/2021.csv", false)
		require.True(t, m.Matched)
		assert.Equal(t, map[string]string{"dir": "reports", "file": "2021.csv"}, m.Values)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		assert.False(t, tmpl.Match("flatfile.csv", false).Matched)
	})

	t.Run("unpack requires a packed extension", func(t *testing.T) {
		m := tmpl.Match("reports/2021.csv.gz", true)
		require.True(t, m.Matched)
		assert.Equal(t, "2021.csv", m.Values["file"])

		assert.False(t, tmpl.Match("reports/2021", true).Matched)
	})

	t.Run("literal dot is not a wildcard", func(t *testing.T) {
		lit, err := c.Compile("a.b/{x}")
		require.NoError(t, err)
		assert.True(t, lit.Match("a.b/1", false).Matched)
		assert.False(t, lit.Match("aXb/1", false).Matched)
	})
}

func TestRender(t *testing.T) {
	c := NewCompiler()
	tmpl, err := c.Compile("{b}/{a}")
	require.NoError(t, err)

	t.Run("substitutes values", func(t *testing.T) {
		out, err := tmpl.Render(map[string]string{"a": "1", "b": "2"})
		require.NoError(t, err)
		assert.Equal(t, "2/1", out)
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := tmpl.Render(map[string]string{"a": "1"})
		assert.ErrorIs(t, err, errors.ErrUnresolvedPlaceholder)
	})
}

func TestDefaultAttributes(t *testing.T) {
	// A Monday, so weekday is 0.
	now := time.Date(2021, 1, 4, 9, 30, 59, 0, time.UTC)
	attrs := DefaultAttributes(now)

	assert.Equal(t, "2021-01-04T09:30:59", attrs["datetime"])
	assert.Equal(t, "2021-01-04", attrs["date"])
	assert.Equal(t, "2021", attrs["year"])
	assert.Equal(t, "01", attrs["month"])
	assert.Equal(t, "04", attrs["day"])
	assert.Equal(t, "09", attrs["hour"])
	assert.Equal(t, "30", attrs["minute"])
	assert.Equal(t, "59", attrs["second"])
	assert.Equal(t, "0", attrs["weekday"])

	sunday := DefaultAttributes(time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "6", sunday["weekday"])
}

func TestFormatKey(t *testing.T) {
	c := NewCompiler()
	attrs := DefaultAttributes(time.Date(2021, 1, 4, 9, 30, 0, 0, time.UTC))

	tests := []struct {
		name        string
		key         string
		srcTemplate string
		dstTemplate string
		unpack      bool
		want        string
	}{
		{
			name: "no templates passes through",
			key:  "dir/file.csv",
			want: "dir/file.csv",
		},
		{
			name:        "identity roundtrip",
			key:         "x/y/z.csv",
			srcTemplate: "{a}/{b}/{rest}",
			dstTemplate: "{a}/{b}/{rest}",
			want:        "x/y/z.csv",
		},
		{
			name:        "reordered placeholders",
			key:         "x/y/z.csv",
			srcTemplate: "{a}/{b}/{rest}",
			dstTemplate: "{b}/{a}/{rest}",
			want:        "y/x/z.csv",
		},
		{
			name:        "frozen date attribute",
			key:         "raw/file.csv",
			srcTemplate: "raw/{rest}",
			dstTemplate: "{date}/{rest}",
			want:        "2021-01-04/file.csv",
		},
		{
			name:        "capture wins over attribute",
			key:         "2020-12-31/file.csv",
			srcTemplate: "{date}/{rest}",
			dstTemplate: "{date}/{rest}",
			want:        "2020-12-31/file.csv",
		},
		{
			name:        "attribute inserted before the extension",
			key:         "file.csv.gz",
			srcTemplate: "{rest}.{ext}",
			dstTemplate: "{rest}-{date}.{ext}",
			want:        "file-2021-01-04.csv.gz",
		},
		{
			name:        "unpack with structured templates",
			key:         "file.csv.gz",
			srcTemplate: "{rest}.{ext}",
			dstTemplate: "{rest}-x.{ext}",
			unpack:      true,
			want:        "file-x.csv",
		},
		{
			name:        "unpack strips one extension",
			key:         "dir/file-x.csv.gz",
			srcTemplate: "{all}",
			dstTemplate: "{all}",
			unpack:      true,
			want:        "dir/file-x.csv",
		},
		{
			name:   "unpack without templates uses catch-all",
			key:    "dir/file.csv.gz",
			unpack: true,
			want:   "dir/file.csv",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FormatKey(tt.key, tt.srcTemplate, tt.dstTemplate, tt.unpack, attrs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("key mismatch", func(t *testing.T) {
		_, err := c.FormatKey("other/1.csv", "data/{x}", "{x}", false, attrs)
		assert.ErrorIs(t, err, errors.ErrKeyMismatch)
	})

	t.Run("duplicate placeholder never yields a partial result", func(t *testing.T) {
		_, err := c.FormatKey("x/y", "{a}/{a}", "{a}/{a}", false, attrs)
		assert.ErrorIs(t, err, errors.ErrTemplateSyntax)
	})

	t.Run("unresolved destination placeholder", func(t *testing.T) {
		_, err := c.FormatKey("data/1.csv", "data/{x}", "{missing}/{x}", false, attrs)
		assert.ErrorIs(t, err, errors.ErrUnresolvedPlaceholder)
	})
}
