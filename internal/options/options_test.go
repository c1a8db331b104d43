package options_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashwarden/flashwarden/internal/options"
)

func TestParse(t *testing.T) {
	t.Parallel()

	t.Run("boolean field", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("inputs:\n  foo:\n    type: boolean\n    default: true\n")
		require.NoError(t, err)
		require.Len(t, doc.Fields, 1)
		foo := doc.Fields["foo"]
		require.Equal(t, "boolean", foo.Type)
		require.Equal(t, true, foo.Default)
	})

	t.Run("choice list", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("inputs:\n  bar:\n    options:\n      - a\n      - b\n")
		require.NoError(t, err)
		bar := doc.Fields["bar"]
		require.True(t, bar.HasOptions)
		require.Equal(t, []any{"a", "b"}, bar.Options)
	})

	t.Run("full document", func(t *testing.T) {
		t.Parallel()
		text := `name: build and flash
on: workflow_dispatch
inputs:
  image:
    description: "image to flash"
    required: true
    default: "stable"
  variant:
    type: choice
    options:
      - vanilla
      - debug
      - null
  dry_run:
    type: boolean
    default: false
`
		doc, err := options.Parse(text)
		require.NoError(t, err)
		require.Equal(t, []string{"image", "variant", "dry_run"}, doc.Order)

		image := doc.Fields["image"]
		require.Equal(t, "image to flash", image.Description)
		require.True(t, image.Required)
		require.Equal(t, "stable", image.Default)

		variant := doc.Fields["variant"]
		require.Equal(t, "choice", variant.Type)
		require.Equal(t, []any{"vanilla", "debug", nil}, variant.Options)

		dry := doc.Fields["dry_run"]
		require.Equal(t, false, dry.Default)
		require.False(t, dry.Required)
	})

	t.Run("empty inputs terminates early", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("inputs:\n  {}\n  ignored:\n    type: boolean\n")
		require.NoError(t, err)
		require.Empty(t, doc.Fields)
	})

	t.Run("region before inputs is ignored", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("jobs:\n  flash:\n    runs-on: self-hosted\ninputs:\n  foo:\n    type: string\n")
		require.NoError(t, err)
		require.Equal(t, []string{"foo"}, doc.Order)
	})

	t.Run("no inputs section", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("jobs:\n  flash:\n    runs-on: self-hosted\n")
		require.NoError(t, err)
		require.Empty(t, doc.Fields)
	})

	t.Run("malformed lines are skipped", func(t *testing.T) {
		t.Parallel()
		text := "inputs:\n" +
			"  ok:\n" +
			"    type: boolean\n" +
			"      - stray list item\n" +
			"  broken without colon\n" +
			"  also_ok:\n" +
			"    default: 3\n"
		doc, err := options.Parse(text)
		require.NoError(t, err)
		require.Equal(t, []string{"ok", "also_ok"}, doc.Order)
		require.Equal(t, "3", doc.Fields["also_ok"].Default)
	})

	t.Run("quoted scalar with escapes", func(t *testing.T) {
		t.Parallel()
		doc, err := options.Parse("inputs:\n  foo:\n    description: \"a\\nb\"\n")
		require.NoError(t, err)
		require.Equal(t, "a\nb", doc.Fields["foo"].Description)
	})

	t.Run("corrupt document", func(t *testing.T) {
		t.Parallel()
		_, err := options.Parse("inputs:\n  foo\xff\xfe:\n")
		require.ErrorIs(t, err, options.ErrSchemaCorrupt)
	})
}

func TestParseOptionItemsWithColons(t *testing.T) {
	t.Parallel()
	doc, err := options.Parse("inputs:\n  target:\n    options:\n      - https://example.com/a\n      - plain\n")
	require.NoError(t, err)
	require.Equal(t, []any{"https://example.com/a", "plain"}, doc.Fields["target"].Options)
}
