package tutor

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmtesting "github.com/ArianneAlonso/tutor-math-mcp/llm/testing"
)

func TestTruncateTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"", 10, DefaultTitle},
		{"   \n\t ", 10, DefaultTitle},
		{"Resolver  x² - 4 = 0\npor favor", 60, "Resolver x² - 4 = 0 por favor"},
		{"ecuaciones cuadráticas", 10, "ecuacione…"},
		{"abc", 3, "abc"},
	}
	for _, tt := range tests {
		got := TruncateTitle(tt.text, tt.limit)
		assert.Equal(t, tt.want, got)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.limit, utf8.RuneCountInString(DefaultTitle)))
	}
}

func TestTruncateTitler(t *testing.T) {
	t.Parallel()

	title, err := TruncateTitler{}.Title(context.Background(), strings.Repeat("a", 100))
	require.NoError(t, err)
	assert.Equal(t, maxTitleRunes, utf8.RuneCountInString(title))

	title, err = TruncateTitler{MaxRunes: 5}.Title(context.Background(), "fracciones")
	require.NoError(t, err)
	assert.Equal(t, "frac…", title)
}

func TestLLMTitler(t *testing.T) {
	t.Parallel()

	fake := llmtesting.NewFakeClient(llmtesting.Turn{Text: `  "Ecuación lineal con fracciones"  `})
	titler := NewLLMTitler(fake)

	title, err := titler.Title(context.Background(), "¿cómo resuelvo x/2 + 3 = 5?")
	require.NoError(t, err)
	assert.Equal(t, "Ecuación lineal con fracciones", title)

	reqs := fake.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Messages[0].GetText(), "x/2 + 3 = 5")
	assert.Equal(t, 64, reqs[0].Options.MaxTokens)

	title, err = titler.Title(context.Background(), "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, title)
	assert.Len(t, fake.Requests(), 1, "empty messages do not call the model")
}

func TestLLMTitlerErrors(t *testing.T) {
	t.Parallel()

	fake := llmtesting.NewFakeClient(llmtesting.Turn{Err: errors.New("sin cuota")}, llmtesting.Turn{Text: `""`})
	titler := NewLLMTitler(fake)
	titler.SetPrompt("Pon un título.")

	_, err := titler.Title(context.Background(), "hola")
	assert.ErrorContains(t, err, "sin cuota")

	_, err = titler.Title(context.Background(), "hola")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(fake.Requests()[1].Messages[0].GetText(), "Pon un título."))
}
