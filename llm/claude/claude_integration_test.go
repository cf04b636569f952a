package claude

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	llmtesting "github.com/ArianneAlonso/tutor-math-mcp/llm/testing"
)

func TestClaudeIntegration(t *testing.T) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		t.Skip("ANTHROPIC_API_KEY not set")
	}
	model := os.Getenv("CLAUDE_MODEL")
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	client, err := NewClient(AnthropicURL, key, WithModel(model))
	require.NoError(t, err)

	t.Run("SolvesWithTools", func(t *testing.T) { llmtesting.TestSolvesWithTools(t, client) })
	t.Run("TokenUsageCumulative", func(t *testing.T) { llmtesting.TestTokenUsageCumulative(t, client) })
	t.Run("NoDuplicateMessages", func(t *testing.T) { llmtesting.TestNoDuplicateMessages(t, client) })
	t.Run("JSONResponseFormat", func(t *testing.T) { llmtesting.TestJSONResponseFormat(t, client) })
}
