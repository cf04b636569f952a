package common

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/ArianneAlonso/tutor-math-mcp/chat"
	"github.com/ArianneAlonso/tutor-math-mcp/internal/logging"
)

// DefaultMaxToolRounds bounds the tool-calling loop when a client sets no limit.
const DefaultMaxToolRounds = 10

// ErrMaxToolRounds is returned when the model still requests tools after
// the last allowed round.
var ErrMaxToolRounds = errors.New("too many rounds of tool calls")

// Round sends the whole conversation to the provider and returns the
// model's reply and the usage of that request.
type Round func(ctx context.Context, systemPrompt string, msgs []chat.Message) (chat.Message, chat.TokenUsageDetails, error)

// RunToolLoop sends msg and keeps executing requested tool calls until the
// model answers without calls or maxRounds requests have been made. History
// is committed only when the loop succeeds.
func RunToolLoop(ctx context.Context, state *State, tools *Tools, msg chat.Message, maxRounds int, round Round) (chat.Message, error) {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}

	systemPrompt, history := state.History()
	pending := []chat.Message{msg}

	for i := range maxRounds {
		reply, usage, err := round(ctx, systemPrompt, slices.Concat(history, pending))
		if err != nil {
			return chat.Message{}, err
		}
		state.AddUsage(usage)
		reply.Role = chat.AssistantRole
		pending = append(pending, reply)

		calls := reply.GetToolCalls()
		if len(calls) == 0 {
			state.AppendMessages(pending...)
			return reply, nil
		}

		logger := logging.Logger()
		for _, call := range calls {
			logger.Debug("tool call", "round", i+1, "tool", call.Name, "args", string(call.Arguments))
		}

		resultMsg := chat.Message{Role: chat.ToolRole}
		for _, result := range tools.ExecuteCalls(ctx, calls) {
			if result.Error != "" {
				logger.Debug("tool call failed", "tool", result.Name, slog.String("err", result.Error))
			}
			resultMsg.AddToolResult(result)
		}
		pending = append(pending, resultMsg)

		if err := ctx.Err(); err != nil {
			return chat.Message{}, errors.Wrap(err, "tool loop")
		}
	}

	return chat.Message{}, errors.Wrapf(ErrMaxToolRounds, "after %d rounds", maxRounds)
}
