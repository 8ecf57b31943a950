package responder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/muser-music/muser/backend/internal/model/chat"
)

const defaultHistoryLimit = 10

// LLMConfig tunes the LLM responder.
type LLMConfig struct {
	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string
	// HistoryLimit caps how many prior messages are sent as context.
	HistoryLimit int
	// Stream requests the reply as a stream and concatenates the chunks.
	Stream bool
}

// LLM answers through a chat model behind an eino chain.
type LLM struct {
	cfg   LLMConfig
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewLLM compiles the prompt chain around chatModel.
func NewLLM(ctx context.Context, chatModel model.ChatModel, cfg LLMConfig) (*LLM, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &LLM{cfg: cfg, chain: runnable}, nil
}

// Respond yields the model's answer as a single reply.
func (l *LLM) Respond(ctx context.Context, userText string, history []chat.Message) iter.Seq2[Reply, error] {
	return func(yield func(Reply, error) bool) {
		input := l.buildChainInput(userText, history)

		var (
			response *schema.Message
			err      error
		)
		if l.cfg.Stream {
			response, err = l.stream(ctx, input)
		} else {
			response, err = l.chain.Invoke(ctx, input)
			if err != nil {
				err = fmt.Errorf("failed to run chat chain: %w", err)
			}
		}
		if err != nil {
			yield(Reply{}, err)
			return
		}

		log.Printf("[responder] generated reply length=%d stream=%t", len(response.Content), l.cfg.Stream)
		yield(Reply{Text: response.Content}, nil)
	}
}

func (l *LLM) stream(ctx context.Context, input map[string]any) (*schema.Message, error) {
	stream, err := l.chain.Stream(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to stream chat chain output: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return nil, fmt.Errorf("chat stream recv failed: %w", recvErr)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
	}

	if len(chunks) == 0 {
		return &schema.Message{Role: schema.Assistant}, nil
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, fmt.Errorf("concat chat chunks failed: %w", err)
	}
	return response, nil
}

func (l *LLM) buildChainInput(userText string, history []chat.Message) map[string]any {
	return map[string]any{
		"system":  l.cfg.SystemPrompt,
		"history": l.buildHistoryMessages(history),
		"query":   userText,
	}
}

func (l *LLM) buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > l.cfg.HistoryLimit {
		startIdx = len(messages) - l.cfg.HistoryLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}

	return history
}
