package responder

import (
	"context"
	"fmt"
	"log"

	"github.com/muser-music/muser/backend/internal/config"
)

// New builds the responder named by the chat configuration. When the chat
// model cannot be created the stub is used instead, as the chat stays usable
// without a model.
func New(ctx context.Context, cfg *config.Config) Responder {
	if cfg.Chat.Responder != config.ResponderLLM {
		log.Println("[responder] using stub responder")
		return Stub{}
	}

	llm, err := newLLMFromConfig(ctx, cfg)
	if err != nil {
		log.Printf("[responder] warning: %v", err)
		log.Println("[responder] falling back to stub responder - check the Ark model environment variables")
		return Stub{}
	}

	log.Printf("[responder] using llm responder model=%s stream=%t", cfg.AI.Model, cfg.AI.StreamResponse)
	return llm
}

func newLLMFromConfig(ctx context.Context, cfg *config.Config) (*LLM, error) {
	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewLLM(ctx, chatModel, LLMConfig{
		HistoryLimit: cfg.Chat.HistoryLimit,
		Stream:       cfg.AI.StreamResponse,
	})
}
