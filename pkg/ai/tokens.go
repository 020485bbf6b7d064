package ai

import (
	"raven/internal/util"

	"github.com/pkoukk/tiktoken-go"
)

const defaultEmbedMaxTokens = 512

// TruncateToTokenBudget trims text to at most AI_EMBED_MAX_TOKENS tokens
// under the o200k_base encoding, so oversized inputs do not overflow the
// embedding model's context. Text within budget is returned unchanged, as is
// any text the tokenizer cannot process.
func TruncateToTokenBudget(text string) string {
	maxTokens := int(util.GetEnvNumeric("AI_EMBED_MAX_TOKENS", defaultEmbedMaxTokens))
	if maxTokens <= 0 {
		return text
	}

	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		return text
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return enc.Decode(tokens[:maxTokens])
}
