package inference

import (
	"context"
	"iter"

	"github.com/openai/openai-go/v3"
)

// Generator abstracts a text-completion provider. Stream yields text
// fragments as the model produces them; end of iteration is the only
// termination signal. Both methods accept optional provider parameters in
// OpenAI's parameter shape regardless of the backing provider.
type Generator interface {
	Generate(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
	Stream(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) iter.Seq2[string, error]
}
