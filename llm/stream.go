package llm

import "context"

// syntheticStream drives gen.Generate and replays the single result
// as a one-chunk stream, preserving the Stream contract for providers
// whose transport does not merit hand-rolled incremental decoding.
func syntheticStream(ctx context.Context, gen interface {
	Generate(context.Context, Request) (Response, error)
}, req Request) (<-chan Chunk, error) {
	ch := make(chan Chunk, 1)
	go func() {
		defer close(ch)
		resp, err := gen.Generate(ctx, req)
		if err != nil {
			ch <- Chunk{Done: true, Err: err}
			return
		}
		if resp.Type == TextResponse && resp.Content != "" {
			ch <- Chunk{DeltaContent: resp.Content}
		}
		for _, tc := range resp.ToolCalls {
			tc := tc
			ch <- Chunk{DeltaToolCall: &tc}
		}
		final := resp
		ch <- Chunk{Done: true, Final: &final}
	}()
	return ch, nil
}
