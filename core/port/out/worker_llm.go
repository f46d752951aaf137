package out

import "context"

// CompletionOptions 언어 모델 호출 옵션
type CompletionOptions struct {
	Temperature float32
	MaxTokens   int
	JSONMode    bool // JSON object 응답만 허용
}

// LanguageModelClient 언어 모델 클라이언트 인터페이스
type LanguageModelClient interface {
	// Complete sends a system prompt and user content and returns the raw
	// completion text. In JSON mode the text is expected to be one object.
	Complete(ctx context.Context, systemPrompt, userContent string, opts CompletionOptions) (string, error)
}
