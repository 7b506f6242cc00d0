package models

// DefaultModels is the built-in model table. Costs are stored per ten
// million tokens (a per-million price times ten).
func DefaultModels() []ModelEntry {
	return []ModelEntry{
		// OpenRouter pass-through names.
		{Name: "openai/gpt-4.1-mini", Provider: "open_router", InputCost: 4, OutputCost: 16, ContextTokens: 1047576},
		{Name: "openai/gpt-4.1", Provider: "open_router", InputCost: 20, OutputCost: 80, ContextTokens: 1047576},
		{Name: "anthropic/claude-sonnet-4", Provider: "open_router", InputCost: 30, OutputCost: 150, ContextTokens: 200000},
		{Name: "anthropic/claude-3.5-haiku", Provider: "open_router", InputCost: 8, OutputCost: 40, ContextTokens: 200000},
		{Name: "deepseek/deepseek-r1", Provider: "open_router", IsThink: true, InputCost: 5, OutputCost: 22, ContextTokens: 128000},

		// OpenAI direct.
		{Name: "gpt-4.1", Provider: "openai", InputCost: 20, OutputCost: 80, ContextTokens: 1047576},
		{Name: "gpt-4.1-mini", Provider: "openai", InputCost: 4, OutputCost: 16, ContextTokens: 1047576},
		{Name: "o4-mini", Provider: "openai", IsThink: true, InputCost: 11, OutputCost: 44, ContextTokens: 200000},

		// Anthropic direct.
		{Name: "claude-sonnet-4-0", Provider: "anthropic", InputCost: 30, OutputCost: 150, ContextTokens: 200000},
		{Name: "claude-3-5-haiku-latest", Provider: "anthropic", InputCost: 8, OutputCost: 40, ContextTokens: 200000},

		// Venice.
		{Name: "llama-3.3-70b", Provider: "venice", InputCost: 7, OutputCost: 28, ContextTokens: 65536},
		{Name: "qwen-2.5-coder-32b", Provider: "venice", InputCost: 5, OutputCost: 20, ContextTokens: 32768},
		{Name: "deepseek-r1-671b", Provider: "venice", IsThink: true, InputCost: 35, OutputCost: 140, ContextTokens: 131072},

		// DeepSeek direct.
		{Name: "deepseek-chat", Provider: "deepseek", InputCost: 3, OutputCost: 11, ContextTokens: 65536},
		{Name: "deepseek-reasoner", Provider: "deepseek", IsThink: true, InputCost: 6, OutputCost: 22, ContextTokens: 65536},
	}
}
