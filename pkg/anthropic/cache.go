package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint at the given TTL ("5m" or "1h"). Prompts shared by every request
// of a stage, such as the synthesis instructions, are sent this way so
// repeated questions read them from the prompt cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
