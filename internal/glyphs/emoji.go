package glyphs

import (
	"github.com/forPelevin/gomoji"
)

// EmojiMatcher strips every Unicode emoji rather than a fixed set.
type EmojiMatcher struct{}

func NewEmojiMatcher() EmojiMatcher { return EmojiMatcher{} }

func (EmojiMatcher) Name() string { return "emoji" }

func (EmojiMatcher) Contains(text string) bool {
	return gomoji.ContainsEmoji(text)
}

func (EmojiMatcher) Strip(text string) (string, int) {
	// CollectAll keeps repeats, so the count matches what RemoveEmojis deletes
	found := gomoji.CollectAll(text)
	if len(found) == 0 {
		return text, 0
	}
	return gomoji.RemoveEmojis(text), len(found)
}
