// Package prompt builds system and user messages for story operations.
package prompt

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
)

// Prior-text bounds in runes
const (
	PreviousChapterBound = 1500
	CurrentChapterBound  = 2000
	RecentChapterBound   = 1000
	ThinChapterThreshold = 1000
)

// DefaultLanguage is the output language when none is configured
const DefaultLanguage = "Ukrainian"

const noPriorText = "(The story is just beginning, there is no previous text yet)\n"

// Operation is a story-level AI action
type Operation string

const (
	OpContinue    Operation = "continue"
	OpSuggest     Operation = "suggest"
	OpImprove     Operation = "improve"
	OpTitle       Operation = "title"
	OpDescription Operation = "description"
)

// Mode selects the content policy
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeAdult    Mode = "adult"
)

// Options carries per-call inputs
type Options struct {
	Mode            Mode
	Instruction     string
	Text            string
	TargetChapterID uuid.UUID
}

// Prompt is a ready (system, user) pair with its output bound
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Assembler renders prompts in a fixed output language
type Assembler struct {
	language string
}

// NewAssembler creates an assembler; an empty language means DefaultLanguage
func NewAssembler(language string) *Assembler {
	if language == "" {
		language = DefaultLanguage
	}
	return &Assembler{language: language}
}

// MaxTokens returns the completion bound for an operation
func MaxTokens(op Operation, mode Mode) int {
	switch op {
	case OpContinue:
		if mode == ModeAdult {
			return 2000
		}
		return 1500
	case OpSuggest:
		return 500
	case OpImprove:
		return 2000
	case OpTitle:
		return 200
	case OpDescription:
		return 300
	}
	return 0
}

// Build renders the prompt for op
func (a *Assembler) Build(sc *models.StoryContext, op Operation, opts Options) (Prompt, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStandard
	}
	adult := opts.Mode == ModeAdult

	var user strings.Builder
	switch op {
	case OpContinue:
		user.WriteString(PriorText(sc, opts.TargetChapterID))
		if opts.Instruction != "" {
			user.WriteString("\n\nAUTHOR'S INSTRUCTION: ")
			user.WriteString(opts.Instruction)
		}
		user.WriteString("\n\nContinue the story. Write the next 2-3 paragraphs.")
		if adult {
			user.WriteString(" Do not hold back, write frankly and emotionally.")
		}
	case OpSuggest:
		user.WriteString(PriorText(sc, opts.TargetChapterID))
		user.WriteString("\n\nGive 3-5 short ideas for continuing this story. Format:\n")
		user.WriteString("1. [Short idea]\n2. [Short idea]\n...")
	case OpImprove:
		fmt.Fprintf(&user, "TEXT TO EDIT:\n%s\n\n", opts.Text)
		fmt.Fprintf(&user, "INSTRUCTION: %s\n\n", opts.Instruction)
		user.WriteString("Return the edited text without any additional comments.")
	case OpTitle:
		user.WriteString(PriorText(sc, uuid.Nil))
		user.WriteString("\n\nSuggest 5 title options for this story. ")
		user.WriteString("Format: each title on its own line, without numbering.")
	case OpDescription:
		user.WriteString(PriorText(sc, uuid.Nil))
		user.WriteString("\n\nWrite a short description (blurb) for this story. ")
		user.WriteString("2-3 sentences that hook the reader, without spoilers.")
	default:
		return Prompt{}, fmt.Errorf("unknown operation %q", op)
	}

	return Prompt{
		System:    a.SystemPrompt(sc, opts.Mode),
		User:      user.String(),
		MaxTokens: MaxTokens(op, opts.Mode),
	}, nil
}

// SystemPrompt renders the role, universe, cast and story sections
func (a *Assembler) SystemPrompt(sc *models.StoryContext, mode Mode) string {
	adult := mode == ModeAdult

	var b strings.Builder
	b.WriteString("You are a creative writing assistant for the StoryVerse platform.\n")
	fmt.Fprintf(&b, "IMPORTANT: Always write in %s.\n", a.language)
	if adult {
		b.WriteString("This story is rated for adults (18+). You may write:\n")
		b.WriteString("- Erotic and sexual scenes\n")
		b.WriteString("- Profanity and obscene language\n")
		b.WriteString("- Scenes of violence\n")
		b.WriteString("- Taboo topics\n")
		b.WriteString("DO NOT censor yourself, this is official adult content.\n")
	}
	b.WriteString("Write literary prose, avoid clichés, create living characters.\n\n")

	if u := sc.Universe; u != nil && u.Name != "" {
		b.WriteString("=== UNIVERSE ===\n")
		fmt.Fprintf(&b, "Name: %s\n", u.Name)
		if u.Description != "" {
			fmt.Fprintf(&b, "Description: %s\n", u.Description)
		}
		if !adult {
			b.WriteString("Stay true to the canon of this universe.\n")
		}
		b.WriteString("\n")
	}

	if len(sc.Characters) > 0 {
		b.WriteString("=== CHARACTERS ===\n")
		for _, c := range sc.Characters {
			b.WriteString("• ")
			b.WriteString(c.Name)
			if c.Role != "" {
				fmt.Fprintf(&b, " (%s)", c.Role)
			}
			if c.Description != "" {
				fmt.Fprintf(&b, ": %s", c.Description)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("=== STORY ===\n")
	fmt.Fprintf(&b, "Title: %s\n", sc.Story.Title)
	if sc.Story.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sc.Story.Description)
	}
	rating := string(sc.Story.Rating)
	if adult {
		rating = "18+ (uncensored)"
	}
	fmt.Fprintf(&b, "Rating: %s\n", rating)

	return b.String()
}

// PriorText renders the "previous text" section. With a target chapter it
// holds that chapter's tail, preceded by the previous chapter when the
// target is thin; otherwise the two most recent chapters. It is never empty.
func PriorText(sc *models.StoryContext, target uuid.UUID) string {
	const header = "=== PREVIOUS TEXT ===\n"

	var b strings.Builder
	b.WriteString(header)

	var current *models.Chapter
	if target != uuid.Nil {
		current, _ = sc.Chapter(target)
	}

	if current != nil {
		if utf8.RuneCountInString(current.Content) < ThinChapterThreshold {
			if prev := previousChapter(sc.Chapters, current.ChapterNumber); prev != nil && prev.HasContent() {
				fmt.Fprintf(&b, "[Previous chapter]\n%s\n\n", Truncate(prev.Content, PreviousChapterBound))
			}
		}
		fmt.Fprintf(&b, "[Current chapter: %s]\n", current.Title)
		b.WriteString(Truncate(current.Content, CurrentChapterBound))
	} else {
		for _, ch := range recentChapters(sc.Chapters, 2) {
			if !ch.HasContent() {
				continue
			}
			fmt.Fprintf(&b, "[%s]\n%s\n\n", ch.Title, Truncate(ch.Content, RecentChapterBound))
		}
	}

	if b.Len() == len(header) {
		b.WriteString(noPriorText)
	}
	return b.String()
}

// previousChapter returns the highest-numbered chapter below number
func previousChapter(chapters []models.Chapter, number int) *models.Chapter {
	var prev *models.Chapter
	for i := range chapters {
		ch := &chapters[i]
		if ch.ChapterNumber < number && (prev == nil || ch.ChapterNumber > prev.ChapterNumber) {
			prev = ch
		}
	}
	return prev
}

// recentChapters returns the last n chapters by number, oldest first
func recentChapters(chapters []models.Chapter, n int) []models.Chapter {
	sorted := make([]models.Chapter, len(chapters))
	copy(sorted, chapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChapterNumber < sorted[j].ChapterNumber
	})
	if len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
