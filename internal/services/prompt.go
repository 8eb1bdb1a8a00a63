package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/ki-backend/internal/types"
)

// DefaultAgentPersonality is the built-in system personality, used when
// neither the document nor the user settings carry a custom prompt.
const DefaultAgentPersonality = `You are a Thinking Partner helping someone develop their ideas in a document editor.

Your role is to be a **mirror** - reflecting the user's thinking back to them and helping them explore their ideas more deeply. You are NOT a ghostwriter or content generator. Your job is to help the user do their own thinking, not to do it for them.

## Your Approach

1. **Reflect and Clarify**
   - Mirror back what you're hearing in their thinking
   - Ask clarifying questions to help them explore deeper
   - Point out interesting tensions or patterns you notice

2. **Explore Connections**
   - Connect their current writing to their original voice note insights
   - Identify themes or threads running through their thinking
   - Suggest related areas of curiosity they might explore

3. **Challenge Gently**
   - Point out assumptions that might be worth examining
   - Ask "what if" questions to open new directions
   - Highlight contradictions or gaps in their reasoning

4. **Suggest Structure (When Asked)**
   - Propose ways to organize their thinking
   - Suggest frameworks that might help clarify their ideas
   - Offer alternative angles or perspectives to consider

5. **Synthesize Across Time (With Capture Database)**
   - Reference specific captures by date when relevant
   - Identify evolution of ideas over time periods
   - Connect past insights to current thinking
   - Point out patterns or recurring themes across captures

6. **Story Distillation (When Requested)**
   - Help craft narratives from their actual journey captured in voice notes
   - Suggest story arcs based on chronological progression
   - Reference specific moments/dates from their capture history
   - Help them see the bigger picture and transformation over time
   - Quote their own words back to them from specific captures

## Guidelines

- **Be conversational and concise** - 2-3 paragraphs max per response
- **Reference specifics** - Quote back their exact words or insights naturally
  - Example: "You mentioned '[specific phrase]' - what did you mean by that?"
  - When referencing captures: "On [date], you captured: '[quote]' - how does that connect to what you're exploring now?"
- **Ask more than you tell** - Questions are more powerful than statements
- **Use the capture database wisely** - Reference it when it adds genuine value, not just to show you have access to it
- **When suggesting text**, format it in a markdown code block so they can easily copy it:
  ` + "```" + `
  [suggested text here]
  ` + "```" + `
- **Never insert content automatically** - always present suggestions for their review
- **Stay curious** - Assume they know more about their topic than you do
- **Embrace uncertainty** - It's okay to say "I'm not sure" or "What do you think?"

## What NOT to Do

- Don't write their document for them
- Don't make assumptions about what they "should" write
- Don't provide generic advice or platitudes
- Don't overwhelm them with too many suggestions at once
- Don't ignore the context of their voice note or previous insights

Remember: You're helping them **develop their own thinking**, not doing the thinking for them. Be a mirror, not a megaphone.`

type contentNode struct {
	Type    string        `json:"type"`
	Text    string        `json:"text"`
	Content []contentNode `json:"content"`
}

func isBlockNode(nodeType string) bool {
	switch nodeType {
	case "paragraph", "heading", "bulletList", "orderedList":
		return true
	}
	return false
}

// LinearizeContent flattens the editor's rich-text node tree into plain text.
// Text leaves are emitted verbatim, hard breaks become newlines, and block
// containers are followed by a blank line. Deterministic for identical input.
func LinearizeContent(content datatypes.JSON) string {
	if len(content) == 0 {
		return ""
	}
	var root contentNode
	if err := json.Unmarshal(content, &root); err != nil {
		return ""
	}
	if len(root.Content) == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(node contentNode)
	walk = func(node contentNode) {
		switch {
		case node.Type == "text":
			b.WriteString(node.Text)
		case node.Type == "hardBreak":
			b.WriteString("\n")
		case len(node.Content) > 0:
			for _, child := range node.Content {
				walk(child)
			}
			if isBlockNode(node.Type) {
				b.WriteString("\n\n")
			}
		}
	}
	for _, node := range root.Content {
		walk(node)
	}
	return strings.TrimSpace(b.String())
}

// InsightItem is the reduced insight shape rendered into prompts.
type InsightItem struct {
	Type    string
	Content string
}

// PromptContext carries everything the assembler folds into the system prompt.
type PromptContext struct {
	DocumentTitle   string
	DocumentContent string
	Transcription   string
	Insights        []InsightItem
	History         []*types.Message
	CaptureDatabase []*types.Capture
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func noteTypeLabel(noteType string) string {
	switch noteType {
	case "intention":
		return "Morning Intention"
	case "reflection":
		return "Evening Reflection"
	}
	return "Daily Capture"
}

func captureDate(capture *types.Capture) string {
	if capture.LogDate != nil {
		return capture.LogDate.Format("2006-01-02")
	}
	return capture.CreatedAt.UTC().Format("2006-01-02")
}

// BuildThinkingPartnerPrompt assembles the full system prompt: personality,
// current document, linked voice-note context, relevant capture history, and
// recent conversation turns. Pure; identical inputs yield identical output.
func BuildThinkingPartnerPrompt(personality string, pc PromptContext) string {
	title := pc.DocumentTitle
	if title == "" {
		title = "Untitled Document"
	}
	body := pc.DocumentContent
	if body == "" {
		body = "(Document is empty - user is just starting to write)"
	}

	var contextSection strings.Builder
	fmt.Fprintf(&contextSection, "## Current Document\n\n**Title:** %s\n\n**Content:**\n%s\n", title, body)

	if pc.Transcription != "" || len(pc.Insights) > 0 {
		contextSection.WriteString("\n## Original Voice Note Context\n")

		if pc.Transcription != "" {
			fmt.Fprintf(&contextSection, "\n**Original Transcription:**\n\"%s\"\n", pc.Transcription)
		}

		if len(pc.Insights) > 0 {
			contextSection.WriteString("\n**Extracted Insights:**\n")

			// Group by category, keeping first-seen category order.
			var order []string
			grouped := map[string][]string{}
			for _, insight := range pc.Insights {
				if _, seen := grouped[insight.Type]; !seen {
					order = append(order, insight.Type)
				}
				grouped[insight.Type] = append(grouped[insight.Type], insight.Content)
			}
			for _, insightType := range order {
				fmt.Fprintf(&contextSection, "\n**%ss:**\n", capitalize(insightType))
				for _, item := range grouped[insightType] {
					fmt.Fprintf(&contextSection, "- %s\n", item)
				}
			}
		}
	}

	var captureSection strings.Builder
	if len(pc.CaptureDatabase) > 0 {
		captureSection.WriteString("\n## Thought Capture Database\n\n")
		fmt.Fprintf(&captureSection, "You have access to %d relevant thought captures from the user's history. These are actual voice notes they've recorded, providing rich context for understanding their thinking journey.\n\n", len(pc.CaptureDatabase))

		for i, capture := range pc.CaptureDatabase {
			fmt.Fprintf(&captureSection, "### %d. [%s] %s\n", i+1, captureDate(capture), noteTypeLabel(capture.NoteType))

			if capture.Transcription != nil && *capture.Transcription != "" {
				fmt.Fprintf(&captureSection, "**Transcription:** \"%s\"\n", truncateRunes(*capture.Transcription, 300))
			}

			if len(capture.Insights) > 0 {
				captureSection.WriteString("**Insights:**\n")
				for _, insight := range capture.Insights {
					fmt.Fprintf(&captureSection, "- [%s] %s\n", insight.Type, insight.Content)
				}
			}

			captureSection.WriteString("\n")
		}
	}

	var historySection strings.Builder
	if len(pc.History) > 0 {
		historySection.WriteString("\n## Previous Conversation\n\n")
		for _, msg := range pc.History {
			label := "Assistant"
			if msg.Role == types.MessageRoleUser {
				label = "User"
			}
			fmt.Fprintf(&historySection, "**%s:** %s\n\n", label, msg.Content)
		}
	}

	return personality + "\n\n" +
		contextSection.String() + "\n" +
		captureSection.String() + "\n" +
		historySection.String() + "\n\n---\n\nNow respond to the user's latest message with curiosity and attention to their specific context."
}

var nonWordRe = regexp.MustCompile(`[^a-zA-Z0-9_\s]`)

var keywordStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "should": {},
	"could": {}, "can": {}, "may": {}, "might": {}, "must": {},
	"i": {}, "you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {},
	"me": {}, "him": {}, "her": {}, "us": {}, "them": {},
	"my": {}, "your": {}, "his": {}, "its": {}, "our": {}, "their": {},
	"this": {}, "that": {}, "these": {}, "those": {},
	"what": {}, "which": {}, "who": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"help": {}, "tell": {}, "show": {}, "find": {},
}

// ExtractKeywords pulls unique lowercase words longer than two characters out
// of the message, with common stop words removed. Order follows first
// occurrence in the message.
func ExtractKeywords(message string) []string {
	cleaned := nonWordRe.ReplaceAllString(strings.ToLower(message), " ")
	seen := map[string]struct{}{}
	var out []string
	for _, word := range strings.Fields(cleaned) {
		if len(word) <= 2 {
			continue
		}
		if _, stop := keywordStopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

// FilterRelevantCaptures selects captures worth including in the prompt: the
// five most recent plus the top ten keyword matches against the user message,
// deduplicated, capped at fifteen. The document's own source capture is
// excluded since it already appears in the voice-note section. Captures are
// expected newest-first.
func FilterRelevantCaptures(captures []*types.Capture, userMessage string, excludeCaptureID *uuid.UUID) []*types.Capture {
	if len(captures) == 0 {
		return nil
	}

	excluded := func(c *types.Capture) bool {
		return excludeCaptureID != nil && c.ID == *excludeCaptureID
	}

	var recent []*types.Capture
	for _, c := range captures {
		if excluded(c) {
			continue
		}
		recent = append(recent, c)
		if len(recent) == 5 {
			break
		}
	}

	keywords := ExtractKeywords(userMessage)
	var keywordMatches []*types.Capture
	if len(keywords) > 0 {
		type scored struct {
			capture *types.Capture
			score   int
			index   int
		}
		var candidates []scored
		for i, c := range captures {
			if excluded(c) {
				continue
			}
			transcription := ""
			if c.Transcription != nil {
				transcription = strings.ToLower(*c.Transcription)
			}
			var insightParts []string
			for _, insight := range c.Insights {
				insightParts = append(insightParts, strings.ToLower(insight.Content))
			}
			insightsText := strings.Join(insightParts, " ")

			score := 0
			for _, keyword := range keywords {
				score += strings.Count(transcription, keyword) * 2
				score += strings.Count(insightsText, keyword)
			}
			if score > 0 {
				candidates = append(candidates, scored{capture: c, score: score, index: i})
			}
		}
		sort.SliceStable(candidates, func(a, b int) bool {
			if candidates[a].score != candidates[b].score {
				return candidates[a].score > candidates[b].score
			}
			return candidates[a].index < candidates[b].index
		})
		if len(candidates) > 10 {
			candidates = candidates[:10]
		}
		for _, item := range candidates {
			keywordMatches = append(keywordMatches, item.capture)
		}
	}

	seen := map[uuid.UUID]struct{}{}
	var combined []*types.Capture
	for _, c := range append(append([]*types.Capture{}, recent...), keywordMatches...) {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		combined = append(combined, c)
		if len(combined) == 15 {
			break
		}
	}
	return combined
}
