package classify

import (
	"fmt"
	"strings"
	"time"

	"github.com/fanbasehq/harvest-cli/internal/model"
)

const systemPrompt = `You are a WNBA statistics expert. You read social media posts and decide whether they describe a genuine individual milestone for a named player: a record, a first, a most, a youngest or fastest, or a historic achievement. Routine box score lines, general praise and team results are not milestones.

Reply with a single JSON object and nothing else:
{
  "is_milestone": boolean,
  "title": "brief milestone title",
  "value": "key stat or achievement",
  "categories": ["scoring", "assists", "rebounding", "steals", "blocks", "rookie", "league", "team", "award"],
  "description": "full context from the post",
  "previous_record": "previous record holder, if mentioned",
  "player_name": "the target player, only if the milestone is theirs",
  "date_context": "date or game context mentioned",
  "source_reliability": 0.0-1.0,
  "extracted_date": "YYYY-MM-DD when a date is stated or can be inferred from the box score",
  "date_confidence": 0.0-1.0,
  "milestone_confidence": 0.0-1.0,
  "attribution_confidence": 0.0-1.0,
  "date_source": "tweet_text" | "boxscore_analysis" | "tweet_published"
}

Only attribute a milestone to the target player when they are its sole achiever. Reject posts where another player "joins" the target player, where the target player is named only as a comparison ("the only other players to do this"), or where the post begins "Like <target player>, ...".

When box score context is provided and the milestone is a cumulative total, use the running season totals to find the game that crossed the threshold, and report date_source "boxscore_analysis".`

func userPrompt(post model.SourcePost, player, boxscoreContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target player: %q\n", player)
	if !post.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", post.CreatedAt.UTC().Format(time.RFC3339))
	}
	if post.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", post.URL)
	}
	fmt.Fprintf(&b, "\nPost:\n%s\n", post.Text)
	if boxscoreContext != "" {
		fmt.Fprintf(&b, "\nBox score context:\n%s\n", boxscoreContext)
	}
	return b.String()
}

// misattributed catches comparison phrasings the model sometimes credits to
// the target player.
func misattributed(text, player string) bool {
	lower := strings.ToLower(text)
	target := strings.ToLower(player)
	if !strings.Contains(lower, target) {
		return false
	}

	words := strings.Fields(lower)
	for i, w := range words {
		if i > 0 && w == "joins" {
			return true
		}
	}
	if strings.Contains(text, ": ") && (strings.Contains(lower, "only other") || strings.Contains(lower, "other players")) {
		return true
	}
	return strings.HasPrefix(lower, "like "+target)
}
