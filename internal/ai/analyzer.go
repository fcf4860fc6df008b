// Package ai generates short natural-language commentary for scored tokens.
package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"mintwatch/internal/models"
)

// Analyzer asks a chat model for a one-paragraph read on a scored token.
type Analyzer struct {
	client *openai.Client
	model  string
}

// New creates an Analyzer. An empty model selects GPT-4o mini.
func New(apiKey, model string) *Analyzer {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Analyzer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// Commentary returns a short assessment of the scored token. Callers treat
// errors as "no commentary" and send the alert without it.
func (a *Analyzer) Commentary(ctx context.Context, res models.ScoreResult) (string, error) {
	resp, err := a.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: a.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role: openai.ChatMessageRoleSystem,
					Content: "You are a crypto market analyst covering newly launched tokens. " +
						"Reply with a single short paragraph, no markdown, no financial advice disclaimers.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: buildPrompt(res),
				},
			},
			Temperature: 0.4,
			MaxTokens:   150,
		},
	)
	if err != nil {
		return "", fmt.Errorf("openai commentary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai commentary: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildPrompt renders the score result as a compact briefing for the model.
func buildPrompt(res models.ScoreResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assess this freshly launched token:\n")
	fmt.Fprintf(&b, "Symbol: %s (%s)\n", res.Symbol, res.Name)
	fmt.Fprintf(&b, "Heuristic score: %d/100 (%s)\n", res.Score, res.Verdict)
	fmt.Fprintf(&b, "Age: %ds, SOL in bonding curve: %.2f (%.1f%% to graduation)\n",
		res.AgeSeconds, res.SolInCurve, res.BondingPct)
	fmt.Fprintf(&b, "Buy velocity: %.3f SOL/min, replies: %d\n", res.VelocitySOL, res.ReplyCount)

	socials := make([]string, 0, 3)
	if res.HasTwitter {
		socials = append(socials, "twitter")
	}
	if res.HasTelegram {
		socials = append(socials, "telegram")
	}
	if res.HasWebsite {
		socials = append(socials, "website")
	}
	if len(socials) == 0 {
		b.WriteString("Socials: none\n")
	} else {
		fmt.Fprintf(&b, "Socials: %s\n", strings.Join(socials, ", "))
	}
	if res.Featured {
		b.WriteString("Currently featured on the launchpad front page.\n")
	}
	if res.Whale {
		b.WriteString("Unusually large curve inflow suggests whale participation.\n")
	}
	b.WriteString("Give a one-paragraph take on momentum and risk.")
	return b.String()
}
