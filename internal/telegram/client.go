// Package telegram provides a client for sending alerts and handling bot
// commands via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mintwatch/internal/logger"
	"mintwatch/internal/models"
)

// Commands is the set of operations the bot exposes over chat commands.
type Commands interface {
	Status() (models.Health, models.Settings)
	Summary() models.PortfolioSummary
	SetMinScore(score int) error
	SetTradeAmount(amount float64) error
	SetPaused(paused bool) bool
	ToggleWatchAlerts() bool
	CloseTrade(mint string) (models.ClosedTrade, bool)
	Reset()
}

// Client handles Telegram notifications and command handling.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and
// dispatches bot commands to ops. It returns immediately; the goroutine stops
// when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context, ops Commands) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message, ops)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message, ops Commands) {
	switch msg.Command() {
	case "ping":
		c.reply(msg.Chat.ID, "Pong")
	case "status":
		health, settings := ops.Status()
		c.reply(msg.Chat.ID, formatStatus(health, settings))
	case "summary":
		c.reply(msg.Chat.ID, formatSummary(ops.Summary()))
	case "minscore":
		score, err := strconv.Atoi(strings.TrimSpace(msg.CommandArguments()))
		if err != nil {
			c.reply(msg.Chat.ID, "Usage: /minscore <0-100>")
			return
		}
		if err := ops.SetMinScore(score); err != nil {
			c.reply(msg.Chat.ID, err.Error())
			return
		}
		c.reply(msg.Chat.ID, fmt.Sprintf("Minimum score set to %d", score))
	case "amount":
		amount, err := strconv.ParseFloat(strings.TrimSpace(msg.CommandArguments()), 64)
		if err != nil {
			c.reply(msg.Chat.ID, "Usage: /amount <SOL>")
			return
		}
		if err := ops.SetTradeAmount(amount); err != nil {
			c.reply(msg.Chat.ID, err.Error())
			return
		}
		c.reply(msg.Chat.ID, fmt.Sprintf("Trade amount set to %s SOL", formatSOL(amount)))
	case "pause":
		ops.SetPaused(true)
		c.reply(msg.Chat.ID, "Paused. New tokens will be ignored.")
	case "resume":
		ops.SetPaused(false)
		c.reply(msg.Chat.ID, "Resumed.")
	case "watchalerts":
		if ops.ToggleWatchAlerts() {
			c.reply(msg.Chat.ID, "WATCH alerts enabled")
		} else {
			c.reply(msg.Chat.ID, "WATCH alerts disabled")
		}
	case "close":
		mint := strings.TrimSpace(msg.CommandArguments())
		if mint == "" {
			c.reply(msg.Chat.ID, "Usage: /close <mint>")
			return
		}
		closed, ok := ops.CloseTrade(mint)
		if !ok {
			c.reply(msg.Chat.ID, fmt.Sprintf("No open trade for %s", mint))
			return
		}
		c.reply(msg.Chat.ID, fmt.Sprintf("Closed %s at %s", closed.Symbol, formatPct(closed.PnlPct)))
	case "reset":
		ops.Reset()
		c.reply(msg.Chat.ID, "Portfolio reset. Dedup history kept.")
	}
}

// reply sends a plain-text command response without retry.
func (c *Client) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.bot.Send(msg); err != nil {
		logger.Warn("Failed to send command reply: %v", err)
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a monitoring error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Monitoring error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Monitoring recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendTokenAlert sends a scored-token alert, with optional AI commentary.
func (c *Client) SendTokenAlert(res models.ScoreResult, commentary string) error {
	return c.sendMarkdownV2(formatTokenAlert(res, commentary))
}

// TradeOpened announces a new simulated position.
func (c *Client) TradeOpened(trade models.Trade, res models.ScoreResult) {
	text := fmt.Sprintf("💰 *Opened %s*\nEntry mcap: %s\nSize: %s SOL \\(score %d\\)",
		escapeMarkdownV2(trade.Symbol),
		escapeMarkdownV2(formatUSD(trade.EntryMcap)),
		escapeMarkdownV2(formatSOL(trade.SolAmount)),
		trade.Score)
	if err := c.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to send trade-opened alert: %v", err)
	}
}

// PnLBandCrossed announces a P&L band crossing for an open position.
func (c *Client) PnLBandCrossed(trade models.Trade, pnlPct float64, step int) {
	emoji := "📈"
	if step < 0 {
		emoji = "📉"
	}
	text := fmt.Sprintf("%s *%s* now at %s\nMcap: %s \\(peak %s\\)",
		emoji,
		escapeMarkdownV2(trade.Symbol),
		escapeMarkdownV2(formatPct(pnlPct)),
		escapeMarkdownV2(formatUSD(trade.CurrentMcap)),
		escapeMarkdownV2(formatUSD(trade.PeakMcap)))
	if err := c.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to send band alert: %v", err)
	}
}

// Graduated announces a bonding-curve graduation.
func (c *Client) Graduated(trade models.Trade) {
	text := fmt.Sprintf("🎓 *%s graduated* to the open market\nPosition will be closed\\.",
		escapeMarkdownV2(trade.Symbol))
	if err := c.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to send graduation alert: %v", err)
	}
}

// TradeClosed announces a closed position with its final P&L.
func (c *Client) TradeClosed(closed models.ClosedTrade) {
	emoji := "🟢"
	if closed.PnlSOL < 0 {
		emoji = "🔴"
	}
	text := fmt.Sprintf("%s *Closed %s* \\(%s\\)\nP\\&L: %s \\(%s SOL, %s\\)\nHeld: %s",
		emoji,
		escapeMarkdownV2(closed.Symbol),
		escapeMarkdownV2(string(closed.Reason)),
		escapeMarkdownV2(formatPct(closed.PnlPct)),
		escapeMarkdownV2(formatSignedSOL(closed.PnlSOL)),
		escapeMarkdownV2(formatUSDSigned(closed.PnlUSD)),
		escapeMarkdownV2(formatDuration(closed.DurationMs)))
	if err := c.sendMarkdownV2(text); err != nil {
		logger.Warn("Failed to send trade-closed alert: %v", err)
	}
}

// formatTokenAlert formats a scored token into a Telegram MarkdownV2 message.
func formatTokenAlert(res models.ScoreResult, commentary string) string {
	emoji := "👀"
	if res.Verdict == models.VerdictBuy {
		emoji = "🚨"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s %s*\n", emoji, res.Verdict, escapeMarkdownV2(res.Symbol))
	if res.Name != "" && res.Name != res.Symbol {
		fmt.Fprintf(&b, "_%s_\n", escapeMarkdownV2(res.Name))
	}
	fmt.Fprintf(&b, "`%s`\n\n", escapeMarkdownV2(res.Mint))
	fmt.Fprintf(&b, "Score: *%d*/100\n", res.Score)
	fmt.Fprintf(&b, "Mcap: %s\n", escapeMarkdownV2(formatUSD(res.UsdMarketCap)))
	fmt.Fprintf(&b, "Curve: %s SOL \\(%s to graduation\\)\n",
		escapeMarkdownV2(fmt.Sprintf("%.1f", res.SolInCurve)),
		escapeMarkdownV2(fmt.Sprintf("%.1f%%", res.BondingPct)))
	fmt.Fprintf(&b, "Velocity: %s SOL/min, age %s\n",
		escapeMarkdownV2(fmt.Sprintf("%.2f", res.VelocitySOL)),
		escapeMarkdownV2(formatAge(res.AgeSeconds)))

	socials := make([]string, 0, 3)
	if res.HasTwitter {
		socials = append(socials, "𝕏")
	}
	if res.HasTelegram {
		socials = append(socials, "TG")
	}
	if res.HasWebsite {
		socials = append(socials, "web")
	}
	if len(socials) > 0 {
		fmt.Fprintf(&b, "Socials: %s\n", escapeMarkdownV2(strings.Join(socials, " ")))
	}
	if res.Whale {
		b.WriteString("🐋 Whale activity detected\n")
	}
	if res.Featured {
		b.WriteString("👑 Featured\n")
	}
	if commentary != "" {
		fmt.Fprintf(&b, "\n💬 %s\n", escapeMarkdownV2(commentary))
	}
	return b.String()
}

// formatStatus renders the /status reply as plain text.
func formatStatus(h models.Health, s models.Settings) string {
	connected := "disconnected"
	if h.Connected {
		connected = "connected"
	}
	paused := ""
	if s.Paused {
		paused = " (paused)"
	}
	return fmt.Sprintf(
		"Feed: %s%s\nEvents: %d, alerts: %d\nOpen trades: %d\nTotal P&L: %s SOL\nMin score: %d, amount: %s SOL\nUptime: %s",
		connected, paused,
		h.Received, h.Alerts,
		h.OpenCount,
		formatSignedSOL(h.TotalPnlSOL),
		s.MinScore, formatSOL(s.TradeAmount),
		formatDuration(h.UptimeSeconds*1000))
}

// formatSummary renders the /summary reply as plain text.
func formatSummary(sum models.PortfolioSummary) string {
	return fmt.Sprintf(
		"Open: %d, closed: %d\nWins: %d (%.0f%%)\nRealized: %s SOL (%s)\nUnrealized: %s SOL\nTotal: %s SOL",
		sum.OpenCount, sum.ClosedCount,
		sum.Wins, sum.WinRate,
		formatSignedSOL(sum.RealizedSOL), formatUSDSigned(sum.RealizedUSD),
		formatSignedSOL(sum.UnrealizedSOL),
		formatSignedSOL(sum.TotalPnlSOL))
}

func formatPct(pct float64) string {
	return fmt.Sprintf("%+.1f%%", pct)
}

func formatSOL(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

func formatSignedSOL(amount float64) string {
	return fmt.Sprintf("%+.4f", amount)
}

func formatUSD(v float64) string {
	if v >= 1000 {
		return fmt.Sprintf("$%.1fk", v/1000)
	}
	return fmt.Sprintf("$%.0f", v)
}

func formatUSDSigned(v float64) string {
	return fmt.Sprintf("%+.2f USD", v)
}

func formatAge(seconds int64) string {
	if seconds < 120 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm", seconds/60)
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
