package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/ventaflow/ventabot/core/config"
	"github.com/ventaflow/ventabot/core/logger"
	"github.com/ventaflow/ventabot/core/netutil"
	"github.com/ventaflow/ventabot/core/sender"
)

// Telegram is the telebot-backed Provider. Chat IDs double as identities.
type Telegram struct {
	bot        *tele.Bot
	dispatcher *sender.Dispatcher
	limiter    *Limiter
	cfg        *config.Config
}

// NewTelegram builds the bot, its poller, and the rate limiter from config.
// The dispatcher carries all outbound calls; callers own its lifecycle.
func NewTelegram(cfg *config.Config, dispatcher *sender.Dispatcher) (*Telegram, error) {
	if cfg == nil {
		return nil, fmt.Errorf("transport: nil config")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("transport: nil dispatcher")
	}

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Transport.Token,
		Poller: buildPoller(cfg),
		Client: netutil.BuildHTTPClient(),
	})
	if err != nil {
		return nil, fmt.Errorf("transport: bot initialization failed: %w", err)
	}

	t := &Telegram{
		bot:        bot,
		dispatcher: dispatcher,
		limiter:    NewLimiter(time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond),
		cfg:        cfg,
	}
	t.logMode(time.Since(buildStart))
	return t, nil
}

// Start registers inbound routes and runs the bot until ctx is done.
func (t *Telegram) Start(ctx context.Context, sink Sink) error {
	if sink == nil {
		return fmt.Errorf("transport: nil sink")
	}

	t.bot.Handle(tele.OnText, func(c tele.Context) error {
		t.forward(ctx, sink, c, c.Text(), false)
		return nil
	})
	t.bot.Handle(tele.OnMedia, func(c tele.Context) error {
		body := ""
		if msg := c.Message(); msg != nil {
			body = msg.Caption
		}
		t.forward(ctx, sink, c, body, true)
		return nil
	})

	if t.cfg.Transport.RunMode == config.RunModeLongpoll {
		if err := deleteWebhook(t.cfg.Transport.Token, false); err != nil {
			logger.Warn(ctx, "transport", "delete_webhook.error",
				slog.Any("err", err),
			)
		}
	}

	runDone := make(chan struct{})
	go func() {
		t.bot.Start()
		close(runDone)
	}()

	select {
	case <-ctx.Done():
		t.bot.Stop()
		<-runDone
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	case <-runDone:
		return nil
	}
}

// Send enqueues the whole burst as one dispatcher job so the messages reach
// the chat in order. On retry the burst restarts from the first message.
func (t *Telegram) Send(ctx context.Context, identity string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	chatID, err := strconv.ParseInt(identity, 10, 64)
	if err != nil {
		return fmt.Errorf("transport: identity %q is not a chat id: %w", identity, err)
	}
	rcp := tele.ChatID(chatID)

	return t.dispatcher.Enqueue(ctx, "send_burst", identity, func() error {
		for _, m := range msgs {
			var what any
			switch {
			case m.Document != nil:
				what = &tele.Document{
					File:     tele.FromReader(bytes.NewReader(m.Document.Data)),
					FileName: m.Document.Name,
					MIME:     m.Document.MIME,
					Caption:  m.Document.Caption,
				}
			case m.Text != "":
				what = m.Text
			default:
				continue
			}
			if _, err := t.bot.Send(rcp, what); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *Telegram) forward(ctx context.Context, sink Sink, c tele.Context, body string, hasMedia bool) {
	chat := c.Chat()
	if chat == nil {
		return
	}
	identity := strconv.FormatInt(chat.ID, 10)
	if !t.limiter.Allow(identity) {
		logger.Warn(ctx, "transport", "rate_limit",
			slog.String("identity", identity),
			slog.Bool("rate_limited", true),
		)
		return
	}
	sink.HandleInbound(Inbound{
		Identity: identity,
		Body:     body,
		HasMedia: hasMedia,
	})
}

func (t *Telegram) logMode(buildTook time.Duration) {
	ctx := logger.Background()
	switch p := t.bot.Poller.(type) {
	case *tele.Webhook:
		logger.Info(ctx, "transport", "mode",
			slog.String("mode", "webhook"),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	default:
		logger.Info(ctx, "transport", "mode",
			slog.String("mode", "longpoll"),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	}
}

func buildPoller(cfg *config.Config) tele.Poller {
	if cfg.Transport.RunMode == config.RunModeWebhook {
		return &tele.Webhook{
			Listen:   fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port),
			Endpoint: &tele.WebhookEndpoint{PublicURL: cfg.Webhook.URL},
		}
	}
	timeoutSec := cfg.Transport.LongPollTimeoutSeconds
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &tele.LongPoller{Timeout: time.Duration(timeoutSec) * time.Second}
}

// deleteWebhook clears a stale webhook registration before long polling.
func deleteWebhook(token string, dropPending bool) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	body := "drop_pending_updates=false"
	if dropPending {
		body = "drop_pending_updates=true"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
