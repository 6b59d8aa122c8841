// Package assistant wires the intent classifier, the action registry and the
// dispatcher into a message loop over one or more chat channels.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sidekick/pkg/sidekick/channels"
	"sidekick/pkg/sidekick/collab"
	"sidekick/pkg/sidekick/store"
)

// Assistant is the message-processing core. It consumes messages from all
// registered channels, classifies them and dispatches the resulting commands.
type Assistant struct {
	config     *Config
	logger     *slog.Logger
	classifier *Classifier
	dispatcher *Dispatcher
	store      *store.Store

	mu       sync.RWMutex
	channels map[string]channels.Channel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Assistant from config and collaborator dependencies.
func New(cfg *Config, deps Deps, st *store.Store, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assistant{
		config:   cfg,
		logger:   logger,
		store:    st,
		channels: make(map[string]channels.Channel),
	}
	deps.Store = st
	a.classifier = NewClassifier(deps.Completer, logger)
	a.dispatcher = NewDispatcher(deps, a, logger)
	return a
}

// Dispatcher exposes the command dispatcher, used by the render watcher and
// the console REPL.
func (a *Assistant) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// RegisterChannel adds a channel. Must be called before Start.
func (a *Assistant) RegisterChannel(ch channels.Channel) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.channels[ch.Name()] = ch
}

// Start connects all channels and begins processing messages. It returns
// after the listeners are running; Stop shuts them down.
func (a *Assistant) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.logger.Info("starting assistant",
		"name", a.config.Name,
		"model", a.config.LLM.Model,
		"channels", len(a.channels),
	)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.channels) == 0 {
		return fmt.Errorf("no channels registered")
	}

	for name, ch := range a.channels {
		if err := ch.Connect(a.ctx); err != nil {
			return fmt.Errorf("connecting %s: %w", name, err)
		}
		a.wg.Add(1)
		go a.listen(ch)
	}
	return nil
}

// Stop disconnects all channels and waits for the listeners to drain.
func (a *Assistant) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.mu.RLock()
	for name, ch := range a.channels {
		if err := ch.Disconnect(); err != nil {
			a.logger.Warn("channel disconnect failed", "channel", name, "error", err)
		}
	}
	a.mu.RUnlock()
	a.wg.Wait()
	a.logger.Info("assistant stopped")
}

// listen consumes one channel's messages sequentially. Commands from a single
// chat are processed in arrival order so replies never interleave.
func (a *Assistant) listen(ch channels.Channel) {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			a.handleMessage(ch, msg)
		}
	}
}

// handleMessage runs one message through the classify→dispatch flow.
func (a *Assistant) handleMessage(ch channels.Channel, msg *channels.IncomingMessage) {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return
	}

	correlationID := uuid.NewString()
	logger := a.logger.With("correlation_id", correlationID, "channel", msg.Channel, "chat_id", msg.ChatID)
	logger.Info("message received", "from", msg.FromName, "length", len(text))

	dest := Destination{Channel: msg.Channel, ChatID: msg.ChatID}

	// Typing indicator is best-effort.
	if presence, ok := ch.(channels.PresenceChannel); ok {
		if err := presence.SendTyping(a.ctx, msg.ChatID); err != nil {
			logger.Debug("typing indicator failed", "error", err)
		}
	}

	// Help is handled before classification; it must work even when the
	// model is unreachable.
	if isHelpRequest(text) {
		a.dispatcher.Help(a.ctx, dest)
		a.record(correlationID, msg, "help")
		return
	}

	parsed := a.classifier.Classify(a.ctx, text, a.now())
	logger.Info("intent classified", "intent", parsed.Intent)

	a.dispatcher.Dispatch(a.ctx, parsed, dest)
	a.record(correlationID, msg, string(parsed.Intent))
}

// record appends to the command log. Failures are logged, never surfaced.
func (a *Assistant) record(id string, msg *channels.IncomingMessage, intent string) {
	if a.store == nil {
		return
	}
	rec := store.CommandRecord{
		ID:      id,
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Intent:  intent,
		OK:      true,
	}
	if err := a.store.RecordCommand(rec); err != nil {
		a.logger.Warn("command log write failed", "error", err)
	}
}

// now returns the current time in the configured timezone.
func (a *Assistant) now() time.Time {
	if a.config.Timezone != "" {
		if loc, err := time.LoadLocation(a.config.Timezone); err == nil {
			return time.Now().In(loc)
		}
	}
	return time.Now()
}

// isHelpRequest matches "/help" and bare "help" in any casing.
func isHelpRequest(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	return t == "/help" || t == "help" || t == "/start"
}

// Send implements Sender by routing to the originating channel.
func (a *Assistant) Send(ctx context.Context, dest Destination, text string) error {
	a.mu.RLock()
	ch, ok := a.channels[dest.Channel]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown channel %q", dest.Channel)
	}
	return ch.Send(ctx, dest.ChatID, &channels.OutgoingMessage{Content: text})
}

// SendImage implements Sender. Channels without media support receive the
// image as a markdown link instead.
func (a *Assistant) SendImage(ctx context.Context, dest Destination, url, caption string) error {
	a.mu.RLock()
	ch, ok := a.channels[dest.Channel]
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown channel %q", dest.Channel)
	}
	if media, hasMedia := ch.(channels.MediaChannel); hasMedia {
		return media.SendMedia(ctx, dest.ChatID, &channels.MediaMessage{
			Type:    channels.MessageImage,
			URL:     url,
			Caption: caption,
		})
	}
	return ch.Send(ctx, dest.ChatID, &channels.OutgoingMessage{
		Content: fmt.Sprintf("🖼 *%s*\n%s", caption, url),
	})
}

// BuildDeps constructs the production collaborator set from config.
func BuildDeps(cfg *Config, completer Completer, logger *slog.Logger) Deps {
	google := collab.StaticToken(cfg.Collaborators.GoogleToken)
	search := collab.NewTavily(cfg.Collaborators.TavilyKey, completerAdapter{completer})
	return Deps{
		Calendar:  collab.NewGoogleCalendar(google),
		Mail:      collab.NewGmail(google),
		Contacts:  collab.NewGoogleContacts(google),
		Weather:   collab.NewOpenWeather(cfg.Collaborators.OpenWeatherKey),
		Search:    search,
		Leads:     collab.NewApify(cfg.Collaborators.ApifyToken),
		Studio:    collab.NewStudio(cfg.LLM.APIKey, google, completerAdapter{completer}, search),
		Video:     collab.NewJSON2Video(cfg.Collaborators.JSON2VideoKey),
		Billing:   collab.NewStripe(cfg.Collaborators.StripeKey),
		Completer: completer,
	}
}

// completerAdapter narrows the assistant Completer to the collab package's
// single-method interface.
type completerAdapter struct {
	c Completer
}

func (ca completerAdapter) Complete(ctx context.Context, system, user string) (string, error) {
	if ca.c == nil {
		return "", fmt.Errorf("no completion capability configured")
	}
	return ca.c.Complete(ctx, system, user)
}
