// Package plugin is the event-dispatch contract every handler plugin
// implements: a command table built at registration time, plus optional
// admission/interval/deletion/file hooks, routed per §4.H.
package plugin

import (
	"context"
	"time"

	"github.com/rakunlabs/nezumi/internal/command"
	"github.com/rakunlabs/nezumi/internal/entity"
	"github.com/rakunlabs/nezumi/internal/flow"
	"github.com/rakunlabs/nezumi/internal/gateway"
	"github.com/rakunlabs/nezumi/internal/namecache"
)

// Deps are the shared collaborators a plugin's hooks may need, injected by
// the pipeline host rather than constructed per plugin.
type Deps struct {
	Gateway *gateway.Client
	Names   *namecache.Cache
	Flows   *flow.Engine
}

// CommandHandler runs a matched command. args holds the parsed, typed
// parameters by name (command.ParseArguments' output); ambient values
// (context, sender, text, message_id) are passed separately since they
// never go through the text parser. A non-nil *flow.Computation return
// suspends the conversation per §4.G; otherwise reply is the immediate
// result (nil/absent means "not handled", true means "handled, no reply").
type CommandHandler func(ctx context.Context, deps Deps, evt *Event, args map[string]any) (reply any, comp *flow.Computation, err error)

// Plugin is the interface the pipeline host dispatches events to.
type Plugin interface {
	Name() string
	Dispatch(ctx context.Context, deps Deps, evt *Event) (any, error)
}

type registeredCommand struct {
	tokens  []string
	params  []command.Param
	handler CommandHandler
}

// Base implements the full §4.H routing contract; concrete plugins embed
// it and populate its command table and optional hooks.
type Base struct {
	name     string
	commands []registeredCommand

	OnMessage        func(ctx context.Context, deps Deps, evt *Event, text string) (any, *flow.Computation, error)
	OnAdmission      func(ctx context.Context, deps Deps, evt *Event) (*bool, error)
	OnInterval       func(ctx context.Context, deps Deps) error
	OnMessageDeleted func(ctx context.Context, deps Deps, convContext, sender int64, text string, messageID int64) (any, error)
	OnFileUploaded   func(ctx context.Context, deps Deps, convContext, sender int64, file File) (any, error)
}

// NewBase constructs an empty Base for a plugin named name.
func NewBase(name string) *Base {
	return &Base{name: name}
}

func (b *Base) Name() string { return b.name }

// RegisterCommand adds one on_command_<tokens...> entry to the plugin's
// command table. tokens is the already-tokenised, normalised command name
// (e.g. []string{"debug", "_", "p"}); longer registrations take priority
// over shorter ones that are their prefix, per §4.F's longest-match rule.
func (b *Base) RegisterCommand(tokens []string, params []command.Param, handler CommandHandler) {
	b.commands = append(b.commands, registeredCommand{tokens: tokens, params: params, handler: handler})
}

// Dispatch implements Plugin.Dispatch.
func (b *Base) Dispatch(ctx context.Context, deps Deps, evt *Event) (any, error) {
	switch evt.PostType {
	case PostTypeMessage:
		return b.dispatchMessage(ctx, deps, evt)
	case PostTypeRequest:
		return b.dispatchRequest(ctx, deps, evt)
	case PostTypeMeta:
		return b.dispatchMeta(ctx, deps, evt)
	case PostTypeNotice:
		return b.dispatchNotice(ctx, deps, evt)
	default:
		return nil, nil
	}
}

func (b *Base) dispatchMessage(ctx context.Context, deps Deps, evt *Event) (any, error) {
	text := entity.Decode(evt.RawMessage)
	key := flow.Key{Context: evt.Context(), Sender: evt.SenderID()}

	result := deps.Flows.Handle(key, text, time.Now(), func() (any, *flow.Computation) {
		reply, comp, err := b.dispatchCommand(ctx, deps, evt, text)
		if err != nil {
			return err, nil
		}
		return reply, comp
	})

	if err, ok := result.(error); ok {
		return nil, err
	}
	return result, nil
}

func (b *Base) dispatchCommand(ctx context.Context, deps Deps, evt *Event, text string) (any, *flow.Computation, error) {
	if !command.IsCommandAttempt(text) {
		if b.OnMessage != nil {
			return b.OnMessage(ctx, deps, evt, text)
		}
		return nil, nil, nil
	}

	tokens := command.TokenizeCommandName(text)
	for len(tokens) > 0 {
		name := joinTokens(tokens)
		if rc, ok := b.lookup(tokens); ok {
			end := command.FindCommandNameEnd(text, name)
			rest := text[end:]

			args, err := command.ParseArguments(rc.params, rest)
			if err != nil {
				return errorReply(err), nil, nil
			}

			reply, comp, err := rc.handler(ctx, deps, evt, args)
			if err != nil {
				return nil, nil, err
			}
			return reply, comp, nil
		}
		tokens = tokens[:len(tokens)-1]
	}

	if b.OnMessage != nil {
		return b.OnMessage(ctx, deps, evt, text)
	}
	return nil, nil, nil
}

func (b *Base) lookup(tokens []string) (registeredCommand, bool) {
	name := joinTokens(tokens)
	for _, rc := range b.commands {
		if joinTokens(rc.tokens) == name {
			return rc, true
		}
	}
	return registeredCommand{}, false
}

func joinTokens(tokens []string) string {
	out := ""
	for _, t := range tokens {
		out += t
	}
	return out
}

// errorReply converts a command-syntax error into the dispatcher's reply
// convention: the error's own message, or the handler's first
// documentation line when empty. Handler documentation isn't wired here
// (RegisterCommand carries no doc text yet), so the error's own message is
// always used.
func errorReply(err error) string {
	return err.Error()
}

func (b *Base) dispatchRequest(ctx context.Context, deps Deps, evt *Event) (any, error) {
	if b.OnAdmission == nil {
		return nil, nil
	}

	approve, err := b.OnAdmission(ctx, deps, evt)
	if err != nil {
		return nil, err
	}
	if approve == nil {
		return nil, nil
	}

	switch evt.RequestType {
	case RequestTypeFriend:
		if err := deps.Gateway.SetFriendAddRequest(ctx, evt.Flag, *approve); err != nil {
			return nil, err
		}
	case RequestTypeGroup:
		if err := deps.Gateway.SetGroupAddRequest(ctx, evt.Flag, evt.SubType, *approve); err != nil {
			return nil, err
		}
	}
	return true, nil
}

func (b *Base) dispatchMeta(ctx context.Context, deps Deps, evt *Event) (any, error) {
	if b.OnInterval == nil {
		return nil, nil
	}
	if err := b.OnInterval(ctx, deps); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *Base) dispatchNotice(ctx context.Context, deps Deps, evt *Event) (any, error) {
	switch evt.NoticeType {
	case NoticeFriendRecall, NoticeGroupRecall:
		if b.OnMessageDeleted == nil {
			return nil, nil
		}
		msg, err := deps.Gateway.GetMsg(ctx, int64(evt.MessageID))
		if err != nil {
			return nil, err
		}
		return b.OnMessageDeleted(ctx, deps, evt.Context(), evt.SenderID(), msg.Message, int64(evt.MessageID))

	case NoticeOfflineFile, NoticeGroupUpload:
		if b.OnFileUploaded == nil {
			return nil, nil
		}
		file := evt.File
		if evt.NoticeType == NoticeGroupUpload {
			url, err := deps.Gateway.GetGroupFileURL(ctx, -evt.Context(), file.ID, int64(file.BusID))
			if err != nil {
				return nil, err
			}
			file.URL = url
		}
		return b.OnFileUploaded(ctx, deps, evt.Context(), evt.SenderID(), file)

	default:
		return nil, nil
	}
}

