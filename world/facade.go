package world

import (
	"context"
	"time"

	"github.com/kadirpekel/worldcore/agentsub"
	"github.com/kadirpekel/worldcore/bus"
	"github.com/kadirpekel/worldcore/core"
	"github.com/kadirpekel/worldcore/ids"
	"github.com/kadirpekel/worldcore/llm"
	"github.com/kadirpekel/worldcore/observability"
	"github.com/kadirpekel/worldcore/storage"
	"github.com/kadirpekel/worldcore/tools"
)

// Facade is the single entry point every transport (CLI, HTTP,
// websocket) drives the orchestrator through: world lifecycle, agent
// registration, chat management, message submission, editing, and
// HITL resolution all live here so a transport never has to reach
// into bus/, agentsub/, or storage/ directly.
type Facade struct {
	store     storage.Storage
	providers *llm.Registry
	toolReg   *tools.Registry
	metrics   *observability.Metrics

	mu    chanMutex
	buses map[string]*bus.Bus
	subs  map[string][]*agentsub.Subscriber

	Chats *ChatManager
	Edits *EditEngine
	HITL  map[string]*HITLCoordinator
}

// chanMutex is a mutex built on a one-slot channel. It must be made
// with newChanMutex: Lock on a zero chanMutex (nil channel) blocks
// forever.
type chanMutex struct{ ch chan struct{} }

func newChanMutex() chanMutex {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	return chanMutex{ch: ch}
}

func (m chanMutex) Lock()   { <-m.ch }
func (m chanMutex) Unlock() { m.ch <- struct{}{} }

// NewFacade constructs a Facade over store for persistence, providers
// for LLM calls, and toolReg for tool execution.
func NewFacade(store storage.Storage, providers *llm.Registry, toolReg *tools.Registry) *Facade {
	return &Facade{
		store:     store,
		providers: providers,
		toolReg:   toolReg,
		mu:        newChanMutex(),
		buses:     make(map[string]*bus.Bus),
		subs:      make(map[string][]*agentsub.Subscriber),
		Chats:     NewChatManager(store),
		Edits:     NewEditEngine(store),
		HITL:      make(map[string]*HITLCoordinator),
	}
}

// SetMetrics attaches a metrics sink used for every world the facade
// activates from this point on. Already-active worlds are not
// retroactively updated.
func (f *Facade) SetMetrics(m *observability.Metrics) {
	f.metrics = m
}

// CreateWorld persists and activates a new world.
func (f *Facade) CreateWorld(ctx context.Context, name, description string) (*core.World, error) {
	w := core.NewWorld(ids.DeriveWorldID(name), name)
	w.Description = description
	if err := f.store.SaveWorld(ctx, w); err != nil {
		return nil, err
	}
	f.activate(w)
	return w, nil
}

// LoadWorld restores a persisted world and wires up its bus and agent
// subscribers.
func (f *Facade) LoadWorld(ctx context.Context, id string) (*core.World, error) {
	w, err := f.store.LoadWorld(ctx, id)
	if err != nil {
		return nil, err
	}
	f.activate(w)
	return w, nil
}

func (f *Facade) activate(w *core.World) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := bus.New()
	b.SetMetrics(w.ID, f.metrics)
	f.buses[w.ID] = b
	f.HITL[w.ID] = NewHITLCoordinator(b)

	var subs []*agentsub.Subscriber
	for _, a := range w.Agents() {
		s := agentsub.New(a, w, b, f.store, f.providers, f.toolReg)
		s.SetMetrics(f.metrics)
		s.Start()
		subs = append(subs, s)
	}
	f.subs[w.ID] = subs
}

// Bus returns the event bus for a loaded world, for transports to
// subscribe to (websocket fan-out, test harnesses).
func (f *Facade) Bus(worldID string) (*bus.Bus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buses[worldID]
	return b, ok
}

// DeleteWorld tears down the bus and subscribers, then removes every
// persisted trace of the world.
func (f *Facade) DeleteWorld(ctx context.Context, worldID string) error {
	f.mu.Lock()
	if subs, ok := f.subs[worldID]; ok {
		for _, s := range subs {
			s.Stop()
		}
		delete(f.subs, worldID)
	}
	if b, ok := f.buses[worldID]; ok {
		b.Close()
		delete(f.buses, worldID)
	}
	delete(f.HITL, worldID)
	f.mu.Unlock()

	return f.store.DeleteWorld(ctx, worldID)
}

// AddAgent registers a new agent in w, persists it, and starts its
// subscriber against the world's live bus.
func (f *Facade) AddAgent(ctx context.Context, w *core.World, a *core.Agent) error {
	if a.ID == "" {
		a.ID = ids.DeriveAgentID(a.Name)
	}
	w.AddAgent(a)
	if err := f.store.SaveAgent(ctx, w.ID, a); err != nil {
		return err
	}

	f.mu.Lock()
	b := f.buses[w.ID]
	f.mu.Unlock()
	if b != nil {
		s := agentsub.New(a, w, b, f.store, f.providers, f.toolReg)
		s.SetMetrics(f.metrics)
		s.Start()
		f.mu.Lock()
		f.subs[w.ID] = append(f.subs[w.ID], s)
		f.mu.Unlock()
	}
	return nil
}

// RemoveAgent stops the agent's subscriber and deletes it and its
// memory from persistence.
func (f *Facade) RemoveAgent(ctx context.Context, w *core.World, agentID string) error {
	w.RemoveAgent(agentID)
	return f.store.DeleteAgent(ctx, w.ID, agentID)
}

// SubmitMessage is the single entry point for a human message into a
// world: it persists the message under every current agent and
// publishes it on the bus, letting each agent's subscriber decide
// whether to respond.
func (f *Facade) SubmitMessage(ctx context.Context, w *core.World, content string) (core.AgentMessage, error) {
	chatID := w.CurrentChat()

	msg := core.AgentMessage{
		MessageID: ids.New(),
		Role:      core.RoleUser,
		Content:   content,
		Sender:    "user",
		ChatID:    chatID,
		CreatedAt: time.Now(),
	}

	for agentID, agent := range w.Agents() {
		agent.AppendMemory(msg)
		if err := f.store.AppendMessage(ctx, agentID, msg); err != nil {
			return core.AgentMessage{}, err
		}
	}

	f.mu.Lock()
	b := f.buses[w.ID]
	f.mu.Unlock()
	if b != nil {
		b.Publish(bus.KindMessage, msg)
	}
	return msg, nil
}

// CancelChat marks chatID's in-flight turn as cancelled. The agent
// subscriber checks the flag before each model call of a turn and ends
// the turn there; a model call or tool call already running is not
// interrupted.
func (f *Facade) CancelChat(worldID, chatID string) {
	f.mu.Lock()
	b := f.buses[worldID]
	f.mu.Unlock()
	if b != nil {
		b.Cancel(chatID)
	}
}
