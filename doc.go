// Package worldcore provides a multi-agent conversation runtime.
//
// Human users and autonomous agents exchange messages that are routed
// to LLM backends, streamed back in real time, and persisted as
// chat-scoped conversation history. The core is the world event
// orchestrator: a per-world publish/subscribe bus, agent subscription
// and turn-control logic, LLM call coordination (streaming and tool
// calls), tool-call execution with working-directory enforcement, and
// conversation persistence with chat-scoped memory editing.
//
// Package layout:
//
//	ids/            identifiers and kebab-case normalization
//	core/           world/agent/chat/message data model
//	storage/        persistence contract + memory/file/sql backends
//	bus/            per-world event bus
//	msgprep/        message parsing and LLM-bound history filtering
//	llm/            unified LLM provider capability
//	tools/          tool registry and built-in tools
//	agentsub/       per-agent bus subscriber and turn logic
//	world/          world/agent/chat types, chat manager, edit engine,
//	                HITL coordinator, facade
//	config/         configuration loading
//	logctx/         structured logging
//	observability/  metrics and tracing
//	cmd/worldd/     reference daemon wiring the above together
package worldcore
