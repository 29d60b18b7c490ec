package realtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/TayDaGreatDIY/phase-2-complete/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second // registry command timeout
	stopTimeout    = 10 * time.Second
)

// TopicClass identifies one of the three explicit broadcast scopes.
type TopicClass string

const (
	TopicCourt      TopicClass = "court"
	TopicGame       TopicClass = "game"
	TopicTournament TopicClass = "tournament"
)

// TopicClasses lists all explicit topic classes.
var TopicClasses = []TopicClass{TopicCourt, TopicGame, TopicTournament}

type topicRef struct {
	class TopicClass
	id    string
}

// client is one registry entry: the connection's identity plus its writer,
// which owns the outbound transport.
type client struct {
	id     uuid.UUID
	userID string
	writer *clientWriter
}

// Stats is a point-in-time snapshot of registry state.
type Stats struct {
	TotalConnections        int            `json:"total_connections"`
	CourtSubscriptions      map[string]int `json:"court_subscriptions"`
	GameSubscriptions       map[string]int `json:"game_subscriptions"`
	TournamentSubscriptions map[string]int `json:"tournament_subscriptions"`
	GeneralSubscriptions    int            `json:"general_subscriptions"`
}

// registryCmd is the command interface for the Registry actor.
type registryCmd interface{ isRegistryCmd() }

type baseRegistryCmd struct{}

func (baseRegistryCmd) isRegistryCmd() {}

type connectCmd struct {
	baseRegistryCmd
	connection   *websocket.Conn
	userID       string
	replyChannel chan uuid.UUID
}

type disconnectCmd struct {
	baseRegistryCmd
	connectionID uuid.UUID
}

type sendToCmd struct {
	baseRegistryCmd
	connectionID uuid.UUID
	message      Message
}

type sendToUserCmd struct {
	baseRegistryCmd
	userID  string
	message Message
}

type subscribeCmd struct {
	baseRegistryCmd
	class        TopicClass
	topicID      string
	connectionID uuid.UUID
}

type unsubscribeCmd struct {
	baseRegistryCmd
	class        TopicClass
	topicID      string
	connectionID uuid.UUID
}

type broadcastGeneralCmd struct {
	baseRegistryCmd
	message Message
}

type broadcastTopicCmd struct {
	baseRegistryCmd
	class   TopicClass
	topicID string
	message Message
}

type statsCmd struct {
	baseRegistryCmd
	replyChannel chan Stats
}

type stopCmd struct {
	baseRegistryCmd
}

// Registry tracks live connections, the user mapping, the implicit general
// scope, and the per-class topic subscription indices. It runs as an actor:
// a single goroutine owns every map, reachable only through the command
// channel, so mutations and broadcast snapshots are serialized without locks.
//
// Broadcast fan-out never blocks the actor on network I/O: delivery is a
// non-blocking enqueue to each recipient's writer, and the slow transport
// write happens on the writer's own goroutine under a write deadline.
type Registry struct {
	cmdCh chan registryCmd
	clock clockwork.Clock
	done  chan struct{}

	conns   map[uuid.UUID]*client
	users   map[string]uuid.UUID
	general map[uuid.UUID]struct{}
	topics  map[TopicClass]map[string]map[uuid.UUID]struct{}
	// subs is the reverse index: connection -> its explicit topic memberships.
	// Disconnect teardown walks only the departing connection's own refs
	// instead of scanning every topic set.
	subs map[uuid.UUID]map[topicRef]struct{}
}

// NewRegistry creates and starts the registry actor.
func NewRegistry(clock clockwork.Clock) *Registry {
	r := &Registry{
		cmdCh:   make(chan registryCmd, 256),
		clock:   clock,
		done:    make(chan struct{}),
		conns:   make(map[uuid.UUID]*client),
		users:   make(map[string]uuid.UUID),
		general: make(map[uuid.UUID]struct{}),
		topics:  make(map[TopicClass]map[string]map[uuid.UUID]struct{}),
		subs:    make(map[uuid.UUID]map[topicRef]struct{}),
	}
	for _, class := range TopicClasses {
		r.topics[class] = make(map[string]map[uuid.UUID]struct{})
	}
	go r.run()
	return r
}

// --- Public API (callable from any goroutine) ---

// Connect registers an already-upgraded connection for the given user and
// returns its fresh connection id. A later connect for the same user silently
// supersedes the user mapping; the earlier connection stays registered until
// it disconnects. Returns an error only if the registry is stuck or stopped.
func (r *Registry) Connect(conn *websocket.Conn, userID string) (uuid.UUID, error) {
	replyCh := make(chan uuid.UUID, 1)
	if !r.submit(connectCmd{connection: conn, userID: userID, replyChannel: replyCh}) {
		return uuid.Nil, fmt.Errorf("registry stopped")
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case id := <-replyCh:
		return id, nil
	case <-timer.Chan():
		return uuid.Nil, fmt.Errorf("connect command timed out after %v", commandTimeout)
	}
}

// Disconnect removes the connection and every subscription referencing it.
// Unknown ids are a no-op. Safe to call from failed-send cleanup paths.
func (r *Registry) Disconnect(connectionID uuid.UUID) {
	r.submit(disconnectCmd{connectionID: connectionID})
}

// SendTo delivers a message to exactly one connection. A delivery failure
// disconnects the recipient and is not surfaced to the caller.
func (r *Registry) SendTo(connectionID uuid.UUID, message Message) {
	r.submit(sendToCmd{connectionID: connectionID, message: message})
}

// SendToUser delivers a message to the user's current connection, if any.
func (r *Registry) SendToUser(userID string, message Message) {
	r.submit(sendToUserCmd{userID: userID, message: message})
}

// Subscribe adds the connection to the topic's subscriber set, creating the
// topic on first subscription, and confirms back to the connection.
func (r *Registry) Subscribe(class TopicClass, topicID string, connectionID uuid.UUID) {
	r.submit(subscribeCmd{class: class, topicID: topicID, connectionID: connectionID})
}

// Unsubscribe removes the connection from the topic's subscriber set and
// drops the topic entirely once its set is empty. Non-members are a no-op.
func (r *Registry) Unsubscribe(class TopicClass, topicID string, connectionID uuid.UUID) {
	r.submit(unsubscribeCmd{class: class, topicID: topicID, connectionID: connectionID})
}

// BroadcastGeneral delivers a message to every live connection.
func (r *Registry) BroadcastGeneral(message Message) {
	r.submit(broadcastGeneralCmd{message: message})
}

// BroadcastToTopic delivers a message to the topic's current subscribers.
// A topic with no subscribers is a no-op, not an error.
func (r *Registry) BroadcastToTopic(class TopicClass, topicID string, message Message) {
	r.submit(broadcastTopicCmd{class: class, topicID: topicID, message: message})
}

// GetStats returns a consistent snapshot of connection and subscription counts.
func (r *Registry) GetStats() (Stats, error) {
	replyCh := make(chan Stats, 1)
	if !r.submit(statsCmd{replyChannel: replyCh}) {
		return Stats{}, fmt.Errorf("registry stopped")
	}

	timer := r.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats, nil
	case <-timer.Chan():
		return Stats{}, fmt.Errorf("stats command timed out after %v", commandTimeout)
	}
}

// Stop shuts down the registry, closing all client connections.
// Blocks until the registry goroutine has exited or the timeout is reached.
func (r *Registry) Stop() {
	r.submit(stopCmd{})

	timer := r.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-r.done:
		slog.Info("Registry stopped gracefully")
	case <-timer.Chan():
		slog.Error("Registry stop timeout exceeded", "timeout", stopTimeout)
	}
}

// submit enqueues a command unless the registry has already stopped.
func (r *Registry) submit(cmd registryCmd) bool {
	select {
	case r.cmdCh <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// --- Actor loop ---

func (r *Registry) run() {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Registry panic recovered", "panic", rec)
			metrics.RealtimeRegistryPanicsTotal.Inc()
			r.closeAllClients("registry panic")
			close(r.done)
		}
	}()

	depthTicker := r.clock.NewTicker(1 * time.Second)
	defer depthTicker.Stop()

	for {
		select {
		case <-depthTicker.Chan():
			metrics.RealtimeCommandChannelDepth.Set(float64(len(r.cmdCh)))
		case cmd := <-r.cmdCh:
			switch c := cmd.(type) {
			case connectCmd:
				r.handleConnect(c)
			case disconnectCmd:
				r.handleDisconnect(c.connectionID)
			case sendToCmd:
				r.handleSendTo(c.connectionID, c.message)
			case sendToUserCmd:
				r.handleSendToUser(c.userID, c.message)
			case subscribeCmd:
				r.handleSubscribe(c.class, c.topicID, c.connectionID)
			case unsubscribeCmd:
				r.handleUnsubscribe(c.class, c.topicID, c.connectionID)
			case broadcastGeneralCmd:
				r.handleBroadcastGeneral(c.message)
			case broadcastTopicCmd:
				r.handleBroadcastTopic(c.class, c.topicID, c.message)
			case statsCmd:
				c.replyChannel <- r.snapshotStats()
			case stopCmd:
				r.handleStop()
				close(r.done)
				return
			default:
				slog.Warn("Registry received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		}
	}
}

func (r *Registry) handleConnect(c connectCmd) {
	id := uuid.New()
	cl := &client{id: id, userID: c.userID}
	cl.writer = newClientWriter(c.connection, r.clock, func() { r.Disconnect(id) })

	r.conns[id] = cl
	r.users[c.userID] = id
	r.general[id] = struct{}{}
	r.subs[id] = make(map[topicRef]struct{})

	metrics.RealtimeConnectedClients.Set(float64(len(r.conns)))
	slog.Info("Client connected", "connection_id", id.String(), "user_id", c.userID)

	c.replyChannel <- id

	r.deliver(id, NewMessage(TypeConnectionEstablished, map[string]any{
		"message":       "Connected to M2DG Basketball real-time system",
		"connection_id": id.String(),
	}))

	r.handleBroadcastGeneral(NewMessage(TypeUserConnected, map[string]any{
		"user_id": c.userID,
	}))
}

func (r *Registry) handleDisconnect(id uuid.UUID) {
	cl, ok := r.conns[id]
	if !ok {
		return
	}

	for ref := range r.subs[id] {
		r.dropMember(ref, id)
	}
	delete(r.subs, id)
	delete(r.general, id)
	delete(r.conns, id)

	var departedUser string
	if r.users[cl.userID] == id {
		delete(r.users, cl.userID)
		departedUser = cl.userID
	}

	cl.writer.stop()

	metrics.RealtimeConnectedClients.Set(float64(len(r.conns)))
	slog.Info("Client disconnected", "connection_id", id.String(), "user_id", cl.userID)

	if departedUser != "" {
		r.handleBroadcastGeneral(NewMessage(TypeUserDisconnected, map[string]any{
			"user_id": departedUser,
		}))
	}
}

func (r *Registry) handleSendTo(id uuid.UUID, message Message) {
	if _, ok := r.conns[id]; !ok {
		return
	}
	r.deliver(id, message)
}

func (r *Registry) handleSendToUser(userID string, message Message) {
	id, ok := r.users[userID]
	if !ok {
		return
	}
	r.handleSendTo(id, message)
}

func (r *Registry) handleSubscribe(class TopicClass, topicID string, id uuid.UUID) {
	if _, ok := r.conns[id]; !ok {
		slog.Debug("Subscribe from unknown connection", "connection_id", id.String(), "class", string(class), "topic_id", topicID)
		return
	}

	set, ok := r.topics[class][topicID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		r.topics[class][topicID] = set
		metrics.RealtimeActiveTopics.WithLabelValues(string(class)).Set(float64(len(r.topics[class])))
	}
	set[id] = struct{}{}
	r.subs[id][topicRef{class: class, id: topicID}] = struct{}{}

	slog.Debug("Subscribed", "connection_id", id.String(), "class", string(class), "topic_id", topicID, "subscribers", len(set))

	r.deliver(id, NewMessage(TypeSubscriptionConfirmed, map[string]any{
		"subscription_type":   string(class),
		string(class) + "_id": topicID,
	}))
}

func (r *Registry) handleUnsubscribe(class TopicClass, topicID string, id uuid.UUID) {
	ref := topicRef{class: class, id: topicID}
	if refs, ok := r.subs[id]; ok {
		delete(refs, ref)
	}
	r.dropMember(ref, id)
}

// dropMember removes a connection from one topic set, removing the topic
// entry entirely when the set becomes empty.
func (r *Registry) dropMember(ref topicRef, id uuid.UUID) {
	set, ok := r.topics[ref.class][ref.id]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.topics[ref.class], ref.id)
		metrics.RealtimeActiveTopics.WithLabelValues(string(ref.class)).Set(float64(len(r.topics[ref.class])))
	}
}

func (r *Registry) handleBroadcastGeneral(message Message) {
	members := make([]uuid.UUID, 0, len(r.general))
	for id := range r.general {
		members = append(members, id)
	}
	r.fanOut("general", members, message)
}

func (r *Registry) handleBroadcastTopic(class TopicClass, topicID string, message Message) {
	set, ok := r.topics[class][topicID]
	if !ok {
		return
	}
	members := make([]uuid.UUID, 0, len(set))
	for id := range set {
		members = append(members, id)
	}
	r.fanOut(string(class), members, message)
}

// fanOut serializes the message once, attempts delivery to every member of
// the snapshot, and disconnects the failed recipients after the full sweep.
// The snapshot keeps a concurrent teardown from corrupting the sweep; a
// member disconnected between snapshot and delivery is skipped by the
// membership re-check.
func (r *Registry) fanOut(scope string, members []uuid.UUID, message Message) {
	data, err := message.encode(r.clock.Now())
	if err != nil {
		slog.Error("Failed to encode broadcast message", "scope", scope, "error", err)
		return
	}
	metrics.RealtimeBroadcastsTotal.WithLabelValues(scope).Inc()

	var failed []uuid.UUID
	for _, id := range members {
		cl, ok := r.conns[id]
		if !ok {
			// Membership without a registry entry is a registry bug; the
			// actor makes it unreachable, but self-heal instead of crashing.
			slog.Error("Stale membership for unknown connection", "connection_id", id.String(), "scope", scope)
			r.purgeMembership(id)
			continue
		}
		if cl.writer.enqueue(data) {
			metrics.RealtimeMessagesSentTotal.Inc()
		} else {
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		metrics.RealtimeSendFailuresTotal.Inc()
		slog.Warn("Disconnecting unreachable client", "connection_id", id.String(), "scope", scope)
		r.handleDisconnect(id)
	}
}

// deliver serializes and enqueues a message to one live connection,
// tearing the connection down on failure.
func (r *Registry) deliver(id uuid.UUID, message Message) {
	cl, ok := r.conns[id]
	if !ok {
		return
	}
	data, err := message.encode(r.clock.Now())
	if err != nil {
		slog.Error("Failed to encode message", "type", message.Type, "error", err)
		return
	}
	if cl.writer.enqueue(data) {
		metrics.RealtimeMessagesSentTotal.Inc()
		return
	}
	metrics.RealtimeSendFailuresTotal.Inc()
	slog.Warn("Disconnecting unreachable client", "connection_id", id.String())
	r.handleDisconnect(id)
}

// purgeMembership removes every trace of a connection id that has no registry
// entry. Stale entries are treated as already removed.
func (r *Registry) purgeMembership(id uuid.UUID) {
	if refs, ok := r.subs[id]; ok {
		for ref := range refs {
			r.dropMember(ref, id)
		}
		delete(r.subs, id)
	}
	delete(r.general, id)
}

func (r *Registry) snapshotStats() Stats {
	stats := Stats{
		TotalConnections:        len(r.conns),
		CourtSubscriptions:      make(map[string]int, len(r.topics[TopicCourt])),
		GameSubscriptions:       make(map[string]int, len(r.topics[TopicGame])),
		TournamentSubscriptions: make(map[string]int, len(r.topics[TopicTournament])),
		GeneralSubscriptions:    len(r.general),
	}
	for topicID, set := range r.topics[TopicCourt] {
		stats.CourtSubscriptions[topicID] = len(set)
	}
	for topicID, set := range r.topics[TopicGame] {
		stats.GameSubscriptions[topicID] = len(set)
	}
	for topicID, set := range r.topics[TopicTournament] {
		stats.TournamentSubscriptions[topicID] = len(set)
	}
	return stats
}

func (r *Registry) handleStop() {
	slog.Info("Registry shutting down", "connections", len(r.conns))
	r.closeAllClients("Server shutting down")
	slog.Info("Registry shutdown complete")
}

// closeAllClients closes every client connection with the given reason.
// Used during shutdown and panic recovery.
func (r *Registry) closeAllClients(reason string) {
	for id, cl := range r.conns {
		cl.writer.stopGraceful(reason)
		delete(r.conns, id)
		delete(r.general, id)
		delete(r.subs, id)
	}
	for class := range r.topics {
		r.topics[class] = make(map[string]map[uuid.UUID]struct{})
		metrics.RealtimeActiveTopics.WithLabelValues(string(class)).Set(0)
	}
	r.users = make(map[string]uuid.UUID)
	metrics.RealtimeConnectedClients.Set(0)
}
