package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/visatk/pdf-core/internal/ai"
	"github.com/visatk/pdf-core/internal/domain"
	"github.com/visatk/pdf-core/internal/metrics"
)

const (
	maxClientsPerSession = 50
	commandTimeout       = 5 * time.Second
)

// Summarizer produces a document summary for a session key. ai.ErrNoDocument
// marks the requester-only "nothing uploaded" outcome.
type Summarizer interface {
	Summarize(ctx context.Context, key string) (string, error)
}

// --- Command types ---

type coordinatorCmd interface{ isCoordinatorCmd() }

type baseCoordinatorCmd struct{}

func (baseCoordinatorCmd) isCoordinatorCmd() {}

type attachCmd struct {
	baseCoordinatorCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type detachCmd struct {
	baseCoordinatorCmd
	connection *websocket.Conn
}

type inboundCmd struct {
	baseCoordinatorCmd
	connection *websocket.Conn
	raw        []byte
}

type uploadCmd struct {
	baseCoordinatorCmd
	ctx          context.Context
	data         []byte
	contentType  string
	fileName     string
	replyChannel chan uploadReply
}

type uploadReply struct {
	meta domain.SessionMeta
	err  error
}

type downloadCmd struct {
	baseCoordinatorCmd
	ctx          context.Context
	replyChannel chan downloadReply
}

type downloadReply struct {
	data        []byte
	contentType string
	found       bool
	err         error
}

type saveChangesCmd struct {
	baseCoordinatorCmd
	ctx          context.Context
	data         []byte
	replyChannel chan error
}

type metadataCmd struct {
	baseCoordinatorCmd
	replyChannel chan domain.SessionMeta
}

type clientCountCmd struct {
	baseCoordinatorCmd
	replyChannel chan int
}

type aiOutcomeCmd struct {
	baseCoordinatorCmd
	requester *websocket.Conn
	text      string
	err       error
}

type stopCmd struct {
	baseCoordinatorCmd
	doneChannel chan struct{}
}

// --- Coordinator ---

// client pairs a connection with its writer. Clients are kept in attach
// order so broadcast iteration is deterministic.
type client struct {
	connection *websocket.Conn
	writer     *clientWriter
}

// Coordinator is the single-writer actor owning one session's live state:
// the annotation set, the deleted-page set, the session metadata, and the
// attached connections. Every operation, HTTP-originated or
// WebSocket-originated, is serialized through its command channel, so no
// locking is needed on the state it owns.
//
// Sync messages replace state wholesale and are re-broadcast verbatim to
// every other connection. Two clients racing full-state replaces resolve
// last-write-wins in command arrival order; there is no merge.
//
// The in-memory state has no durability: a restart loses unsynced
// annotations while the last-saved document bytes remain in the blob store.
type Coordinator struct {
	id         uuid.UUID
	cmdCh      chan coordinatorCmd
	clock      clockwork.Clock
	store      domain.BlobStore
	summarizer Summarizer
	logger     *slog.Logger

	// actor-owned state, touched only by run()
	meta         domain.SessionMeta
	annotations  []domain.Annotation
	deletedPages []int
	clients      []*client
	byConnection map[*websocket.Conn]*client

	aiWG      sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

func NewCoordinator(id uuid.UUID, store domain.BlobStore, summarizer Summarizer, clock clockwork.Clock) *Coordinator {
	co := &Coordinator{
		id:           id,
		cmdCh:        make(chan coordinatorCmd, 256),
		clock:        clock,
		store:        store,
		summarizer:   summarizer,
		logger:       slog.Default().With("session_id", id.String()),
		annotations:  []domain.Annotation{},
		deletedPages: []int{},
		byConnection: make(map[*websocket.Conn]*client),
		done:         make(chan struct{}),
	}
	go co.run()
	return co
}

// ID returns the session identifier this coordinator owns.
func (co *Coordinator) ID() uuid.UUID {
	return co.id
}

func (co *Coordinator) run() {
	for cmd := range co.cmdCh {
		switch c := cmd.(type) {
		case attachCmd:
			co.handleAttach(c)
		case detachCmd:
			co.removeClient(c.connection)
		case inboundCmd:
			co.handleInbound(c)
		case uploadCmd:
			co.handleUpload(c)
		case downloadCmd:
			co.handleDownload(c)
		case saveChangesCmd:
			co.handleSaveChanges(c)
		case metadataCmd:
			c.replyChannel <- co.meta
		case clientCountCmd:
			c.replyChannel <- len(co.clients)
		case aiOutcomeCmd:
			co.handleAIOutcome(c)
		case stopCmd:
			co.handleStop()
			close(c.doneChannel)
			return
		}
	}
}

// --- Attach / detach ---

func (co *Coordinator) handleAttach(c attachCmd) {
	if len(co.clients) >= maxClientsPerSession {
		co.logger.Warn("Rejecting client: max clients reached", "max", maxClientsPerSession)
		_ = c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients per session (%d) reached", maxClientsPerSession)
		return
	}

	cl := &client{connection: c.connection, writer: newClientWriter(c.connection, co.clock)}
	co.clients = append(co.clients, cl)
	co.byConnection[c.connection] = cl
	metrics.WebSocketConnectionsActive.Inc()
	co.logger.Debug("Client attached", "clients", len(co.clients))

	// Initial snapshot, taken while no other command can interleave, so a
	// late joiner never observes torn state.
	co.sendJSON(c.connection, domain.SyncAnnotationsMessage{
		Type:        domain.MsgSyncAnnotations,
		Annotations: co.annotations,
	})
	co.sendJSON(c.connection, domain.SyncDeletedPagesMessage{
		Type:         domain.MsgSyncDeletedPages,
		DeletedPages: co.deletedPages,
	})

	c.errorChannel <- nil
}

// removeClient drops a connection from the set and stops its writer.
// Safe to call for connections that were already removed.
func (co *Coordinator) removeClient(conn *websocket.Conn) {
	cl, exists := co.byConnection[conn]
	if !exists {
		return
	}

	delete(co.byConnection, conn)
	for i, existing := range co.clients {
		if existing == cl {
			co.clients = append(co.clients[:i], co.clients[i+1:]...)
			break
		}
	}
	cl.writer.stop()
	metrics.WebSocketConnectionsActive.Dec()
	co.logger.Debug("Client detached", "clients", len(co.clients))
}

// --- Message dispatch ---

func (co *Coordinator) handleInbound(c inboundCmd) {
	env, err := domain.ParseEnvelope(c.raw)
	if err != nil {
		metrics.WebSocketParseErrors.Inc()
		co.logger.Warn("Dropping malformed frame", "error", err)
		return
	}
	metrics.WebSocketMessagesTotal.WithLabelValues(env.Type).Inc()

	switch env.Type {
	case domain.MsgSyncAnnotations:
		var msg domain.SyncAnnotationsMessage
		if err := json.Unmarshal(c.raw, &msg); err != nil {
			metrics.WebSocketParseErrors.Inc()
			co.logger.Warn("Dropping malformed sync-annotations frame", "error", err)
			return
		}
		if msg.Annotations == nil {
			msg.Annotations = []domain.Annotation{}
		}
		co.annotations = msg.Annotations
		co.broadcast(c.raw, c.connection)

	case domain.MsgSyncDeletedPages:
		var msg domain.SyncDeletedPagesMessage
		if err := json.Unmarshal(c.raw, &msg); err != nil {
			metrics.WebSocketParseErrors.Inc()
			co.logger.Warn("Dropping malformed sync-deleted-pages frame", "error", err)
			return
		}
		if msg.DeletedPages == nil {
			msg.DeletedPages = []int{}
		}
		co.deletedPages = msg.DeletedPages
		co.broadcast(c.raw, c.connection)

	case domain.MsgCursorMove:
		// Ephemeral presence signal: relayed, never stored.
		co.broadcast(c.raw, c.connection)

	case domain.MsgAISummarize:
		co.startSummarize(c.connection)

	default:
		co.logger.Debug("Dropping frame with unknown type", "type", env.Type)
	}
}

// --- Broadcast primitives ---

// broadcast delivers raw to every attached connection except exclude, in
// attach order. A failed delivery evicts that connection without aborting
// delivery to the rest.
func (co *Coordinator) broadcast(raw []byte, exclude *websocket.Conn) {
	metrics.WebSocketBroadcastsTotal.Inc()

	var failed []*websocket.Conn
	for _, cl := range co.clients {
		if cl.connection == exclude {
			continue
		}
		if !cl.writer.trySend(raw) {
			failed = append(failed, cl.connection)
		}
	}

	for _, conn := range failed {
		metrics.WebSocketDroppedClients.Inc()
		co.logger.Warn("Evicting unresponsive client")
		co.removeClient(conn)
	}
}

// sendTo delivers raw to a single connection if it is still attached.
func (co *Coordinator) sendTo(conn *websocket.Conn, raw []byte) {
	cl, exists := co.byConnection[conn]
	if !exists {
		return
	}
	if !cl.writer.trySend(raw) {
		metrics.WebSocketDroppedClients.Inc()
		co.logger.Warn("Evicting unresponsive client")
		co.removeClient(conn)
	}
}

func (co *Coordinator) sendJSON(conn *websocket.Conn, msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		co.logger.Error("Failed to marshal outbound message", "error", err)
		return
	}
	co.sendTo(conn, raw)
}

func (co *Coordinator) broadcastJSON(msg any) {
	raw, err := json.Marshal(msg)
	if err != nil {
		co.logger.Error("Failed to marshal outbound message", "error", err)
		return
	}
	co.broadcast(raw, nil)
}

// --- Document operations ---

func (co *Coordinator) handleUpload(c uploadCmd) {
	if err := co.store.Put(c.ctx, co.id.String(), c.data, c.contentType); err != nil {
		c.replyChannel <- uploadReply{err: err}
		return
	}

	// Meta changes only after the store accepted the write.
	co.meta = domain.SessionMeta{
		FileName:   c.fileName,
		UploadedAt: co.clock.Now().UnixMilli(),
	}
	co.logger.Info("Document uploaded", "file_name", c.fileName, "bytes", len(c.data))
	c.replyChannel <- uploadReply{meta: co.meta}
}

func (co *Coordinator) handleDownload(c downloadCmd) {
	data, contentType, found, err := co.store.Get(c.ctx, co.id.String())
	c.replyChannel <- downloadReply{data: data, contentType: contentType, found: found, err: err}
}

func (co *Coordinator) handleSaveChanges(c saveChangesCmd) {
	// Rendered output replaces stored bytes; session metadata is untouched.
	err := co.store.Put(c.ctx, co.id.String(), c.data, "application/pdf")
	if err == nil {
		co.logger.Info("Document changes saved", "bytes", len(c.data))
	}
	c.replyChannel <- err
}

// --- AI pipeline scheduling ---

// startSummarize acknowledges the requester and schedules the pipeline as
// detached background work. The coordinator keeps processing other events
// while the pipeline runs; its completion comes back as one more command.
func (co *Coordinator) startSummarize(requester *websocket.Conn) {
	co.sendJSON(requester, domain.AIStatusMessage{
		Type:   domain.MsgAIStatus,
		Status: domain.AIStatusThinking,
	})

	co.aiWG.Add(1)
	go func() {
		defer co.aiWG.Done()
		text, err := co.summarizer.Summarize(context.Background(), co.id.String())
		select {
		case co.cmdCh <- aiOutcomeCmd{requester: requester, text: text, err: err}:
		case <-co.done:
			// Coordinator shut down while the pipeline ran; nobody is
			// left to receive the result.
		}
	}()
}

func (co *Coordinator) handleAIOutcome(c aiOutcomeCmd) {
	switch {
	case c.err == nil:
		// A summary is a document-level artifact: everyone gets it,
		// including the requester.
		co.broadcastJSON(domain.AIResultMessage{Type: domain.MsgAIResult, Text: c.text})
	case errors.Is(c.err, ai.ErrNoDocument):
		co.sendJSON(c.requester, domain.AIResultMessage{
			Type: domain.MsgAIResult,
			Text: "No document has been uploaded to this session yet.",
		})
	default:
		co.logger.Error("Summarization failed", "error", c.err)
		co.sendJSON(c.requester, domain.AIResultMessage{
			Type: domain.MsgAIResult,
			Text: "Sorry, something went wrong while summarizing the document.",
		})
	}
}

func (co *Coordinator) handleStop() {
	for _, cl := range co.clients {
		cl.writer.stop()
		metrics.WebSocketConnectionsActive.Dec()
	}
	co.clients = nil
	co.byConnection = make(map[*websocket.Conn]*client)
	close(co.done)
}

// --- Public API ---

// Attach adds a connection and sends it the current state snapshot.
func (co *Coordinator) Attach(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	co.cmdCh <- attachCmd{connection: conn, errorChannel: errCh}

	timer := co.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("attach command timed out after %v", commandTimeout)
	}
}

// Detach removes a connection. No leave notification is sent.
func (co *Coordinator) Detach(conn *websocket.Conn) {
	co.cmdCh <- detachCmd{connection: conn}
}

// HandleMessage feeds one inbound frame into the coordinator's event loop.
func (co *Coordinator) HandleMessage(conn *websocket.Conn, raw []byte) {
	co.cmdCh <- inboundCmd{connection: conn, raw: raw}
}

// Upload stores document bytes under the session key and updates metadata.
func (co *Coordinator) Upload(ctx context.Context, data []byte, contentType, fileName string) (domain.SessionMeta, error) {
	replyCh := make(chan uploadReply, 1)
	co.cmdCh <- uploadCmd{ctx: ctx, data: data, contentType: contentType, fileName: fileName, replyChannel: replyCh}

	select {
	case reply := <-replyCh:
		return reply.meta, reply.err
	case <-ctx.Done():
		return domain.SessionMeta{}, ctx.Err()
	}
}

// Download returns the stored document bytes. found is false when the
// session has no document.
func (co *Coordinator) Download(ctx context.Context) (data []byte, contentType string, found bool, err error) {
	replyCh := make(chan downloadReply, 1)
	co.cmdCh <- downloadCmd{ctx: ctx, replyChannel: replyCh}

	select {
	case reply := <-replyCh:
		return reply.data, reply.contentType, reply.found, reply.err
	case <-ctx.Done():
		return nil, "", false, ctx.Err()
	}
}

// SaveChanges overwrites the stored document bytes with rendered output.
func (co *Coordinator) SaveChanges(ctx context.Context, data []byte) error {
	replyCh := make(chan error, 1)
	co.cmdCh <- saveChangesCmd{ctx: ctx, data: data, replyChannel: replyCh}

	select {
	case err := <-replyCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Metadata returns the current session metadata.
func (co *Coordinator) Metadata() domain.SessionMeta {
	replyCh := make(chan domain.SessionMeta, 1)
	co.cmdCh <- metadataCmd{replyChannel: replyCh}
	return <-replyCh
}

// ClientCount returns the number of attached connections. Returns -1 if the
// command times out.
func (co *Coordinator) ClientCount() int {
	replyCh := make(chan int, 1)
	co.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := co.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		return -1
	}
}

// Close stops the event loop, closes all connections, and waits for any
// in-flight summarization pipeline to finish.
func (co *Coordinator) Close() {
	co.closeOnce.Do(func() {
		doneCh := make(chan struct{})
		co.cmdCh <- stopCmd{doneChannel: doneCh}
		<-doneCh
	})
	co.aiWG.Wait()
}
