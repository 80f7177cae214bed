package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/marmos91/vaultsync/internal/logger"
	"github.com/marmos91/vaultsync/pkg/store/blob"
	"github.com/marmos91/vaultsync/pkg/vault/models"
)

const (
	// ChunkSize is the maximum payload of one binary piece.
	ChunkSize = 2 * 1024 * 1024

	// SizeLimit is the vault size limit advertised to clients. It is a
	// client-side hint and is not enforced on upload.
	SizeLimit int64 = 10 * 1024 * 1024 * 1024
)

// sizeToPieces returns the number of binary chunks needed for a blob.
func sizeToPieces(size int64) int {
	return int((size + ChunkSize - 1) / ChunkSize)
}

// Conn drives the sync protocol over one socket. The socket is read
// from a single goroutine (the serve loop); writes from the loop, the
// catch-up task, and broadcasting peers are serialized by a mutex.
type Conn struct {
	sock  Socket
	hub   *Hub
	blobs blob.Store

	device  string
	channel *Channel

	writeMu sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	catchup sync.WaitGroup
}

// NewConn wraps a socket in a sync connection. Serve runs the
// protocol.
func NewConn(sock Socket, hub *Hub, blobs blob.Store) *Conn {
	return &Conn{sock: sock, hub: hub, blobs: blobs}
}

// Serve authenticates the peer and runs the dispatch loop until the
// socket closes or a fatal error occurs. It always tears the
// connection down before returning.
func (c *Conn) Serve(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	defer c.teardown()

	if err := c.auth(); err != nil {
		if isClosedError(err) {
			return
		}
		logger.Warn("sync auth failed", "error", err)
		c.send(resultMessage{Res: resErr, Err: err.Error()})
		return
	}

	if err := c.loop(); err != nil && !isClosedError(err) {
		logger.Warn("sync connection error", "device", c.device, "error", err)
		c.send(fatalMessage{Err: "internal error", Msg: err.Error()})
	}
}

// auth consumes the init frame, resolves the token, joins the vault
// channel and starts catch-up.
func (c *Conn) auth() error {
	data, err := c.readText()
	if err != nil {
		return err
	}

	var msg initMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed init frame: %w", err)
	}
	if msg.Op != opInit {
		return fmt.Errorf("expected init, got %q", msg.Op)
	}

	token, err := c.hub.store.GetUserToken(c.ctx, msg.Token)
	if err != nil {
		return err
	}

	c.device = msg.Device
	channel, err := c.hub.Join(c.ctx, c, token.UserID, msg.VaultID, msg.KeyHash)
	if err != nil {
		return err
	}
	c.channel = channel

	if err := c.send(resultMessage{Res: resOK}); err != nil {
		return err
	}

	c.catchup.Add(1)
	go c.sendRecords(msg.Version, msg.Initial)
	return nil
}

// loop dispatches inbound text frames until the socket fails.
func (c *Conn) loop() error {
	for {
		data, err := c.readText()
		if err != nil {
			return err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("malformed frame: %w", err)
		}

		switch env.Op {
		case opPing:
			err = c.send(pongMessage{Op: opPong})
		case opSize:
			err = c.handleSize()
		case opPush:
			err = c.handlePush(data)
		case opPull:
			err = c.handlePull(data)
		case opDeleted:
			err = c.handleDeleted()
		case opHistory:
			err = c.handleHistory(data)
		case opRestore:
			err = c.handleRestore(data)
		default:
			logger.Warn("unknown sync op", "op", env.Op, "device", c.device)
			err = c.send(resultMessage{Res: resOK})
		}
		if err != nil {
			return err
		}
	}
}

func (c *Conn) handleSize() error {
	size, err := c.hub.store.GetVaultSize(c.ctx, c.channel.vaultID)
	if err != nil {
		return err
	}
	return c.send(sizeReply{Size: size, Limit: SizeLimit})
}

// handlePush ingests a record, pulling the blob from the client first
// when the vault has never seen its hash.
func (c *Conn) handlePush(data []byte) error {
	var msg pushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed push frame: %w", err)
	}

	hasBlob := !msg.Folder && !msg.Deleted
	if hasBlob && msg.Pieces > 0 {
		count, err := c.hub.store.HashCount(c.ctx, c.channel.vaultID, msg.Hash)
		if err != nil {
			return err
		}
		if count == 0 {
			if err := c.receiveBlob(msg.Hash, msg.Pieces); err != nil {
				return err
			}
		}
	}

	record := &models.DocumentRecord{
		VaultID:     c.channel.vaultID,
		Path:        msg.Path,
		RelatedPath: msg.RelatedPath,
		Hash:        msg.Hash,
		Folder:      msg.Folder,
		Deleted:     msg.Deleted,
		Size:        msg.Size,
		Device:      c.device,
		CTime:       msg.CTime,
		MTime:       msg.MTime,
	}
	if err := c.channel.Push(c.ctx, record); err != nil {
		return err
	}

	if record.HasBlob() {
		// The record now references the blob; the upload is no longer
		// pending.
		if err := c.hub.store.DeletePendingFile(c.ctx, c.channel.vaultID, msg.Hash); err != nil {
			logger.Warn("failed to clear pending upload", "vault_id", c.channel.vaultID, "hash", msg.Hash, "error", err)
		}
	}

	return c.send(resultMessage{Res: resOK})
}

// receiveBlob runs the server-pull upload: one missing-blobs request
// per chunk, each answered by a binary frame. A pending row marks the
// upload so the purger can reclaim it if the record never commits.
func (c *Conn) receiveBlob(hash string, pieces int) error {
	if err := c.hub.store.CreatePendingFile(c.ctx, c.channel.vaultID, hash); err != nil {
		return err
	}

	w, err := c.blobs.Create(c.ctx, c.channel.vaultID, hash)
	if err != nil {
		return err
	}
	defer w.Close()

	for i := 0; i < pieces; i++ {
		if err := c.send(resultMessage{Res: resMissingBlobs}); err != nil {
			return err
		}
		chunk, err := c.receiveBinary()
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		c.hub.metrics.BlobBytes("up", int64(len(chunk)))
	}
	return w.Close()
}

// receiveBinary waits for the next binary frame. Interleaved ping
// frames are answered with pong; any other text op mid-transfer is a
// protocol violation.
func (c *Conn) receiveBinary() ([]byte, error) {
	for {
		kind, data, err := c.sock.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == binaryFrame {
			return data, nil
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("malformed frame during blob transfer: %w", err)
		}
		if env.Op != opPing {
			return nil, fmt.Errorf("unexpected %q frame during blob transfer", env.Op)
		}
		if err := c.send(pongMessage{Op: opPong}); err != nil {
			return nil, err
		}
	}
}

// handlePull streams a record's blob to the client, header first.
func (c *Conn) handlePull(data []byte) error {
	var msg pullMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed pull frame: %w", err)
	}

	record, err := c.hub.store.GetRecord(c.ctx, c.channel.vaultID, msg.UID)
	if err != nil {
		return err
	}

	pieces := sizeToPieces(record.Size)
	if err := c.send(pullHeader{Size: record.Size, Pieces: pieces, Deleted: record.Deleted}); err != nil {
		return err
	}
	if record.Size == 0 {
		return nil
	}

	r, err := c.blobs.Open(c.ctx, c.channel.vaultID, record.Hash)
	if err != nil {
		return err
	}
	defer r.Close()

	remaining := record.Size
	for i := 0; i < pieces; i++ {
		n := int64(ChunkSize)
		if remaining < n {
			n = remaining
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return fmt.Errorf("reading blob %s: %w", record.Hash, err)
		}
		if err := c.writeFrame(binaryFrame, chunk); err != nil {
			return err
		}
		c.hub.metrics.BlobBytes("down", n)
		remaining -= n
	}
	return nil
}

func (c *Conn) handleDeleted() error {
	records, err := c.hub.store.GetDeleted(c.ctx, c.channel.vaultID)
	if err != nil {
		return err
	}
	return c.send(deletedReply{Items: historyItems(records)})
}

func (c *Conn) handleHistory(data []byte) error {
	var msg historyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed history frame: %w", err)
	}

	records, err := c.hub.store.GetHistory(c.ctx, c.channel.vaultID, msg.Path, msg.Last)
	if err != nil {
		return err
	}
	return c.send(historyReply{Items: historyItems(records), More: false})
}

// handleRestore duplicates a historical record as the new live head of
// its path.
func (c *Conn) handleRestore(data []byte) error {
	var msg restoreMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed restore frame: %w", err)
	}

	old, err := c.hub.store.GetRecord(c.ctx, c.channel.vaultID, msg.UID)
	if err != nil {
		return err
	}

	record := &models.DocumentRecord{
		VaultID:     old.VaultID,
		Path:        old.Path,
		RelatedPath: old.RelatedPath,
		Hash:        old.Hash,
		Folder:      old.Folder,
		Size:        old.Size,
		Device:      c.device,
		CTime:       old.CTime,
		MTime:       old.MTime,
	}
	if err := c.channel.Push(c.ctx, record); err != nil {
		return err
	}
	return c.send(resultMessage{Res: resOK})
}

// sendRecords is the catch-up task: replay every record past the
// client's cursor, then mark the stream ready. Live broadcasts may
// interleave; the client de-dupes by record id.
func (c *Conn) sendRecords(version int64, initial bool) {
	defer c.catchup.Done()

	latest, records, err := c.hub.store.GetUpdates(c.ctx, c.channel.vaultID, version, initial)
	if err != nil {
		logger.Warn("catch-up failed", "vault_id", c.channel.vaultID, "device", c.device, "error", err)
		c.send(resultMessage{Res: resErr, Err: err.Error()})
		c.sock.Close()
		return
	}

	for _, record := range records {
		if err := c.send(recordToPushFrame(record)); err != nil {
			return
		}
	}
	c.send(readyFrame{Op: opReady, Version: latest})
}

// readText reads the next frame and requires it to be text.
func (c *Conn) readText() ([]byte, error) {
	kind, data, err := c.sock.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind != textFrame {
		return nil, fmt.Errorf("unexpected binary frame")
	}
	return data, nil
}

func (c *Conn) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeFrame(textFrame, data)
}

func (c *Conn) writeFrame(kind int, data []byte) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(kind, data)
}

// teardown cancels catch-up, closes the socket and leaves the vault
// channel.
func (c *Conn) teardown() {
	c.cancel()
	c.sock.Close()
	c.catchup.Wait()
	if c.channel != nil {
		c.channel.Leave(c)
		c.channel = nil
	}
}
