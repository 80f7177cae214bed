package api

import (
	"context"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/internal/purger"
)

// wsClient wraps a dialed sync connection for the lifecycle test.
type wsClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func dialSync(t *testing.T, serverURL string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/sync"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial sync socket")
	t.Cleanup(func() { ws.Close() })
	return &wsClient{t: t, ws: ws}
}

func (c *wsClient) send(v any) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(v))
}

func (c *wsClient) recv() map[string]any {
	c.t.Helper()
	var msg map[string]any
	require.NoError(c.t, c.ws.ReadJSON(&msg))
	return msg
}

func (c *wsClient) recvBinary() []byte {
	c.t.Helper()
	kind, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.BinaryMessage, kind)
	return data
}

// TestFullLifecycle walks the whole account and vault flow over the
// public surface: signin, vault creation, two devices syncing a file,
// pull, history, deletion and the purge that reclaims storage.
func TestFullLifecycle(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seedAccount(t, "alice@example.com", "hunter2")
	ctx := context.Background()

	// Sign in over HTTP instead of using the seeded token.
	reply := ts.post(t, "/user/signin", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2",
	})
	token, _ := reply["token"].(string)
	require.Len(t, token, 32, "signin must mint a token")

	reply = ts.post(t, "/vault/create", map[string]string{"name": "notes", "token": token})
	require.NotContains(t, reply, "status_code", "vault create must succeed")

	reply = ts.post(t, "/vault/list", map[string]string{"token": token})
	vaults := reply["vaults"].([]any)
	require.Len(t, vaults, 1)
	entry := vaults[0].(map[string]any)
	vaultID := int64(entry["id"].(float64))
	keyhash, err := auth.KeyHash(entry["password"].(string), entry["salt"].(string))
	require.NoError(t, err)

	initFrame := func(device string, version int64, initial bool) map[string]any {
		return map[string]any{
			"op": "init", "token": token, "device": device,
			"id": vaultID, "keyhash": keyhash, "version": version, "initial": initial,
		}
	}

	deviceA := dialSync(t, ts.URL)
	deviceA.send(initFrame("device-a", 0, true))
	require.Equal(t, "ok", deviceA.recv()["res"])
	ready := deviceA.recv()
	require.Equal(t, "ready", ready["op"])
	assert.Equal(t, float64(0), ready["version"])

	deviceB := dialSync(t, ts.URL)
	deviceB.send(initFrame("device-b", 0, true))
	require.Equal(t, "ok", deviceB.recv()["res"])
	require.Equal(t, "ready", deviceB.recv()["op"])

	// Device A pushes a file; device B sees it live.
	deviceA.send(map[string]any{
		"op": "push", "path": "daily.md", "hash": "cafebabe",
		"folder": false, "deleted": false, "size": 9, "pieces": 1,
		"ctime": 100, "mtime": 200,
	})
	require.Equal(t, "missing-blobs", deviceA.recv()["res"])
	require.NoError(t, deviceA.ws.WriteMessage(websocket.BinaryMessage, []byte("morning!\n")))

	broadcast := deviceB.recv()
	require.Equal(t, "push", broadcast["op"])
	assert.Equal(t, "daily.md", broadcast["path"])
	assert.Equal(t, float64(9), broadcast["size"])

	// The pusher receives its own broadcast before the ack.
	require.Equal(t, "push", deviceA.recv()["op"])
	require.Equal(t, "ok", deviceA.recv()["res"])

	// Device B pulls the payload back.
	uid := int64(broadcast["uid"].(float64))
	deviceB.send(map[string]any{"op": "pull", "uid": uid})
	header := deviceB.recv()
	require.Equal(t, float64(9), header["size"])
	require.Equal(t, float64(1), header["pieces"])
	assert.Equal(t, "morning!\n", string(deviceB.recvBinary()))

	// History for the path shows the revision.
	deviceB.send(map[string]any{"op": "history", "path": "daily.md", "last": 0})
	history := deviceB.recv()
	items := history["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "device-a", items[0].(map[string]any)["device"])

	deviceA.ws.Close()
	deviceB.ws.Close()

	// Delete the vault and let the purger reclaim it.
	ts.post(t, "/vault/delete", map[string]any{"token": token, "vault_uid": vaultID})
	reply = ts.post(t, "/vault/list", map[string]string{"token": token})
	assert.Empty(t, reply["vaults"], "deleted vault must not be listed")

	p := purger.New(ts.store, ts.blobs, purger.Config{Enabled: true}, nil)
	require.NoError(t, p.Purge(ctx))

	_, err = ts.store.GetVault(ctx, vaultID, nil, true)
	assert.Error(t, err, "purged vault must be gone")
	_, err = ts.blobs.Size(ctx, vaultID, "cafebabe")
	assert.Error(t, err, "purged blob must be gone")
}

// TestRestoreOverWebSocket reverts a path to an older revision through
// the public socket and checks the new head over HTTP-level state.
func TestRestoreOverWebSocket(t *testing.T) {
	ts := newTestServer(t, false)
	ts.seedAccount(t, "alice@example.com", "hunter2")

	reply := ts.post(t, "/user/signin", map[string]string{
		"email": "alice@example.com", "password": "hunter2",
	})
	token := reply["token"].(string)

	ts.post(t, "/vault/create", map[string]string{"name": "notes", "token": token})
	reply = ts.post(t, "/vault/list", map[string]string{"token": token})
	entry := reply["vaults"].([]any)[0].(map[string]any)
	vaultID := int64(entry["id"].(float64))
	keyhash, err := auth.KeyHash(entry["password"].(string), entry["salt"].(string))
	require.NoError(t, err)

	client := dialSync(t, ts.URL)
	client.send(map[string]any{
		"op": "init", "token": token, "device": "laptop",
		"id": vaultID, "keyhash": keyhash, "version": 0, "initial": true,
	})
	require.Equal(t, "ok", client.recv()["res"])
	require.Equal(t, "ready", client.recv()["op"])

	push := func(hash, body string) int64 {
		client.send(map[string]any{
			"op": "push", "path": "note.md", "hash": hash,
			"folder": false, "deleted": false, "size": len(body), "pieces": 1,
			"ctime": 1, "mtime": 2,
		})
		require.Equal(t, "missing-blobs", client.recv()["res"])
		require.NoError(t, client.ws.WriteMessage(websocket.BinaryMessage, []byte(body)))
		frame := client.recv()
		require.Equal(t, "push", frame["op"])
		require.Equal(t, "ok", client.recv()["res"])
		return int64(frame["uid"].(float64))
	}

	first := push("hash-v1", "draft")
	push("hash-v2", "final")

	client.send(map[string]any{"op": "restore", "uid": first})
	restored := client.recv()
	require.Equal(t, "push", restored["op"])
	assert.Equal(t, "hash-v1", restored["hash"])
	assert.Equal(t, float64(3), restored["uid"], "restore must append a new revision")
	require.Equal(t, "ok", client.recv()["res"])

	// Pull through the restored head returns the old payload.
	client.send(map[string]any{"op": "pull", "uid": int64(restored["uid"].(float64))})
	header := client.recv()
	require.Equal(t, float64(5), header["size"])
	assert.Equal(t, "draft", string(client.recvBinary()))
}
