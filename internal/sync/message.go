package sync

import (
	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// Client to server ops.
const (
	opInit    = "init"
	opPing    = "ping"
	opPong    = "pong"
	opSize    = "size"
	opPush    = "push"
	opPull    = "pull"
	opDeleted = "deleted"
	opHistory = "history"
	opRestore = "restore"
	opReady   = "ready"
)

// Result values. Anything other than "ok" tells an uploading client to
// send the next binary chunk.
const (
	resOK           = "ok"
	resErr          = "err"
	resMissingBlobs = "missing-blobs"
)

// envelope is the minimal decode of any inbound text frame, enough to
// dispatch on the op tag.
type envelope struct {
	Op string `json:"op"`
}

// initMessage is the first frame a client must send.
type initMessage struct {
	Op      string `json:"op"`
	Token   string `json:"token"`
	Device  string `json:"device"`
	VaultID int64  `json:"id"`
	KeyHash string `json:"keyhash"`
	Version int64  `json:"version"`
	Initial bool   `json:"initial"`
}

// pushMessage describes a record the client wants appended. Pieces is
// the number of binary chunks the client is prepared to upload for the
// record's blob.
type pushMessage struct {
	Op          string `json:"op"`
	Path        string `json:"path"`
	RelatedPath string `json:"relatedpath"`
	Hash        string `json:"hash"`
	Folder      bool   `json:"folder"`
	Deleted     bool   `json:"deleted"`
	Size        int64  `json:"size"`
	Pieces      int    `json:"pieces"`
	CTime       int64  `json:"ctime"`
	MTime       int64  `json:"mtime"`
}

// pullMessage requests the blob behind a record id.
type pullMessage struct {
	Op  string `json:"op"`
	UID int64  `json:"uid"`
}

// historyMessage requests revisions of a path older than Last.
type historyMessage struct {
	Op   string `json:"op"`
	Path string `json:"path"`
	Last int64  `json:"last"`
}

// restoreMessage resurrects a historical record as the new head.
type restoreMessage struct {
	Op  string `json:"op"`
	UID int64  `json:"uid"`
}

// resultMessage acknowledges an operation or requests the next chunk.
type resultMessage struct {
	Res string `json:"res"`
	Err string `json:"err,omitempty"`
}

// pongMessage answers a keepalive ping.
type pongMessage struct {
	Op string `json:"op"`
}

// fatalMessage is the last frame sent before closing on an unhandled
// error.
type fatalMessage struct {
	Err string `json:"err"`
	Msg string `json:"msg"`
}

// pushFrame is the broadcast and catch-up representation of a record.
// Size is present only for live files: folders and deletions carry no
// blob.
type pushFrame struct {
	Op      string `json:"op"`
	UID     int64  `json:"uid"`
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Folder  bool   `json:"folder"`
	Deleted bool   `json:"deleted"`
	CTime   int64  `json:"ctime"`
	MTime   int64  `json:"mtime"`
	Size    *int64 `json:"size,omitempty"`
}

// readyFrame ends catch-up and hands the client its new cursor.
type readyFrame struct {
	Op      string `json:"op"`
	Version int64  `json:"version"`
}

// sizeReply answers the size op.
type sizeReply struct {
	Size  int64 `json:"size"`
	Limit int64 `json:"limit"`
}

// pullHeader precedes the binary chunks of a pull.
type pullHeader struct {
	Size    int64 `json:"size"`
	Pieces  int   `json:"pieces"`
	Deleted bool  `json:"deleted"`
}

// historyItem is the wire shape of a record in history and deleted
// listings. TS is the record creation time in milliseconds.
type historyItem struct {
	UID         int64  `json:"uid"`
	Path        string `json:"path"`
	RelatedPath string `json:"relatedpath"`
	Folder      bool   `json:"folder"`
	Device      string `json:"device"`
	Size        int64  `json:"size"`
	Deleted     bool   `json:"deleted"`
	TS          int64  `json:"ts"`
}

// historyReply answers the history op. More is reserved for paging and
// always false today.
type historyReply struct {
	Items []historyItem `json:"items"`
	More  bool          `json:"more"`
}

// deletedReply answers the deleted op.
type deletedReply struct {
	Items []historyItem `json:"items"`
}

// recordToPushFrame converts a committed record into its broadcast
// shape.
func recordToPushFrame(record *models.DocumentRecord) pushFrame {
	frame := pushFrame{
		Op:      opPush,
		UID:     record.ID,
		Path:    record.Path,
		Hash:    record.Hash,
		Folder:  record.Folder,
		Deleted: record.Deleted,
		CTime:   record.CTime,
		MTime:   record.MTime,
	}
	if record.HasBlob() {
		size := record.Size
		frame.Size = &size
	}
	return frame
}

// recordToHistoryItem converts a record into its history listing shape.
func recordToHistoryItem(record *models.DocumentRecord) historyItem {
	return historyItem{
		UID:         record.ID,
		Path:        record.Path,
		RelatedPath: record.RelatedPath,
		Folder:      record.Folder,
		Device:      record.Device,
		Size:        record.Size,
		Deleted:     record.Deleted,
		TS:          record.CreatedAt.UnixMilli(),
	}
}

func historyItems(records []*models.DocumentRecord) []historyItem {
	items := make([]historyItem, 0, len(records))
	for _, record := range records {
		items = append(items, recordToHistoryItem(record))
	}
	return items
}
