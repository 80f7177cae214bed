package api

import (
	"net/http"

	"github.com/marmos91/vaultsync/internal/auth"
	"github.com/marmos91/vaultsync/pkg/vault/models"
	"github.com/marmos91/vaultsync/pkg/vault/store"
)

// VaultHandler serves vault management: listing, creation, soft
// deletion and password verification.
type VaultHandler struct {
	store *store.GORMStore
}

func NewVaultHandler(s *store.GORMStore) *VaultHandler {
	return &VaultHandler{store: s}
}

type vaultEntry struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Created  int64  `json:"created"`
	Password string `json:"password"`
	Salt     string `json:"salt"`
	Host     string `json:"host"`
}

type listResponse struct {
	Shared []vaultEntry `json:"shared"`
	Vaults []vaultEntry `json:"vaults"`
}

// List returns the caller's live vaults. Host points the client at
// this server's sync endpoint.
func (h *VaultHandler) List(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.GetUserToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	vaults, err := h.store.ListVaultsByOwner(r.Context(), token.UserID)
	if err != nil {
		writeError(w, err)
		return
	}

	host := r.Host + "/sync"
	entries := make([]vaultEntry, 0, len(vaults))
	for _, vault := range vaults {
		entries = append(entries, vaultEntry{
			ID:       vault.ID,
			Name:     vault.Name,
			Created:  vault.CreatedAt.UnixMilli(),
			Password: vault.Password,
			Salt:     vault.Salt,
			Host:     host,
		})
	}

	writeJSON(w, listResponse{Shared: []vaultEntry{}, Vaults: entries})
}

type createVaultRequest struct {
	Name    string `json:"name"`
	KeyHash string `json:"keyhash"`
	Salt    string `json:"salt"`
	Token   string `json:"token"`
}

// Create makes a vault. When the client supplies no keyhash the server
// generates a password and salt and derives the keyhash itself; the
// generated password is returned by List so other devices can join.
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVaultRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.GetUserToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	password := ""
	if req.KeyHash == "" {
		password, err = auth.GenerateSecret(auth.SecretLength)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Salt, err = auth.GenerateSecret(auth.SecretLength)
		if err != nil {
			writeError(w, err)
			return
		}
		req.KeyHash, err = auth.KeyHash(password, req.Salt)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	vault := &models.Vault{
		OwnerID:  token.UserID,
		Name:     req.Name,
		Password: password,
		Salt:     req.Salt,
		KeyHash:  req.KeyHash,
	}
	if err := h.store.CreateVault(r.Context(), vault); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, struct{}{})
}

type deleteVaultRequest struct {
	VaultUID int64  `json:"vault_uid"`
	Token    string `json:"token"`
}

// Delete soft-deletes an owned vault; the purger reclaims it later.
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteVaultRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.GetUserToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.store.SoftDeleteVault(r.Context(), req.VaultUID, token.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, struct{}{})
}

type accessVaultRequest struct {
	Token    string `json:"token"`
	VaultUID int64  `json:"vault_uid"`
	KeyHash  string `json:"keyhash"`
}

// Access verifies a vault password before the client opens a sync
// socket.
func (h *VaultHandler) Access(w http.ResponseWriter, r *http.Request) {
	var req accessVaultRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.store.GetUserToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	vault, err := h.store.GetVault(r.Context(), req.VaultUID, &token.UserID, false)
	if err != nil {
		writeError(w, err)
		return
	}

	if !auth.ConstantTimeEquals(vault.KeyHash, req.KeyHash) {
		writeError(w, models.ErrInvalidKeyHash)
		return
	}
	writeJSON(w, struct{}{})
}
