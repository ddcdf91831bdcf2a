package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/common"
)

const maxJSONBody = 1 << 20

type connectRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required"`
}

type userView struct {
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLogin     time.Time `json:"lastLogin"`
}

type connectResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    userView `json:"user"`
}

func (h *Handler) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		h.writeError(r.Context(), w, fmt.Errorf("%w: %v", common.ErrValidation, err), "Invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(r.Context(), w, fmt.Errorf("%w: %v", common.ErrValidation, err), "Wallet address is required")
		return
	}

	user, token, err := h.users.Connect(r.Context(), req.WalletAddress)
	if err != nil {
		h.writeError(r.Context(), w, err, "Wallet address is required")
		return
	}

	writeJSON(w, http.StatusOK, connectResponse{
		Message: "Wallet connected successfully",
		Token:   token,
		User: userView{
			WalletAddress: user.WalletAddress,
			CreatedAt:     user.CreatedAt,
			LastLogin:     user.LastLogin,
		},
	})
}

func (h *Handler) handleDisconnectWallet(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	if err := h.users.Disconnect(r.Context(), user.WalletAddress); err != nil {
		h.writeError(r.Context(), w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Wallet disconnected successfully"})
}
