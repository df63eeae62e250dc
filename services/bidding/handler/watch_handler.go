package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auction-ledger/internal/models"
	"auction-ledger/internal/notifier"
	"auction-ledger/services/bidding/helpers"
	"auction-ledger/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AuctionReader is the read side of the bidding service used by watchers
type AuctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (models.Auction, error)
}

// auctionStateMessage is the first frame a watcher receives, so a client that
// reconnects does not need a separate fetch to catch up.
type auctionStateMessage struct {
	Type    string         `json:"type"`
	Auction models.Auction `json:"auction"`
}

type WatchHandler struct {
	auctions AuctionReader
	pub      notifier.Publisher
}

func NewWatchHandler(auctions AuctionReader, pub notifier.Publisher) *WatchHandler {
	return &WatchHandler{auctions: auctions, pub: pub}
}

// WatchAuctionHandler handles GET /ws/auctions/:auction_id. It streams the
// auction's events to the socket until either side goes away.
func (h *WatchHandler) WatchAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	if _, err := h.auctions.GetAuction(c.Request.Context(), auctionID); err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("WatchAuctionHandler: upgrade failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// subscribe before reading state so nothing committed in between is lost
	sub, err := h.pub.Subscribe(ctx, auctionID)
	if err != nil {
		utils.Error("WatchAuctionHandler: subscribe failed", map[string]any{"auction_id": auctionID, "error": err.Error()})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"), time.Now().Add(writeWait))
		return
	}
	defer sub.Close()

	auction, err := h.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		utils.Warn("WatchAuctionHandler: auction vanished", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(auctionStateMessage{Type: "auction_state", Auction: auction}); err != nil {
		return
	}

	utils.Info("WatchAuctionHandler: watcher connected", map[string]any{"auction_id": auctionID})
	defer utils.Info("WatchAuctionHandler: watcher disconnected", map[string]any{"auction_id": auctionID})

	go readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub.C:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames and cancels the stream once the client is gone
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
