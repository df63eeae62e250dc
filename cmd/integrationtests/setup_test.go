package integrationtests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-ledger/internal/biddingService"
	"auction-ledger/internal/notifier"
	"auction-ledger/internal/repository"
	"auction-ledger/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// testApp bundles a router wired the way main wires it
type testApp struct {
	router  *gin.Engine
	service *bidding.BiddingService
	hub     *notifier.Hub
}

// backends lists the stores every API test runs against
var backends = []struct {
	name string
	open func(t *testing.T) repository.AuctionDB
}{
	{
		name: "memory",
		open: func(*testing.T) repository.AuctionDB { return repository.NewMemoryRepo() },
	},
	{
		name: "sqlite",
		open: func(t *testing.T) repository.AuctionDB {
			db, err := repository.OpenSQLite(":memory:")
			require.NoError(t, err)
			repo := repository.NewGormRepo(db)
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		},
	},
}

// SetupTestApp initializes the router over repo with an in-process hub
func SetupTestApp(t *testing.T, repo repository.AuctionDB) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := notifier.NewHub(16)
	notif := notifier.New(hub)
	t.Cleanup(notif.Close)
	service := bidding.NewBiddingService(repo, notif)
	return &testApp{
		router:  server.SetupRouter(service, hub),
		service: service,
		hub:     hub,
	}
}

// ExecuteRequestAndParse executes an HTTP request as userID and parses the envelope
func ExecuteRequestAndParse(t *testing.T, router http.Handler, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	case string:
		reqBody = []byte(v)
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(server.UserIDHeader, userID)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// CreateActiveAuction creates an auction as seller and activates it, returning its id
func CreateActiveAuction(t *testing.T, router http.Handler, seller string, startingPrice, increment float64, antiSnipe int, endIn time.Duration) string {
	t.Helper()

	body := map[string]any{
		"title":              "Integration auction",
		"starting_price":     startingPrice,
		"minimum_increment":  increment,
		"anti_snipe_seconds": antiSnipe,
		"end_time":           time.Now().Add(endIn).UTC().Format(time.RFC3339Nano),
	}
	resp, w := ExecuteRequestAndParse(t, router, http.MethodPost, "/auctions", seller, body)
	require.Equal(t, http.StatusCreated, w.Code, "create auction: %v", resp)
	auctionID := resp["data"].(map[string]any)["auction_id"].(string)

	resp, w = ExecuteRequestAndParse(t, router, http.MethodPost, fmt.Sprintf("/auctions/%s/activate", auctionID), seller, nil)
	require.Equal(t, http.StatusOK, w.Code, "activate auction: %v", resp)
	return auctionID
}

// PlaceBid submits a bid and returns the response envelope
func PlaceBid(t *testing.T, router http.Handler, auctionID, bidder string, amount any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	return ExecuteRequestAndParse(t, router, http.MethodPost, "/bids", bidder, map[string]any{
		"auction_id": auctionID,
		"amount":     amount,
	})
}
