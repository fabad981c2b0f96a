package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
	"github.com/clearsats/paymentd/internal/domain/gateway"
)

// Client talks to an esplora-compatible blockchain indexer. A query that
// fails at the transport layer or with a non-success status is reported as a
// transient error, distinct from "address has no transactions yet" which is a
// valid observation.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Tx is an indexer transaction as returned by /address/{addr}/txs.
type Tx struct {
	TxID   string   `json:"txid"`
	Status TxStatus `json:"status"`
	Vout   []Vout   `json:"vout"`
}

type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
}

type Vout struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// UTXO is an unspent output on an address, used to build sweep transactions.
type UTXO struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

func NewClient(baseURL string, queryTimeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: queryTimeout,
		},
		logger: logger,
	}
}

// ObserveAddress implements gateway.ChainObserver.
func (c *Client) ObserveAddress(ctx context.Context, address string) (*gateway.AddressObservation, error) {
	var txs []Tx
	if err := c.getJSON(ctx, fmt.Sprintf("/address/%s/txs", address), &txs); err != nil {
		return nil, err
	}

	incoming := selectIncoming(txs, address)
	if incoming == nil {
		return &gateway.AddressObservation{Found: false}, nil
	}

	obs := &gateway.AddressObservation{
		Found:        true,
		TxHash:       incoming.TxID,
		ReceivedSats: receivedByAddress(incoming, address),
	}

	if incoming.Status.Confirmed {
		tip, err := c.tipHeight(ctx)
		if err != nil {
			return nil, err
		}
		obs.Confirmations = tip - incoming.Status.BlockHeight + 1
		if obs.Confirmations < 0 {
			// Tip height and tx height came from different indexer nodes.
			obs.Confirmations = 0
		}
	}

	return obs, nil
}

// ListUTXOs returns the unspent outputs on an address.
func (c *Client) ListUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var utxos []UTXO
	if err := c.getJSON(ctx, fmt.Sprintf("/address/%s/utxo", address), &utxos); err != nil {
		return nil, err
	}
	return utxos, nil
}

// BroadcastTx submits a raw transaction and returns its txid. A 4xx answer
// means the indexer rejected the transaction itself; anything else that goes
// wrong is transient.
func (c *Client) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", fmt.Errorf("failed to build broadcast request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainErrors.ErrChainUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainErrors.ErrChainUnavailable, err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		c.logger.Warn("Broadcast rejected by indexer",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)))
		return "", &domainErrors.BroadcastRejectedError{Reason: strings.TrimSpace(string(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &domainErrors.IndexerError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *Client) tipHeight(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable tip height %q: %w", string(body), err)
	}
	return height, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode indexer response for %s: %w", path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build indexer request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrChainUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrChainUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &domainErrors.IndexerError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return body, nil
}

// selectIncoming picks the transaction paying the address, preferring a
// confirmed one over mempool entries.
func selectIncoming(txs []Tx, address string) *Tx {
	var unconfirmed *Tx
	for i := range txs {
		tx := &txs[i]
		if receivedByAddress(tx, address) == 0 {
			continue
		}
		if tx.Status.Confirmed {
			return tx
		}
		if unconfirmed == nil {
			unconfirmed = tx
		}
	}
	return unconfirmed
}

func receivedByAddress(tx *Tx, address string) int64 {
	var total int64
	for _, out := range tx.Vout {
		if out.ScriptPubKeyAddress == address {
			total += out.Value
		}
	}
	return total
}
