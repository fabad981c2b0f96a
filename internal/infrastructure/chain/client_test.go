package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainErrors "github.com/clearsats/paymentd/internal/domain/errors"
)

const watchedAddress = "bcrt1qw508d6qejxtdg4y5r3zarvary0c5xw7kygt080"

func TestClient_ObserveAddress(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name          string
		handler       func(w http.ResponseWriter, r *http.Request)
		wantFound     bool
		wantConfs     int64
		wantReceived  int64
		wantTxHash    string
		wantErr       bool
		wantTransient bool
	}{
		{
			name: "no transactions yet",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/address/"+watchedAddress+"/txs", r.URL.Path)
				w.Write([]byte(`[]`))
			},
			wantFound: false,
		},
		{
			name: "unconfirmed transaction in mempool",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[
					{"txid":"aa11","status":{"confirmed":false},
					 "vout":[{"scriptpubkey_address":"` + watchedAddress + `","value":150000}]}
				]`))
			},
			wantFound:    true,
			wantTxHash:   "aa11",
			wantConfs:    0,
			wantReceived: 150000,
		},
		{
			name: "confirmed transaction",
			handler: func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/address/" + watchedAddress + "/txs":
					w.Write([]byte(`[
						{"txid":"bb22","status":{"confirmed":true,"block_height":800000},
						 "vout":[
							{"scriptpubkey_address":"` + watchedAddress + `","value":100000},
							{"scriptpubkey_address":"bcrt1qother","value":5000}
						 ]}
					]`))
				case "/blocks/tip/height":
					w.Write([]byte("800002"))
				}
			},
			wantFound:    true,
			wantTxHash:   "bb22",
			wantConfs:    3,
			wantReceived: 100000,
		},
		{
			name: "transaction to other address only is not ours",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`[
					{"txid":"cc33","status":{"confirmed":true,"block_height":1},
					 "vout":[{"scriptpubkey_address":"bcrt1qother","value":9000}]}
				]`))
			},
			wantFound: false,
		},
		{
			name: "indexer 5xx is a transient error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			wantErr:       true,
			wantTransient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.handler))
			defer server.Close()

			client := NewClient(server.URL, 2*time.Second, logger)
			obs, err := client.ObserveAddress(context.Background(), watchedAddress)

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantTransient {
					assert.True(t, domainErrors.IsTransientChain(err))
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, obs.Found)
			if tt.wantFound {
				assert.Equal(t, tt.wantTxHash, obs.TxHash)
				assert.Equal(t, tt.wantConfs, obs.Confirmations)
				assert.Equal(t, tt.wantReceived, obs.ReceivedSats)
			}
		})
	}
}

func TestClient_ObserveAddress_PrefersConfirmedTx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/address/" + watchedAddress + "/txs":
			w.Write([]byte(`[
				{"txid":"mempool","status":{"confirmed":false},
				 "vout":[{"scriptpubkey_address":"` + watchedAddress + `","value":1}]},
				{"txid":"mined","status":{"confirmed":true,"block_height":100},
				 "vout":[{"scriptpubkey_address":"` + watchedAddress + `","value":200000}]}
			]`))
		case "/blocks/tip/height":
			w.Write([]byte("100"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, zap.NewNop())
	obs, err := client.ObserveAddress(context.Background(), watchedAddress)
	require.NoError(t, err)
	assert.Equal(t, "mined", obs.TxHash)
	assert.Equal(t, int64(1), obs.Confirmations)
}

func TestClient_ObserveAddress_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, zap.NewNop())
	_, err := client.ObserveAddress(context.Background(), watchedAddress)
	require.Error(t, err)
	assert.True(t, domainErrors.IsTransientChain(err))
}

func TestClient_ListUTXOs(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/address/"+watchedAddress+"/utxo", r.URL.Path)
		w.Write([]byte(`[
			{"txid":"aa11","vout":0,"value":150000},
			{"txid":"bb22","vout":1,"value":25000}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 2*time.Second, zap.NewNop())
	utxos, err := client.ListUTXOs(context.Background(), watchedAddress)
	require.NoError(t, err)
	require.Len(t, utxos, 2)
	assert.Equal(t, int64(150000), utxos[0].Value)
	assert.Equal(t, uint32(1), utxos[1].Vout)
}

func TestClient_BroadcastTx(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/tx", r.URL.Path)
			w.Write([]byte("dd44\n"))
		}))
		defer server.Close()

		client := NewClient(server.URL, 2*time.Second, zap.NewNop())
		txid, err := client.BroadcastTx(context.Background(), "0200...")
		require.NoError(t, err)
		assert.Equal(t, "dd44", txid)
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte("sendrawtransaction RPC error: min relay fee not met"))
		}))
		defer server.Close()

		client := NewClient(server.URL, 2*time.Second, zap.NewNop())
		_, err := client.BroadcastTx(context.Background(), "0200...")
		require.Error(t, err)
		assert.True(t, domainErrors.IsBroadcastRejected(err))
		assert.False(t, domainErrors.IsTransientChain(err))
	})

	t.Run("indexer down", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", 500*time.Millisecond, zap.NewNop())
		_, err := client.BroadcastTx(context.Background(), "0200...")
		require.Error(t, err)
		assert.True(t, domainErrors.IsTransientChain(err))
	})
}
