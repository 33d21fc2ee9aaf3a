package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/payment-splitter/internal/plutus"
)

const (
	testSubmittedTxHash = "a0b1c2d3e4f5a6b7c8d9e0f1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f90011"
	testWalletTxHash    = "1111111111111111111111111111111111111111111111111111111111111111"
	testScriptTxHash    = "2222222222222222222222222222222222222222222222222222222222222222"

	testProtocolParams = `{
		"txFeePerByte": 44,
		"txFeeFixed": 155381,
		"utxoCostPerByte": 4310,
		"maxTxSize": 16384,
		"collateralPercentage": 150,
		"maxCollateralInputs": 3,
		"executionUnitPrices": {"priceMemory": 0.0577, "priceSteps": 0.0000721},
		"maxTxExecutionUnits": {"memory": 14000000, "steps": 10000000000},
		"costModels": {"PlutusV2": [205665, 812, 1, 1, 1000, 571, 0, 1]}
	}`
)

type testConsoleWriter struct {
	lines []string
}

func (w *testConsoleWriter) Println(a ...any) {
	s := fmt.Sprintln(a...)
	w.lines = append(w.lines, s[:len(s)-1]) // remove newline
}

func (w *testConsoleWriter) Print(a ...any) {
	w.Println(a...)
}

func execCommand(homeDir, command string) (*testConsoleWriter, error) {
	outputWriter := &testConsoleWriter{}
	consoleWriter = outputWriter

	cmd := New()
	args := "--home " + homeDir + " " + command
	cmd.baseCmd.SetArgs(strings.Split(args, " "))

	return outputWriter, cmd.addAndExecuteCommand(context.Background())
}

func verifyStdout(t *testing.T, consoleWriter *testConsoleWriter, expectedLines ...string) {
	t.Helper()
	joined := strings.Join(consoleWriter.lines, "\n")
	for _, expectedLine := range expectedLines {
		require.Contains(t, joined, expectedLine)
	}
}

func setupTestHomeDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "splitter-test")
}

// writeTestValidator writes a blueprint with a validator accepting any
// transaction.
func writeTestValidator(t *testing.T, homeDir string) {
	t.Helper()
	flat, err := plutus.EncodeFlat(&plutus.Program{
		Version: [3]uint64{1, 0, 0},
		Term:    &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Lambda{Body: &plutus.Var{Index: 4}}}}},
	})
	require.NoError(t, err)
	code, err := cbor.Marshal(flat)
	require.NoError(t, err)
	bp := fmt.Sprintf(`{
		"preamble": {"title": "test/splitter", "plutusVersion": "v2"},
		"validators": [{"title": "payment_splitter.spend", "compiledCode": %q}]
	}`, hex.EncodeToString(code))
	require.NoError(t, os.MkdirAll(homeDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, defaultValidatorFile), []byte(bp), 0600))
}

// koiosMock serves the signer funds for key addresses and the locked funds
// for script addresses.
type koiosMock struct {
	mu            sync.Mutex
	walletAmount  uint64
	scriptAmount  uint64
	submitStatus  int
	submitBody    string
	submitted     [][]byte
	requestedPath []string
	// scriptDatumHash is the datum hash of the locked funds, hex
	scriptDatumHash string
	// confirmations reported for every submitted tx
	confirmations int
}

func (m *koiosMock) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(srv.Close)
	return srv
}

func (m *koiosMock) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestedPath = append(m.requestedPath, r.URL.Path)

	switch {
	case strings.HasSuffix(r.URL.Path, "/address_utxos"):
		var req struct {
			Addresses []string `json:"_addresses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		addr := req.Addresses[0]
		var utxos []map[string]any
		if isScriptAddress(addr) {
			if m.scriptAmount > 0 {
				utxos = append(utxos, map[string]any{"tx_hash": testScriptTxHash, "tx_index": 0, "address": addr, "value": fmt.Sprint(m.scriptAmount), "asset_list": []any{}, "datum_hash": m.scriptDatumHash})
			}
		} else if m.walletAmount > 0 {
			utxos = append(utxos, map[string]any{"tx_hash": testWalletTxHash, "tx_index": 0, "address": addr, "value": fmt.Sprint(m.walletAmount), "asset_list": []any{}})
		}
		writeJson(w, utxos)
	case strings.HasSuffix(r.URL.Path, "/address_info"):
		var req struct {
			Addresses []string `json:"_addresses"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		balance := m.walletAmount
		if isScriptAddress(req.Addresses[0]) {
			balance = m.scriptAmount
		}
		writeJson(w, []map[string]any{{"address": req.Addresses[0], "balance": fmt.Sprint(balance)}})
	case strings.HasSuffix(r.URL.Path, "/cli_protocol_params"):
		_, _ = w.Write([]byte(testProtocolParams))
	case strings.HasSuffix(r.URL.Path, "/tx_status"):
		var req struct {
			TxHashes []string `json:"_tx_hashes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var res []map[string]any
		for _, h := range req.TxHashes {
			res = append(res, map[string]any{"tx_hash": h, "num_confirmations": m.confirmations})
		}
		writeJson(w, res)
	case strings.HasSuffix(r.URL.Path, "/submittx"):
		b, _ := io.ReadAll(r.Body)
		if m.submitStatus != 0 {
			w.WriteHeader(m.submitStatus)
			_, _ = w.Write([]byte(m.submitBody))
			return
		}
		m.submitted = append(m.submitted, b)
		writeJson(w, testSubmittedTxHash)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (m *koiosMock) submittedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submitted)
}

// script addresses of the test network start with the enterprise script header
func isScriptAddress(addr string) bool {
	return strings.HasPrefix(addr, "addr_test1w")
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// signerDatumHash returns the hex datum hash of funds locked by the signer of
// the payees in homeDir.
func signerDatumHash(t *testing.T, homeDir string) string {
	t.Helper()
	stdout, err := execCommand(homeDir, "addresses")
	require.NoError(t, err)
	fields := strings.Fields(stdout.lines[0])
	require.Len(t, fields, 4, "signer must be payee 0")
	kh, err := hex.DecodeString(fields[2])
	require.NoError(t, err)
	h, err := plutus.Hash(plutus.NewLockDatum(kh))
	require.NoError(t, err)
	return hex.EncodeToString(h)
}
