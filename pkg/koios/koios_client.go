package koios

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/logger"
	"github.com/alphabill-org/payment-splitter/internal/util"
)

const (
	DefaultURL = "https://preprod.koios.rest/api/v1"
	PreviewURL = "https://preview.koios.rest/api/v1"
	MainnetURL = "https://api.koios.rest/api/v1"

	AddressUTxOsPath   = "address_utxos"
	AddressInfoPath    = "address_info"
	ProtocolParamsPath = "cli_protocol_params"
	SubmitTxPath       = "submittx"
	TxStatusPath       = "tx_status"

	defaultScheme   = "https://"
	contentType     = "Content-Type"
	accept          = "Accept"
	authorization   = "Authorization"
	applicationJson = "application/json"
	applicationCbor = "application/cbor"

	// ledger failure reported when an input is already consumed
	badInputsFailure = "BadInputsUTxO"
)

var (
	ErrTxRejected = ledger.ErrTxRejected

	log = logger.CreateForPackage()
)

type (
	// Client talks to a Koios REST API.
	Client struct {
		BaseUrl    *url.URL
		HttpClient http.Client
		token      string
	}

	Option func(*Client)
)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

func WithHttpClient(hc http.Client) Option {
	return func(c *Client) {
		c.HttpClient = hc
	}
}

// URLForNetwork returns the public Koios endpoint of the named network,
// DefaultURL for unknown names.
func URLForNetwork(name string) string {
	switch name {
	case "mainnet":
		return MainnetURL
	case "preview":
		return PreviewURL
	default:
		return DefaultURL
	}
}

func New(baseUrl string, opts ...Option) (*Client, error) {
	if baseUrl == "" {
		baseUrl = DefaultURL
	}
	if !strings.HasPrefix(baseUrl, "http://") && !strings.HasPrefix(baseUrl, "https://") {
		baseUrl = defaultScheme + baseUrl
	}
	if !util.IsValidURI(baseUrl) {
		return nil, fmt.Errorf("invalid Koios base URL %q", baseUrl)
	}
	u, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("error parsing Koios base URL (%s): %w", baseUrl, err)
	}
	c := &Client{
		BaseUrl:    u,
		HttpClient: http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchUTxOs returns the unspent outputs held by the address.
func (c *Client) FetchUTxOs(ctx context.Context, addr ledger.Address) ([]ledger.UTxO, error) {
	var resp []utxoResponse
	req := addressesRequest{Addresses: []string{addr.String()}, Extended: true}
	if err := c.post(ctx, AddressUTxOsPath, req, &resp); err != nil {
		return nil, fmt.Errorf("fetching UTxOs of %s: %w", addr, err)
	}
	utxos := make([]ledger.UTxO, 0, len(resp))
	for i := range resp {
		if resp[i].IsSpent {
			continue
		}
		u, err := resp[i].toUTxO()
		if err != nil {
			return nil, fmt.Errorf("UTxO %s#%d: %w", resp[i].TxHash, resp[i].TxIndex, err)
		}
		utxos = append(utxos, u)
	}
	log.Debug("fetched %d UTxOs of %s", len(utxos), addr)
	return utxos, nil
}

// FetchBalance returns the lovelace held by the address.
func (c *Client) FetchBalance(ctx context.Context, addr ledger.Address) (uint64, error) {
	var resp []addressInfoResponse
	if err := c.post(ctx, AddressInfoPath, addressesRequest{Addresses: []string{addr.String()}}, &resp); err != nil {
		return 0, fmt.Errorf("fetching balance of %s: %w", addr, err)
	}
	// unknown addresses are not listed
	if len(resp) == 0 || resp[0].Balance == "" {
		return 0, nil
	}
	balance, err := strconv.ParseUint(resp[0].Balance, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q: %w", resp[0].Balance, err)
	}
	return balance, nil
}

func (c *Client) ProtocolParameters(ctx context.Context) (*ledger.ProtocolParams, error) {
	var resp protocolParamsResponse
	if err := c.get(ctx, ProtocolParamsPath, &resp); err != nil {
		return nil, fmt.Errorf("fetching protocol parameters: %w", err)
	}
	params, err := resp.toProtocolParams()
	if err != nil {
		return nil, fmt.Errorf("invalid protocol parameters: %w", err)
	}
	return params, nil
}

// Submit posts the signed transaction and returns the id the node assigned.
func (c *Client) Submit(ctx context.Context, tx []byte) (ledger.TxHash, error) {
	req, err := c.newRequest(ctx, http.MethodPost, SubmitTxPath, bytes.NewReader(tx))
	if err != nil {
		return ledger.TxHash{}, err
	}
	req.Header.Set(contentType, applicationCbor)
	body, err := c.do(req)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 {
			if strings.Contains(se.body, badInputsFailure) {
				return ledger.TxHash{}, fmt.Errorf("%w: %s", ledger.ErrInputAlreadySpent, se.body)
			}
			return ledger.TxHash{}, fmt.Errorf("%w: %s", ErrTxRejected, se.body)
		}
		return ledger.TxHash{}, fmt.Errorf("submitting transaction: %w", err)
	}
	var id string
	if err := json.Unmarshal(body, &id); err != nil {
		id = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}
	txHash, err := ledger.ParseTxHash(id)
	if err != nil {
		return ledger.TxHash{}, fmt.Errorf("invalid submit response: %w", err)
	}
	return txHash, nil
}

// TxConfirmed reports whether the transaction has at least one confirmation.
func (c *Client) TxConfirmed(ctx context.Context, txHash ledger.TxHash) (bool, error) {
	var resp []txStatusResponse
	if err := c.post(ctx, TxStatusPath, txHashesRequest{TxHashes: []string{txHash.String()}}, &resp); err != nil {
		return false, fmt.Errorf("fetching status of tx %s: %w", txHash, err)
	}
	for _, s := range resp {
		if s.TxHash == txHash.String() && s.NumConfirmations != nil && *s.NumConfirmations > 0 {
			return true, nil
		}
	}
	return false, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected response status code %d: %s", e.code, e.body)
}

func (c *Client) get(ctx context.Context, path string, res any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeJson(body, res)
}

func (c *Client) post(ctx context.Context, path string, data, res any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set(contentType, applicationJson)
	body, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeJson(body, res)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseUrl.JoinPath(path).String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set(accept, applicationJson)
	if c.token != "" {
		req.Header.Set(authorization, "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	log.Trace("%s %s", req.Method, req.URL)
	response, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", req.URL.Path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", req.URL.Path, err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &statusError{code: response.StatusCode, body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func decodeJson(body []byte, res any) error {
	if err := json.Unmarshal(body, res); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}
