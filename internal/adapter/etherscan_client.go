package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/scam-scanner/internal/config"
	"github.com/scam-scanner/internal/logging"
)

// txSampleSize bounds how much history we pull per address. The analyzer only
// needs counts, first/last activity and a recent destination sample, not the
// full ledger.
const txSampleSize = 100

// EtherscanClient fetches per-address facts from the Etherscan v2 API:
// balance, transaction activity, and contract metadata.
type EtherscanClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter // free tier allows 5 req/sec, stay under it
}

// NewEtherscanClient creates a new Etherscan API client
func NewEtherscanClient(cfg *config.EtherscanConfig) *EtherscanClient {
	return &EtherscanClient{
		apiKey:  cfg.APIKey,
		baseURL: "https://api.etherscan.io/v2/api",
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(4), 4),
	}
}

// AccountTx is the slice of an Etherscan transaction record the analyzer
// cares about.
type AccountTx struct {
	Hash      string `json:"hash"`
	TimeStamp string `json:"timeStamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	IsError   string `json:"isError"`
}

// ActivitySummary describes the sampled transaction activity of an address.
type ActivitySummary struct {
	TxCount   int
	FirstSeen *time.Time
	LastSeen  *time.Time
	Recent    []AccountTx
}

// ContractInfo describes contract metadata for an address, when it is one.
type ContractInfo struct {
	IsContract bool
	Verified   bool
	Name       string
	Creator    string
}

type rawResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Balance returns the address balance in wei.
func (c *EtherscanClient) Balance(ctx context.Context, address string) (*big.Int, error) {
	body, err := c.get(ctx, map[string]string{
		"module":  "account",
		"action":  "balance",
		"address": address,
		"tag":     "latest",
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  string `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse balance response: %w", err)
	}
	if resp.Status != "1" {
		return nil, fmt.Errorf("etherscan API error: %s", resp.Message)
	}

	wei, ok := new(big.Int).SetString(resp.Result, 10)
	if !ok {
		return nil, fmt.Errorf("invalid balance value: %s", resp.Result)
	}
	return wei, nil
}

// Activity fetches a recent transaction sample for an address. An address with
// no history returns an empty summary, not an error.
func (c *EtherscanClient) Activity(ctx context.Context, address string) (*ActivitySummary, error) {
	txs, err := c.fetchTxList(ctx, address, "txlist")
	if err != nil {
		return nil, err
	}

	summary := &ActivitySummary{
		TxCount: len(txs),
		Recent:  txs,
	}

	// txlist is requested sort=desc: first element is the newest.
	if len(txs) > 0 {
		if last := parseUnix(txs[0].TimeStamp); last != nil {
			summary.LastSeen = last
		}
		if first := parseUnix(txs[len(txs)-1].TimeStamp); first != nil {
			summary.FirstSeen = first
		}
	}

	return summary, nil
}

// InternalTxCount returns the sampled internal transaction count for an address.
func (c *EtherscanClient) InternalTxCount(ctx context.Context, address string) (int, error) {
	txs, err := c.fetchTxList(ctx, address, "txlistinternal")
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// TokenTxCount returns the sampled ERC20 transfer count for an address.
func (c *EtherscanClient) TokenTxCount(ctx context.Context, address string) (int, error) {
	txs, err := c.fetchTxList(ctx, address, "tokentx")
	if err != nil {
		return 0, err
	}
	return len(txs), nil
}

// Contract reports whether the address is a contract and, if so, its
// verification status, name and creator.
func (c *EtherscanClient) Contract(ctx context.Context, address string) (*ContractInfo, error) {
	body, err := c.get(ctx, map[string]string{
		"module":  "contract",
		"action":  "getsourcecode",
		"address": address,
	})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  []struct {
			SourceCode   string `json:"SourceCode"`
			ABI          string `json:"ABI"`
			ContractName string `json:"ContractName"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse contract response: %w", err)
	}
	if resp.Status != "1" || len(resp.Result) == 0 {
		return &ContractInfo{}, nil
	}

	entry := resp.Result[0]

	// getsourcecode answers for EOAs too, with the unverified sentinel and no
	// source. Only the creation lookup can tell an EOA from an unverified
	// contract.
	if entry.ABI == "" || entry.ABI == "Contract source code not verified" {
		creator, err := c.contractCreator(ctx, address)
		if err != nil || creator == "" {
			return &ContractInfo{}, nil
		}
		return &ContractInfo{IsContract: true, Creator: creator}, nil
	}

	info := &ContractInfo{
		IsContract: true,
		Verified:   true,
		Name:       entry.ContractName,
	}
	if creator, err := c.contractCreator(ctx, address); err == nil {
		info.Creator = creator
	}
	return info, nil
}

func (c *EtherscanClient) contractCreator(ctx context.Context, address string) (string, error) {
	body, err := c.get(ctx, map[string]string{
		"module":            "contract",
		"action":            "getcontractcreation",
		"contractaddresses": address,
	})
	if err != nil {
		return "", err
	}

	var resp struct {
		Status string `json:"status"`
		Result []struct {
			ContractCreator string `json:"contractCreator"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse contract creation response: %w", err)
	}
	if resp.Status != "1" || len(resp.Result) == 0 {
		return "", nil
	}
	return resp.Result[0].ContractCreator, nil
}

func (c *EtherscanClient) fetchTxList(ctx context.Context, address, action string) ([]AccountTx, error) {
	body, err := c.get(ctx, map[string]string{
		"module":  "account",
		"action":  action,
		"address": address,
		"page":    "1",
		"offset":  strconv.Itoa(txSampleSize),
		"sort":    "desc",
	})
	if err != nil {
		return nil, err
	}

	var resp rawResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", action, err)
	}

	if resp.Status != "1" {
		if resp.Message == "No transactions found" || resp.Message == "No records found" {
			return []AccountTx{}, nil
		}
		return nil, fmt.Errorf("etherscan API error: %s", resp.Message)
	}

	// Some endpoints return a string result on empty sets.
	if len(resp.Result) > 0 && resp.Result[0] == '"' {
		return []AccountTx{}, nil
	}

	var txs []AccountTx
	if err := json.Unmarshal(resp.Result, &txs); err != nil {
		return nil, fmt.Errorf("failed to parse %s transactions: %w", action, err)
	}
	return txs, nil
}

// get performs a throttled GET with bounded retries on 429 and network errors.
func (c *EtherscanClient) get(ctx context.Context, params map[string]string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("etherscan API key not configured")
	}

	values := url.Values{}
	values.Set("chainid", "1")
	values.Set("apikey", c.apiKey)
	for k, v := range params {
		values.Set(k, v)
	}
	requestURL := c.baseURL + "?" + values.Encode()

	const maxRetries = 3
	baseDelay := 1 * time.Second
	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("failed to make request: %w", err)
			if waitErr := sleepBackoff(ctx, baseDelay, attempt); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			delay := baseDelay * time.Duration(1<<uint(attempt))
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.Atoi(retryAfter); err == nil {
					delay = time.Duration(seconds) * time.Second
				}
			}
			logger.WithField("attempt", attempt+1).Warn("etherscan rate limited, backing off")
			if waitErr := sleepFor(ctx, delay); waitErr != nil {
				return nil, waitErr
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("HTTP error: %d - %s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := base * time.Duration(1<<uint(attempt))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	return sleepFor(ctx, delay)
}

func sleepFor(ctx context.Context, delay time.Duration) error {
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	}
}

func parseUnix(s string) *time.Time {
	seconds, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(seconds, 0).UTC()
	return &t
}
