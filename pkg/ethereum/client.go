package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/chainsafe/crowdfund-client/pkg/config"
	"github.com/chainsafe/crowdfund-client/pkg/ethereum/contracts"
	"github.com/chainsafe/crowdfund-client/pkg/keys"
)

var (
	// ErrUnknownContract is returned when a ContractRef names no known ABI
	ErrUnknownContract = errors.New("unknown contract kind")
	// ErrUnknownMethod is returned when the method is not part of the contract ABI
	ErrUnknownMethod = errors.New("method not in contract ABI")
	// ErrEventNotFound is returned when no CampaignCreated log is present in a receipt
	ErrEventNotFound = errors.New("CampaignCreated event not found")
)

const defaultPollingInterval = 4 * time.Second

// Backend is the subset of ethclient.Client used by the adapter
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// Client is the chain client adapter for the crowdfunding contracts
type Client struct {
	config     *config.EthereumConfig
	client     Backend
	privateKey *ecdsa.PrivateKey
	address    common.Address
	logger     *zap.Logger

	factoryAddress common.Address
	factoryABI     abi.ABI
	campaignABI    abi.ABI

	// serializes nonce lookup and broadcast so concurrent writes never share a nonce
	writeMu sync.Mutex
}

// NewClient creates a new Ethereum client
func NewClient(cfg *config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum RPC: %w", err)
	}

	c, err := NewClientWithBackend(cfg, client, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

// NewClientWithBackend builds the adapter over an existing backend
func NewClientWithBackend(cfg *config.EthereumConfig, backend Backend, logger *zap.Logger) (*Client, error) {
	privateKey, err := keys.LoadWallet(keys.Source{
		PrivateKey:          cfg.PrivateKey,
		EncryptedPrivateKey: cfg.EncryptedKey,
		MasterKey:           cfg.KeyMasterKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load private key: %w", err)
	}

	if !common.IsHexAddress(cfg.FactoryContract) {
		return nil, fmt.Errorf("invalid factory contract address %q", cfg.FactoryContract)
	}

	factoryABI, err := contracts.CrowdfundingFactoryMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse factory ABI: %w", err)
	}
	campaignABI, err := contracts.CampaignMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse campaign ABI: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	factoryAddress := common.HexToAddress(cfg.FactoryContract)

	logger.Info("Connected to Ethereum",
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("factory_contract", factoryAddress.Hex()),
		zap.String("wallet_address", address.Hex()))

	return &Client{
		config:         cfg,
		client:         backend,
		privateKey:     privateKey,
		address:        address,
		logger:         logger,
		factoryAddress: factoryAddress,
		factoryABI:     *factoryABI,
		campaignABI:    *campaignABI,
	}, nil
}

// Close closes the Ethereum client
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Address returns the wallet address that signs all writes
func (c *Client) Address() common.Address {
	return c.address
}

// FactoryAddress returns the configured factory contract address
func (c *Client) FactoryAddress() common.Address {
	return c.factoryAddress
}

// FactoryRef returns the ContractRef of the factory
func (c *Client) FactoryRef() ContractRef {
	return ContractRef{Kind: ContractFactory, Address: c.factoryAddress}
}

// GetTransactor returns a transaction signer
func (c *Client) GetTransactor(ctx context.Context) (*bind.TransactOpts, error) {
	chainID := big.NewInt(c.config.ChainID)

	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.Context = ctx

	nonce, err := c.client.PendingNonceAt(ctx, c.address)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	auth.Nonce = new(big.Int).SetUint64(nonce)
	auth.GasLimit = c.config.GasLimit

	// Set gas price if configured
	if c.config.MaxGasPrice != "" {
		maxGasPrice, ok := new(big.Int).SetString(c.config.MaxGasPrice, 10)
		if !ok {
			return nil, fmt.Errorf("invalid max gas price %q", c.config.MaxGasPrice)
		}

		gasPrice, err := c.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		if gasPrice.Cmp(maxGasPrice) > 0 {
			c.logger.Warn("Suggested gas price exceeds maximum",
				zap.String("suggested", gasPrice.String()),
				zap.String("max", maxGasPrice.String()))
			auth.GasPrice = maxGasPrice
		} else {
			auth.GasPrice = gasPrice
		}
	}

	return auth, nil
}

// GetLatestBlockNumber gets the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return n, nil
}

func (c *Client) bound(ref ContractRef, method string) (*bind.BoundContract, error) {
	var parsed abi.ABI
	switch ref.Kind {
	case ContractFactory:
		parsed = c.factoryABI
	case ContractCampaign:
		parsed = c.campaignABI
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, ref.Kind)
	}
	if _, ok := parsed.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, ref.Kind, method)
	}
	return bind.NewBoundContract(ref.Address, parsed, c.client, c.client, c.client), nil
}

// ReadCall invokes a constant contract method and returns its raw outputs
func (c *Client) ReadCall(ctx context.Context, ref ContractRef, method string, args ...interface{}) ([]interface{}, error) {
	contract, err := c.bound(ref, method)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s.%s call failed: %w", ref.Kind, method, err)
	}
	return out, nil
}

// WriteCall signs and broadcasts a state-changing call and returns the
// transaction hash. It does not wait for the transaction to be mined.
func (c *Client) WriteCall(ctx context.Context, req WriteRequest) (common.Hash, error) {
	contract, err := c.bound(req.Contract, req.Method)
	if err != nil {
		return common.Hash{}, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	auth, err := c.GetTransactor(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	if req.Value != nil {
		auth.Value = req.Value
	}

	tx, err := contract.Transact(auth, req.Method, req.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to submit %s transaction: %w", req.Method, err)
	}

	c.logger.Info("Transaction submitted",
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.String("contract", req.Contract.Address.Hex()),
		zap.String("method", req.Method),
		zap.Uint64("nonce", tx.Nonce()))

	return tx.Hash(), nil
}

// AwaitConfirmation polls for the receipt of txHash until it is mined or the
// confirmation timeout elapses. Reverts and timeouts are reported as a
// failed Confirmation; an error is returned only if ctx is canceled.
func (c *Client) AwaitConfirmation(ctx context.Context, txHash common.Hash) (*Confirmation, error) {
	timeout := c.config.ConfirmationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	interval := c.config.PollingInterval
	if interval <= 0 {
		interval = defaultPollingInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return &Confirmation{Status: ConfirmationSuccess, Receipt: receipt}, nil
			}
			return &Confirmation{
				Status:  ConfirmationFailure,
				Reason:  fmt.Sprintf("transaction reverted in block %s", receipt.BlockNumber),
				Receipt: receipt,
			}, nil
		case errors.Is(err, geth.NotFound):
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			c.logger.Warn("Failed to fetch receipt",
				zap.String("tx_hash", txHash.Hex()),
				zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return &Confirmation{
				Status: ConfirmationFailure,
				Reason: fmt.Sprintf("transaction not confirmed within %s", timeout),
			}, nil
		case <-ticker.C:
		}
	}
}

// TotalCampaigns returns the number of campaigns created by the factory
func (c *Client) TotalCampaigns(ctx context.Context) (uint64, error) {
	out, err := c.ReadCall(ctx, c.FactoryRef(), contracts.MethodGetTotalCampaigns)
	if err != nil {
		return 0, err
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("getTotalCampaigns: expected 1 output, got %d", len(out))
	}
	total := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !total.IsUint64() {
		return 0, fmt.Errorf("getTotalCampaigns: count %s overflows uint64", total)
	}
	return total.Uint64(), nil
}

// CampaignDetails reads a campaign tuple from the factory by id
func (c *Client) CampaignDetails(ctx context.Context, id uint64) (*contracts.CampaignDetails, error) {
	out, err := c.ReadCall(ctx, c.FactoryRef(), contracts.MethodGetCampaignDetails, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return contracts.UnpackCampaignDetails(out)
}

// CampaignProgress reads the on-chain progress percentage of a campaign contract
func (c *Client) CampaignProgress(ctx context.Context, campaign common.Address) (*big.Int, error) {
	ref := ContractRef{Kind: ContractCampaign, Address: campaign}
	out, err := c.ReadCall(ctx, ref, contracts.MethodGetProgress)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getProgress: expected 1 output, got %d", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// ParseCampaignCreated returns the first CampaignCreated event emitted by the
// factory among logs, typically the logs of a creation receipt.
func (c *Client) ParseCampaignCreated(logs []*types.Log) (*CampaignCreatedEvent, error) {
	return parseCampaignCreated(c.factoryABI, c.factoryAddress, logs)
}

func parseCampaignCreated(factoryABI abi.ABI, factory common.Address, logs []*types.Log) (*CampaignCreatedEvent, error) {
	event, ok := factoryABI.Events[contracts.EventCampaignCreated]
	if !ok {
		return nil, ErrEventNotFound
	}

	for _, log := range logs {
		if log == nil || log.Address != factory || len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}
		return unpackCampaignCreated(factoryABI, *log)
	}
	return nil, ErrEventNotFound
}

func unpackCampaignCreated(factoryABI abi.ABI, log types.Log) (*CampaignCreatedEvent, error) {
	raw := new(contracts.CrowdfundingFactoryCampaignCreated)
	contract := bind.NewBoundContract(log.Address, factoryABI, nil, nil, nil)
	if err := contract.UnpackLog(raw, contracts.EventCampaignCreated, log); err != nil {
		return nil, fmt.Errorf("failed to unpack CampaignCreated: %w", err)
	}
	if !raw.CampaignId.IsUint64() || !raw.Deadline.IsUint64() {
		return nil, fmt.Errorf("CampaignCreated: id or deadline out of range")
	}

	return &CampaignCreatedEvent{
		CampaignID:      raw.CampaignId.Uint64(),
		Creator:         raw.Creator,
		CampaignAddress: raw.CampaignAddress,
		Title:           raw.Title,
		Goal:            raw.Goal,
		Deadline:        raw.Deadline.Uint64(),
		BlockNumber:     log.BlockNumber,
		TxHash:          log.TxHash,
		LogIndex:        log.Index,
	}, nil
}

// WatchCampaignCreated polls for CampaignCreated events (uses polling for HTTP RPC compatibility).
// fromBlock is the last block already processed. onScanned, if set, is called
// with the new head after every scanned range so callers can persist a cursor.
func (c *Client) WatchCampaignCreated(ctx context.Context, fromBlock uint64, handler func(*CampaignCreatedEvent) error, onScanned func(uint64)) error {
	c.logger.Info("Starting CampaignCreated poller", zap.Uint64("from_block", fromBlock))

	event := c.factoryABI.Events[contracts.EventCampaignCreated]
	currentBlock := fromBlock
	interval := c.config.PollingInterval
	if interval <= 0 {
		interval = defaultPollingInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			latestBlock, err := c.GetLatestBlockNumber(ctx)
			if err != nil {
				c.logger.Warn("Failed to get latest block", zap.Error(err))
				continue
			}

			if latestBlock <= currentBlock {
				continue
			}

			query := geth.FilterQuery{
				FromBlock: new(big.Int).SetUint64(currentBlock + 1),
				ToBlock:   new(big.Int).SetUint64(latestBlock),
				Addresses: []common.Address{c.factoryAddress},
				Topics:    [][]common.Hash{{event.ID}},
			}

			logs, err := c.client.FilterLogs(ctx, query)
			if err != nil {
				c.logger.Warn("Failed to filter CampaignCreated events", zap.Error(err))
				continue
			}

			for _, log := range logs {
				ev, err := unpackCampaignCreated(c.factoryABI, log)
				if err != nil {
					c.logger.Warn("Skipping malformed CampaignCreated log",
						zap.String("tx_hash", log.TxHash.Hex()),
						zap.Error(err))
					continue
				}
				if err := handler(ev); err != nil {
					c.logger.Error("Failed to handle CampaignCreated event",
						zap.Error(err),
						zap.String("tx_hash", log.TxHash.Hex()))
				}
			}

			currentBlock = latestBlock
			if onScanned != nil {
				onScanned(currentBlock)
			}
		}
	}
}
