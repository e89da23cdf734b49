package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"voting-gateway/models"
)

// Config holds the explicit configuration for a ledger client.
type Config struct {
	// RPCURL is the Ethereum JSON-RPC endpoint.
	RPCURL string

	// ContractAddress is the deployed VotingSystem contract, hex encoded.
	ContractAddress string

	// PrivateKey is the hex encoded key of the account funding the append
	// transactions. A leading 0x is accepted.
	PrivateKey string

	// ChainID of the target network.
	ChainID int64
}

// Client appends to and reads from the VotingSystem contract ledger.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	abi      abi.ABI
	auth     *bind.TransactOpts

	// txMu serializes appends so concurrent submissions do not race on the
	// account nonce.
	txMu sync.Mutex
}

// Dial connects to the Ethereum endpoint and binds the VotingSystem contract.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse ledger private key: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %v: %w", cfg.RPCURL, err)
	}

	parsed, err := abi.JSON(strings.NewReader(votingSystemABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	addr := common.HexToAddress(cfg.ContractAddress)
	contract := bind.NewBoundContract(addr, parsed, eth, eth, eth)

	log.Debugf("Bound VotingSystem contract %v via %v", addr.Hex(), cfg.RPCURL)

	return &Client{
		eth:      eth,
		contract: contract,
		abi:      parsed,
		auth:     auth,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// parseElectionID converts the store's election id into the contract's
// uint256 key.
func parseElectionID(electionID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(electionID, 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("election id %q is not a valid uint256", electionID)
	}
	return id, nil
}

// RecordVote appends (electionID, key, payload) to the contract ledger and
// waits for the transaction to be mined. It returns the transaction hash. A
// reverted transaction is an error; the caller decides whether and when to
// retry.
func (c *Client) RecordVote(ctx context.Context, electionID string, key models.CorrelationKey, payload []byte) (string, error) {
	id, err := parseElectionID(electionID)
	if err != nil {
		return "", err
	}

	c.txMu.Lock()
	opts := *c.auth
	opts.Context = ctx
	tx, err := c.contract.Transact(&opts, "recordVote", id, key.String(), string(payload))
	c.txMu.Unlock()
	if err != nil {
		return "", fmt.Errorf("send recordVote: %w", err)
	}

	log.Debugf("recordVote tx %v sent for election %v", tx.Hash().Hex(), electionID)

	receipt, err := bind.WaitMined(ctx, c.eth, tx)
	if err != nil {
		return "", fmt.Errorf("wait for recordVote tx %v: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status == 0 {
		return "", fmt.Errorf("recordVote tx %v reverted", tx.Hash().Hex())
	}

	return tx.Hash().Hex(), nil
}

// VotesByElection reads the full append-only log for an election. Each entry
// exposes the correlation key it was recorded under and the vote payload.
func (c *Client) VotesByElection(ctx context.Context, electionID string) ([]models.LedgerEntry, error) {
	id, err := parseElectionID(electionID)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	err = c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getVotesByElectionId", id)
	if err != nil {
		return nil, fmt.Errorf("call getVotesByElectionId: %w", err)
	}
	if len(out) != 1 {
		return nil, errors.New("unexpected getVotesByElectionId output")
	}

	votes := *abi.ConvertType(out[0], new([]votingSystemVote)).(*[]votingSystemVote)

	entries := make([]models.LedgerEntry, 0, len(votes))
	for _, v := range votes {
		entries = append(entries, models.LedgerEntry{
			Key:      models.CorrelationKey(v.AuthorizationString),
			VoteData: v.VoteData,
		})
	}
	return entries, nil
}
