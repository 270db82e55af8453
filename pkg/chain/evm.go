package chain

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletcore/config"
	"walletcore/pkg/engine"
	"walletcore/pkg/logger"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

const (
	nativeGasLimit = uint64(21000)
	tokenGasLimit  = uint64(100000)

	defaultPriorityMultiplier = 1.5
)

var gwei = big.NewInt(1_000_000_000)

// ErrWrongPassword is returned when the keystore cannot be unlocked
var ErrWrongPassword = errors.New("wrong second password")

const erc20ABIJSON = `[
{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"type":"function"},
{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}
]`

var erc20ABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		panic(fmt.Sprintf("parse ERC20 ABI: %v", err))
	}
	return parsed
}()

// EVMClient is the subset of *ethclient.Client the signer uses
type EVMClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// EVMSigner sends a native coin or an ERC20 token on one EVM network.
// Custom fees are gas prices in gwei.
type EVMSigner struct {
	asset    money.Currency
	native   money.Currency
	network  config.EVMNetwork
	client   EVMClient
	from     common.Address
	key      *ecdsa.PrivateKey
	keystore []byte
	log      *zap.Logger
}

// NewEVMSigner builds a signer for asset. A raw private key is used as is;
// a keystore is decrypted with the second password on every broadcast.
func NewEVMSigner(asset, native money.Currency, network config.EVMNetwork, client EVMClient) (*EVMSigner, error) {
	s := &EVMSigner{
		asset:   asset,
		native:  native,
		network: network,
		client:  client,
		log:     logger.Named("evm").With(zap.String("asset", asset.Code)),
	}

	switch {
	case network.PrivateKey != "":
		key, err := crypto.HexToECDSA(strings.TrimPrefix(network.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		s.key = key
		s.from = crypto.PubkeyToAddress(key.PublicKey)
	case network.KeystorePath != "":
		data, err := os.ReadFile(network.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore: %w", err)
		}
		from, err := keystoreAddress(data)
		if err != nil {
			return nil, err
		}
		s.keystore = data
		s.from = from
	default:
		return nil, fmt.Errorf("no key configured for %s", asset.Code)
	}

	if asset.IsToken() && !common.IsHexAddress(asset.Contract) {
		return nil, fmt.Errorf("invalid token contract address: %s", asset.Contract)
	}
	return s, nil
}

func keystoreAddress(data []byte) (common.Address, error) {
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return common.Address{}, fmt.Errorf("decode keystore: %w", err)
	}
	if !common.IsHexAddress(header.Address) {
		return common.Address{}, fmt.Errorf("keystore has no address")
	}
	return common.HexToAddress(header.Address), nil
}

// Address is the sending account
func (s *EVMSigner) Address() common.Address { return s.from }

// ReceiveAddress is the checksummed sending account
func (s *EVMSigner) ReceiveAddress() string { return s.from.Hex() }

func (s *EVMSigner) Asset() money.Currency    { return s.asset }
func (s *EVMSigner) FeeAsset() money.Currency { return s.native }
func (s *EVMSigner) SupportsMemo() bool       { return false }

func (s *EVMSigner) FeeLevels() []tx.FeeLevel {
	return []tx.FeeLevel{tx.FeeLevelRegular, tx.FeeLevelPriority, tx.FeeLevelCustom}
}

// Balances reads the confirmed balance. EVM balances have no locked part,
// so total and actionable are equal.
func (s *EVMSigner) Balances(ctx context.Context) (money.Money, money.Money, error) {
	var (
		raw *big.Int
		err error
	)
	if s.asset.IsToken() {
		raw, err = s.tokenBalance(ctx)
	} else {
		raw, err = s.client.BalanceAt(ctx, s.from, nil)
	}
	if err != nil {
		return money.Money{}, money.Money{}, fmt.Errorf("failed to get balance: %w", err)
	}
	bal := fromBig(s.asset, raw)
	return bal, bal, nil
}

func (s *EVMSigner) FeeBalance(ctx context.Context) (money.Money, error) {
	raw, err := s.client.BalanceAt(ctx, s.from, nil)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return fromBig(s.native, raw), nil
}

func (s *EVMSigner) tokenBalance(ctx context.Context) (*big.Int, error) {
	data, err := erc20ABI.Pack("balanceOf", s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}
	token := common.HexToAddress(s.asset.Contract)
	result, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(result), nil
}

// EstimateFee prices a transfer of amount to the signer's own address
func (s *EVMSigner) EstimateFee(ctx context.Context, amount money.Money, level tx.FeeLevel, custom int64) (money.Money, error) {
	gasPrice, err := s.gasPrice(ctx, level, custom)
	if err != nil {
		return money.Money{}, err
	}
	to, value, data, err := s.call(s.from, amount)
	if err != nil {
		return money.Money{}, err
	}
	gasLimit := s.gasLimit(ctx, to, value, data)
	return s.fee(gasLimit, gasPrice), nil
}

// CustomFeeLimits brackets the network's suggested price, in gwei
func (s *EVMSigner) CustomFeeLimits(ctx context.Context) (*tx.FeeLimits, error) {
	suggested, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	g := new(big.Int).Quo(suggested, gwei).Int64()
	if g < 1 {
		g = 1
	}
	minFee := g / 2
	if minFee < 1 {
		minFee = 1
	}
	return &tx.FeeLimits{Min: minFee, Max: g * 4}, nil
}

// HasPendingTx is true while the mempool holds a transaction from this account
func (s *EVMSigner) HasPendingTx(ctx context.Context) (bool, error) {
	pending, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return false, fmt.Errorf("failed to get nonce: %w", err)
	}
	latest, err := s.client.NonceAt(ctx, s.from, nil)
	if err != nil {
		return false, fmt.Errorf("failed to get nonce: %w", err)
	}
	return pending > latest, nil
}

type evmUnsignedTx struct {
	tx  *types.Transaction
	fee money.Money
}

func (u *evmUnsignedTx) Fee() money.Money { return u.fee }

// BuildTransaction assembles a legacy transaction at the pending nonce
func (s *EVMSigner) BuildTransaction(ctx context.Context, req engine.SendRequest) (engine.UnsignedTx, error) {
	if !common.IsHexAddress(req.To) {
		return nil, fmt.Errorf("%w: invalid recipient address: %s", ErrInvalidAddress, req.To)
	}
	if req.Amount.Currency() != s.asset {
		return nil, fmt.Errorf("%w: signer sends %s, got %s", money.ErrCurrencyMismatch, s.asset.Code, req.Amount.Currency().Code)
	}

	nonce, err := s.client.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := s.gasPrice(ctx, req.Level, req.CustomFee)
	if err != nil {
		return nil, err
	}
	to, value, data, err := s.call(common.HexToAddress(req.To), req.Amount)
	if err != nil {
		return nil, err
	}
	gasLimit := s.gasLimit(ctx, to, value, data)

	t := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	return &evmUnsignedTx{tx: t, fee: s.fee(gasLimit, gasPrice)}, nil
}

// SignAndBroadcast signs with EIP-155 replay protection and sends
func (s *EVMSigner) SignAndBroadcast(ctx context.Context, utx engine.UnsignedTx, secondPassword string) (string, error) {
	u, ok := utx.(*evmUnsignedTx)
	if !ok {
		return "", fmt.Errorf("unexpected transaction type %T", utx)
	}

	key, err := s.unlock(secondPassword)
	if err != nil {
		return "", err
	}

	signed, err := types.SignTx(u.tx, types.NewEIP155Signer(big.NewInt(s.network.ChainID)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	hash := signed.Hash().Hex()
	s.log.Info("transaction broadcast",
		zap.String("hash", hash),
		zap.Uint64("nonce", signed.Nonce()),
		zap.String("fee", u.fee.String()))
	return hash, nil
}

func (s *EVMSigner) unlock(password string) (*ecdsa.PrivateKey, error) {
	if s.key != nil {
		return s.key, nil
	}
	k, err := keystore.DecryptKey(s.keystore, password)
	if err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, ErrWrongPassword
		}
		return nil, fmt.Errorf("unlock keystore: %w", err)
	}
	return k.PrivateKey, nil
}

// call returns the transaction target, value and data that move amount to
// recipient
func (s *EVMSigner) call(recipient common.Address, amount money.Money) (common.Address, *big.Int, []byte, error) {
	raw := amount.Minor().BigInt()
	if !s.asset.IsToken() {
		return recipient, raw, nil, nil
	}
	data, err := erc20ABI.Pack("transfer", recipient, raw)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("failed to pack transfer data: %w", err)
	}
	return common.HexToAddress(s.asset.Contract), big.NewInt(0), data, nil
}

func (s *EVMSigner) gasLimit(ctx context.Context, to common.Address, value *big.Int, data []byte) uint64 {
	if s.network.GasLimit != nil {
		return *s.network.GasLimit
	}
	if !s.asset.IsToken() {
		return nativeGasLimit
	}
	estimated, err := s.client.EstimateGas(ctx, ethereum.CallMsg{From: s.from, To: &to, Value: value, Data: data})
	if err != nil {
		s.log.Debug("gas estimation failed, using default", zap.Error(err))
		return tokenGasLimit
	}
	// 20% buffer
	return estimated * 120 / 100
}

func (s *EVMSigner) gasPrice(ctx context.Context, level tx.FeeLevel, custom int64) (*big.Int, error) {
	if level == tx.FeeLevelCustom {
		if custom <= 0 {
			return nil, fmt.Errorf("custom gas price must be positive, got %d", custom)
		}
		return new(big.Int).Mul(big.NewInt(custom), gwei), nil
	}

	var price *big.Int
	if s.network.GasPrice != nil {
		price = big.NewInt(*s.network.GasPrice)
	} else {
		suggested, err := s.client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
		price = suggested
	}

	if level == tx.FeeLevelPriority {
		mult := s.network.PriorityMultiplier
		if mult <= 0 {
			mult = defaultPriorityMultiplier
		}
		scaled := decimal.NewFromBigInt(price, 0).Mul(decimal.NewFromFloat(mult)).Ceil()
		price = scaled.BigInt()
	}
	return price, nil
}

func (s *EVMSigner) fee(gasLimit uint64, gasPrice *big.Int) money.Money {
	wei := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	return fromBig(s.native, wei)
}

func fromBig(c money.Currency, v *big.Int) money.Money {
	return money.FromMinorDecimal(c, decimal.NewFromBigInt(v, 0))
}

var _ engine.OnChainSigner = (*EVMSigner)(nil)
