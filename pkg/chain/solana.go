package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"walletcore/config"
	"walletcore/pkg/engine"
	"walletcore/pkg/logger"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

// lamportsPerSignature is the base network fee
const lamportsPerSignature = 5000

// SolanaClient is the subset of *rpc.Client the signer uses
type SolanaClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	SendTransactionWithOpts(ctx context.Context, transaction *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
}

// SolanaSigner sends SOL or an SPL token. Solana has a single flat fee so
// only the regular level is offered.
type SolanaSigner struct {
	asset      money.Currency
	cfg        config.SolanaConfig
	client     SolanaClient
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	mint       solana.PublicKey
	log        *zap.Logger
}

// NewSolanaSigner builds a signer for SOL or for an SPL token whose
// Contract is the mint
func NewSolanaSigner(asset money.Currency, cfg config.SolanaConfig, client SolanaClient) (*SolanaSigner, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key not configured for Solana")
	}
	privateKey, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	s := &SolanaSigner{
		asset:      asset,
		cfg:        cfg,
		client:     client,
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		log:        logger.Named("solana").With(zap.String("asset", asset.Code)),
	}
	if asset.IsToken() {
		mint, err := solana.PublicKeyFromBase58(asset.Contract)
		if err != nil {
			return nil, fmt.Errorf("invalid token mint address: %w", err)
		}
		s.mint = mint
	}
	return s, nil
}

// Address is the fee payer and sender
func (s *SolanaSigner) Address() solana.PublicKey { return s.publicKey }

// ReceiveAddress is the wallet address. Token deposits land in its
// associated token account.
func (s *SolanaSigner) ReceiveAddress() string { return s.publicKey.String() }

func (s *SolanaSigner) Asset() money.Currency    { return s.asset }
func (s *SolanaSigner) FeeAsset() money.Currency { return money.SOL }
func (s *SolanaSigner) FeeLevels() []tx.FeeLevel { return []tx.FeeLevel{tx.FeeLevelRegular} }
func (s *SolanaSigner) SupportsMemo() bool       { return false }

// Balances reads the confirmed balance as total and the finalized balance
// as actionable
func (s *SolanaSigner) Balances(ctx context.Context) (money.Money, money.Money, error) {
	total, err := s.balance(ctx, s.commitment())
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	actionable, err := s.balance(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return money.Money{}, money.Money{}, err
	}
	return total, money.Min(total, actionable), nil
}

func (s *SolanaSigner) balance(ctx context.Context, commitment rpc.CommitmentType) (money.Money, error) {
	if !s.asset.IsToken() {
		return s.lamports(ctx, commitment)
	}

	ata, err := s.associatedTokenAddress(s.publicKey)
	if err != nil {
		return money.Money{}, err
	}
	exists, err := s.accountExists(ctx, ata)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to check token account: %w", err)
	}
	if !exists {
		return money.Zero(s.asset), nil
	}
	res, err := s.client.GetTokenAccountBalance(ctx, ata, commitment)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to get token balance: %w", err)
	}
	if res.Value == nil {
		return money.Zero(s.asset), nil
	}
	amount, err := decimal.NewFromString(res.Value.Amount)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return money.FromMinorDecimal(s.asset, amount), nil
}

func (s *SolanaSigner) lamports(ctx context.Context, commitment rpc.CommitmentType) (money.Money, error) {
	res, err := s.client.GetBalance(ctx, s.publicKey, commitment)
	if err != nil {
		return money.Money{}, fmt.Errorf("failed to get balance: %w", err)
	}
	return money.FromMinorDecimal(money.SOL, decimal.NewFromBigInt(new(big.Int).SetUint64(res.Value), 0)), nil
}

func (s *SolanaSigner) FeeBalance(ctx context.Context) (money.Money, error) {
	return s.lamports(ctx, rpc.CommitmentFinalized)
}

// EstimateFee is one signature regardless of amount
func (s *SolanaSigner) EstimateFee(_ context.Context, _ money.Money, level tx.FeeLevel, _ int64) (money.Money, error) {
	if level != tx.FeeLevelRegular && level != tx.FeeLevelNone {
		return money.Money{}, fmt.Errorf("solana has no %s fee", level)
	}
	return money.FromMinor(money.SOL, lamportsPerSignature), nil
}

func (s *SolanaSigner) CustomFeeLimits(context.Context) (*tx.FeeLimits, error) { return nil, nil }

// HasPendingTx is always false; Solana transactions expire with their
// blockhash instead of queueing behind each other
func (s *SolanaSigner) HasPendingTx(context.Context) (bool, error) { return false, nil }

type solanaUnsignedTx struct {
	tx  *solana.Transaction
	fee money.Money
}

func (u *solanaUnsignedTx) Fee() money.Money { return u.fee }

// BuildTransaction assembles the transfer against the latest blockhash.
// Token transfers create the recipient's associated account when missing.
func (s *SolanaSigner) BuildTransaction(ctx context.Context, req engine.SendRequest) (engine.UnsignedTx, error) {
	recipient, err := solana.PublicKeyFromBase58(req.To)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid recipient address: %v", ErrInvalidAddress, err)
	}
	if req.Amount.Currency() != s.asset {
		return nil, fmt.Errorf("%w: signer sends %s, got %s", money.ErrCurrencyMismatch, s.asset.Code, req.Amount.Currency().Code)
	}
	if !req.Amount.Minor().IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", req.Amount)
	}
	amount := req.Amount.Minor().BigInt().Uint64()

	var instructions []solana.Instruction
	if s.asset.IsToken() {
		instructions, err = s.tokenInstructions(ctx, recipient, amount)
		if err != nil {
			return nil, err
		}
	} else {
		instructions = []solana.Instruction{
			system.NewTransferInstruction(amount, s.publicKey, recipient).Build(),
		}
	}

	recent, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	if recent == nil || recent.Value == nil {
		return nil, fmt.Errorf("failed to get recent blockhash: empty response")
	}

	t, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(s.publicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return &solanaUnsignedTx{tx: t, fee: money.FromMinor(money.SOL, lamportsPerSignature)}, nil
}

func (s *SolanaSigner) tokenInstructions(ctx context.Context, recipient solana.PublicKey, amount uint64) ([]solana.Instruction, error) {
	source, err := s.associatedTokenAddress(s.publicKey)
	if err != nil {
		return nil, err
	}
	dest, err := s.associatedTokenAddress(recipient)
	if err != nil {
		return nil, err
	}
	exists, err := s.accountExists(ctx, dest)
	if err != nil {
		return nil, fmt.Errorf("failed to check destination account: %w", err)
	}

	var instructions []solana.Instruction
	if !exists {
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(s.publicKey, recipient, s.mint).Build())
	}
	instructions = append(instructions,
		token.NewTransferInstruction(amount, source, dest, s.publicKey, []solana.PublicKey{}).Build())
	return instructions, nil
}

// SignAndBroadcast signs with the configured key. Solana keys are not
// encrypted, so the second password is not used here.
func (s *SolanaSigner) SignAndBroadcast(ctx context.Context, utx engine.UnsignedTx, _ string) (string, error) {
	u, ok := utx.(*solanaUnsignedTx)
	if !ok {
		return "", fmt.Errorf("unexpected transaction type %T", utx)
	}

	_, err := u.tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.publicKey) {
			return &s.privateKey
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	sig, err := s.client.SendTransactionWithOpts(ctx, u.tx, rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.commitment(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}

	s.log.Info("transaction broadcast", zap.String("signature", sig.String()))
	return sig.String(), nil
}

func (s *SolanaSigner) associatedTokenAddress(wallet solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, s.mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive associated token address: %w", err)
	}
	return addr, nil
}

func (s *SolanaSigner) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := s.client.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return info != nil && info.Value != nil, nil
}

func (s *SolanaSigner) commitment() rpc.CommitmentType {
	switch strings.ToLower(s.cfg.Commitment) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}

var _ engine.OnChainSigner = (*SolanaSigner)(nil)
