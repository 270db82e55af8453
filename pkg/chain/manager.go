package chain

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"walletcore/config"
	"walletcore/pkg/account"
	"walletcore/pkg/engine"
	"walletcore/pkg/logger"
	"walletcore/pkg/money"
)

// Manager owns the configured signers and validates addresses for every
// chain. It implements engine.SignerResolver and engine.AddressValidator.
type Manager struct {
	*Validator

	mu      sync.RWMutex
	signers map[string]engine.OnChainSigner
	closers []func()
}

// NewManager returns a manager with no signers
func NewManager(v *Validator) *Manager {
	return &Manager{Validator: v, signers: map[string]engine.OnChainSigner{}}
}

// FromConfig dials every configured network and registers a signer for
// its native asset and each of its tokens
func FromConfig(cfg config.ChainsConfig) (*Manager, error) {
	v, err := NewValidator(cfg.Bitcoin.Network)
	if err != nil {
		return nil, err
	}
	m := NewManager(v)

	names := make([]string, 0, len(cfg.EVM.Networks))
	for name := range cfg.EVM.Networks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := m.addEVM(name, cfg.EVM.Networks[name]); err != nil {
			m.Close()
			return nil, err
		}
	}
	if cfg.Solana.RPCURL != "" {
		if err := m.addSolana(cfg.Solana); err != nil {
			m.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *Manager) addEVM(name string, n config.EVMNetwork) error {
	nativeCode := n.NativeAsset
	if nativeCode == "" {
		nativeCode = "ETH"
	}
	native, err := money.Crypto(nativeCode)
	if err != nil {
		return fmt.Errorf("network %s: %w", name, err)
	}

	client, err := ethclient.Dial(n.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	m.closers = append(m.closers, client.Close)

	assets := []money.Currency{native}
	for _, code := range n.Tokens {
		t, err := money.Crypto(code)
		if err != nil {
			return fmt.Errorf("network %s: %w", name, err)
		}
		if !t.IsToken() || !strings.EqualFold(t.Chain, name) {
			return fmt.Errorf("network %s: %s is not a token on this network", name, code)
		}
		assets = append(assets, t)
	}

	for _, asset := range assets {
		s, err := NewEVMSigner(asset, native, n, client)
		if err != nil {
			return fmt.Errorf("network %s: %w", name, err)
		}
		m.Register(s)
	}
	logger.Info("EVM network ready", zap.String("network", name), zap.Int("assets", len(assets)))
	return nil
}

func (m *Manager) addSolana(cfg config.SolanaConfig) error {
	client := rpc.New(cfg.RPCURL)
	m.closers = append(m.closers, func() { _ = client.Close() })

	assets := []money.Currency{money.SOL}
	for _, code := range cfg.Tokens {
		t, err := money.Crypto(code)
		if err != nil {
			return fmt.Errorf("solana: %w", err)
		}
		if !t.IsToken() || t.Chain != "solana" {
			return fmt.Errorf("solana: %s is not an SPL token", code)
		}
		assets = append(assets, t)
	}

	for _, asset := range assets {
		s, err := NewSolanaSigner(asset, cfg, client)
		if err != nil {
			return err
		}
		m.Register(s)
	}
	logger.Info("Solana ready", zap.Int("assets", len(assets)))
	return nil
}

// Register adds or replaces the signer for its asset
func (m *Manager) Register(s engine.OnChainSigner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signers[s.Asset().Code] = s
}

// SignerFor returns the signer registered for asset
func (m *Manager) SignerFor(asset money.Currency) (engine.OnChainSigner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.signers[asset.Code]
	if !ok {
		return nil, fmt.Errorf("%w: no signer configured for %s", ErrUnsupportedChain, asset.Code)
	}
	return s, nil
}

// Assets lists the assets that can be sent from self custody
func (m *Manager) Assets() []money.Currency {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]money.Currency, 0, len(m.signers))
	for _, s := range m.signers {
		out = append(out, s.Asset())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// receiver is implemented by signers that know their own address
type receiver interface {
	ReceiveAddress() string
}

// Account returns the self custody source for asset, with balances read
// from its signer
func (m *Manager) Account(asset money.Currency) (*account.Live, error) {
	s, err := m.SignerFor(asset)
	if err != nil {
		return nil, err
	}
	var address string
	if r, ok := s.(receiver); ok {
		address = r.ReceiveAddress()
	}
	return &account.Live{
		Name:       asset.Code + " Wallet",
		SourceKind: account.SourceSelfCustody,
		Asset:      asset,
		Address:    address,
		Balances:   SignerBalances{Signer: s},
	}, nil
}

// SignerBalances adapts a signer to account.BalanceProvider
type SignerBalances struct {
	Signer engine.OnChainSigner
}

func (b SignerBalances) Balance(ctx context.Context) (money.Money, error) {
	total, _, err := b.Signer.Balances(ctx)
	return total, err
}

func (b SignerBalances) ActionableBalance(ctx context.Context) (money.Money, error) {
	_, actionable, err := b.Signer.Balances(ctx)
	return actionable, err
}

// Close releases every RPC connection
func (m *Manager) Close() {
	for _, c := range m.closers {
		c()
	}
	m.closers = nil
}

var (
	_ engine.SignerResolver   = (*Manager)(nil)
	_ engine.AddressValidator = (*Manager)(nil)
)
