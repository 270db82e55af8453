package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore/pkg/account"
	"walletcore/pkg/custodial"
	"walletcore/pkg/money"
	"walletcore/pkg/tx"
)

func newInterestDeposit(t *testing.T, b *fakeBackend, signer *fakeSigner) (*tx.Processor, tx.PendingTx) {
	t.Helper()
	src := account.NewStatic("My BTC", account.SourceSelfCustody, money.BTC, "bc1qmine", btc("1"), btc("1"))
	interest := account.NewStatic("BTC Rewards", account.SourceInterest, money.BTC, "bc1qinterest", btc("0"), btc("0"))
	target := account.AccountRef{Kind: account.TargetInterestAccount, Account: interest}

	e := NewInterestDepositEngine(src, target, "bc1qinterest", signer, b, testRates, money.USD)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ptx, err := p.Initialize(context.Background())
	require.NoError(t, err)
	return p, ptx
}

func TestInterestDepositRegularFeeOnly(t *testing.T) {
	p, ptx := newInterestDeposit(t, newBackend(), newBTCSigner())

	assert.Equal(t, "interest-deposit", p.Engine().Name())
	assert.Equal(t, []tx.FeeLevel{tx.FeeLevelRegular}, ptx.FeeSelection.AvailableLevels)
	assert.Nil(t, ptx.MinLimit)

	_, err := p.UpdateFeeLevel(context.Background(), ptx, tx.FeeLevelPriority, tx.NoCustomFee)
	assert.ErrorIs(t, err, tx.ErrInvalidFeeLevelTransition)
}

func TestInterestDepositUnderMin(t *testing.T) {
	b := newBackend()
	b.interestLimits = &custodial.Limits{Min: btc("0.01")}
	p, ptx := newInterestDeposit(t, b, newBTCSigner())
	ctx := context.Background()

	require.NotNil(t, ptx.MinLimit)
	assert.True(t, ptx.MinLimit.Equal(btc("0.01")))

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.001"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnderMinLimit, ptx.ValidationState)

	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	notice, ok := tx.OptionAs[tx.ErrorNoticeOption](ptx, tx.OptionErrorNotice)
	require.True(t, ok)
	require.NotNil(t, notice.Limit)
	assert.True(t, notice.Limit.Equal(btc("0.01")))

	_, err = p.Execute(ctx, ptx, "")
	assert.ErrorIs(t, err, tx.ErrOrderBelowMin)
}

func TestInterestDepositAgreements(t *testing.T) {
	signer := newBTCSigner()
	p, ptx := newInterestDeposit(t, newBackend(), signer)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)

	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationOptionInvalid, ptx.ValidationState)
	assert.False(t, ptx.HasOption(tx.OptionFeeSelection))

	fee, ok := tx.OptionAs[tx.NetworkFeeOption](ptx, tx.OptionNetworkFee)
	require.True(t, ok)
	assert.True(t, fee.Fee.Equal(sats(1000)))

	transfer, ok := tx.OptionAs[tx.InterestTransferOption](ptx, tx.OptionAgreementInterestTransfer)
	require.True(t, ok)
	assert.False(t, transfer.Accepted)
	assert.True(t, transfer.Amount.Equal(btc("0.5")))

	ptx, err = p.SetOption(ctx, ptx, tx.InterestTermsOption{Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationOptionInvalid, ptx.ValidationState)

	ptx, err = p.SetOption(ctx, ptx, tx.InterestTransferOption{Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)

	// agreements survive a rebuild
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)

	res, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)
	assert.True(t, res.IsHashed())
	require.Len(t, signer.built, 1)
	assert.Equal(t, "bc1qinterest", signer.built[0].To)
	assert.Equal(t, tx.FeeLevelRegular, signer.built[0].Level)
}

func newInterestTrading(t *testing.T, b *fakeBackend) (*tx.Processor, tx.PendingTx) {
	t.Helper()
	interest := account.NewStatic("BTC Rewards", account.SourceInterest, money.BTC, "", btc("0"), btc("0"))
	target := account.AccountRef{Kind: account.TargetInterestAccount, Account: interest}

	e := NewInterestTradingEngine(tradingSource(), target, b, testRates, money.USD)
	p := tx.NewProcessor(e, testRates, money.USD, nil)
	ptx, err := p.Initialize(context.Background())
	require.NoError(t, err)
	return p, ptx
}

func TestInterestTradingValidation(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   tx.ValidationState
	}{
		{"within balance", "0.5", tx.ValidationCanExecute},
		{"exactly min", "0.01", tx.ValidationCanExecute},
		{"under min", "0.001", tx.ValidationUnderMinLimit},
		{"above balance", "1.6", tx.ValidationInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend()
			b.interestLimits = &custodial.Limits{Min: btc("0.01")}
			p, ptx := newInterestTrading(t, b)
			require.NotNil(t, ptx.MinLimit)
			assert.Equal(t, []tx.FeeLevel{tx.FeeLevelNone}, ptx.FeeSelection.AvailableLevels)

			ptx, err := p.UpdateAmount(context.Background(), ptx, btc(tt.amount))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ptx.ValidationState)
		})
	}
}

func TestInterestTradingWithoutLimits(t *testing.T) {
	p, ptx := newInterestTrading(t, newBackend())
	assert.Nil(t, ptx.MinLimit)

	ptx, err := p.UpdateAmount(context.Background(), ptx, sats(1))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)
}

func TestInterestTradingLimitsUnavailable(t *testing.T) {
	b := newBackend()
	b.interestLimitsErr = errBackend
	p, ptx := newInterestTrading(t, b)

	ptx, err := p.UpdateAmount(context.Background(), ptx, btc("0.5"))
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)

	b.interestLimitsErr = nil
	b.interestLimits = &custodial.Limits{Min: usd("10")}
	ptx, err = p.ValidateAmount(context.Background(), ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationUnknownError, ptx.ValidationState)

	b.interestLimits = &custodial.Limits{Min: btc("0.01")}
	ptx, err = p.ValidateAmount(context.Background(), ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)
	require.NotNil(t, ptx.MinLimit)
	assert.True(t, ptx.MinLimit.Equal(btc("0.01")))
}

func TestInterestTradingAgreementsAndExecute(t *testing.T) {
	b := newBackend()
	p, ptx := newInterestTrading(t, b)
	ctx := context.Background()

	ptx, err := p.UpdateAmount(ctx, ptx, btc("0.5"))
	require.NoError(t, err)
	ptx, err = p.ValidateAll(ctx, ptx)
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationOptionInvalid, ptx.ValidationState)
	assert.False(t, ptx.HasOption(tx.OptionNetworkFee))

	total, ok := tx.OptionAs[tx.TotalOption](ptx, tx.OptionTotal)
	require.True(t, ok)
	require.NotNil(t, total.Fiat)
	assert.True(t, total.Fiat.Equal(usd("10000")))

	_, err = p.Execute(ctx, ptx, "")
	assert.ErrorIs(t, err, tx.ErrUnexpected)

	ptx, err = p.SetOption(ctx, ptx, tx.InterestTermsOption{Accepted: true})
	require.NoError(t, err)
	ptx, err = p.SetOption(ctx, ptx, tx.InterestTransferOption{Accepted: true})
	require.NoError(t, err)
	assert.Equal(t, tx.ValidationCanExecute, ptx.ValidationState)

	res, err := p.Execute(ctx, ptx, "")
	require.NoError(t, err)
	assert.False(t, res.IsHashed())
	assert.Equal(t, "it-1", res.ID())
	assert.Contains(t, b.Calls(), "internal "+btc("0.5").String()+" TRADING to SAVINGS")
}
