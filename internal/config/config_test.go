package config

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stakingHex = "0x1111111111111111111111111111111111111111"
	itemsHex   = "0x2222222222222222222222222222222222222222"
	marketHex  = "0x3333333333333333333333333333333333333333"
	donateHex  = "0x4444444444444444444444444444444444444444"
)

func setBaseEnv(t *testing.T) {
	t.Setenv("USER_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("MATIC_STAKING_ADDRESS", stakingHex)
	t.Setenv("MATIC_ITEMS_ADDRESS", itemsHex)
	t.Setenv("MATIC_MARKET_ADDRESS", marketHex)
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	st, err := Load(viper.New())
	require.NoError(t, err)
	require.NoError(t, st.Validate())

	require.Len(t, st.Networks, 1)
	n := st.Networks[0]
	assert.Equal(t, "MATIC", n.Name)
	assert.Equal(t, int64(137), n.ChainID)
	assert.Equal(t, common.HexToAddress(DefaultTokenAddress), n.Token)
	assert.Equal(t, common.HexToAddress(marketHex), n.Market)
	assert.True(t, n.HasMarket())

	assert.Equal(t, time.Hour, st.RefreshInterval)
	assert.True(t, st.ClaimTrigger.IsZero())
	assert.True(t, st.ClaimMinPerPosition.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, StrategyTransfer, st.DonationStrategy)
	assert.Equal(t, 3, st.ApprovalMaxAttempts)
	assert.Equal(t, "https://api.mining.game", st.CatalogBaseURL)
}

func TestLoadOverridesAndAliases(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("WATT_CLAIM_TRIGGER", "100.5")
	t.Setenv("WATT_AUTO_BUY", "2")
	t.Setenv("REFRESH_INTERVAL", "600000")
	t.Setenv("DONATION_PERCENTAGE", "10")
	t.Setenv("DONATION_ADDRESS", donateHex)
	t.Setenv("TRACK_ALT", "true")
	t.Setenv("ALT_RPC_URL", "https://alt.example")
	t.Setenv("ALT_CHAIN_ID", "42")
	t.Setenv("ALT_TOKEN_ADDRESS", stakingHex)
	t.Setenv("ALT_STAKING_ADDRESS", stakingHex)
	t.Setenv("ALT_ITEMS_ADDRESS", itemsHex)

	st, err := Load(viper.New())
	require.NoError(t, err)
	require.NoError(t, st.Validate())

	assert.True(t, st.ClaimTrigger.Equal(decimal.RequireFromString("100.5")))
	assert.Equal(t, uint64(2), st.AutoBuyID)
	assert.Equal(t, 10*time.Minute, st.RefreshInterval)
	require.Len(t, st.Networks, 2)
	assert.Equal(t, "ALT", st.Networks[1].Name)
	assert.False(t, st.Networks[1].HasMarket())
}

func TestLoadRejectsBadValues(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("CLAIM_TRIGGER", "lots")
	t.Setenv("MATIC_MARKET_ADDRESS", "nope")

	_, err := Load(viper.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CLAIM_TRIGGER")
	assert.Contains(t, err.Error(), "MATIC_MARKET_ADDRESS")
}

func TestValidate(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DONATION_PERCENTAGE", "5")
	t.Setenv("DONATION_STRATEGY", "multisend")

	st, err := Load(viper.New())
	require.NoError(t, err)

	err = st.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DONATION_ADDRESS")
	assert.Contains(t, err.Error(), "MATIC_MULTISEND_ADDRESS")
}
