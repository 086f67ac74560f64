package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Default game token on Polygon.
const DefaultTokenAddress = "0xE960d5076cd3169C343Ee287A2c3380A222e5839"

// Donation strategies.
const (
	StrategyTransfer  = "transfer"
	StrategyMultiSend = "multisend"
)

// Network describes one tracked chain and the game contracts deployed on it.
type Network struct {
	Name          string
	RPCURL        string
	ChainID       int64
	GasSymbol     string
	ExplorerTxURL string

	Token     common.Address
	Staking   common.Address
	Items     common.Address
	Market    common.Address // zero when the network has no market
	MultiSend common.Address
}

func (n Network) HasMarket() bool { return n.Market != (common.Address{}) }

// Settings keeps all configuration options.
type Settings struct {
	PrivateKeyHex string
	Networks      []Network

	ClaimTrigger        decimal.Decimal // zero disables auto-claim
	ClaimMinPerPosition decimal.Decimal
	AutoBuyID           uint64 // zero disables auto-buy
	AutoGroup           bool

	TrackDonations     bool
	DonationAddress    common.Address
	DonationPercentage decimal.Decimal
	DonationStrategy   string

	RefreshInterval  time.Duration
	NoRunningProcess bool

	CatalogBaseURL string
	PricePairURL   string

	MarketMaxSlots      int
	MarketEmptyRun      int
	ApprovalMaxAttempts int
	GasLimitBufferPct   int64
	GasPriceMulPct      int64
	ConfirmTimeout      time.Duration
	RPCRateLimit        float64

	LogLevel    string
	LogFile     string
	MetricsAddr string
}

var networkNames = []string{"MATIC", "ALT"}

// SetDefaults registers defaults and env aliases on v. Load calls it; the CLI
// calls it earlier so flags can be bound against the same keys.
func SetDefaults(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	_ = v.BindEnv("private_key", "PRIVATE_KEY", "USER_PRIVATE_KEY", "private_key")
	_ = v.BindEnv("matic_rpc_url", "MATIC_RPC_URL", "MATIC_RPC")
	_ = v.BindEnv("claim_trigger", "CLAIM_TRIGGER", "WATT_CLAIM_TRIGGER")
	_ = v.BindEnv("auto_buy_id", "AUTO_BUY_ID", "WATT_AUTO_BUY")
	_ = v.BindEnv("auto_group", "AUTO_GROUP", "WATT_AUTO_GROUP")

	v.SetDefault("track_matic", true)
	v.SetDefault("track_alt", false)
	v.SetDefault("matic_rpc_url", "https://polygon-rpc.com")
	v.SetDefault("matic_chain_id", 137)
	v.SetDefault("matic_gas_symbol", "MATIC")
	v.SetDefault("matic_token_address", DefaultTokenAddress)
	v.SetDefault("matic_explorer_tx_url", "https://polygonscan.com/tx/")
	v.SetDefault("alt_gas_symbol", "ALT")

	v.SetDefault("claim_trigger", "0")
	v.SetDefault("claim_min_per_position", "50")
	v.SetDefault("auto_buy_id", 0)
	v.SetDefault("auto_group", false)

	v.SetDefault("track_donations", false)
	v.SetDefault("donation_percentage", "0")
	v.SetDefault("donation_strategy", StrategyTransfer)

	v.SetDefault("refresh_interval", "1h")
	v.SetDefault("no_running_process", false)

	v.SetDefault("catalog_base_url", "https://api.mining.game")
	v.SetDefault("price_pair_url", "https://api.dexscreener.io/latest/dex/pairs/polygon/0xec54584a6da0c4e4d8029f47da4d361cc2279bef")

	v.SetDefault("market_max_slots", 256)
	v.SetDefault("market_empty_run", 16)
	v.SetDefault("approval_max_attempts", 3)
	v.SetDefault("gas_limit_buffer_pct", 5)
	v.SetDefault("gas_price_mul_pct", 100)
	v.SetDefault("confirm_timeout", "5m")
	v.SetDefault("rpc_rate_limit", 10)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "logs/minebot.log")
	v.SetDefault("metrics_addr", "")
}

// Load reads settings from v (env, bound flags, defaults).
func Load(v *viper.Viper) (Settings, error) {
	SetDefaults(v)

	var errs []error
	getDecimal := func(key string) decimal.Decimal {
		s := strings.TrimSpace(v.GetString(key))
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
			return decimal.Zero
		}
		return d
	}
	getAddress := func(key string) common.Address {
		s := strings.TrimSpace(v.GetString(key))
		if s == "" {
			return common.Address{}
		}
		if !common.IsHexAddress(s) {
			errs = append(errs, fmt.Errorf("%s: invalid address %q", strings.ToUpper(key), s))
			return common.Address{}
		}
		return common.HexToAddress(s)
	}
	getDuration := func(key string) time.Duration {
		s := strings.TrimSpace(v.GetString(key))
		// bare integers are milliseconds
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Millisecond
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToUpper(key), err))
			return 0
		}
		return d
	}

	st := Settings{}
	st.PrivateKeyHex = strings.TrimSpace(v.GetString("private_key"))

	for _, name := range networkNames {
		p := strings.ToLower(name) + "_"
		if !v.GetBool("track_" + strings.ToLower(name)) {
			continue
		}
		st.Networks = append(st.Networks, Network{
			Name:          name,
			RPCURL:        strings.TrimSpace(v.GetString(p + "rpc_url")),
			ChainID:       v.GetInt64(p + "chain_id"),
			GasSymbol:     v.GetString(p + "gas_symbol"),
			ExplorerTxURL: v.GetString(p + "explorer_tx_url"),
			Token:         getAddress(p + "token_address"),
			Staking:       getAddress(p + "staking_address"),
			Items:         getAddress(p + "items_address"),
			Market:        getAddress(p + "market_address"),
			MultiSend:     getAddress(p + "multisend_address"),
		})
	}

	st.ClaimTrigger = getDecimal("claim_trigger")
	st.ClaimMinPerPosition = getDecimal("claim_min_per_position")
	st.AutoBuyID = v.GetUint64("auto_buy_id")
	st.AutoGroup = v.GetBool("auto_group")

	st.TrackDonations = v.GetBool("track_donations")
	st.DonationAddress = getAddress("donation_address")
	st.DonationPercentage = getDecimal("donation_percentage")
	st.DonationStrategy = strings.ToLower(strings.TrimSpace(v.GetString("donation_strategy")))

	st.RefreshInterval = getDuration("refresh_interval")
	st.NoRunningProcess = v.GetBool("no_running_process")

	st.CatalogBaseURL = strings.TrimRight(v.GetString("catalog_base_url"), "/")
	st.PricePairURL = strings.TrimSpace(v.GetString("price_pair_url"))

	st.MarketMaxSlots = v.GetInt("market_max_slots")
	st.MarketEmptyRun = v.GetInt("market_empty_run")
	st.ApprovalMaxAttempts = v.GetInt("approval_max_attempts")
	st.GasLimitBufferPct = v.GetInt64("gas_limit_buffer_pct")
	st.GasPriceMulPct = v.GetInt64("gas_price_mul_pct")
	st.ConfirmTimeout = getDuration("confirm_timeout")
	st.RPCRateLimit = v.GetFloat64("rpc_rate_limit")

	st.LogLevel = v.GetString("log_level")
	st.LogFile = v.GetString("log_file")
	st.MetricsAddr = strings.TrimSpace(v.GetString("metrics_addr"))

	if len(errs) > 0 {
		return st, errors.Join(errs...)
	}
	return st, nil
}

// Validate checks everything needed to talk to the chain. Read-only commands
// that never sign still need a key to derive the wallet address.
func (s Settings) Validate() error {
	var errs []error
	if s.PrivateKeyHex == "" {
		errs = append(errs, errors.New("PRIVATE_KEY is empty"))
	}
	if len(s.Networks) == 0 {
		errs = append(errs, errors.New("no network tracked, set TRACK_MATIC or TRACK_ALT"))
	}
	zero := common.Address{}
	for _, n := range s.Networks {
		if n.RPCURL == "" {
			errs = append(errs, fmt.Errorf("%s_RPC_URL is empty", n.Name))
		}
		if n.ChainID <= 0 {
			errs = append(errs, fmt.Errorf("%s_CHAIN_ID must be positive", n.Name))
		}
		if n.Token == zero || n.Staking == zero || n.Items == zero {
			errs = append(errs, fmt.Errorf("%s: token, staking and items addresses are required", n.Name))
		}
		if s.DonationStrategy == StrategyMultiSend && n.MultiSend == zero {
			errs = append(errs, fmt.Errorf("%s_MULTISEND_ADDRESS is required for the multisend strategy", n.Name))
		}
	}
	if s.ClaimTrigger.IsNegative() || s.ClaimMinPerPosition.IsNegative() {
		errs = append(errs, errors.New("claim thresholds must not be negative"))
	}
	if s.DonationPercentage.IsNegative() || s.DonationPercentage.GreaterThan(decimal.NewFromInt(100)) {
		errs = append(errs, errors.New("DONATION_PERCENTAGE must be within 0..100"))
	}
	if (s.TrackDonations || s.DonationPercentage.IsPositive()) && s.DonationAddress == zero {
		errs = append(errs, errors.New("DONATION_ADDRESS is required when donations are tracked or a percentage is set"))
	}
	switch s.DonationStrategy {
	case StrategyTransfer, StrategyMultiSend:
	default:
		errs = append(errs, fmt.Errorf("unknown DONATION_STRATEGY %q", s.DonationStrategy))
	}
	if s.RefreshInterval <= 0 {
		errs = append(errs, errors.New("REFRESH_INTERVAL must be positive"))
	}
	if s.ApprovalMaxAttempts < 1 {
		errs = append(errs, errors.New("APPROVAL_MAX_ATTEMPTS must be at least 1"))
	}
	if s.MarketMaxSlots < 1 || s.MarketEmptyRun < 1 {
		errs = append(errs, errors.New("MARKET_MAX_SLOTS and MARKET_EMPTY_RUN must be at least 1"))
	}
	return errors.Join(errs...)
}
