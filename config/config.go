package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"riskCore/internal/adapters/logger"
	"riskCore/internal/levels"
	"riskCore/internal/ports"
	"riskCore/internal/risk"
	"riskCore/internal/strategy"
	"riskCore/internal/validation"
)

// Snapshot backends.
const (
	SnapshotSQLite = "sqlite"
	SnapshotRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	Symbol           string
	Interval         string  // Kline interval used for analysis, e.g. "15m"
	QuoteAsset       string  // Balance asset used for sizing
	AccountBalance   float64 // Static balance used instead of the exchange balance when > 0
	PaperSlippagePct float64

	// Component parameters
	Risk       risk.Config
	Levels     levels.Config
	Strategy   strategy.Config
	Validation validation.Config

	// Position monitor
	PollInterval    time.Duration
	SessionEnd      time.Duration // Offset from UTC midnight, 0 disables the session-end exit
	CloseOnStop     bool
	TrailingEnabled bool

	// Persistence
	DBPath          string
	SnapshotBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Observability
	LogLevel    logger.LogLevel
	LogFormat   string // "text" or "json"
	MetricsAddr string // Empty disables the /metrics listener

	// Control loop
	AnalysisInterval time.Duration
	KlineLimit       int
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Market
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "ETHUSDT"))
	cfg.Interval = getEnv("INTERVAL", "15m")
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	cfg.AccountBalance = floatField(&errs, "ACCOUNT_BALANCE", 0)
	if cfg.AccountBalance < 0 {
		errs = append(errs, "ACCOUNT_BALANCE cannot be negative")
	}
	if cfg.AccountBalance == 0 && (cfg.APIKey == "" || cfg.SecretKey == "") {
		errs = append(errs, "BINANCE_API_KEY and BINANCE_API_SECRET must be set unless ACCOUNT_BALANCE is given")
	}
	cfg.PaperSlippagePct = floatField(&errs, "PAPER_SLIPPAGE_PCT", 0)
	if cfg.PaperSlippagePct < 0 || cfg.PaperSlippagePct >= 100 {
		errs = append(errs, "PAPER_SLIPPAGE_PCT must be in [0, 100)")
	}

	cfg.Risk = loadRisk(&errs)
	cfg.Levels = loadLevels(&errs)
	cfg.Strategy = loadStrategy(&errs)

	vcfg, err := LoadValidation()
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.Validation = vcfg

	// Position monitor
	pollMs := intField(&errs, "MONITOR_POLL_INTERVAL_MS", 1000)
	if pollMs <= 0 {
		errs = append(errs, "MONITOR_POLL_INTERVAL_MS must be positive")
	}
	cfg.PollInterval = time.Duration(pollMs) * time.Millisecond

	if raw := getEnv("SESSION_END_UTC", ""); raw != "" {
		cfg.SessionEnd, err = parseClock(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid SESSION_END_UTC: %v", err))
		}
	}
	cfg.CloseOnStop = getEnvAsBool("CLOSE_ON_STOP", false)
	cfg.TrailingEnabled = getEnvAsBool("TRAILING_ENABLED", true)

	// Persistence
	cfg.DBPath = getEnv("DB_PATH", "./data/risk_core.db")
	cfg.SnapshotBackend = strings.ToLower(getEnv("SNAPSHOT_BACKEND", SnapshotSQLite))
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB = intField(&errs, "REDIS_DB", 0)
	switch cfg.SnapshotBackend {
	case SnapshotSQLite:
	case SnapshotRedis:
		if cfg.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR must be set when SNAPSHOT_BACKEND=redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("SNAPSHOT_BACKEND must be %q or %q", SnapshotSQLite, SnapshotRedis))
	}

	// Observability
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Control loop
	analysisSeconds := intField(&errs, "ANALYSIS_INTERVAL_SECONDS", 60)
	if analysisSeconds <= 0 {
		errs = append(errs, "ANALYSIS_INTERVAL_SECONDS must be positive")
	}
	cfg.AnalysisInterval = time.Duration(analysisSeconds) * time.Second
	cfg.KlineLimit = intField(&errs, "KLINE_LIMIT", 300)
	if cfg.KlineLimit <= cfg.Strategy.LongTermMAPeriod {
		errs = append(errs, "KLINE_LIMIT must exceed STRATEGY_LONG_MA_PERIOD")
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s: %w", strings.Join(errs, "; "), ports.ErrConfigurationError)
	}

	return cfg, nil
}

func loadRisk(errs *[]string) risk.Config {
	def := risk.DefaultConfig()
	c := risk.Config{
		RiskPerTradePct:    floatField(errs, "RISK_PER_TRADE_PCT", def.RiskPerTradePct),
		MaxDailyLossPct:    floatField(errs, "MAX_DAILY_LOSS_PCT", def.MaxDailyLossPct),
		MaxPositionSize:    floatField(errs, "MAX_POSITION_SIZE", def.MaxPositionSize),
		MinPositionSize:    floatField(errs, "MIN_POSITION_SIZE", def.MinPositionSize),
		LotPrecision:       int32(intField(errs, "LOT_PRECISION", int(def.LotPrecision))),
		Leverage:           intField(errs, "LEVERAGE", def.Leverage),
		TrailATRMultiplier: floatField(errs, "TRAIL_ATR_MULTIPLIER", def.TrailATRMultiplier),
		TrailActivationATR: floatField(errs, "TRAIL_ACTIVATION_ATR", def.TrailActivationATR),
	}
	if c.Leverage <= 0 {
		*errs = append(*errs, "LEVERAGE must be positive")
	}
	return c
}

func loadLevels(errs *[]string) levels.Config {
	def := levels.DefaultConfig()
	c := levels.Config{
		Lookback:            intField(errs, "LEVEL_LOOKBACK", def.Lookback),
		ATRPeriod:           intField(errs, "ATR_PERIOD", def.ATRPeriod),
		ATRMultiplier:       floatField(errs, "ZONE_ATR_MULTIPLIER", def.ATRMultiplier),
		MinZoneWidthPct:     floatField(errs, "MIN_ZONE_WIDTH_PCT", def.MinZoneWidthPct),
		MaxZoneWidthPct:     floatField(errs, "MAX_ZONE_WIDTH_PCT", def.MaxZoneWidthPct),
		ClusterThresholdPct: floatField(errs, "CLUSTER_THRESHOLD_PCT", def.ClusterThresholdPct),
		MinClusterSize:      intField(errs, "MIN_CLUSTER_SIZE", def.MinClusterSize),
		DailyLookback:       intField(errs, "DAILY_LOOKBACK", def.DailyLookback),
	}
	if err := c.Validate(); err != nil {
		*errs = append(*errs, err.Error())
	}
	return c
}

func loadStrategy(errs *[]string) strategy.Config {
	def := strategy.DefaultConfig()
	c := strategy.Config{
		ShortTermMAPeriod: intField(errs, "STRATEGY_SHORT_MA_PERIOD", def.ShortTermMAPeriod),
		LongTermMAPeriod:  intField(errs, "STRATEGY_LONG_MA_PERIOD", def.LongTermMAPeriod),
		EMAPeriod:         intField(errs, "STRATEGY_EMA_PERIOD", def.EMAPeriod),
		RSIPeriod:         intField(errs, "STRATEGY_RSI_PERIOD", def.RSIPeriod),
		RSIOverbought:     floatField(errs, "STRATEGY_RSI_OVERBOUGHT", def.RSIOverbought),
		RSIOversold:       floatField(errs, "STRATEGY_RSI_OVERSOLD", def.RSIOversold),
		RewardRiskRatio:   floatField(errs, "REWARD_RISK_RATIO", def.RewardRiskRatio),
		StopATRMultiplier: floatField(errs, "STOP_ATR_MULTIPLIER", def.StopATRMultiplier),
	}

	// Validate strategy periods
	if c.ShortTermMAPeriod <= 0 || c.LongTermMAPeriod <= 0 || c.EMAPeriod <= 0 || c.RSIPeriod <= 0 {
		*errs = append(*errs, "strategy periods (MA, EMA, RSI) must be positive")
	}
	if c.ShortTermMAPeriod >= c.LongTermMAPeriod {
		*errs = append(*errs, "STRATEGY_SHORT_MA_PERIOD must be less than STRATEGY_LONG_MA_PERIOD")
	}
	if c.RSIOverbought <= c.RSIOversold || c.RSIOverbought > 100 || c.RSIOversold < 0 {
		*errs = append(*errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}
	return c
}

// LoadValidation reads only the validation gate settings. The operator CLI
// uses it to run the gate without exchange credentials.
func LoadValidation() (validation.Config, error) {
	_ = godotenv.Load()

	var errs []string
	def := validation.DefaultConfig()
	c := validation.Config{
		Enabled:             getEnvAsBool("AI_VALIDATION_ENABLED", def.Enabled),
		DeepAnalysisEnabled: getEnvAsBool("AI_DEEP_ANALYSIS_ENABLED", def.DeepAnalysisEnabled),
		FallbackToTechnical: getEnvAsBool("AI_FALLBACK_TO_TECHNICAL", def.FallbackToTechnical),
		TradeThreshold:      floatField(&errs, "AI_TRADE_THRESHOLD", def.TradeThreshold),
		DeepThreshold:       floatField(&errs, "AI_DEEP_THRESHOLD", def.DeepThreshold),
		QuickTimeout:        secondsField(&errs, "AI_QUICK_TIMEOUT_SECONDS", def.QuickTimeout),
		DeepTimeout:         secondsField(&errs, "AI_DEEP_TIMEOUT_SECONDS", def.DeepTimeout),
		DeepBars:            intField(&errs, "AI_DEEP_BARS", def.DeepBars),
		Quick:               loadProvider(&errs, "AI_QUICK"),
		Deep:                loadProvider(&errs, "AI_DEEP"),
	}
	if err := c.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return c, fmt.Errorf("validation settings: %s", strings.Join(errs, "; "))
	}
	return c, nil
}

func loadProvider(errs *[]string, prefix string) ports.ProviderConfig {
	return ports.ProviderConfig{
		Provider:  strings.ToLower(getEnv(prefix+"_PROVIDER", "")),
		Model:     getEnv(prefix+"_MODEL", ""),
		APIKey:    getEnv(prefix+"_API_KEY", ""),
		BaseURL:   getEnv(prefix+"_BASE_URL", ""),
		MaxTokens: intField(errs, prefix+"_MAX_TOKENS", 0),
	}
}

// parseClock reads "HH:MM" as an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func intField(errs *[]string, key string, defaultValue int) int {
	v, err := getEnvAsIntRequired(key, defaultValue)
	if err != nil {
		*errs = append(*errs, err.Error())
		return defaultValue
	}
	return v
}

func floatField(errs *[]string, key string, defaultValue float64) float64 {
	v, err := getEnvAsFloatRequired(key, defaultValue)
	if err != nil {
		*errs = append(*errs, err.Error())
		return defaultValue
	}
	return v
}

func secondsField(errs *[]string, key string, defaultValue time.Duration) time.Duration {
	v, err := getEnvAsFloatRequired(key, defaultValue.Seconds())
	if err != nil {
		*errs = append(*errs, err.Error())
		return defaultValue
	}
	return time.Duration(v * float64(time.Second))
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
