package domain

// TokenInfo is the compact read-only projection of a pool.
type TokenInfo struct {
	CreatorIdentity   string     `json:"creator_identity"`
	Symbol            string     `json:"symbol"`
	Name              string     `json:"name"`
	Decimals          uint8      `json:"decimals"`
	TotalSupply       uint64     `json:"total_supply"`
	CirculatingSupply uint64     `json:"circulating_supply"`
	SaleStatus        SaleStatus `json:"sale_status"`
}

// FullTokenInfo exposes every pool field, including guardrail parameters
// and oracle state.
type FullTokenInfo struct {
	TokenInfo

	IconRef       string `json:"icon_ref"`
	ProjectURLRef string `json:"project_url_ref"`
	AssetType     string `json:"asset_type"`

	Reserve    uint64 `json:"reserve"`
	K          uint64 `json:"k"`
	FeeRateBps uint64 `json:"fee_rate_bps"`

	BackingRatioBps           uint64 `json:"backing_ratio_bps"`
	WithdrawalLimitBps        uint64 `json:"withdrawal_limit_bps"`
	WithdrawalCooldownSeconds uint64 `json:"withdrawal_cooldown_seconds"`

	GraduationThreshold uint64 `json:"graduation_threshold"`
	GraduationTarget    string `json:"graduation_target"`
	IsGraduated         bool   `json:"is_graduated"`
	IsEmergency         bool   `json:"is_emergency"`
	OraclePrice         uint64 `json:"oracle_price"`
	LastOracleUpdate    int64  `json:"last_oracle_update"`

	CreatedAt int64 `json:"created_at"`
}

// GraduationProgress reports how close a pool is to its graduation threshold.
type GraduationProgress struct {
	CirculatingSupply   uint64 `json:"circulating_supply"`
	GraduationThreshold uint64 `json:"graduation_threshold"`
	// ProgressBps is circulating/threshold in basis points, capped at 10000.
	ProgressBps uint64 `json:"progress_bps"`
	IsGraduated bool   `json:"is_graduated"`
}

// WithdrawalInfo reports the creator's current withdrawal headroom.
type WithdrawalInfo struct {
	Reserve  uint64 `json:"reserve"`
	FeeFloat uint64 `json:"fee_float"`

	LastWithdrawalTimestamp int64  `json:"last_withdrawal_timestamp"`
	CooldownSeconds         uint64 `json:"cooldown_seconds"`
	NextWithdrawalTime      int64  `json:"next_withdrawal_time"`

	// MaxReserveWithdrawal is the current percentage cap, evaluated against
	// the live reserve.
	MaxReserveWithdrawal uint64 `json:"max_reserve_withdrawal"`
	// BackingFloor is the minimum reserve that must remain after any
	// discretionary withdrawal.
	BackingFloor uint64 `json:"backing_floor"`
}
