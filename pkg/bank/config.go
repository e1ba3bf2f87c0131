package bank

import (
	"github.com/code-payments/code-escrow/pkg/config"
	"github.com/code-payments/code-escrow/pkg/config/env"
	"github.com/code-payments/code-escrow/pkg/config/memory"
	"github.com/code-payments/code-escrow/pkg/config/wrapper"
	"github.com/code-payments/code-escrow/pkg/solana/system"
)

const (
	envConfigPrefix = "BANK_"

	RentLamportsPerByteYearConfigEnvName = envConfigPrefix + "RENT_LAMPORTS_PER_BYTE_YEAR"
	defaultRentLamportsPerByteYear       = system.DefaultLamportsPerByteYear

	RentExemptionThresholdConfigEnvName = envConfigPrefix + "RENT_EXEMPTION_THRESHOLD"
	defaultRentExemptionThreshold       = system.DefaultExemptionThreshold

	RentBurnPercentConfigEnvName = envConfigPrefix + "RENT_BURN_PERCENT"
	defaultRentBurnPercent       = system.DefaultBurnPercent
	maxRentBurnPercent           = 100

	MaxInvokeDepthConfigEnvName = envConfigPrefix + "MAX_INVOKE_DEPTH"
	defaultMaxInvokeDepth       = 4

	AccountLockStripesConfigEnvName = envConfigPrefix + "ACCOUNT_LOCK_STRIPES"
	defaultAccountLockStripes       = 1024

	AddressCacheBudgetConfigEnvName = envConfigPrefix + "ADDRESS_CACHE_BUDGET"
	defaultAddressCacheBudget       = 10_000
)

type conf struct {
	rentLamportsPerByteYear config.Uint64
	rentExemptionThreshold  config.Float64
	rentBurnPercent         config.Uint64
	maxInvokeDepth          config.Uint64
	accountLockStripes      config.Uint64
	addressCacheBudget      config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			rentLamportsPerByteYear: env.NewUint64Config(RentLamportsPerByteYearConfigEnvName, defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  env.NewFloat64Config(RentExemptionThresholdConfigEnvName, defaultRentExemptionThreshold),
			rentBurnPercent:         env.NewUint64Config(RentBurnPercentConfigEnvName, defaultRentBurnPercent),
			maxInvokeDepth:          env.NewUint64Config(MaxInvokeDepthConfigEnvName, defaultMaxInvokeDepth),
			accountLockStripes:      env.NewUint64Config(AccountLockStripesConfigEnvName, defaultAccountLockStripes),
			addressCacheBudget:      env.NewUint64Config(AddressCacheBudgetConfigEnvName, defaultAddressCacheBudget),
		}
	}
}

type testOverrides struct {
	maxInvokeDepth     uint64
	addressCacheBudget uint64
	rentBurnPercent    uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	maxInvokeDepth := uint64(defaultMaxInvokeDepth)
	if overrides.maxInvokeDepth > 0 {
		maxInvokeDepth = overrides.maxInvokeDepth
	}

	addressCacheBudget := uint64(defaultAddressCacheBudget)
	if overrides.addressCacheBudget > 0 {
		addressCacheBudget = overrides.addressCacheBudget
	}

	rentBurnPercent := uint64(defaultRentBurnPercent)
	if overrides.rentBurnPercent > 0 {
		rentBurnPercent = overrides.rentBurnPercent
	}

	return func() *conf {
		return &conf{
			rentLamportsPerByteYear: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultRentLamportsPerByteYear)), defaultRentLamportsPerByteYear),
			rentExemptionThreshold:  wrapper.NewFloat64Config(memory.NewConfig(float64(defaultRentExemptionThreshold)), defaultRentExemptionThreshold),
			rentBurnPercent:         wrapper.NewUint64Config(memory.NewConfig(rentBurnPercent), defaultRentBurnPercent),
			maxInvokeDepth:          wrapper.NewUint64Config(memory.NewConfig(maxInvokeDepth), defaultMaxInvokeDepth),
			accountLockStripes:      wrapper.NewUint64Config(memory.NewConfig(uint64(defaultAccountLockStripes)), defaultAccountLockStripes),
			addressCacheBudget:      wrapper.NewUint64Config(memory.NewConfig(addressCacheBudget), defaultAddressCacheBudget),
		}
	}
}
