package chain

import "math/big"

// USDCDecimals is the collateral token's fixed precision.
const USDCDecimals = 6

var usdcScale = new(big.Float).SetInt64(1_000_000)

// ToUSDCUnits scales a human USDC amount into raw 6-decimal units.
func ToUSDCUnits(amount float64) *big.Int {
	f := new(big.Float).SetFloat64(amount)
	f.Mul(f, usdcScale)
	units, _ := f.Int(nil)
	return units
}

// FromUSDCUnits scales raw 6-decimal units into a human USDC amount.
func FromUSDCUnits(units *big.Int) float64 {
	f := new(big.Float).SetInt(units)
	f.Quo(f, usdcScale)
	amount, _ := f.Float64()
	return amount
}
