package market

import "math/big"

var bpsDenominator = big.NewInt(10000)

// Split is the three-way division of a sale payment.
type Split struct {
	FeeAmount     *big.Int
	RoyaltyAmount *big.Int
	SellerAmount  *big.Int
}

// ComputeSplit divides price into platform fee, royalty, and seller proceeds
// using floor division on the basis points. The seller amount is computed as
// the remainder, so the three parts always sum to price exactly; rounding
// dust accrues to the seller, never to the platform or the royalty receiver.
func ComputeSplit(price *big.Int, feeBps, royaltyBps uint16) Split {
	fee := new(big.Int).Mul(price, big.NewInt(int64(feeBps)))
	fee.Div(fee, bpsDenominator)

	roy := new(big.Int).Mul(price, big.NewInt(int64(royaltyBps)))
	roy.Div(roy, bpsDenominator)

	seller := new(big.Int).Sub(price, fee)
	seller.Sub(seller, roy)

	return Split{FeeAmount: fee, RoyaltyAmount: roy, SellerAmount: seller}
}
