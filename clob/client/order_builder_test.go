package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betdesk/gotrader/clob/signing"
	"github.com/betdesk/gotrader/clob/types"
)

const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testClient(t *testing.T) *Client {
	t.Helper()
	signer, err := signing.NewLocalSignerFromHex(testKey)
	require.NoError(t, err)
	return NewClient("https://clob.example.com", types.ChainAmoy, signer, nil)
}

func TestGetOrderRawAmounts(t *testing.T) {
	rc := RoundingConfig[types.TickSize001]

	cases := []struct {
		name      string
		side      types.Side
		size      float64
		price     float64
		wantMaker float64
		wantTaker float64
	}{
		{"buy whole", types.SideBuy, 20, 0.50, 10, 20},
		{"buy rounds size down", types.SideBuy, 21.129, 0.50, 10.56, 21.12},
		{"sell whole", types.SideSell, 20, 0.50, 20, 10},
		{"sell rounds size down", types.SideSell, 21.129, 0.50, 21.12, 10.56},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			maker, taker := getOrderRawAmounts(tc.side, tc.size, tc.price, rc)
			assert.Equal(t, tc.wantMaker, maker, "maker amount")
			assert.Equal(t, tc.wantTaker, taker, "taker amount")
		})
	}
}

func TestDecimalPlaces(t *testing.T) {
	assert.Equal(t, 0, decimalPlaces(5))
	assert.Equal(t, 1, decimalPlaces(0.5))
	assert.Equal(t, 4, decimalPlaces(0.1234))
}

func TestRoundingHelpers(t *testing.T) {
	assert.Equal(t, 0.56, roundDown(0.569, 2))
	assert.Equal(t, 0.57, roundUp(0.561, 2))
	assert.Equal(t, 0.56, roundNormal(0.5649, 2))
	// Values already within precision pass through untouched.
	assert.Equal(t, 0.5, roundDown(0.5, 2))
}

func TestParseUnits(t *testing.T) {
	assert.Equal(t, "10500000", parseUnits(10.5, 6).String())
	assert.Equal(t, "0", parseUnits(0, 6).String())
}

func TestBuildOrderSignsAndScales(t *testing.T) {
	c := testClient(t)
	negRisk := false

	order, err := c.CreateOrderWithFunder(context.Background(), &types.UserOrder{
		TokenID: "1234",
		Price:   0.50,
		Size:    20,
		Side:    types.SideBuy,
	}, &types.CreateOrderOptions{TickSize: types.TickSize001, NegRisk: &negRisk}, "", types.SignatureTypeEOA)
	require.NoError(t, err)

	assert.Equal(t, "10000000", order.MakerAmount, "maker amount is USDC in raw units")
	assert.Equal(t, "20000000", order.TakerAmount, "taker amount is shares in raw units")
	assert.Equal(t, types.SideBuy, order.Side)
	assert.Equal(t, int(types.SignatureTypeEOA), order.SignatureType)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", order.Taker)
	assert.NotEmpty(t, order.Signature)
	// No funder configured, so the signer is also the maker.
	assert.Equal(t, order.Signer, order.Maker)
}

func TestBuildOrderWithFunderSetsMaker(t *testing.T) {
	c := testClient(t)
	negRisk := true
	funder := "0x9999999999999999999999999999999999999999"

	order, err := c.CreateOrderWithFunder(context.Background(), &types.UserOrder{
		TokenID: "1234",
		Price:   0.25,
		Size:    10,
		Side:    types.SideSell,
	}, &types.CreateOrderOptions{TickSize: types.TickSize001, NegRisk: &negRisk}, funder, types.SignatureTypeGnosisSafe)
	require.NoError(t, err)

	assert.Equal(t, funder, order.Maker)
	assert.NotEqual(t, order.Signer, order.Maker)
	assert.Equal(t, int(types.SignatureTypeGnosisSafe), order.SignatureType)
}

func TestBuildOrderRejectsUnknownTickSize(t *testing.T) {
	c := testClient(t)

	_, err := c.CreateOrderWithFunder(context.Background(), &types.UserOrder{
		TokenID: "1234",
		Price:   0.5,
		Size:    10,
		Side:    types.SideBuy,
	}, &types.CreateOrderOptions{TickSize: types.TickSize("0.2")}, "", types.SignatureTypeEOA)
	assert.Error(t, err)
}
