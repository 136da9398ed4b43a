package client

// Exchange REST endpoints.
const (
	EndpointTime = "/time"

	EndpointCreateAPIKey = "/auth/api-key"
	EndpointDeriveAPIKey = "/auth/derive-api-key"
	EndpointDeleteAPIKey = "/auth/api-key"

	EndpointGetOrderBook = "/book"
	EndpointGetMidpoint  = "/midpoint"
	EndpointGetPrice     = "/price"

	EndpointPostOrder     = "/order"
	EndpointCancelOrder   = "/order"
	EndpointGetOpenOrders = "/data/orders"

	EndpointGetBalanceAllowance = "/balance-allowance"
)
