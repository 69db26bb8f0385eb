package exec

import (
	"context"

	"frontrun/internal/schema"
)

// AccountInfo is the venue's view of the account.
type AccountInfo struct {
	Equity     schema.Notional
	OpenOrders int
}

// Gateway submits orders to a venue. The wire client behind it is an
// external collaborator; the backtest supplies a simulator.
type Gateway interface {
	Submit(ctx context.Context, intent schema.OrderIntent) (schema.OrderAck, error)
	Cancel(ctx context.Context, orderID uint64) error
	Account(ctx context.Context) (AccountInfo, error)
}
