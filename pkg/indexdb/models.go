package indexdb

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventDao is a data access object that maps directly to the 'market_events' table in PostgreSQL.
type EventDao struct {
	tableName struct{}  `bun:"table:market_events"` // nolint
	Seq       uint64    `json:"seq" bun:",pk"`
	EventID   string    `json:"event_id" bun:",notnull,type:varchar(36)"`
	Kind      string    `json:"kind" bun:",notnull,type:varchar(32)"`
	Payload   []byte    `json:"payload" bun:",type:jsonb"`
	EmittedAt time.Time `json:"emitted_at" bun:",notnull"`
	IndexedAt time.Time `json:"indexed_at" bun:",nullzero,default:current_timestamp"`
}

// SaleDao is a data access object that maps directly to the 'market_sales' table in PostgreSQL.
type SaleDao struct {
	tableName     struct{}        `bun:"table:market_sales"` // nolint
	ListingID     uint64          `json:"listing_id" bun:",pk"`
	Buyer         string          `json:"buyer" bun:",notnull,type:varchar(42)"`
	Price         decimal.Decimal `json:"price" bun:",notnull,type:numeric(38,0)"`
	FeeAmount     decimal.Decimal `json:"fee_amount" bun:",notnull,type:numeric(38,0)"`
	RoyaltyAmount decimal.Decimal `json:"royalty_amount" bun:",notnull,type:numeric(38,0)"`
	SellerAmount  decimal.Decimal `json:"seller_amount" bun:",notnull,type:numeric(38,0)"`
	SoldAt        time.Time       `json:"sold_at" bun:",notnull"`
}

// MarketStatsDao is a data access object that maps directly to the 'market_stats' table in PostgreSQL.
// It holds a single aggregate row per stats key.
type MarketStatsDao struct {
	tableName  struct{}        `bun:"table:market_stats"` // nolint
	StatsKey   string          `json:"stats_key" bun:",pk,type:varchar(20)"`
	SalesCount int64           `json:"sales_count" bun:",notnull,default:0"`
	Volume     decimal.Decimal `json:"volume" bun:",notnull,type:numeric(38,0),default:0"`
	UpdatedAt  time.Time       `json:"updated_at" bun:",nullzero,default:current_timestamp"`
}

// GlobalStatsKey is the stats row aggregating across all sales.
const GlobalStatsKey = "global"
