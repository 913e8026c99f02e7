package migrations

import (
	"context"

	"github.com/getAlby/lnledger/db/models"
	"github.com/uptrace/bun"
)

// Fresh databases get the latest model fields from here, so later migrations
// must use IfNotExists/IfExists when they touch columns.
func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		tables := []interface{}{
			(*models.User)(nil),
			(*models.InvoiceUser)(nil),
			(*models.OnchainAddress)(nil),
			(*models.JournalEntry)(nil),
			(*models.TransactionLeg)(nil),
		}
		for _, table := range tables {
			if _, err := db.NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	}, nil)
}
