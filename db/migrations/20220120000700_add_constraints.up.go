package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {

		if db.Dialect().Name().String() != "pg" {
			fmt.Printf("\033[1;31m%s\033[0m", "You are not using PostgreSQL. DB level checks can not be enabled!\n")
			return nil
		}
		sql := `
			-- every leg moves a positive amount in exactly one direction
				ALTER TABLE transaction_legs
				ADD CONSTRAINT check_one_side
				CHECK ((debit > 0 AND credit = 0) OR (credit > 0 AND debit = 0));

				ALTER TABLE transaction_legs
				ADD CONSTRAINT fk_transaction_legs_entry
				FOREIGN KEY (entry_id) REFERENCES journal_entries (id);

			-- debits equal credits per currency, checked when the transaction commits
				CREATE OR REPLACE FUNCTION check_entry_balanced()
					RETURNS TRIGGER AS $$
				DECLARE
					imbalance BIGINT;
				BEGIN
					SELECT INTO imbalance COALESCE(MAX(ABS(s)), 0) FROM (
						SELECT SUM(debit) - SUM(credit) AS s
						FROM transaction_legs
						WHERE entry_id = NEW.entry_id
						GROUP BY currency
					) sums;

					IF imbalance != 0
					THEN
						RAISE EXCEPTION 'imbalanced journal entry [entry_id:%] off by [%]',
						NEW.entry_id,
						imbalance;
					END IF;
					RETURN NEW;
				END;
				$$ LANGUAGE plpgsql;
				CREATE CONSTRAINT TRIGGER check_entry_balanced
				AFTER INSERT OR UPDATE ON transaction_legs
				DEFERRABLE INITIALLY DEFERRED
				FOR EACH ROW EXECUTE PROCEDURE check_entry_balanced();
		`
		if _, err := db.Exec(sql); err != nil {
			return err
		}
		return nil
	}, nil)
}
