package delivery

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// List returns every delivery option, active or not, in display order.
func List(ctx context.Context, db sqlx.QueryerContext) ([]Option, error) {
	const q = `
	SELECT
		delivery_option_id, name, fee, is_pickup, is_active, sort_order
	FROM delivery_options
	ORDER BY sort_order, name`

	var opts []Option
	if err := sqlx.SelectContext(ctx, db, &opts, q); err != nil {
		return nil, fmt.Errorf("selecting delivery options: %w", err)
	}
	return opts, nil
}
