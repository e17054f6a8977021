package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_active_request",
			SQL: `SELECT shared_document_id, COUNT(*) FROM signature_requests
                  WHERE status IN ('Pending','Sent','Opened')
                  GROUP BY shared_document_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_completion_date_matches_status",
			SQL: `SELECT id, status, completed_at FROM signature_requests
                  WHERE (status IN ('Signed','Completed') AND completed_at IS NULL)
                     OR (status IN ('New','Pending','Sent','Opened') AND completed_at IS NOT NULL)`,
		},
		{
			Name: "O3_created_event_per_request",
			SQL: `SELECT r.id FROM signature_requests r
                  WHERE NOT EXISTS (
                      SELECT 1 FROM outbox o
                      WHERE o.topic = 'signature_request.created'
                        AND o.payload->>'signature_request_id' = r.id)`,
		},
		{
			Name: "O4_signing_link_present",
			SQL:  `SELECT id FROM signature_requests WHERE signing_link = '' OR signing_link NOT LIKE '%' || id`,
		},
		{
			Name: "O5_outbox_not_stuck",
			SQL: `SELECT id::text FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
