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

// All returns the invariant checks for the delivery-method flag tables.
// Each query must return zero rows on a healthy database; any row is a
// violation sample.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_person_flag_single_row",
			SQL: `SELECT person_nbr, COUNT(*) FROM person_flag
                  WHERE flag_code = 'STDL'
                  GROUP BY person_nbr HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_org_flag_single_row",
			SQL: `SELECT org_nbr, COUNT(*) FROM org_flag
                  WHERE flag_code = 'STDL'
                  GROUP BY org_nbr HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_person_flag_value_present",
			SQL: `SELECT person_nbr, value FROM person_flag
                  WHERE flag_code = 'STDL' AND (value IS NULL OR value = '')`,
		},
		{
			Name: "O4_org_flag_value_present",
			SQL: `SELECT org_nbr, value FROM org_flag
                  WHERE flag_code = 'STDL' AND (value IS NULL OR value = '')`,
		},
		{
			Name: "O5_paper_rows_stamped_in_past",
			SQL: `SELECT person_nbr::text AS nbr, last_maintained FROM person_flag
                  WHERE flag_code = 'STDL' AND value = 'PAPR'
                    AND last_maintained > now() + interval '1 minute'
                  UNION ALL
                  SELECT org_nbr::text AS nbr, last_maintained FROM org_flag
                  WHERE flag_code = 'STDL' AND value = 'PAPR'
                    AND last_maintained > now() + interval '1 minute'`,
		},
		{
			Name: "O6_flag_owner_exists",
			SQL: `SELECT pf.person_nbr::text AS nbr FROM person_flag pf
                  LEFT JOIN person p ON p.person_nbr = pf.person_nbr
                  WHERE p.person_nbr IS NULL
                  UNION ALL
                  SELECT ofl.org_nbr::text AS nbr FROM org_flag ofl
                  LEFT JOIN org o ON o.org_nbr = ofl.org_nbr
                  WHERE o.org_nbr IS NULL`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
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
