package eligibility

import (
	"fmt"

	"stdlreset/config"
)

// The eligibility query is a UNION of a person half and an organization half.
// Both halves splice in the same closure-date join fragment, selected by the
// run mode: a fixed calendar date, or the most recent closure on record.
//
// Flag code STDL is the statement delivery method; PAPR is the paper-default
// sentinel the reconciliation writes back. The LEFT JOIN deliberately carries
// the current flag value only when it differs from PAPR; a row whose flag is
// already PAPR stays eligible but joins to NULL.

const defaultFixedDateJoin = `
        JOIN account_status_history ah
            ON ah.acct_nbr = a.acct_nbr
            AND ah.status = a.status
            AND ah.eff_time::date = to_date($1, 'MM-DD-YYYY')
            AND ah.seq_extension = (
                SELECT MAX(seq_extension)
                FROM account_status_history
                WHERE acct_nbr = ah.acct_nbr
                AND status = ah.status
                AND eff_time = ah.eff_time
            )
`

const defaultFullCleanupJoin = `
        JOIN account_status_history ah
            ON ah.acct_nbr = a.acct_nbr
            AND ah.status = a.status
            AND ah.eff_time = (
                SELECT MAX(eff_time)
                FROM account_status_history
                WHERE acct_nbr = ah.acct_nbr
                AND status = ah.status
            )
            AND ah.seq_extension = (
                SELECT MAX(seq_extension)
                FROM account_status_history
                WHERE acct_nbr = ah.acct_nbr
                AND status = ah.status
                AND eff_time = ah.eff_time
            )
`

const baseQuery = `
    SELECT DISTINCT
        'pers' AS entity_type,
        p.person_nbr AS entity_nbr,
        a.acct_nbr,
        p.first_name || ' ' || p.last_name AS entity_name,
        to_char(ah.eff_time, 'MM-DD-YYYY') AS close_date,
        pf.value AS current_flag

    FROM person p

    JOIN account a
        ON a.tax_rpt_for_person_nbr = p.person_nbr

    LEFT JOIN person_flag pf
        ON pf.person_nbr = p.person_nbr
        AND pf.flag_code = 'STDL'
        AND pf.value <> 'PAPR'

    %[1]s

    WHERE a.major_type IN ('SAV', 'CNS', 'MTG', 'CML')
    AND a.status = 'CLS'

    AND (

        NOT EXISTS
        ( -- closure leaves the person with no other standard deposit or loan relationship
            SELECT 1
            FROM account
            WHERE tax_rpt_for_person_nbr = a.tax_rpt_for_person_nbr
            AND major_type IN ('SAV', 'CNS', 'MTG', 'EXT', 'CML', 'CK', 'TD')
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
        )

        OR EXISTS
        ( -- only remaining open account is a safe deposit box lease
            SELECT 1
            FROM account
            WHERE tax_rpt_for_person_nbr = a.tax_rpt_for_person_nbr
            AND major_type = 'LEAS'
            AND minor_type = 'SDB'
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            AND NOT EXISTS (
                SELECT 1
                FROM account
                WHERE tax_rpt_for_person_nbr = a.tax_rpt_for_person_nbr
                AND major_type <> 'LEAS'
                AND minor_type <> 'SDB'
                AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            )
        )

        OR EXISTS
        ( -- only remaining open account is a retirement plan
            SELECT 1
            FROM account
            WHERE tax_rpt_for_person_nbr = a.tax_rpt_for_person_nbr
            AND major_type = 'RTMT'
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            AND NOT EXISTS (
                SELECT 1
                FROM account
                WHERE tax_rpt_for_person_nbr = a.tax_rpt_for_person_nbr
                AND major_type <> 'RTMT'
                AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            )
        )
    )

    UNION

    SELECT DISTINCT
        'org' AS entity_type,
        o.org_nbr AS entity_nbr,
        a.acct_nbr,
        o.org_name AS entity_name,
        to_char(ah.eff_time, 'MM-DD-YYYY') AS close_date,
        ofl.value AS current_flag

    FROM org o

    JOIN account a
        ON a.tax_rpt_for_org_nbr = o.org_nbr

    LEFT JOIN org_flag ofl
        ON ofl.org_nbr = o.org_nbr
        AND ofl.flag_code = 'STDL'
        AND ofl.value <> 'PAPR'

    %[1]s

    WHERE a.major_type IN ('SAV', 'CNS', 'MTG', 'CML')
    AND a.status = 'CLS'

    AND (

        NOT EXISTS
        (
            SELECT 1
            FROM account
            WHERE tax_rpt_for_org_nbr = a.tax_rpt_for_org_nbr
            AND major_type IN ('SAV', 'CNS', 'MTG', 'EXT', 'CML', 'CK', 'TD')
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
        )

        OR EXISTS
        (
            SELECT 1
            FROM account
            WHERE tax_rpt_for_org_nbr = a.tax_rpt_for_org_nbr
            AND major_type = 'LEAS'
            AND minor_type = 'SDB'
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            AND NOT EXISTS (
                SELECT 1
                FROM account
                WHERE tax_rpt_for_org_nbr = a.tax_rpt_for_org_nbr
                AND major_type <> 'LEAS'
                AND minor_type <> 'SDB'
                AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            )
        )

        OR EXISTS
        (
            SELECT 1
            FROM account
            WHERE tax_rpt_for_org_nbr = a.tax_rpt_for_org_nbr
            AND major_type = 'RTMT'
            AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            AND NOT EXISTS (
                SELECT 1
                FROM account
                WHERE tax_rpt_for_org_nbr = a.tax_rpt_for_org_nbr
                AND major_type <> 'RTMT'
                AND status IN ('ACT', 'IACT', 'DORM', 'NPFM')
            )
        )
    )
`

// BuildQuery composes the eligibility query for the given run mode. The
// configuration may override either join fragment; empty overrides fall back
// to the built-in statements. Ambiguous modes cannot be constructed, but the
// zero RunMode is still rejected here so a query never executes without a
// closure-date selector.
func BuildQuery(mode config.RunMode, overrides config.Queries) (string, []any, error) {
	if err := mode.Validate(); err != nil {
		return "", nil, fmt.Errorf("eligibility: build query: %w", err)
	}

	if date, ok := mode.RunDate(); ok {
		join := overrides.FixedDateJoin
		if join == "" {
			join = defaultFixedDateJoin
		}
		return fmt.Sprintf(baseQuery, join), []any{date}, nil
	}

	join := overrides.FullCleanupJoin
	if join == "" {
		join = defaultFullCleanupJoin
	}
	return fmt.Sprintf(baseQuery, join), nil, nil
}
