package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPrecondition is matched by every PreconditionError via errors.Is.
var ErrPrecondition = errors.New("precondition violation")

// maxReportedIDs caps how many delivery IDs are spelled out in an error message.
const maxReportedIDs = 10

// PreconditionError reports a batch that cannot be transformed, together with
// the rows that broke the rule. Rows holds zero-based batch positions and
// DeliveryIDs the IDs at those positions, in the same order.
type PreconditionError struct {
	Rule        string
	Rows        []int
	DeliveryIDs []string
}

func (e *PreconditionError) Error() string {
	labels := make([]string, 0, min(len(e.DeliveryIDs), maxReportedIDs))
	for i, id := range e.DeliveryIDs {
		if i == maxReportedIDs {
			break
		}
		if id == "" && i < len(e.Rows) {
			id = fmt.Sprintf("row %d", e.Rows[i]+1)
		}
		labels = append(labels, id)
	}
	suffix := ""
	if len(e.DeliveryIDs) > maxReportedIDs {
		suffix = fmt.Sprintf(" (+%d more)", len(e.DeliveryIDs)-maxReportedIDs)
	}
	return fmt.Sprintf("%s: %s: delivery ids [%s]%s", ErrPrecondition, e.Rule, strings.Join(labels, ", "), suffix)
}

func (e *PreconditionError) Unwrap() error {
	return ErrPrecondition
}

// violation returns a PreconditionError naming the given batch positions, or
// nil when rows is empty.
func violation(rule string, batch []EnrichedDelivery, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = batch[r].ID
	}
	return &PreconditionError{Rule: rule, Rows: rows, DeliveryIDs: ids}
}

// CheckRequiredFields rejects a batch in which any delivery lacks its ID,
// package type or zone. Timestamps and distance are checked by the stages and
// the parser that own them.
func CheckRequiredFields(batch []EnrichedDelivery) error {
	var missing []int
	for i, row := range batch {
		if row.ID == "" || row.PackageType == "" || row.Zone == "" {
			missing = append(missing, i)
		}
	}
	return violation("missing Delivery_ID, Package_Type or Delivery_Zone", batch, missing)
}
