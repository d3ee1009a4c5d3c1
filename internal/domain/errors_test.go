package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreconditionError_Message(t *testing.T) {
	err := &PreconditionError{Rule: "missing pickup timestamp", Rows: []int{0, 1}, DeliveryIDs: []string{"SC1000", "SC1001"}}
	assert.Equal(t, "precondition violation: missing pickup timestamp: delivery ids [SC1000, SC1001]", err.Error())
}

func TestPreconditionError_TruncatesLongIDLists(t *testing.T) {
	ids := make([]string, 12)
	for i := range ids {
		ids[i] = fmt.Sprintf("SC%d", 1000+i)
	}
	err := &PreconditionError{Rule: "r", DeliveryIDs: ids}

	assert.Contains(t, err.Error(), "SC1009]")
	assert.NotContains(t, err.Error(), "SC1010")
	assert.Contains(t, err.Error(), "(+2 more)")
}

func TestPreconditionError_LabelsRowsWithoutID(t *testing.T) {
	err := &PreconditionError{Rule: "r", Rows: []int{0, 3}, DeliveryIDs: []string{"SC1000", ""}}
	assert.Contains(t, err.Error(), "[SC1000, row 4]")
}

func TestViolation_NoRows(t *testing.T) {
	assert.NoError(t, violation("r", nil, nil))
}

func TestCheckRequiredFields(t *testing.T) {
	pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	noType := record("SC1001", pickup, time.Hour)
	noType.PackageType = ""
	noZone := record("SC1002", pickup, time.Hour)
	noZone.Zone = ""
	noID := record("", pickup, time.Hour)

	batch := NewBatch([]DeliveryRecord{record("SC1000", pickup, time.Hour), noType, noZone, noID})
	err := CheckRequiredFields(batch)
	require.ErrorIs(t, err, ErrPrecondition)

	var perr *PreconditionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []int{1, 2, 3}, perr.Rows)
	assert.Equal(t, []string{"SC1001", "SC1002", ""}, perr.DeliveryIDs)
	assert.Contains(t, err.Error(), "row 4")
}

func TestCheckRequiredFields_Complete(t *testing.T) {
	pickup := time.Date(2025, time.August, 1, 10, 0, 0, 0, time.UTC)
	assert.NoError(t, CheckRequiredFields(NewBatch([]DeliveryRecord{record("SC1000", pickup, time.Hour)})))
	assert.NoError(t, CheckRequiredFields(nil))
}
