package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freecash-dev/freecash-api/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInvoiceDueDate_BeforeClosing(t *testing.T) {
	// Purchase on the 5th, card closes on the 10th and is due on the 15th:
	// same month.
	due := InvoiceDueDate(date(2024, time.January, 5), 10, 15)
	assert.Equal(t, date(2024, time.January, 15), due)
}

func TestInvoiceDueDate_AfterClosing(t *testing.T) {
	// Purchase on the 25th with closing on the 20th rolls to the February
	// cycle; due day 5 comes before the closing day, so it lands in March.
	due := InvoiceDueDate(date(2024, time.January, 25), 20, 5)
	assert.Equal(t, date(2024, time.March, 5), due)
}

func TestInvoiceDueDate_OnClosingDay(t *testing.T) {
	// A purchase exactly on the closing day still belongs to that cycle.
	due := InvoiceDueDate(date(2024, time.March, 10), 10, 15)
	assert.Equal(t, date(2024, time.March, 15), due)
}

func TestInvoiceDueDate_ClampsToMonthEnd(t *testing.T) {
	// Due day 31 in a 30-day month clamps to the 30th.
	due := InvoiceDueDate(date(2024, time.April, 2), 20, 31)
	assert.Equal(t, date(2024, time.April, 30), due)
}

func TestAddMonths_ClampsDay(t *testing.T) {
	assert.Equal(t, date(2024, time.February, 29), AddMonths(date(2024, time.January, 31), 1))
	assert.Equal(t, date(2023, time.February, 28), AddMonths(date(2023, time.January, 31), 1))
	assert.Equal(t, date(2024, time.March, 31), AddMonths(date(2024, time.January, 31), 2))
}

func TestSplitInstallments_ExactDivision(t *testing.T) {
	parts, err := SplitInstallments(decimal.RequireFromString("300.00"), 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.True(t, p.Equal(decimal.RequireFromString("100.00")), p.String())
	}
}

func TestSplitInstallments_RemainderGoesFirst(t *testing.T) {
	// 100.00 over 3 is 33.33 with one cent left over for the first part.
	parts, err := SplitInstallments(decimal.RequireFromString("100.00"), 3)
	require.NoError(t, err)
	require.Len(t, parts, 3)
	assert.True(t, parts[0].Equal(decimal.RequireFromString("33.34")), parts[0].String())
	assert.True(t, parts[1].Equal(decimal.RequireFromString("33.33")))
	assert.True(t, parts[2].Equal(decimal.RequireFromString("33.33")))

	sum := decimal.Zero
	for _, p := range parts {
		sum = sum.Add(p)
	}
	assert.True(t, sum.Equal(decimal.RequireFromString("100.00")))
}

func TestSplitInstallments_SumsBackForManyParts(t *testing.T) {
	total := decimal.RequireFromString("1234.56")
	parts, err := SplitInstallments(total, 24)
	require.NoError(t, err)

	sum := decimal.Zero
	for i, p := range parts {
		sum = sum.Add(p)
		if i > 0 {
			// Earlier installments absorb the remainder, so amounts never
			// increase along the sequence.
			assert.True(t, parts[i-1].GreaterThanOrEqual(p))
		}
	}
	assert.True(t, sum.Equal(total))
}

func TestSplitInstallments_CountBounds(t *testing.T) {
	_, err := SplitInstallments(decimal.RequireFromString("100.00"), 1)
	assert.ErrorIs(t, err, ErrInstallmentCount)

	_, err = SplitInstallments(decimal.RequireFromString("100.00"), 25)
	assert.ErrorIs(t, err, ErrInstallmentCount)
}

func TestInvoiceDescription_Format(t *testing.T) {
	got := InvoiceDescription("Nubank", date(2024, time.March, 5))
	assert.Equal(t, "Fatura Nubank - 03/2024", got)
}

func TestDeleteWholeGroup(t *testing.T) {
	group := int64(42)
	installment := &models.LedgerEntry{InstallmentGroup: &group}
	single := &models.LedgerEntry{}

	// Group removal is opt-in.
	assert.True(t, deleteWholeGroup(installment, true))
	assert.False(t, deleteWholeGroup(installment, false))

	// Entries outside a group never cascade.
	assert.False(t, deleteWholeGroup(single, true))
	assert.False(t, deleteWholeGroup(single, false))
}
